package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/domain"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/events"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/metrics"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/payload"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/store"

	"github.com/rs/zerolog"
)

// Sources recorded on booking events.
const (
	SourceScan = "scan"
	SourceAPI  = "api"
	SourceCLI  = "cli"
)

// Result is the outcome of a successful mutation plus the notice to show.
type Result struct {
	Booking models.Reservation `json:"record"`
	Notice  models.Notice      `json:"notice"`
}

// Payloads holds the two wire renderings of one record.
type Payloads struct {
	JSON  string `json:"json"`
	Query string `json:"query"`
}

// ScanService runs the confirmation action on top of the booking store.
type ScanService struct {
	store    domain.BookingStore
	decoder  *payload.Decoder
	eventBus domain.EventPublisher
	mirror   domain.MirrorQueue
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewScanService(st domain.BookingStore, eventBus domain.EventPublisher, mirror domain.MirrorQueue, logger *zerolog.Logger) *ScanService {
	return &ScanService{
		store:    st,
		decoder:  payload.NewDecoder(),
		eventBus: eventBus,
		mirror:   mirror,
		logger:   logger,
		now:      time.Now,
	}
}

// Preview decodes raw without storing it.
func (s *ScanService) Preview(raw string) (models.Reservation, error) {
	rec, format, err := s.decoder.DecodeFormat(raw)
	if err != nil {
		s.rejected(err)
		return models.Reservation{}, err
	}
	s.logger.Debug().Str("format", string(format)).Str("booking", rec.Key().String()).Msg("payload decoded")
	return rec, nil
}

// Scan decodes raw and stores the result. Decode errors and duplicates are
// returned as errors; a persistence failure still succeeds with a warning
// notice.
func (s *ScanService) Scan(ctx context.Context, raw string) (Result, error) {
	rec, err := s.Preview(raw)
	if err != nil {
		return Result{}, err
	}
	res, err := s.insert(ctx, rec, SourceScan)
	switch {
	case err == nil:
		metrics.IncScan("accepted")
	case errors.Is(err, store.ErrDuplicateBooking):
		metrics.IncScan("duplicate")
	}
	return res, err
}

// Book stores a record that arrived already structured.
func (s *ScanService) Book(ctx context.Context, rec models.Reservation, source string) (Result, error) {
	return s.insert(ctx, rec, source)
}

func (s *ScanService) insert(ctx context.Context, rec models.Reservation, source string) (Result, error) {
	saved, err := payload.Normalize(rec)
	if err == nil {
		err = s.store.Insert(ctx, saved)
	}
	if err != nil && !store.IsWarning(err) {
		metrics.IncStoreOp("insert", resultLabel(err))
		if errors.Is(err, store.ErrDuplicateBooking) {
			s.logger.Info().Str("booking", saved.Key().String()).Msg("duplicate booking rejected")
		}
		return Result{}, err
	}

	res := Result{
		Booking: saved,
		Notice: models.Notice{
			Level:   models.NoticeSuccess,
			Message: fmt.Sprintf("Booking confirmed for %s on %s at %s.", saved.CustomerName, saved.Date, saved.Time),
		},
	}
	if err != nil {
		s.persistenceWarning(err, &res.Notice)
	}
	metrics.IncStoreOp("insert", resultLabel(err))

	s.logger.Info().
		Str("booking", saved.Key().String()).
		Int("guests", saved.Guests).
		Str("source", source).
		Msg("booking stored")

	s.afterMutation(ctx, events.EventBookingCreated, saved, source)
	return res, nil
}

// Cancel removes the booking matching rec's identity. Removing an unknown
// booking succeeds with an info notice.
func (s *ScanService) Cancel(ctx context.Context, rec models.Reservation, source string) (models.Notice, error) {
	key := payload.CanonicalKey(rec)
	existing := s.lookup(s.store.FindByDate(key.Date), key)
	if existing.CustomerName == "" {
		return models.Notice{Level: models.NoticeInfo, Message: fmt.Sprintf("No booking found for %s.", key)}, nil
	}

	err := s.store.Delete(ctx, rec)
	if err != nil && !store.IsWarning(err) {
		metrics.IncStoreOp("delete", resultLabel(err))
		return models.Notice{}, err
	}

	notice := models.Notice{Level: models.NoticeSuccess, Message: fmt.Sprintf("Booking for %s cancelled.", key)}
	if err != nil {
		s.persistenceWarning(err, &notice)
	}
	metrics.IncStoreOp("delete", resultLabel(err))

	s.afterMutation(ctx, events.EventBookingDeleted, existing, source)
	return notice, nil
}

func (s *ScanService) ListByDate(date string) []models.Reservation {
	return s.store.FindByDate(date)
}

func (s *ScanService) FindCustomer(name string) (models.Reservation, bool) {
	return s.store.FindByCustomer(name)
}

func (s *ScanService) ListRange(from, to string) []models.Reservation {
	return s.store.FindByRange(from, to)
}

// Encode validates rec and renders both wire payloads. A record without a
// table gets a fresh reservation code in that slot.
func (s *ScanService) Encode(rec models.Reservation) (Payloads, error) {
	norm, err := payload.Normalize(rec)
	if err != nil {
		return Payloads{}, err
	}
	if !norm.HasTable() {
		norm.Table = payload.NewReservationCode()
	}
	data, err := payload.Encode(norm)
	if err != nil {
		return Payloads{}, err
	}
	return Payloads{JSON: data, Query: payload.EncodeQuery(norm)}, nil
}

func (s *ScanService) lookup(candidates []models.Reservation, key models.Key) models.Reservation {
	for _, r := range candidates {
		if r.Key() == key {
			return r
		}
	}
	return models.Reservation{}
}

func (s *ScanService) persistenceWarning(err error, notice *models.Notice) {
	metrics.IncPersistenceWarning()
	s.logger.Warn().Err(err).Msg("booking kept in memory but not persisted")
	notice.Level = models.NoticeWarning
	notice.Message += " It could not be saved to storage and may be lost on restart."
}

func (s *ScanService) rejected(err error) {
	var de *payload.DecodeError
	if !errors.As(err, &de) {
		return
	}
	metrics.IncScan(string(de.Kind))
	s.logger.Info().Str("kind", string(de.Kind)).Str("field", de.Field).Msg("payload rejected")

	if s.eventBus == nil {
		return
	}
	evt := events.ScanRejectedPayload{Kind: string(de.Kind), Field: de.Field, Reason: de.Reason(), At: s.now()}
	if perr := s.eventBus.PublishJSON(events.EventScanRejected, evt); perr != nil {
		s.logger.Error().Err(perr).Msg("publish event error")
	}
}

func (s *ScanService) afterMutation(ctx context.Context, eventType string, rec models.Reservation, source string) {
	if s.eventBus != nil {
		evt := events.BookingEventPayload{Booking: rec, Source: source, Total: s.store.Len(), At: s.now()}
		if err := s.eventBus.PublishJSON(eventType, evt); err != nil {
			s.logger.Error().Err(err).Str("event_type", eventType).Msg("publish event error")
		}
	}

	if s.mirror != nil {
		if err := s.mirror.Enqueue(ctx, s.store.All()); err != nil {
			s.logger.Error().Err(err).Msg("mirror enqueue error")
		}
	}
}

// NoticeFor turns a failed operation into the notice shown to the user.
func NoticeFor(err error) models.Notice {
	var de *payload.DecodeError
	switch {
	case errors.As(err, &de):
		return models.Notice{Level: models.NoticeError, Message: de.Reason()}
	case errors.Is(err, store.ErrDuplicateBooking):
		return models.Notice{Level: models.NoticeError, Message: "This booking has already been recorded."}
	default:
		return models.Notice{Level: models.NoticeError, Message: "Something went wrong, please try again."}
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case store.IsWarning(err):
		return "unpersisted"
	case errors.Is(err, store.ErrDuplicateBooking):
		return "duplicate"
	}
	if kind, ok := payload.KindOf(err); ok {
		return string(kind)
	}
	return "error"
}
