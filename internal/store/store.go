// Package store keeps the booking collection and its persisted copy in sync.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/domain"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/payload"

	"github.com/rs/zerolog"
)

// ErrDuplicateBooking is returned by Insert when a record with the same
// customer name, date and time already exists.
var ErrDuplicateBooking = errors.New("booking already exists")

// PersistenceWarning reports that the in-memory collection changed (or was
// restored empty) but the persister failed. It is not fatal.
type PersistenceWarning struct {
	Op  string
	Err error
}

func (w *PersistenceWarning) Error() string {
	return fmt.Sprintf("bookings %s: %v", w.Op, w.Err)
}

func (w *PersistenceWarning) Unwrap() error {
	return w.Err
}

// IsWarning reports whether err is a non-fatal persistence warning.
func IsWarning(err error) bool {
	var w *PersistenceWarning
	return errors.As(err, &w)
}

// BookingStore is the single owner of the booking collection. Records keep
// insertion order and are unique by their identity key.
type BookingStore struct {
	mu        sync.RWMutex
	bookings  []models.Reservation
	persister domain.Persister
	logger    *zerolog.Logger
}

// New restores the collection from p. When p fails to load, the store starts
// empty and the returned error is a *PersistenceWarning alongside a usable
// store.
func New(ctx context.Context, p domain.Persister, logger *zerolog.Logger) (*BookingStore, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	s := &BookingStore{
		bookings:  make([]models.Reservation, 0),
		persister: p,
		logger:    logger,
	}

	loaded, err := p.Load(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("restore bookings failed, starting empty")
		return s, &PersistenceWarning{Op: "restore", Err: err}
	}

	seen := make(map[models.Key]bool, len(loaded))
	for i, rec := range loaded {
		norm, err := payload.Normalize(rec)
		if err != nil {
			s.logger.Warn().Err(err).Int("index", i).Msg("skipping invalid persisted booking")
			continue
		}
		key := norm.Key()
		if seen[key] {
			s.logger.Warn().Str("booking", key.String()).Msg("skipping duplicate persisted booking")
			continue
		}
		seen[key] = true
		s.bookings = append(s.bookings, norm)
	}

	s.logger.Info().Int("count", len(s.bookings)).Msg("bookings restored")
	return s, nil
}

// Insert validates rec, rejects duplicates and persists the collection.
func (s *BookingStore) Insert(ctx context.Context, rec models.Reservation) error {
	norm, err := payload.Normalize(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(norm.Key()) >= 0 {
		return ErrDuplicateBooking
	}
	s.bookings = append(s.bookings, norm)

	return s.persistLocked(ctx, "insert")
}

// Delete removes the record matching rec's identity key. A missing record is
// not an error and does not touch the persister.
func (s *BookingStore) Delete(ctx context.Context, rec models.Reservation) error {
	key := payload.CanonicalKey(rec)

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(key)
	if i < 0 {
		return nil
	}
	s.bookings = append(s.bookings[:i], s.bookings[i+1:]...)

	return s.persistLocked(ctx, "delete")
}

// FindByDate returns the bookings for date in insertion order. The date is
// compared as an exact string.
func (s *BookingStore) FindByDate(date string) []models.Reservation {
	return s.filter(func(r models.Reservation) bool { return r.Date == date })
}

// FindByCustomer returns the first booking, in insertion order, whose
// customer name equals name exactly. Customers with several bookings only
// ever see their earliest inserted one.
func (s *BookingStore) FindByCustomer(name string) (models.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.bookings {
		if r.CustomerName == name {
			return r, true
		}
	}
	return models.Reservation{}, false
}

// FindByRange returns bookings whose date is within [from, to]. Either bound
// may be empty to leave that side open.
func (s *BookingStore) FindByRange(from, to string) []models.Reservation {
	return s.filter(func(r models.Reservation) bool {
		return (from == "" || r.Date >= from) && (to == "" || r.Date <= to)
	})
}

// All returns a copy of the whole collection.
func (s *BookingStore) All() []models.Reservation {
	return s.filter(func(models.Reservation) bool { return true })
}

func (s *BookingStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bookings)
}

func (s *BookingStore) filter(keep func(models.Reservation) bool) []models.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Reservation, 0)
	for _, r := range s.bookings {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *BookingStore) indexOf(key models.Key) int {
	for i, r := range s.bookings {
		if r.Key() == key {
			return i
		}
	}
	return -1
}

// persistLocked writes the full collection; s.mu must be held.
func (s *BookingStore) persistLocked(ctx context.Context, op string) error {
	snapshot := make([]models.Reservation, len(s.bookings))
	copy(snapshot, s.bookings)

	if err := s.persister.Save(ctx, snapshot); err != nil {
		s.logger.Error().Err(err).Str("op", op).Int("count", len(snapshot)).Msg("persist bookings failed")
		return &PersistenceWarning{Op: op, Err: err}
	}
	return nil
}
