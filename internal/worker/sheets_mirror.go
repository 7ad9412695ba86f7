package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/domain"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/metrics"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"

	"github.com/rs/zerolog"
)

// ErrMirrorStopped is returned by Enqueue after the mirror has shut down.
var ErrMirrorStopped = errors.New("sheets mirror stopped")

// SheetsMirror replicates the booking collection to a spreadsheet in the
// background. Each snapshot replaces the whole sheet, so only the latest
// pending snapshot is kept; older ones are coalesced away.
type SheetsMirror struct {
	sheets      domain.SheetsWriter
	retryPolicy RetryPolicy
	logger      *zerolog.Logger

	mu      sync.Mutex
	pending []models.Reservation
	hasWork bool
	stopped bool
	signal  chan struct{}

	sleep func(ctx context.Context, d time.Duration) error
}

// NewSheetsMirror builds a mirror; zero retry fields take the defaults.
func NewSheetsMirror(sheets domain.SheetsWriter, retry RetryPolicy, logger *zerolog.Logger) *SheetsMirror {
	return &SheetsMirror{
		sheets:      sheets,
		retryPolicy: retry.withDefaults(),
		logger:      logger,
		signal:      make(chan struct{}, 1),
		sleep:       sleepCtx,
	}
}

// Enqueue schedules snapshot for replication. It never blocks.
func (m *SheetsMirror) Enqueue(_ context.Context, snapshot []models.Reservation) error {
	cp := make([]models.Reservation, len(snapshot))
	copy(cp, snapshot)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrMirrorStopped
	}
	if m.hasWork {
		m.logger.Debug().Int("count", len(cp)).Msg("sheets_mirror: coalescing pending snapshot")
	}
	m.pending = cp
	m.hasWork = true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return nil
}

// Start runs the replication loop until ctx is done.
func (m *SheetsMirror) Start(ctx context.Context) {
	m.logger.Info().Msg("sheets_mirror: started")
	defer func() {
		m.mu.Lock()
		m.stopped = true
		m.mu.Unlock()
		m.logger.Info().Msg("sheets_mirror: stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.signal:
			if snapshot, ok := m.take(); ok {
				m.push(ctx, snapshot)
			}
		}
	}
}

func (m *SheetsMirror) take() ([]models.Reservation, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasWork {
		return nil, false
	}
	snapshot := m.pending
	m.pending = nil
	m.hasWork = false
	return snapshot, true
}

// push writes snapshot with exponential backoff. A newer snapshot arriving
// during backoff supersedes the one being retried.
func (m *SheetsMirror) push(ctx context.Context, snapshot []models.Reservation) {
	for attempt := 1; ; attempt++ {
		err := m.sheets.ReplaceBookings(ctx, snapshot)
		if err == nil {
			metrics.IncMirror("ok")
			m.logger.Debug().Int("count", len(snapshot)).Msg("sheets_mirror: snapshot replicated")
			return
		}

		if attempt > m.retryPolicy.MaxRetries {
			metrics.IncMirror("dropped")
			m.logger.Error().Err(err).Int("attempts", attempt).Msg("sheets_mirror: giving up on snapshot")
			return
		}

		metrics.IncMirror("retry")
		delay := m.retryPolicy.NextDelay(attempt)
		m.logger.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("sheets_mirror: replication failed")

		if err := m.sleep(ctx, delay); err != nil {
			return
		}
		if newer, ok := m.take(); ok {
			snapshot = newer
			attempt = 0
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
