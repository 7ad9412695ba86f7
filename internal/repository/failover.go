package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/domain"
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"

	"github.com/rs/zerolog"
)

// ErrPrimaryNotLoaded is returned by Save while the primary holds state that
// was never read. Writing the in-memory collection over it would erase that
// state, so the save only reaches the fallback.
var ErrPrimaryNotLoaded = errors.New("primary persister was never loaded, not overwriting it")

// FailoverRepository writes to primary while it is healthy and switches to
// fallback after the first error. The primary is retried once per
// retryAfter; a successful save brings it back and resynchronizes it.
//
// A primary that failed its first Load is never written: its contents are
// unknown, and the fallback only mirrors what was actually read.
type FailoverRepository struct {
	primary    domain.Persister
	fallback   domain.Persister
	logger     *zerolog.Logger
	isDown     atomic.Bool
	loaded     atomic.Bool
	loadFailed atomic.Bool
	mu         sync.Mutex
	lastCheck  time.Time
	retryAfter time.Duration
	now        func() time.Time
}

func NewFailoverRepository(primary, fallback domain.Persister, logger *zerolog.Logger) *FailoverRepository {
	return &FailoverRepository{
		primary:    primary,
		fallback:   fallback,
		logger:     logger,
		retryAfter: time.Minute,
		now:        time.Now,
	}
}

// Degraded reports whether the fallback is currently serving.
func (r *FailoverRepository) Degraded() bool {
	return r.isDown.Load()
}

func (r *FailoverRepository) Load(ctx context.Context) ([]models.Reservation, error) {
	if r.shouldTryPrimary() {
		bookings, err := r.primary.Load(ctx)
		if err == nil {
			r.recover()
			r.loaded.Store(true)
			r.loadFailed.Store(false)
			// Seed the fallback so a later outage does not lose restored state.
			if err := r.fallback.Save(ctx, bookings); err != nil {
				r.logger.Warn().Err(err).Msg("Seeding booking fallback failed")
			}
			return bookings, nil
		}
		r.markDown(err)
		if !r.loaded.Load() {
			r.loadFailed.Store(true)
			return nil, fmt.Errorf("load primary: %w", err)
		}
	} else if !r.loaded.Load() {
		// Down before anything was read: the fallback holds nothing restorable.
		r.loadFailed.Store(true)
		return nil, ErrPrimaryNotLoaded
	}

	return r.fallback.Load(ctx)
}

func (r *FailoverRepository) Save(ctx context.Context, bookings []models.Reservation) error {
	if r.loadFailed.Load() {
		if err := r.fallback.Save(ctx, bookings); err != nil {
			return err
		}
		return ErrPrimaryNotLoaded
	}

	if r.shouldTryPrimary() {
		err := r.primary.Save(ctx, bookings)
		if err == nil {
			r.recover()
			_ = r.fallback.Save(ctx, bookings)
			return nil
		}
		r.markDown(err)
	}

	return r.fallback.Save(ctx, bookings)
}

func (r *FailoverRepository) shouldTryPrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.now().Sub(r.lastCheck) > r.retryAfter {
		r.lastCheck = r.now()
		return true
	}
	return false
}

func (r *FailoverRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary booking persister failed, falling back")
	}
	r.mu.Lock()
	r.lastCheck = r.now()
	r.mu.Unlock()
}

func (r *FailoverRepository) recover() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary booking persister recovered")
	}
}
