package repository

import (
	"context"
	"sync"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
)

// MemoryRepository keeps serialized snapshots per key in process memory.
// Snapshots are stored encoded so callers never share slices with it.
type MemoryRepository struct {
	values sync.Map
	key    string
}

func NewMemoryRepository(key string) *MemoryRepository {
	return &MemoryRepository{key: key}
}

func (r *MemoryRepository) Load(_ context.Context) ([]models.Reservation, error) {
	val, ok := r.values.Load(r.key)
	if !ok {
		return nil, nil
	}
	return decodeBookings(val.([]byte))
}

func (r *MemoryRepository) Save(_ context.Context, bookings []models.Reservation) error {
	data, err := encodeBookings(bookings)
	if err != nil {
		return err
	}
	r.values.Store(r.key, data)
	return nil
}

