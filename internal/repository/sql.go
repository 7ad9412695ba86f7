package repository

import (
	"context"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
)

// NamedStore is the part of database.DB the SQL repository uses.
type NamedStore interface {
	GetValue(ctx context.Context, name string) ([]byte, bool, error)
	PutValue(ctx context.Context, name string, value []byte) error
}

// SQLRepository keeps the collection as one row of the named_store table.
type SQLRepository struct {
	db  NamedStore
	key string
}

func NewSQLRepository(db NamedStore, key string) *SQLRepository {
	return &SQLRepository{db: db, key: key}
}

func (r *SQLRepository) Load(ctx context.Context) ([]models.Reservation, error) {
	data, ok, err := r.db.GetValue(ctx, r.key)
	if err != nil || !ok {
		return nil, err
	}
	return decodeBookings(data)
}

func (r *SQLRepository) Save(ctx context.Context, bookings []models.Reservation) error {
	data, err := encodeBookings(bookings)
	if err != nil {
		return err
	}
	return r.db.PutValue(ctx, r.key, data)
}
