package domain

import (
	"context"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
)

// Persister stores the whole booking collection under one named entry.
// Load returns (nil, nil) when nothing has been saved yet.
type Persister interface {
	Load(ctx context.Context) ([]models.Reservation, error)
	Save(ctx context.Context, bookings []models.Reservation) error
}

type BookingStore interface {
	Insert(ctx context.Context, rec models.Reservation) error
	Delete(ctx context.Context, rec models.Reservation) error
	FindByDate(date string) []models.Reservation
	FindByCustomer(name string) (models.Reservation, bool)
	FindByRange(from, to string) []models.Reservation
	All() []models.Reservation
	Len() int
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type SheetsWriter interface {
	ReplaceBookings(ctx context.Context, bookings []models.Reservation) error
}

// MirrorQueue accepts snapshots for asynchronous replication.
type MirrorQueue interface {
	Enqueue(ctx context.Context, snapshot []models.Reservation) error
}
