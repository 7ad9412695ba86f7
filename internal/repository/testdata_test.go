package repository

import (
	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
)

func sampleBookings() []models.Reservation {
	return []models.Reservation{
		{
			CustomerName: "Jane Doe",
			Date:         "2024-06-01",
			Time:         "19:30",
			Guests:       4,
			Table:        models.TableUnassigned,
			Occasion:     models.OccasionNone,
		},
		{
			CustomerName:    "Ana Ruiz",
			Email:           "ana@example.com",
			Phone:           "+34 600 000 000",
			Date:            "2024-06-02",
			Time:            "21:00",
			Guests:          2,
			Table:           "T12",
			Occasion:        "anniversary",
			SpecialRequests: "window seat",
		},
	}
}
