package repository

import (
	"encoding/json"
	"fmt"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
)

// encodeBookings renders the persisted layout: a JSON array of records using
// the record field names.
func encodeBookings(bookings []models.Reservation) ([]byte, error) {
	if bookings == nil {
		bookings = []models.Reservation{}
	}
	data, err := json.Marshal(bookings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bookings: %w", err)
	}
	return data, nil
}

func decodeBookings(data []byte) ([]models.Reservation, error) {
	var bookings []models.Reservation
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookings: %w", err)
	}
	return bookings, nil
}
