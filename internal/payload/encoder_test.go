package payload

import (
	"strings"
	"testing"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_RoundTrip(t *testing.T) {
	records := []models.Reservation{
		janeDoe(),
		{
			CustomerName:    "Ana Ruiz",
			Email:           "ana@example.com",
			Phone:           "+34 600 000 000",
			Date:            "2025-02-14",
			Time:            "21:00",
			Guests:          20,
			Table:           "T12",
			Occasion:        "anniversary",
			SpecialRequests: "window seat & cake",
		},
	}

	for _, r := range records {
		data, err := Encode(r)
		require.NoError(t, err)
		fromJSON, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, r, fromJSON)

		fromQuery, err := Decode(EncodeQuery(r))
		require.NoError(t, err)
		assert.Equal(t, r, fromQuery)
	}
}

func TestEncode_OmitsSentinels(t *testing.T) {
	data, err := Encode(janeDoe())
	require.NoError(t, err)
	assert.NotContains(t, data, models.TableUnassigned)
	assert.NotContains(t, data, models.OccasionNone)
	assert.NotContains(t, data, `"e"`)
	assert.Contains(t, data, `"g":4`)

	query := EncodeQuery(janeDoe())
	assert.NotContains(t, query, "c=")
	assert.Contains(t, query, "n=Jane+Doe")
}

func TestNewReservationCode(t *testing.T) {
	code := NewReservationCode()
	assert.Len(t, code, models.ReservationCodeLength)
	assert.Equal(t, strings.ToUpper(code), code)
	assert.NotEqual(t, code, NewReservationCode())
}

func TestNormalize(t *testing.T) {
	rec, err := Normalize(models.Reservation{CustomerName: " Jane Doe ", Date: "2024-06-01", Time: "9:30", Guests: 2})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", rec.CustomerName)
	assert.Equal(t, "09:30", rec.Time)
	assert.Equal(t, models.TableUnassigned, rec.Table)
	assert.Equal(t, models.OccasionNone, rec.Occasion)

	_, err = Normalize(models.Reservation{CustomerName: "Jane", Date: "2024-06-01", Time: "09:30"})
	assert.ErrorIs(t, err, ErrInvalidGuestCount)

	assert.NoError(t, Validate(janeDoe()))
	assert.ErrorIs(t, Validate(models.Reservation{CustomerName: "Jane", Date: "2024-6-1", Time: "09:30", Guests: 1}), ErrInvalidDate)
}

func TestCanonicalKey(t *testing.T) {
	key := CanonicalKey(models.Reservation{CustomerName: " Jane Doe", Date: "2024-06-01 ", Time: "9:30"})
	assert.Equal(t, models.Key{CustomerName: "Jane Doe", Date: "2024-06-01", Time: "09:30"}, key)
}
