package payload

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"

	"github.com/google/uuid"
)

// Encode renders r as the compact JSON payload printed into confirmation
// codes. Empty optional fields and sentinel defaults are left out so the code
// stays small; Decode restores them.
func Encode(r models.Reservation) (string, error) {
	obj := make(map[string]any, len(wireKeys))
	for key, val := range wireValues(r) {
		if key == keyGuests {
			n, _ := strconv.Atoi(val)
			obj[key] = n
			continue
		}
		obj[key] = val
	}

	data, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// EncodeQuery renders r as the URL query form of the same payload.
func EncodeQuery(r models.Reservation) string {
	values := url.Values{}
	for key, val := range wireValues(r) {
		values.Set(key, val)
	}
	return values.Encode()
}

func wireValues(r models.Reservation) map[string]string {
	out := map[string]string{
		keyName:   r.CustomerName,
		keyDate:   r.Date,
		keyTime:   r.Time,
		keyGuests: strconv.Itoa(r.Guests),
	}
	optional := map[string]string{
		keyEmail:   r.Email,
		keyPhone:   r.Phone,
		keySpecial: r.SpecialRequests,
	}
	if r.HasTable() {
		optional[keyTable] = r.Table
	}
	if r.HasOccasion() {
		optional[keyOccasion] = r.Occasion
	}
	for key, val := range optional {
		if val != "" {
			out[key] = val
		}
	}
	return out
}

// NewReservationCode returns a random upper-case code suitable for the table
// slot of a freshly issued payload.
func NewReservationCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:models.ReservationCodeLength])
}
