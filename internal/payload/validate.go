package payload

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
)

var (
	datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timePattern = regexp.MustCompile(`^([01]?\d|2[0-3]):([0-5]\d)$`)
)

// validDate checks the YYYY-MM-DD shape only; "2024-13-01" passes.
func validDate(s string) bool {
	return datePattern.MatchString(s)
}

// canonicalTime accepts H:MM and HH:MM and returns the zero-padded form.
func canonicalTime(s string) (string, bool) {
	m := timePattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	hour := m[1]
	if len(hour) == 1 {
		hour = "0" + hour
	}
	return hour + ":" + m[2], true
}

// checkIdentity runs the required-field, date and time rules in order and
// returns the canonical time.
func checkIdentity(name, date, tm string) (string, error) {
	switch {
	case name == "":
		return "", newDecodeError(KindMissingField, "customerName", "")
	case date == "":
		return "", newDecodeError(KindMissingField, "date", "")
	case tm == "":
		return "", newDecodeError(KindMissingField, "time", "")
	}
	if !validDate(date) {
		return "", newDecodeError(KindInvalidDate, "date", date)
	}
	hhmm, ok := canonicalTime(tm)
	if !ok {
		return "", newDecodeError(KindInvalidTime, "time", tm)
	}
	return hhmm, nil
}

// Normalize applies the decoder's trimming, defaults and validation rules to a
// record that did not come through Decode (API input, persisted state).
func Normalize(r models.Reservation) (models.Reservation, error) {
	out := models.Reservation{
		CustomerName:    clean(r.CustomerName),
		Email:           clean(r.Email),
		Phone:           clean(r.Phone),
		Date:            clean(r.Date),
		Time:            clean(r.Time),
		Guests:          r.Guests,
		Table:           orDefault(clean(r.Table), models.TableUnassigned),
		Occasion:        orDefault(clean(r.Occasion), models.OccasionNone),
		SpecialRequests: clean(r.SpecialRequests),
	}

	hhmm, err := checkIdentity(out.CustomerName, out.Date, out.Time)
	if err != nil {
		return models.Reservation{}, err
	}
	out.Time = hhmm

	if out.Guests < models.MinGuests || out.Guests > models.MaxGuests {
		return models.Reservation{}, newDecodeError(KindInvalidGuestCount, "guests", strconv.Itoa(out.Guests))
	}
	return out, nil
}

// Validate reports whether r already satisfies every record rule.
func Validate(r models.Reservation) error {
	_, err := Normalize(r)
	return err
}

// CanonicalKey trims and pads the identity fields the way Normalize does, so
// lookups by a hand-built record match stored ones. Invalid times are kept as
// given.
func CanonicalKey(r models.Reservation) models.Key {
	tm := clean(r.Time)
	if hhmm, ok := canonicalTime(tm); ok {
		tm = hhmm
	}
	return models.Key{
		CustomerName: clean(r.CustomerName),
		Date:         clean(r.Date),
		Time:         tm,
	}
}

// clean trims s and replaces invalid UTF-8, which would not survive a JSON
// round trip through the persister unchanged.
func clean(s string) string {
	return strings.TrimSpace(strings.ToValidUTF8(s, string(utf8.RuneError)))
}
