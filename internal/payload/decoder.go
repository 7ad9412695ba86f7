// Package payload turns scanned booking confirmation codes into canonical
// reservation records.
//
// Two wire shapes are accepted: a compact JSON object and a URL query string.
// Both use the same one-letter keys and are unified into a single field map
// before any validation runs, so the rules below are applied once regardless of
// where the code came from.
package payload

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/SapphireLounge/venue-qr-code-scanner/internal/models"
)

// Compact wire keys. They exist only at decode time and never reach stored
// records.
const (
	keyName     = "n"
	keyEmail    = "e"
	keyPhone    = "p"
	keyDate     = "d"
	keyTime     = "t"
	keyGuests   = "g"
	keyTable    = "c"
	keyOccasion = "o"
	keySpecial  = "s"
)

var wireKeys = []string{keyName, keyEmail, keyPhone, keyDate, keyTime, keyGuests, keyTable, keyOccasion, keySpecial}

// Format names the wire shape a payload was read from.
type Format string

const (
	FormatUnknown Format = ""
	FormatJSON    Format = "json"
	FormatQuery   Format = "query"
)

// fields is the unified representation shared by both wire formats.
type fields map[string]string

// Decoder is stateless and safe for concurrent use.
type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

var defaultDecoder = NewDecoder()

// Decode parses raw with the package default decoder.
func Decode(raw string) (models.Reservation, error) {
	return defaultDecoder.Decode(raw)
}

// Decode returns the validated record for raw or a *DecodeError describing the
// first rule it broke.
func (d *Decoder) Decode(raw string) (models.Reservation, error) {
	rec, _, err := d.DecodeFormat(raw)
	return rec, err
}

// DecodeFormat is Decode that also reports which wire format matched.
func (d *Decoder) DecodeFormat(raw string) (models.Reservation, Format, error) {
	f, format, err := unify(raw)
	if err != nil {
		return models.Reservation{}, format, err
	}
	rec, err := build(f)
	return rec, format, err
}

// unify tries the structured JSON shape first and falls back to the URL query
// shape when raw is not a JSON object.
func unify(raw string) (fields, Format, error) {
	raw = strings.TrimSpace(raw)

	f, ok, err := fromJSON(raw)
	if err != nil {
		return nil, FormatJSON, err
	}
	if ok {
		return f, FormatJSON, nil
	}

	f, err = fromQuery(raw)
	if err != nil {
		return nil, FormatQuery, err
	}
	return f, FormatQuery, nil
}

// fromJSON reports ok=false when raw is not a single JSON object so the caller
// can try the query shape instead.
func fromJSON(raw string) (fields, bool, error) {
	if !strings.HasPrefix(raw, "{") {
		return nil, false, nil
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return nil, false, nil
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false, nil
	}

	f := make(fields, len(wireKeys))
	for _, key := range wireKeys {
		val, ok := obj[key]
		if !ok || val == nil {
			continue
		}
		switch v := val.(type) {
		case string:
			f[key] = v
		case json.Number:
			f[key] = numberText(v)
		case bool:
			f[key] = strconv.FormatBool(v)
		default:
			return nil, true, newDecodeError(KindUnparseableFormat, recordField(key), "")
		}
	}
	return f, true, nil
}

func fromQuery(raw string) (fields, error) {
	query := raw
	// Accept full URLs and a leading "?" as long as the "?" is not part of a value.
	if i := strings.IndexByte(query, '?'); i >= 0 && !strings.ContainsAny(query[:i], "=&") {
		query = query[i+1:]
	}
	if i := strings.IndexByte(query, '#'); i >= 0 {
		query = query[:i]
	}

	values := parseQuery(query)

	f := make(fields, len(wireKeys))
	found := false
	for _, key := range wireKeys {
		vs, ok := values[key]
		if !ok {
			continue
		}
		found = true
		if len(vs) > 0 {
			f[key] = vs[0]
		}
	}
	if !found {
		return nil, newDecodeError(KindUnparseableFormat, "", "")
	}
	if _, ok := f[keyGuests]; !ok {
		f[keyGuests] = strconv.Itoa(models.DefaultGuests)
	}
	return f, nil
}

// parseQuery reads query the way a browser does: pairs are split on "&" only,
// malformed escapes stay literal and invalid UTF-8 becomes U+FFFD.
func parseQuery(query string) map[string][]string {
	values := make(map[string][]string)
	for _, pair := range strings.Split(query, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescape(key)
		values[key] = append(values[key], unescape(value))
	}
	return values
}

func unescape(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s):
			if v, err := hex.DecodeString(s[i+1 : i+3]); err == nil {
				b.WriteByte(v[0])
				i += 2
				continue
			}
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return strings.ToValidUTF8(b.String(), string(utf8.RuneError))
}

// build validates unified fields in rule order and fails on the first
// violation.
func build(f fields) (models.Reservation, error) {
	name := strings.TrimSpace(f[keyName])
	date := strings.TrimSpace(f[keyDate])
	tm := strings.TrimSpace(f[keyTime])

	hhmm, err := checkIdentity(name, date, tm)
	if err != nil {
		return models.Reservation{}, err
	}

	guests, err := parseGuests(f[keyGuests])
	if err != nil {
		return models.Reservation{}, err
	}

	return models.Reservation{
		CustomerName:    name,
		Email:           strings.TrimSpace(f[keyEmail]),
		Phone:           strings.TrimSpace(f[keyPhone]),
		Date:            date,
		Time:            hhmm,
		Guests:          guests,
		Table:           orDefault(f[keyTable], models.TableUnassigned),
		Occasion:        orDefault(f[keyOccasion], models.OccasionNone),
		SpecialRequests: strings.TrimSpace(f[keySpecial]),
	}, nil
}

func parseGuests(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.DefaultGuests, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < models.MinGuests || n > models.MaxGuests {
		return 0, newDecodeError(KindInvalidGuestCount, "guests", raw)
	}
	return n, nil
}

func numberText(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return n.String()
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

func recordField(key string) string {
	switch key {
	case keyName:
		return "customerName"
	case keyEmail:
		return "email"
	case keyPhone:
		return "phone"
	case keyDate:
		return "date"
	case keyTime:
		return "time"
	case keyGuests:
		return "guests"
	case keyTable:
		return "table"
	case keyOccasion:
		return "occasion"
	case keySpecial:
		return "specialRequests"
	default:
		return key
	}
}
