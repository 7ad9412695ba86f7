package payload

import (
	"errors"
	"fmt"
)

// Kind classifies why a scanned payload was rejected.
type Kind string

const (
	KindMissingField      Kind = "MissingField"
	KindInvalidDate       Kind = "InvalidDate"
	KindInvalidTime       Kind = "InvalidTime"
	KindInvalidGuestCount Kind = "InvalidGuestCount"
	KindUnparseableFormat Kind = "UnparseableFormat"
)

var (
	ErrMissingField      = errors.New("missing required field")
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidTime       = errors.New("invalid time")
	ErrInvalidGuestCount = errors.New("invalid guest count")
	ErrUnparseableFormat = errors.New("unparseable payload format")
)

var sentinels = map[Kind]error{
	KindMissingField:      ErrMissingField,
	KindInvalidDate:       ErrInvalidDate,
	KindInvalidTime:       ErrInvalidTime,
	KindInvalidGuestCount: ErrInvalidGuestCount,
	KindUnparseableFormat: ErrUnparseableFormat,
}

// DecodeError reports the first rule a payload violated.
type DecodeError struct {
	Kind  Kind
	Field string // record field name, empty when the whole payload is at fault
	Value string
}

func newDecodeError(kind Kind, field, value string) *DecodeError {
	return &DecodeError{Kind: kind, Field: field, Value: value}
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason())
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Field, e.Reason())
}

// Reason is the message shown to the person holding the scanner.
func (e *DecodeError) Reason() string {
	switch e.Kind {
	case KindMissingField:
		return fmt.Sprintf("The code is missing the %s.", fieldLabel(e.Field))
	case KindInvalidDate:
		return fmt.Sprintf("The date %q is not in YYYY-MM-DD format.", e.Value)
	case KindInvalidTime:
		return fmt.Sprintf("The time %q is not a valid 24-hour HH:MM time.", e.Value)
	case KindInvalidGuestCount:
		return fmt.Sprintf("The guest count %q must be a whole number from 1 to 20.", e.Value)
	case KindUnparseableFormat:
		return "Invalid QR code format."
	default:
		return "The code could not be read."
	}
}

// Is makes errors.Is(err, ErrInvalidDate) and friends work.
func (e *DecodeError) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// KindOf returns the decode error kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}

func fieldLabel(field string) string {
	switch field {
	case "customerName":
		return "customer name"
	case "date":
		return "reservation date"
	case "time":
		return "reservation time"
	case "":
		return "required details"
	default:
		return field
	}
}
