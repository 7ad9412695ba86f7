package models

const (
	// TableUnassigned is stored when the payload carries no table/code.
	TableUnassigned = "unassigned"
	// OccasionNone is stored when the payload carries no occasion.
	OccasionNone = "none specified"
)

const (
	MinGuests = 1
	MaxGuests = 20

	// DefaultGuests is used when the payload omits the guest count.
	DefaultGuests = 1
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

const (
	// DefaultStoreKey names the persisted collection.
	DefaultStoreKey = "bookings"

	// ReservationCodeLength is the length of generated reservation codes.
	ReservationCodeLength = 6
)

const (
	NoticeSuccess = "success"
	NoticeInfo    = "info"
	NoticeWarning = "warning"
	NoticeError   = "error"
)

// Notice is a short user-facing message produced for the capture and
// confirmation surfaces.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}
