package models

// Reservation is the canonical booking record produced by the payload decoder
// and held by the booking store. JSON names are the persisted layout.
type Reservation struct {
	CustomerName    string `json:"customerName"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Date            string `json:"date"` // YYYY-MM-DD
	Time            string `json:"time"` // HH:MM
	Guests          int    `json:"guests"`
	Table           string `json:"table"`
	Occasion        string `json:"occasion"`
	SpecialRequests string `json:"specialRequests"`
}

// Key identifies a reservation: the same customer at the same date and time is
// the same booking regardless of the other fields.
type Key struct {
	CustomerName string
	Date         string
	Time         string
}

func (r Reservation) Key() Key {
	return Key{CustomerName: r.CustomerName, Date: r.Date, Time: r.Time}
}

func (k Key) String() string {
	return k.CustomerName + " @ " + k.Date + " " + k.Time
}

// HasTable reports whether a table was assigned in the scanned payload.
func (r Reservation) HasTable() bool {
	return r.Table != "" && r.Table != TableUnassigned
}

// HasOccasion reports whether the payload named an occasion.
func (r Reservation) HasOccasion() bool {
	return r.Occasion != "" && r.Occasion != OccasionNone
}
