package reservations

import "errors"

// ErrUpstreamData means the report could not be read. It is distinct from
// an empty result, which is a nil error and no records.
var ErrUpstreamData = errors.New("reservation report unavailable")

// ReservationRecord is one of the user's existing reservations as the
// report lists it. The date parts are empty when the start cell does not
// have the usual "<timeslot> - <weekday>, <day>. <month> <year>" shape;
// DateLabel then holds the raw cell text.
type ReservationRecord struct {
	ID            string `json:"id"`
	Room          string `json:"room"`
	Seat          string `json:"seat"`
	DateLabel     string `json:"date_label"`
	TimeslotLabel string `json:"timeslot_label"`
	Weekday       string `json:"weekday,omitempty"`
	Day           int    `json:"day,omitempty"`
	Month         string `json:"month,omitempty"`
	Year          int    `json:"year,omitempty"`
}

// report is the datatable payload of the report page
type report struct {
	Data [][]interface{} `json:"aaData"`
}
