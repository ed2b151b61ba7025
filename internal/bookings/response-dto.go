package bookings

// BookingResponse echoes what was attempted along with the verdict
type BookingResponse struct {
	BookingResult
	Area     string `json:"area,omitempty"`
	Seat     string `json:"seat,omitempty"`
	Timeslot *int   `json:"timeslot,omitempty"`
	EntryID  string `json:"entry_id,omitempty"`
}
