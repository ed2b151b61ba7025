package bookings

// BookSeatRequest is the body of POST /bookings
type BookSeatRequest struct {
	DayOffset *int   `json:"day_offset" binding:"required,gte=0"`
	Timeslot  *int   `json:"timeslot" binding:"required,gte=0"`
	Area      string `json:"area" binding:"required"`
	Seat      string `json:"seat" binding:"required"`
	RoomID    string `json:"room_id" binding:"required"`
}
