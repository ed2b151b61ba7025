package bookings

import (
	"errors"

	"seatwatch/internal/portal"
)

var (
	ErrInvalidRequest  = errors.New("invalid booking request")
	ErrNoCredentials   = errors.New("no stored portal credentials")
	ErrUnknownTimeslot = errors.New("unknown timeslot")
)

// BookingRequest names one seat in one timeslot, DayOffset days from today
type BookingRequest struct {
	UserID    string          `validate:"required"`
	DayOffset int             `validate:"gte=0,lte=366"`
	Timeslot  int             `validate:"gte=0"`
	Area      string          `validate:"required"`
	Seat      string          `validate:"required"`
	RoomID    string          `validate:"required"`
	Session   *portal.Session `validate:"required"`
}

// BookingResult is the portal's verdict. Message explains a decline when
// the portal gave a reason.
type BookingResult struct {
	Success bool    `json:"success"`
	Message *string `json:"message"`
}

// precheck is the JSON the booking handler answers an ajax submission with
type precheck struct {
	ValidBooking *bool    `json:"valid_booking"`
	RulesBroken  []string `json:"rules_broken"`
	Conflicts    []string `json:"conflicts"`
}
