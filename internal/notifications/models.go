package notifications

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeBookingSucceeded     EventType = "BOOKING_SUCCEEDED"
	EventTypeBookingDeclined      EventType = "BOOKING_DECLINED"
	EventTypeReservationCancelled EventType = "RESERVATION_CANCELLED"
	EventTypeCancellationDeclined EventType = "CANCELLATION_DECLINED"
)

// BookingEvent is published once per booking or cancellation attempt
type BookingEvent struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	Date       string    `json:"date,omitempty"`
	Area       string    `json:"area,omitempty"`
	Seat       string    `json:"seat,omitempty"`
	RoomID     string    `json:"room_id,omitempty"`
	Timeslot   string    `json:"timeslot,omitempty"`
	EntryID    string    `json:"entry_id,omitempty"`
	Success    bool      `json:"success"`
	Message    *string   `json:"message,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewBookingEvent stamps a new event with an id and the current time
func NewBookingEvent(eventType EventType, userID string) *BookingEvent {
	return &BookingEvent{
		ID:         uuid.New(),
		Type:       eventType,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

func (e *BookingEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// GetPartitionKey keeps the events of one user in order
func (e *BookingEvent) GetPartitionKey() string {
	return e.UserID
}

// IsCancellation reports whether the event is about a cancellation
func (e *BookingEvent) IsCancellation() bool {
	return e.Type == EventTypeReservationCancelled || e.Type == EventTypeCancellationDeclined
}
