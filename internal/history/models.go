package history

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Action string

const (
	ActionBook   Action = "BOOK"
	ActionCancel Action = "CANCEL"
)

// BookingAttempt is the audit record of one booking or cancellation
type BookingAttempt struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index:idx_booking_attempts_user_created,priority:1;not null" json:"user_id"`
	Action    Action    `gorm:"type:varchar(10);check:action IN ('BOOK', 'CANCEL');not null" json:"action"`
	Date      string    `gorm:"type:varchar(10)" json:"date,omitempty"`
	Area      string    `gorm:"type:varchar(32)" json:"area,omitempty"`
	Seat      string    `gorm:"type:varchar(128)" json:"seat,omitempty"`
	RoomID    string    `gorm:"type:varchar(32)" json:"room_id,omitempty"`
	Timeslot  string    `gorm:"type:varchar(64)" json:"timeslot,omitempty"`
	EntryID   string    `gorm:"type:varchar(32)" json:"entry_id,omitempty"`
	Success   bool      `gorm:"not null" json:"success"`
	Message   *string   `json:"message,omitempty"`
	CreatedAt time.Time `gorm:"index:idx_booking_attempts_user_created,priority:2" json:"created_at"`
}

// BeforeCreate assigns the id
func (a *BookingAttempt) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
