package database

import (
	"seatwatch/internal/history"

	"gorm.io/gorm"
)

// Migrate creates the history table and the indexes its lookups need
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&history.BookingAttempt{}); err != nil {
		return err
	}

	// Cancellations are looked up by the portal entry they removed.
	return db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_booking_attempts_entry_id
		ON booking_attempts (entry_id)
		WHERE action = 'CANCEL';
	`).Error
}
