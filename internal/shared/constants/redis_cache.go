package constants

import (
	"fmt"
	"time"
)

// Store keys and TTLs shared by the portal client.
// Pattern: {kind}:{identifier}[:{params}]

// ================== CACHE TTL DURATIONS ==================

// Site structure (areas, timeslots) changes rarely
const (
	TTL_STRUCTURE = 24 * time.Hour
)

// Adaptive availability tiers, see availability.TTLPolicy
const (
	TTL_AVAILABILITY_FULL       = 10 * time.Second // no free seat left anywhere
	TTL_AVAILABILITY_SCARCE     = 12 * time.Second
	TTL_AVAILABILITY_LOW        = 25 * time.Second
	TTL_AVAILABILITY_THINNING   = 3 * time.Minute
	TTL_AVAILABILITY_CHURN_MIN  = 30 * time.Second
	TTL_AVAILABILITY_DISTANT    = 15 * time.Minute
	TTL_AVAILABILITY_DEFAULT    = 10 * time.Minute
	TTL_AVAILABILITY_JITTER_MAX = 3 * time.Second
)

// Session data
const (
	TTL_LOGIN_COOKIES   = 30 * 24 * time.Hour
	TTL_CAPTCHA_COOKIES = 5 * time.Minute
)

// ================== KEYS ==================

const (
	CACHE_KEY_AREAS     = "areas"
	CACHE_KEY_TIMESLOTS = "timeslots"
)

// LoginCookiesKey is where the serialized session of a user lives
func LoginCookiesKey(userID string) string {
	return fmt.Sprintf("login-cookies:%s", userID)
}

// LoginCredsKey is where the encrypted credentials of a user live
func LoginCredsKey(userID string) string {
	return fmt.Sprintf("login-creds:%s", userID)
}

// CaptchaCookiesKey holds the session a CAPTCHA image was issued to
func CaptchaCookiesKey(userID string) string {
	return fmt.Sprintf("captcha-cookies:%s", userID)
}

// RoomEntriesKey is the shared availability grid of one area on one day
func RoomEntriesKey(date time.Time, area string) string {
	return fmt.Sprintf("room-entries:%s:%s", date.Format("2006-01-02"), area)
}
