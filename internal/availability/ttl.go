package availability

import (
	"math/rand"
	"time"

	"seatwatch/internal/shared/constants"
)

// Tier is the rule that picked a grid's lifetime. Lower tiers expire sooner.
type Tier int

const (
	TierFull Tier = iota + 1
	TierScarce
	TierLow
	TierThinning
	TierChurn
	TierDistant
	TierDefault
)

// TTLPolicy chooses how long a freshly fetched grid stays in the store
type TTLPolicy struct {
	ChurnHours []int
	// Jitter returns a signed offset added to every ttl; nil means uniform
	// in [-TTL_AVAILABILITY_JITTER_MAX, +TTL_AVAILABILITY_JITTER_MAX].
	Jitter func() time.Duration
}

// Choose returns the first matching tier and its base ttl. date and now
// must be in the portal's time zone.
func (p TTLPolicy) Choose(free, total int, date, now time.Time) (Tier, time.Duration) {
	switch {
	case free == 0:
		return TierFull, constants.TTL_AVAILABILITY_FULL
	case free < 3 && total >= 20:
		return TierScarce, constants.TTL_AVAILABILITY_SCARCE
	case free < 6 && total >= 40:
		return TierLow, constants.TTL_AVAILABILITY_LOW
	case free < 15 && total >= 60:
		return TierThinning, constants.TTL_AVAILABILITY_THINNING
	}

	today := startOfDay(now)
	day := startOfDay(date)
	if day.Equal(today) && p.inChurnWindow(now.Hour()) {
		ttl := untilHalfHour(now)
		if ttl < constants.TTL_AVAILABILITY_CHURN_MIN {
			ttl = constants.TTL_AVAILABILITY_CHURN_MIN
		}
		return TierChurn, ttl
	}
	if !day.Before(today.AddDate(0, 0, 2)) {
		return TierDistant, constants.TTL_AVAILABILITY_DISTANT
	}
	return TierDefault, constants.TTL_AVAILABILITY_DEFAULT
}

// TTL is the jittered lifetime, never below one second
func (p TTLPolicy) TTL(free, total int, date, now time.Time) time.Duration {
	_, ttl := p.Choose(free, total, date, now)
	ttl += p.jitter()
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (p TTLPolicy) jitter() time.Duration {
	if p.Jitter != nil {
		return p.Jitter()
	}
	limit := int64(constants.TTL_AVAILABILITY_JITTER_MAX)
	return time.Duration(rand.Int63n(2*limit+1) - limit)
}

func (p TTLPolicy) inChurnWindow(hour int) bool {
	for _, h := range p.ChurnHours {
		if h == hour {
			return true
		}
	}
	return false
}

// untilHalfHour is the time left until the next :00 or :30
func untilHalfHour(now time.Time) time.Duration {
	elapsed := time.Duration(now.Minute()%30)*time.Minute +
		time.Duration(now.Second())*time.Second +
		time.Duration(now.Nanosecond())
	return 30*time.Minute - elapsed
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
