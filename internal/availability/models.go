package availability

import (
	"fmt"
	"strings"
	"time"

	"seatwatch/internal/shared/config"
)

// State of one seat in one timeslot
type State int

const (
	StateUnknown State = iota
	StateFree
	StateOccupiedByMe
	StateOccupiedByOther
)

var stateNames = map[State]string{
	StateUnknown:         "UNKNOWN",
	StateFree:            "FREE",
	StateOccupiedByMe:    "OCCUPIED_BY_ME",
	StateOccupiedByOther: "OCCUPIED_BY_OTHER",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return stateNames[StateUnknown]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState accepts the state names case-insensitively, plus "mine" and
// "occupied" as shorthands.
func ParseState(name string) (State, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "FREE":
		return StateFree, nil
	case "OCCUPIED_BY_ME", "MINE":
		return StateOccupiedByMe, nil
	case "OCCUPIED_BY_OTHER", "OCCUPIED":
		return StateOccupiedByOther, nil
	case "UNKNOWN":
		return StateUnknown, nil
	}
	return StateUnknown, fmt.Errorf("unknown seat state %q", name)
}

// OccupierCategory classifies who holds an occupied seat
type OccupierCategory string

const (
	OccupierInternal OccupierCategory = "internal"
	OccupierExternal OccupierCategory = "external"
	OccupierStudent  OccupierCategory = "student"
	OccupierStaff    OccupierCategory = "staff"
	OccupierSpecial  OccupierCategory = "special"
)

// Area is an administrative zone of the venue
type Area struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// Timeslot is one partition of the day. Seconds is the time-of-day value
// the booking form expects for it.
type Timeslot struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Label   string `json:"label"`
	Seconds int    `json:"seconds"`
}

// TimeslotsFromProfile numbers the configured timeslots in row order
func TimeslotsFromProfile(profiles []config.TimeslotProfile) []Timeslot {
	timeslots := make([]Timeslot, 0, len(profiles))
	for i, p := range profiles {
		timeslots = append(timeslots, Timeslot{Index: i, Name: p.Name, Label: p.Label, Seconds: p.Seconds})
	}
	return timeslots
}

// SeatEntry is one cell of the day view
type SeatEntry struct {
	Area     string            `json:"area"`
	Seat     string            `json:"seat"`
	RoomID   string            `json:"room_id"`
	State    State             `json:"state"`
	Occupier *OccupierCategory `json:"occupier"`
	EntryID  *string           `json:"entry_id"`
}

// DayGrid is the availability of one area on one day. Every slot holds
// one entry per seat column, in column order.
type DayGrid struct {
	Date      string              `json:"date"`
	Area      string              `json:"area"`
	Timeslots []Timeslot          `json:"timeslots"`
	Slots     map[int][]SeatEntry `json:"slots"`
}

// FreeCount is the number of free cells over all timeslots
func (g *DayGrid) FreeCount() int {
	free := 0
	for _, entries := range g.Slots {
		for _, e := range entries {
			if e.State == StateFree {
				free++
			}
		}
	}
	return free
}

// SeatCount is the number of cells over all timeslots
func (g *DayGrid) SeatCount() int {
	total := 0
	for _, entries := range g.Slots {
		total += len(entries)
	}
	return total
}

// Timeslot returns the slot with the given index
func (g *DayGrid) Timeslot(index int) (Timeslot, bool) {
	for _, ts := range g.Timeslots {
		if ts.Index == index {
			return ts, true
		}
	}
	return Timeslot{}, false
}

// BookingHit is one seat found by a search
type BookingHit struct {
	Date      string    `json:"date"`
	Timeslot  Timeslot  `json:"timeslot"`
	Area      string    `json:"area"`
	Seat      SeatEntry `json:"seat"`
	FromCache bool      `json:"from_cache"`
}

// ParseError means the page did not have the expected structure
type ParseError struct {
	URL     string
	Reason  string
	Excerpt string
}

func (e *ParseError) Error() string {
	if e.URL == "" {
		return "parse day view: " + e.Reason
	}
	return fmt.Sprintf("parse %s: %s", e.URL, e.Reason)
}

// Upstream marks the failure as the portal's
func (e *ParseError) Upstream() bool { return true }

// DateKey formats a calendar day the way grids and store keys carry it
func DateKey(date time.Time) string {
	return date.Format("2006-01-02")
}
