package availability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"seatwatch/internal/portal"
	"seatwatch/internal/shared/constants"
	"seatwatch/pkg/cache"
	"seatwatch/pkg/logger"
)

// SearchQuery selects the seats a search walks over. Zero values mean all
// areas, all timeslots, any state, one day starting tomorrow.
type SearchQuery struct {
	Start     time.Time
	Days      int
	State     *State
	Timeslots []int
	Areas     []string
	Session   *portal.Session
}

type Service interface {
	Areas(ctx context.Context) ([]Area, error)
	Timeslots(ctx context.Context) ([]Timeslot, error)
	RoomEntries(ctx context.Context, date time.Time, area string, session *portal.Session) (*DayGrid, bool, error)
	SearchBookings(ctx context.Context, q SearchQuery) ([]BookingHit, error)
}

// Options configures the availability service
type Options struct {
	Timeslots    []Timeslot
	Policy       TTLPolicy
	StructureTTL time.Duration
	Location     *time.Location
	Now          func() time.Time
}

type service struct {
	gateway      *portal.Gateway
	store        cache.Store
	timeslots    []Timeslot
	policy       TTLPolicy
	structureTTL time.Duration
	loc          *time.Location
	now          func() time.Time
	logger       *logger.Logger
}

func NewService(gateway *portal.Gateway, store cache.Store, opts Options, log *logger.Logger) Service {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	structureTTL := opts.StructureTTL
	if structureTTL <= 0 {
		structureTTL = constants.TTL_STRUCTURE
	}
	return &service{
		gateway:      gateway,
		store:        store,
		timeslots:    opts.Timeslots,
		policy:       opts.Policy,
		structureTTL: structureTTL,
		loc:          loc,
		now:          now,
		logger:       log,
	}
}

func (s *service) today() time.Time {
	return startOfDay(s.now().In(s.loc))
}

func (s *service) day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func (s *service) Areas(ctx context.Context) ([]Area, error) {
	var areas []Area
	err := cache.GetJSON(ctx, s.store, constants.CACHE_KEY_AREAS, &areas)
	if err == nil && len(areas) > 0 {
		return areas, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Failed to read areas from cache", "error", err)
	}

	resp, err := s.gateway.Do(ctx, portal.Request{Path: portal.DayPath})
	if err != nil {
		return nil, err
	}
	areas, err = ParseAreas(resp.Body)
	if err != nil {
		return nil, s.parseFailure(ctx, resp.URL, err)
	}

	if err := cache.SetJSON(ctx, s.store, constants.CACHE_KEY_AREAS, areas, s.structureTTL); err != nil {
		s.logger.Warn("Failed to cache areas", "error", err)
	}
	return areas, nil
}

func (s *service) Timeslots(ctx context.Context) ([]Timeslot, error) {
	if len(s.timeslots) > 0 {
		return append([]Timeslot(nil), s.timeslots...), nil
	}

	var timeslots []Timeslot
	err := cache.GetJSON(ctx, s.store, constants.CACHE_KEY_TIMESLOTS, &timeslots)
	if err == nil && len(timeslots) > 0 {
		return timeslots, nil
	}
	if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Failed to read timeslots from cache", "error", err)
	}

	areas, err := s.Areas(ctx)
	if err != nil {
		return nil, err
	}
	resp, err := s.gateway.Do(ctx, portal.Request{
		Path:   portal.DayPath,
		Params: portal.DayParams(s.today(), areas[0].ID),
	})
	if err != nil {
		return nil, err
	}
	timeslots, err = DiscoverTimeslots(resp.Body)
	if err != nil {
		return nil, s.parseFailure(ctx, resp.URL, err)
	}

	if err := cache.SetJSON(ctx, s.store, constants.CACHE_KEY_TIMESLOTS, timeslots, s.structureTTL); err != nil {
		s.logger.Warn("Failed to cache timeslots", "error", err)
	}
	return timeslots, nil
}

// RoomEntries returns the grid of one area on one day. A session means a
// personalized view, which never touches the shared store.
func (s *service) RoomEntries(ctx context.Context, date time.Time, area string, session *portal.Session) (*DayGrid, bool, error) {
	date = s.day(date)
	if session != nil {
		grid, err := s.fetchGrid(ctx, date, area, session.Cookies)
		return grid, false, err
	}

	key := constants.RoomEntriesKey(date, area)
	var cached DayGrid
	err := cache.GetJSON(ctx, s.store, key, &cached)
	if err == nil {
		return &cached, true, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Failed to read grid from cache", "key", key, "error", err)
	}

	grid, err := s.fetchGrid(ctx, date, area, nil)
	if err != nil {
		return nil, false, err
	}

	free, total := grid.FreeCount(), grid.SeatCount()
	ttl := s.policy.TTL(free, total, date, s.now().In(s.loc))
	if err := cache.SetJSON(ctx, s.store, key, grid, ttl); err != nil {
		s.logger.Warn("Failed to cache grid", "key", key, "error", err)
	} else {
		s.logger.LogCacheStore(ctx, key, ttl, free, total)
	}
	return grid, false, nil
}

func (s *service) fetchGrid(ctx context.Context, date time.Time, area string, cookies portal.Cookies) (*DayGrid, error) {
	resp, err := s.gateway.Do(ctx, portal.Request{
		Path:    portal.DayPath,
		Params:  portal.DayParams(date, area),
		Cookies: cookies,
	})
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusOK {
		return nil, s.parseFailure(ctx, resp.URL, parseError(resp.Body, "unexpected status %d", resp.Status))
	}

	grid, err := ParseDayGrid(resp.Body, area, s.timeslots)
	if err != nil {
		return nil, s.parseFailure(ctx, resp.URL, err)
	}
	grid.Date = DateKey(date)
	return grid, nil
}

// parseFailure attaches the URL to a parse error and logs it with the body excerpt
func (s *service) parseFailure(ctx context.Context, url string, err error) error {
	var perr *ParseError
	if !errors.As(err, &perr) {
		return err
	}
	perr.URL = url
	s.logger.LogParseFailure(ctx, url, perr.Reason, perr.Excerpt)
	return perr
}

func (s *service) SearchBookings(ctx context.Context, q SearchQuery) ([]BookingHit, error) {
	start := q.Start
	if start.IsZero() {
		start = s.today().AddDate(0, 0, 1)
	}
	start = s.day(start)
	days := q.Days
	if days <= 0 {
		days = 1
	}

	areas := q.Areas
	if len(areas) == 0 {
		all, err := s.Areas(ctx)
		if err != nil {
			return nil, err
		}
		for _, a := range all {
			areas = append(areas, a.ID)
		}
	}

	var hits []BookingHit
	for d := 0; d < days; d++ {
		date := start.AddDate(0, 0, d)
		for _, area := range areas {
			grid, fromCache, err := s.RoomEntries(ctx, date, area, q.Session)
			if err != nil {
				return nil, fmt.Errorf("availability of area %s on %s: %w", area, DateKey(date), err)
			}
			for _, slot := range slotOrder(grid, q.Timeslots) {
				ts, _ := grid.Timeslot(slot)
				for _, seat := range grid.Slots[slot] {
					if q.State != nil && seat.State != *q.State {
						continue
					}
					hits = append(hits, BookingHit{
						Date:      grid.Date,
						Timeslot:  ts,
						Area:      area,
						Seat:      seat,
						FromCache: fromCache,
					})
				}
			}
		}
	}
	return hits, nil
}

// slotOrder lists the requested (or all) slots of grid in ascending order
func slotOrder(grid *DayGrid, requested []int) []int {
	var slots []int
	if len(requested) == 0 {
		for slot := range grid.Slots {
			slots = append(slots, slot)
		}
	} else {
		seen := make(map[int]bool, len(requested))
		for _, slot := range requested {
			if _, ok := grid.Slots[slot]; ok && !seen[slot] {
				seen[slot] = true
				slots = append(slots, slot)
			}
		}
	}
	sort.Ints(slots)
	return slots
}
