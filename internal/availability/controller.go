package availability

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"seatwatch/internal/portal"
	"seatwatch/internal/shared/middleware"
	"seatwatch/internal/shared/utils/response"
)

// SessionResolver yields the caller's stored portal session, nil when there is none
type SessionResolver func(ctx *gin.Context, userID string) (*portal.Session, error)

// RoomEntriesQuery selects one day view
type RoomEntriesQuery struct {
	Date     string `form:"date" binding:"required,datetime=2006-01-02"`
	Area     string `form:"area" binding:"required"`
	Personal bool   `form:"personal"`
}

// SearchParams are the query parameters of a search
type SearchParams struct {
	Start     string   `form:"start" binding:"omitempty,datetime=2006-01-02"`
	Days      int      `form:"days" binding:"omitempty,gte=1,lte=14"`
	State     string   `form:"state" binding:"omitempty,oneof=FREE OCCUPIED_BY_ME OCCUPIED_BY_OTHER UNKNOWN free mine occupied unknown"`
	Timeslots []int    `form:"timeslot"`
	Areas     []string `form:"area"`
	Personal  bool     `form:"personal"`
}

type Controller struct {
	service  Service
	sessions SessionResolver
	loc      *time.Location
}

func NewController(service Service, sessions SessionResolver, loc *time.Location) *Controller {
	if loc == nil {
		loc = time.Local
	}
	return &Controller{service: service, sessions: sessions, loc: loc}
}

// GetAreas handles GET /api/v1/areas
func (c *Controller) GetAreas(ctx *gin.Context) {
	areas, err := c.service.Areas(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, portal.StatusFor(err), "Failed to load areas", err)
		return
	}
	response.RespondSuccess(ctx, http.StatusOK, "Areas retrieved successfully", areas)
}

// GetTimeslots handles GET /api/v1/timeslots
func (c *Controller) GetTimeslots(ctx *gin.Context) {
	timeslots, err := c.service.Timeslots(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, portal.StatusFor(err), "Failed to load timeslots", err)
		return
	}
	response.RespondSuccess(ctx, http.StatusOK, "Timeslots retrieved successfully", timeslots)
}

// GetRoomEntries handles GET /api/v1/availability
func (c *Controller) GetRoomEntries(ctx *gin.Context) {
	var q RoomEntriesQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		response.RespondError(ctx, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}
	date, _ := time.ParseInLocation("2006-01-02", q.Date, c.loc)

	session, ok := c.personalSession(ctx, q.Personal)
	if !ok {
		return
	}

	grid, fromCache, err := c.service.RoomEntries(ctx.Request.Context(), date, q.Area, session)
	if err != nil {
		response.RespondError(ctx, portal.StatusFor(err), "Failed to load availability", err)
		return
	}

	response.RespondSuccess(ctx, http.StatusOK, "Availability retrieved successfully", gin.H{
		"grid":       grid,
		"from_cache": fromCache,
		"free":       grid.FreeCount(),
		"total":      grid.SeatCount(),
	})
}

// SearchBookings handles GET /api/v1/availability/search
func (c *Controller) SearchBookings(ctx *gin.Context) {
	var p SearchParams
	if err := ctx.ShouldBindQuery(&p); err != nil {
		response.RespondError(ctx, http.StatusBadRequest, "Invalid query parameters", err)
		return
	}

	q := SearchQuery{Days: p.Days, Timeslots: p.Timeslots, Areas: p.Areas}
	if p.Start != "" {
		q.Start, _ = time.ParseInLocation("2006-01-02", p.Start, c.loc)
	}
	if p.State != "" {
		state, err := ParseState(p.State)
		if err != nil {
			response.RespondError(ctx, http.StatusBadRequest, "Invalid state", err)
			return
		}
		q.State = &state
	}

	session, ok := c.personalSession(ctx, p.Personal)
	if !ok {
		return
	}
	q.Session = session

	hits, err := c.service.SearchBookings(ctx.Request.Context(), q)
	if err != nil {
		response.RespondError(ctx, portal.StatusFor(err), "Search failed", err)
		return
	}
	if hits == nil {
		hits = []BookingHit{}
	}

	response.RespondSuccess(ctx, http.StatusOK, "Search completed successfully", gin.H{
		"hits":  hits,
		"total": len(hits),
	})
}

// personalSession resolves the session for a personalized view. It writes
// the error response itself and reports false when the request must stop.
func (c *Controller) personalSession(ctx *gin.Context, personal bool) (*portal.Session, bool) {
	if !personal {
		return nil, true
	}
	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "A personalized view needs an authenticated user", nil, nil)
		return nil, false
	}
	if c.sessions == nil {
		response.RespondJSON(ctx, "error", http.StatusServiceUnavailable, "Personalized views are not available", nil, nil)
		return nil, false
	}
	session, err := c.sessions(ctx, userID)
	if err != nil {
		response.RespondError(ctx, portal.StatusFor(err), "Failed to resolve portal session", err)
		return nil, false
	}
	if session == nil {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "Portal login required", nil, nil)
		return nil, false
	}
	return session, true
}
