package bookings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"seatwatch/internal/portal"
	"seatwatch/internal/session"
	"seatwatch/internal/shared/middleware"
	"seatwatch/internal/shared/utils/response"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// BookSeat handles POST /api/v1/bookings
func (c *Controller) BookSeat(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req BookSeatRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondError(ctx, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := c.service.BookSeat(ctx.Request.Context(), &BookingRequest{
		UserID:    userID,
		DayOffset: *req.DayOffset,
		Timeslot:  *req.Timeslot,
		Area:      req.Area,
		Seat:      req.Seat,
		RoomID:    req.RoomID,
		Session:   session.FromContext(ctx),
	})
	if err != nil {
		response.RespondError(ctx, statusFor(err), "Failed to book seat", err)
		return
	}

	data := BookingResponse{BookingResult: *result, Area: req.Area, Seat: req.Seat, Timeslot: req.Timeslot}
	if !result.Success {
		response.RespondJSON(ctx, "error", http.StatusConflict, "The portal declined the booking", data, nil)
		return
	}
	response.RespondSuccess(ctx, http.StatusCreated, "Seat booked successfully", data)
}

// CancelReservation handles DELETE /api/v1/bookings/:entry_id
func (c *Controller) CancelReservation(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	entryID := ctx.Param("entry_id")
	result, err := c.service.CancelReservation(ctx.Request.Context(), userID, entryID, session.FromContext(ctx))
	if err != nil {
		response.RespondError(ctx, statusFor(err), "Failed to cancel reservation", err)
		return
	}

	data := BookingResponse{BookingResult: *result, EntryID: entryID}
	if !result.Success {
		response.RespondJSON(ctx, "error", http.StatusConflict, "The portal declined the cancellation", data, nil)
		return
	}
	response.RespondSuccess(ctx, http.StatusOK, "Reservation cancelled successfully", data)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrUnknownTimeslot):
		return http.StatusBadRequest
	case errors.Is(err, ErrNoCredentials):
		return http.StatusUnauthorized
	default:
		return portal.StatusFor(err)
	}
}
