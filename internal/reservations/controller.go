package reservations

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

// ListReservations handles GET /api/v1/reservations
func (c *Controller) ListReservations(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	records, err := c.service.List(ctx.Request.Context(), userID, session.FromContext(ctx))
	if err != nil {
		code := portal.StatusFor(err)
		if errors.Is(err, ErrUpstreamData) {
			code = http.StatusBadGateway
		}
		response.RespondError(ctx, code, "Failed to list reservations", err)
		return
	}

	response.RespondSuccess(ctx, http.StatusOK, "Reservations retrieved successfully", gin.H{
		"reservations": records,
		"total":        len(records),
	})
}
