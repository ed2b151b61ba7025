package history

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"seatwatch/internal/shared/middleware"
	"seatwatch/internal/shared/utils/response"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// ListAttempts handles GET /api/v1/history
func (c *Controller) ListAttempts(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	limit, err := strconv.Atoi(ctx.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil || limit < 0 {
		limit = defaultLimit
	}
	offset, err := strconv.Atoi(ctx.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	page, err := c.service.List(ctx.Request.Context(), userID, limit, offset)
	if err != nil {
		if errors.Is(err, ErrHistoryDisabled) {
			response.RespondError(ctx, http.StatusNotFound, "Booking history is not enabled", err)
			return
		}
		response.RespondError(ctx, http.StatusInternalServerError, "Failed to load booking history", err)
		return
	}

	response.RespondSuccess(ctx, http.StatusOK, "Booking history retrieved successfully", page)
}
