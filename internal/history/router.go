package history

import (
	"github.com/gin-gonic/gin"
)

// SetupHistoryRoutes configures the booking history route
func SetupHistoryRoutes(rg *gin.RouterGroup, controller *Controller, auth gin.HandlerFunc) {
	history := rg.Group("/history")
	history.Use(auth)
	{
		history.GET("", controller.ListAttempts) // GET /api/v1/history?limit=20&offset=0
	}
}
