package reservations

import (
	"github.com/gin-gonic/gin"
)

// SetupReservationRoutes configures the reservation listing route
func SetupReservationRoutes(rg *gin.RouterGroup, controller *Controller, auth, requireSession gin.HandlerFunc) {
	reservations := rg.Group("/reservations")
	reservations.Use(auth, requireSession)
	{
		reservations.GET("", controller.ListReservations) // GET /api/v1/reservations
	}
}
