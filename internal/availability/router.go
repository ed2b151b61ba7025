package availability

import (
	"github.com/gin-gonic/gin"
)

// SetupAvailabilityRoutes configures the public browsing routes. optionalAuth
// identifies the caller when a token is sent, which personalized views need.
func SetupAvailabilityRoutes(rg *gin.RouterGroup, controller *Controller, optionalAuth gin.HandlerFunc) {
	rg.GET("/areas", controller.GetAreas)         // GET /api/v1/areas
	rg.GET("/timeslots", controller.GetTimeslots) // GET /api/v1/timeslots

	availability := rg.Group("/availability")
	availability.Use(optionalAuth)
	{
		availability.GET("", controller.GetRoomEntries)        // GET /api/v1/availability?date=&area=
		availability.GET("/search", controller.SearchBookings) // GET /api/v1/availability/search
	}
}
