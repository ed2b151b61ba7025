package bookings

import (
	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes configures all booking-related routes. Both handlers
// need the caller's portal session, so requireSession runs after auth.
func SetupBookingRoutes(rg *gin.RouterGroup, controller *Controller, auth, requireSession gin.HandlerFunc) {
	bookings := rg.Group("/bookings")
	bookings.Use(auth, requireSession)
	{
		bookings.POST("", controller.BookSeat)                      // POST   /api/v1/bookings
		bookings.DELETE("/:entry_id", controller.CancelReservation) // DELETE /api/v1/bookings/:entry_id
	}
}

// Route definitions for reference:
//
// BOOK A SEAT
// POST   /api/v1/bookings
// Request body: { "day_offset": 1, "timeslot": 0, "area": "3", "seat": "Platz 12", "room_id": "41" }
// 201 when the portal accepted the booking, 409 with the portal's reason when it declined.
//
// CANCEL A RESERVATION
// DELETE /api/v1/bookings/:entry_id
// 200 when the portal removed the entry, 409 when it refused.
