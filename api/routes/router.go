// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"seatwatch/internal/availability"
	"seatwatch/internal/bookings"
	"seatwatch/internal/credentials"
	"seatwatch/internal/history"
	"seatwatch/internal/notifications"
	"seatwatch/internal/portal"
	"seatwatch/internal/reservations"
	"seatwatch/internal/session"
	"seatwatch/internal/shared/config"
	"seatwatch/internal/shared/database"
	"seatwatch/internal/shared/middleware"
)

// Services are the components the routes are served by
type Services struct {
	Credentials  *credentials.Store
	Sessions     session.Service
	Availability availability.Service
	Bookings     bookings.Service
	Reservations reservations.Service
	History      history.Service
	Producer     notifications.EventProducer
}

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	services *Services
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, services *Services) *Router {
	return &Router{
		config:   cfg,
		db:       db,
		services: services,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	auth := middleware.JWTAuthWithConfig(r.config)
	optionalAuth := middleware.OptionalAuthWithConfig(r.config)
	requireSession := session.RequireSession(r.services.Sessions)

	api := engine.Group(r.config.GetAPIBasePath())
	{
		session.SetupSessionRoutes(api, session.NewController(r.services.Sessions, r.services.Credentials), auth)

		availability.SetupAvailabilityRoutes(api,
			availability.NewController(r.services.Availability, r.resolveSession, r.config.Location()),
			optionalAuth)

		bookings.SetupBookingRoutes(api, bookings.NewController(r.services.Bookings), auth, requireSession)
		reservations.SetupReservationRoutes(api, reservations.NewController(r.services.Reservations), auth, requireSession)
		history.SetupHistoryRoutes(api, history.NewController(r.services.History), auth)
	}
}

// resolveSession hands a stored session to personalized availability views
func (r *Router) resolveSession(c *gin.Context, userID string) (*portal.Session, error) {
	return r.services.Sessions.Login(c.Request.Context(), &session.LoginRequest{UserID: userID})
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		ctx := c.Request.Context()
		err := r.db.HealthCheck(ctx)
		if err == nil && r.services.Producer != nil {
			err = r.services.Producer.HealthCheck(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "seatwatch",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "seatwatch",
			"redis":     r.db.Redis != nil,
			"history":   r.db.PostgreSQL != nil,
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})
}
