package session

import (
	"github.com/gin-gonic/gin"
)

// SetupSessionRoutes configures the portal login routes. auth must put the
// caller's user id into the context.
func SetupSessionRoutes(rg *gin.RouterGroup, controller *Controller, auth gin.HandlerFunc) {
	session := rg.Group("/session")
	session.Use(auth)
	{
		session.GET("/captcha", controller.Captcha) // GET    /api/v1/session/captcha
		session.POST("/login", controller.Login)    // POST   /api/v1/session/login
		session.DELETE("", controller.Logout)       // DELETE /api/v1/session
	}
}
