package session

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seatwatch/internal/portal"
	"seatwatch/internal/shared/middleware"
	"seatwatch/internal/shared/utils/response"
)

const portalSessionKey = "portal_session"

// RequireSession resolves the caller's portal session and aborts when there
// is none that can be used without solving a captcha.
func RequireSession(service Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := middleware.UserID(c)
		if !ok {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
			c.Abort()
			return
		}

		session, err := service.Login(c.Request.Context(), &LoginRequest{UserID: userID})
		if err != nil {
			response.RespondError(c, portal.StatusFor(err), "Failed to resolve portal session", err)
			c.Abort()
			return
		}
		if session == nil {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "Portal login required", nil, nil)
			c.Abort()
			return
		}

		c.Set(portalSessionKey, session)
		c.Next()
	}
}

// FromContext returns the session RequireSession stored
func FromContext(c *gin.Context) *portal.Session {
	v, ok := c.Get(portalSessionKey)
	if !ok {
		return nil
	}
	session, _ := v.(*portal.Session)
	return session
}
