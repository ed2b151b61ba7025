package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"seatwatch/internal/shared/utils/response"
	"seatwatch/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Middleware rejects requests over the budget of their route class. A
// failing store lets the request through.
func Middleware(rateLimiter *RateLimiter, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := getClientIP(c)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		result, err := rateLimiter.IsAllowed(c.Request.Context(), clientIP, getRateLimitType(path))
		if err != nil {
			log.WarnContext(c.Request.Context(), "Rate limit check failed", "ip", clientIP, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetTime, 10))

		if !result.Allowed {
			log.LogRateLimitExceeded(c.Request.Context(), clientIP, path)
			response.RespondJSON(c, "error", http.StatusTooManyRequests,
				"Rate limit exceeded", nil, map[string]interface{}{
					"limit":      result.Limit,
					"reset_time": result.ResetTime,
				})
			c.Abort()
			return
		}

		c.Next()
	}
}

// getRateLimitType classifies a route by its template path
func getRateLimitType(path string) RateLimitType {
	switch {
	case strings.HasPrefix(path, "/health"),
		strings.HasPrefix(path, "/ping"),
		strings.HasPrefix(path, "/status"):
		return RateLimitTypeHealth

	// Login and captcha requests each cost a portal round trip
	case strings.Contains(path, "/session"):
		return RateLimitTypeAuth

	case strings.Contains(path, "/bookings"),
		strings.Contains(path, "/reservations"):
		return RateLimitTypeBooking

	case strings.Contains(path, "/areas"),
		strings.Contains(path, "/timeslots"),
		strings.Contains(path, "/availability"):
		return RateLimitTypeBrowsing

	default:
		return RateLimitTypeDefault
	}
}

// getClientIP prefers the first forwarded address a proxy reported
func getClientIP(c *gin.Context) string {
	for _, header := range []string{"X-Forwarded-For", "X-Real-IP"} {
		first, _, _ := strings.Cut(c.GetHeader(header), ",")
		if ip := strings.TrimSpace(first); net.ParseIP(ip) != nil {
			return ip
		}
	}
	return c.ClientIP()
}
