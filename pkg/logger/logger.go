package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
)

// Logger wraps slog.Logger with additional functionality
type Logger struct {
	*slog.Logger
}

// New creates a new logger instance
func New() *Logger {
	return NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"))
}

// NewWithWriter creates a logger writing to w at the given level
func NewWithWriter(w io.Writer, levelStr string) *Logger {
	level := getLogLevel(levelStr)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	// Text for development, JSON for production
	var handler slog.Handler
	if gin.Mode() == gin.DebugMode {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything, handy in tests
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRequestID adds request ID to logger context
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("request_id", requestID)),
	}
}

// WithUserID adds user ID to logger context
func (l *Logger) WithUserID(userID string) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("user_id", userID)),
	}
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return &Logger{
		Logger: l.Logger.With(slog.String("error", err.Error())),
	}
}

// HTTP logging methods

// LogHTTPRequest logs a request served by the API
func (l *Logger) LogHTTPRequest(c *gin.Context, duration time.Duration) {
	l.Logger.InfoContext(c.Request.Context(),
		"HTTP Request",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("query", c.Request.URL.RawQuery),
		slog.Int("status", c.Writer.Status()),
		slog.Duration("duration", duration),
		slog.String("ip", c.ClientIP()),
		slog.Int("size", c.Writer.Size()),
	)
}

// Portal logging methods

// LogPortalRequest logs one round trip to the reservation portal
func (l *Logger) LogPortalRequest(ctx context.Context, method, url string, status int, duration time.Duration) {
	l.Logger.DebugContext(ctx,
		"Portal Request",
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", status),
		slog.Duration("duration", duration),
	)
}

// LogPortalError logs a transport failure talking to the portal
func (l *Logger) LogPortalError(ctx context.Context, method, url string, err error) {
	l.Logger.ErrorContext(ctx,
		"Portal Request Failed",
		slog.String("method", method),
		slog.String("url", url),
		slog.String("error", err.Error()),
	)
}

// LogParseFailure logs a page whose structure could not be understood.
// The body excerpt is what makes these diagnosable after a layout change.
func (l *Logger) LogParseFailure(ctx context.Context, url, reason, excerpt string) {
	l.Logger.ErrorContext(ctx,
		"Portal Page Parse Failed",
		slog.String("url", url),
		slog.String("reason", reason),
		slog.String("body", excerpt),
	)
}

// Excerpt cuts body to at most limit bytes without splitting a rune
func Excerpt(body string, limit int) string {
	if len(body) <= limit {
		return body
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

// LogCacheStore logs an availability grid being cached
func (l *Logger) LogCacheStore(ctx context.Context, key string, ttl time.Duration, free, total int) {
	l.Logger.DebugContext(ctx,
		"Availability Cached",
		slog.String("key", key),
		slog.Duration("ttl", ttl),
		slog.Int("free", free),
		slog.Int("total", total),
	)
}

// Business logic logging methods

// LogBookingOutcome logs the result of a booking or cancellation
func (l *Logger) LogBookingOutcome(ctx context.Context, action, userID, target string, success bool, message string) {
	level := slog.LevelInfo
	if !success {
		level = slog.LevelWarn
	}
	l.Logger.Log(ctx, level,
		"Booking Outcome",
		slog.String("action", action),
		slog.String("user_id", userID),
		slog.String("target", target),
		slog.Bool("success", success),
		slog.String("message", message),
	)
}

// Security logging methods

// LogAuthSuccess logs successful portal authentication
func (l *Logger) LogAuthSuccess(ctx context.Context, userID, method string) {
	l.Logger.InfoContext(ctx,
		"Authentication Success",
		slog.String("user_id", userID),
		slog.String("method", method),
	)
}

// LogAuthFailure logs a declined or impossible portal login
func (l *Logger) LogAuthFailure(ctx context.Context, userID, reason string) {
	l.Logger.WarnContext(ctx,
		"Authentication Failure",
		slog.String("user_id", userID),
		slog.String("reason", reason),
	)
}

// LogRateLimitExceeded logs rate limit exceeded
func (l *Logger) LogRateLimitExceeded(ctx context.Context, ip, endpoint string) {
	l.Logger.WarnContext(ctx,
		"Rate Limit Exceeded",
		slog.String("ip", ip),
		slog.String("endpoint", endpoint),
	)
}

// Global logger instance (can be replaced with dependency injection)
var defaultLogger = New()

// GetDefault returns the default logger instance
func GetDefault() *Logger {
	return defaultLogger
}

// SetDefault sets the default logger instance
func SetDefault(logger *Logger) {
	defaultLogger = logger
}
