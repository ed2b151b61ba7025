package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"seatwatch/internal/shared/constants"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port         string
	GinMode      string
	APIVersion   string
	APIPrefix    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Booking history database
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Booking events
	Kafka KafkaConfig

	// Reservation portal
	Portal PortalConfig

	// Secret the stored portal credentials are encrypted with
	CredentialsSecret string

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string

	// TTL values for different keys
	SessionTTL   time.Duration
	CaptchaTTL   time.Duration
	StructureTTL time.Duration
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret       string
	JWTExpiresIn time.Duration
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled          bool          `json:"enabled"`
	WindowDuration   time.Duration `json:"window_duration"`
	DefaultRequests  int           `json:"default_requests"`
	AuthRequests     int           `json:"auth_requests"`
	BookingRequests  int           `json:"booking_requests"`
	BrowsingRequests int           `json:"browsing_requests"`
	HealthRequests   int           `json:"health_requests"`
}

// KafkaConfig holds booking event producer and consumer configuration
type KafkaConfig struct {
	Brokers       []string
	BookingTopic  string
	ConsumerGroup string
	RetryMax      int
	Timeout       time.Duration
}

// PortalConfig holds everything needed to talk to the reservation portal
type PortalConfig struct {
	BaseURL           string
	ProfilePath       string
	Proxy             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	ChurnHours        []int
	ReportDays        int
	TimeZone          string
}

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:         getEnv("PORT", "8080"),
		GinMode:      getEnv("GIN_MODE", "debug"),
		APIVersion:   getEnv("API_VERSION", "v1"),
		APIPrefix:    getEnv("API_PREFIX", "/api"),
		ReadTimeout:  getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getDurationEnv("WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:  getDurationEnv("IDLE_TIMEOUT", 60*time.Second),

		Database: DatabaseConfig{
			Enabled:  getBoolEnv("HISTORY_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "seatwatch"),
			User:     getEnv("DB_USER", "seatwatch"),
			Password: getEnv("DB_PASSWORD", "seatwatch"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		Redis: RedisConfig{
			Enabled:  getBoolEnv("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),

			SessionTTL:   getDurationEnv("REDIS_SESSION_TTL", constants.TTL_LOGIN_COOKIES),
			CaptchaTTL:   getDurationEnv("REDIS_CAPTCHA_TTL", constants.TTL_CAPTCHA_COOKIES),
			StructureTTL: getDurationEnv("REDIS_STRUCTURE_TTL", constants.TTL_STRUCTURE),
		},

		JWT: JWTConfig{
			Secret:       getEnv("JWT_SECRET", "your-super-secret-jwt-key"),
			JWTExpiresIn: getDurationEnvSeconds("JWT_EXPIRES_IN", 365*24*time.Hour),
		},

		RateLimit: RateLimitConfig{
			Enabled:          getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:   getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests:  getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			AuthRequests:     getIntEnv("RATE_LIMIT_AUTH_REQUESTS", 10),
			BookingRequests:  getIntEnv("RATE_LIMIT_BOOKING_REQUESTS", 20),
			BrowsingRequests: getIntEnv("RATE_LIMIT_BROWSING_REQUESTS", 120),
			HealthRequests:   getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 300),
		},

		Kafka: KafkaConfig{
			Brokers:       getStringSliceEnv("KAFKA_BROKERS", []string{}),
			BookingTopic:  getEnv("KAFKA_BOOKING_TOPIC", "booking-events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "seatwatch-event-readers"),
			RetryMax:      getIntEnv("KAFKA_RETRY_MAX", 3),
			Timeout:       getDurationEnv("KAFKA_TIMEOUT", 10*time.Second),
		},

		Portal: PortalConfig{
			BaseURL:           getEnv("PORTAL_BASE_URL", ""),
			ProfilePath:       getEnv("PORTAL_PROFILE", ""),
			Proxy:             getEnv("PROXY", ""),
			Timeout:           getDurationEnv("PORTAL_TIMEOUT", 20*time.Second),
			RequestsPerSecond: getFloatEnv("PORTAL_RPS", 5),
			Burst:             getIntEnv("PORTAL_BURST", 10),
			ChurnHours:        getIntSliceEnv("CHURN_HOURS", []int{0, 7, 8, 12, 13}),
			ReportDays:        getIntEnv("REPORT_DAYS", 60),
			TimeZone:          getEnv("PORTAL_TIMEZONE", "Europe/Berlin"),
		},

		CredentialsSecret: getEnv("CREDENTIALS_SECRET", "change-me-credentials-secret"),

		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Host+":"+cfg.Redis.Port)

	return cfg
}

// Validate reports configuration that makes the service unable to start
func (c *Config) Validate() error {
	if c.Portal.BaseURL == "" {
		return errors.New("PORTAL_BASE_URL is required")
	}
	u, err := url.Parse(c.Portal.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("PORTAL_BASE_URL %q is not an absolute URL", c.Portal.BaseURL)
	}
	if c.Portal.Proxy != "" {
		if _, err := url.Parse(c.Portal.Proxy); err != nil {
			return fmt.Errorf("PROXY %q is not a valid URL: %w", c.Portal.Proxy, err)
		}
	}
	for _, h := range c.Portal.ChurnHours {
		if h < 0 || h > 23 {
			return fmt.Errorf("CHURN_HOURS contains invalid hour %d", h)
		}
	}
	if c.CredentialsSecret == "" {
		return errors.New("CREDENTIALS_SECRET must not be empty")
	}
	return nil
}

// Location returns the portal's time zone, falling back to local time
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Portal.TimeZone)
	if err != nil {
		return time.Local
	}
	return loc
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getFloatEnv gets a float environment variable with a fallback value
func getFloatEnv(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getDurationEnvSeconds gets an environment variable as seconds (int) and converts to time.Duration
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// getIntSliceEnv gets a comma-separated list of integers
func getIntSliceEnv(key string, fallback []int) []int {
	parts := getStringSliceEnv(key, nil)
	if len(parts) == 0 {
		return fallback
	}
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return fallback
		}
		result = append(result, n)
	}
	return result
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}

// GetAPIBasePath returns the API base path
func (c *Config) GetAPIBasePath() string {
	return c.APIPrefix + "/" + c.APIVersion
}
