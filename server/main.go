package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"seatwatch/api/routes"
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
	"seatwatch/pkg/logger"
	"seatwatch/pkg/ratelimit"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Smart environment loading
	envErr := godotenv.Load()

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	appLogger := logger.NewWithWriter(os.Stdout, cfg.LogLevel)
	logger.SetDefault(appLogger)

	if envErr != nil {
		if cfg.IsProduction() || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	if err := cfg.Validate(); err != nil {
		appLogger.Error("Invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}

	profile, err := config.LoadProfile(cfg.Portal.ProfilePath)
	if err != nil {
		appLogger.Error("Failed to load portal profile", slog.Any("error", err))
		os.Exit(1)
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := database.InitDB(startCtx, cfg, appLogger)
	startCancel()
	if err != nil {
		appLogger.Error("Failed to initialize storage", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	services, err := buildServices(cfg, profile, db, appLogger)
	if err != nil {
		appLogger.Error("Failed to initialize services", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := services.Producer.Close(); err != nil {
			appLogger.Error("Error closing event producer", slog.Any("error", err))
		}
	}()

	// Rate limiting needs a shared store
	var rateLimiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled && db.Redis != nil {
		rateLimiter = ratelimit.NewRateLimiter(db.Redis, &ratelimit.Config{
			Enabled:          cfg.RateLimit.Enabled,
			WindowDuration:   cfg.RateLimit.WindowDuration,
			DefaultRequests:  cfg.RateLimit.DefaultRequests,
			AuthRequests:     cfg.RateLimit.AuthRequests,
			BookingRequests:  cfg.RateLimit.BookingRequests,
			BrowsingRequests: cfg.RateLimit.BrowsingRequests,
			HealthRequests:   cfg.RateLimit.HealthRequests,
		})
		appLogger.Info("Rate limiter initialized",
			slog.Duration("window", cfg.RateLimit.WindowDuration),
			slog.Int("default_requests", cfg.RateLimit.DefaultRequests),
		)
	} else {
		appLogger.Info("Rate limiting disabled")
	}

	router := setupRouter(cfg, db, services, rateLimiter, appLogger)

	srv := &http.Server{
		Addr:         cfg.GetServerAddress(),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("portal", cfg.Portal.BaseURL),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.String("built", BuildTime),
			slog.Bool("redis_cache", db.Redis != nil),
			slog.Bool("booking_history", db.PostgreSQL != nil),
			slog.Bool("booking_events", len(cfg.Kafka.Brokers) > 0),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

// buildServices wires the portal client components around one gateway and store
func buildServices(cfg *config.Config, profile config.Profile, db *database.DB, log *logger.Logger) (*routes.Services, error) {
	gateway, err := portal.New(portal.Options{
		BaseURL:           cfg.Portal.BaseURL,
		Headers:           profile.Headers,
		Proxy:             cfg.Portal.Proxy,
		Timeout:           cfg.Portal.Timeout,
		RequestsPerSecond: cfg.Portal.RequestsPerSecond,
		Burst:             cfg.Portal.Burst,
		Logger:            log,
	})
	if err != nil {
		return nil, err
	}

	store, err := credentials.NewStore(db.Store, cfg.CredentialsSecret, cfg.Redis.SessionTTL, cfg.Redis.CaptchaTTL)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewService(gateway, store, profile, log)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location()
	availabilityService := availability.NewService(gateway, db.Store, availability.Options{
		Timeslots:    availability.TimeslotsFromProfile(profile.Timeslots),
		Policy:       availability.TTLPolicy{ChurnHours: cfg.Portal.ChurnHours},
		StructureTTL: cfg.Redis.StructureTTL,
		Location:     loc,
	}, log)

	var producer notifications.EventProducer
	if len(cfg.Kafka.Brokers) > 0 {
		producerConfig := notifications.DefaultKafkaProducerConfig()
		producerConfig.Brokers = cfg.Kafka.Brokers
		producerConfig.Topic = cfg.Kafka.BookingTopic
		producerConfig.RetryMax = cfg.Kafka.RetryMax
		producerConfig.Timeout = cfg.Kafka.Timeout
		kafkaProducer, err := notifications.NewKafkaEventProducer(producerConfig, log)
		if err != nil {
			log.Warn("Kafka unavailable, booking events disabled", "error", err)
			producer = notifications.NewNoopProducer(log)
		} else {
			producer = kafkaProducer
		}
	} else {
		producer = notifications.NewNoopProducer(log)
	}

	var historyRepo history.Repository
	if db.PostgreSQL != nil {
		historyRepo = history.NewRepository(db.PostgreSQL)
	}
	historyService := history.NewService(historyRepo)

	bookingService := bookings.NewService(gateway, store, availabilityService, producer, historyService, bookings.Options{
		Profile:    profile.Booking,
		ReportDays: cfg.Portal.ReportDays,
		Location:   loc,
	}, log)

	reservationService := reservations.NewService(gateway, store, reservations.Options{
		ReportDays: cfg.Portal.ReportDays,
		Location:   loc,
	}, log)

	return &routes.Services{
		Credentials:  store,
		Sessions:     sessions,
		Availability: availabilityService,
		Bookings:     bookingService,
		Reservations: reservationService,
		History:      historyService,
		Producer:     producer,
	}, nil
}

func setupRouter(cfg *config.Config, db *database.DB, services *routes.Services, rateLimiter *ratelimit.RateLimiter, log *logger.Logger) *gin.Engine {
	engine := gin.New()

	engine.Use(middleware.RequestLogger(log), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if rateLimiter != nil {
		engine.Use(ratelimit.Middleware(rateLimiter, log))
	}

	routes.NewRouter(cfg, db, services).SetupRoutes(engine)
	return engine
}
