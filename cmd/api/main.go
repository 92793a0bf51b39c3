package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agrilink/marketplace-backend/internal/adapters/cache"
	"github.com/agrilink/marketplace-backend/internal/adapters/database"
	"github.com/agrilink/marketplace-backend/internal/adapters/events"
	"github.com/agrilink/marketplace-backend/internal/api/handlers"
	"github.com/agrilink/marketplace-backend/internal/api/routes"
	"github.com/agrilink/marketplace-backend/internal/application/services"
	"github.com/agrilink/marketplace-backend/internal/domain/providers"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/clients/postgres"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/clients/redis"
	"github.com/agrilink/marketplace-backend/internal/infrastructure/observability"
	"github.com/agrilink/marketplace-backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize database client
	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize PostgreSQL client: %v", err)
	}
	defer pgClient.Close()
	log.Println("PostgreSQL client initialized successfully")

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - emission dedup and the aggregate cache
		// fall back to per-process state
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	// Initialize adapters
	bookingAdapter := database.NewBookingAdapter(pgClient)
	ratingAdapter := database.NewRatingAdapter(pgClient)

	var cacheProvider providers.CacheProvider
	var notifier providers.Notifier
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
		notifier = events.NewRedisNotifier(redisClient)
		log.Println("Notifier initialized successfully")
	} else {
		log.Println("Notifier disabled (Redis not available)")
	}

	// Initialize services
	bookingService := services.NewBookingService(
		bookingAdapter,
		cacheProvider,
		notifier,
		cfg.Booking.AllowCompletedDeletion,
	)

	aggregator := services.NewRatingAggregator(ratingAdapter, cacheProvider)

	ratingService := services.NewRatingService(
		ratingAdapter,
		bookingAdapter,
		aggregator,
		cfg.ReviewPolicy,
	)

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService)
	ratingHandler := handlers.NewRatingHandler(ratingService, aggregator)

	// Set up router
	router := routes.NewRouter(bookingHandler, ratingHandler, metrics)
	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	log.Println("Server stopped")
}
