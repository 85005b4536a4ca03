package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/booking-api/internal/bootstrap"
	"github.com/jwalitptl/booking-api/internal/config"
	bookingHandler "github.com/jwalitptl/booking-api/internal/handler/booking"
	catalogHandler "github.com/jwalitptl/booking-api/internal/handler/catalog"
	"github.com/jwalitptl/booking-api/internal/handler/health"
	promHandler "github.com/jwalitptl/booking-api/internal/handler/prometheus"
	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/internal/router"
	bookingService "github.com/jwalitptl/booking-api/internal/service/booking"
	catalogService "github.com/jwalitptl/booking-api/internal/service/catalog"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	"github.com/jwalitptl/booking-api/pkg/auth"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger := bootstrap.NewLogger(cfg.Log)

	loc, err := cfg.Booking.Location()
	if err != nil {
		logger.Fatal(err, "Invalid booking timezone", "timezone", cfg.Booking.Timezone)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "Failed to open storage", "driver", cfg.Storage.Driver)
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics("booking_api", registry)

	// Initialize services
	notifier := notification.NewDispatcher(store, cfg.Broker.Topic, logger)
	bookingSvc := bookingService.NewService(store, notifier, bookingService.Config{
		DepositRate: cfg.Booking.DepositRate,
		PlatformFee: cfg.Booking.PlatformFee,
		Location:    loc,
	}, logger, m)
	catalogSvc := catalogService.NewService(store, logger)

	jwt := auth.NewJWTService(auth.Config{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer})

	// Setup router
	r := router.NewRouter(
		middleware.NewAuthMiddleware(jwt),
		health.NewHandler(map[string]health.Pinger{"storage": store}),
		promHandler.New(registry),
		[]router.Handler{
			catalogHandler.NewHandler(catalogSvc),
			bookingHandler.NewHandler(bookingSvc),
		},
		logger,
		m,
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
		},
	)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		logger.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(err, "Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Server forced to shutdown")
		return
	}

	logger.Info("Server exited properly")
}
