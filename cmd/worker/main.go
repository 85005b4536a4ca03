package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/booking-api/internal/bootstrap"
	"github.com/jwalitptl/booking-api/internal/config"
	"github.com/jwalitptl/booking-api/internal/repository"
	"github.com/jwalitptl/booking-api/internal/service/notification"
	"github.com/jwalitptl/booking-api/internal/service/reconcile"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/messaging"
	"github.com/jwalitptl/booking-api/pkg/metrics"
	"github.com/jwalitptl/booking-api/pkg/worker"
)

// healthAddr serves liveness, readiness and metrics for the worker.
const healthAddr = ":8081"

func setupHealthCheck(store repository.Store, registry *prometheus.Registry, logger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: healthAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(err, "Health check server failed")
		}
	}()
	return srv
}

func component(l *logger.Logger, name string) *logger.Logger {
	return l.WithFields(map[string]interface{}{"component": name})
}

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	logger := bootstrap.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "Failed to open storage", "driver", cfg.Storage.Driver)
	}
	defer store.Close()

	broker, err := bootstrap.NewBroker(ctx, cfg, logger)
	if err != nil {
		logger.Fatal(err, "Failed to connect to broker", "driver", cfg.Broker.Driver)
	}
	defer broker.Close()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics("booking_worker", registry)

	// Outbox delivery and retention
	processor := worker.NewOutboxProcessor(store.Outbox(), broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		Lease:         cfg.Outbox.Lease,
	}, component(logger, "outbox"), m)
	cleanup := worker.NewOutboxCleanupWorker(store.Outbox(), cfg.Outbox.Retention, time.Hour, component(logger, "outbox_cleanup"), m)

	// Slot reconciliation
	sweeper := reconcile.NewSweeper(store, reconcile.Config{
		Grace:     cfg.Reconcile.Grace,
		BatchSize: cfg.Reconcile.BatchSize,
	}, component(logger, "reconcile"), m)
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Reconcile.Schedule, sweeper.Run); err != nil {
		logger.Fatal(err, "Invalid reconcile schedule", "schedule", cfg.Reconcile.Schedule)
	}
	scheduler.Start()

	// Email delivery
	consumer := notification.NewConsumer(
		messaging.NewBrokerAdapter(broker, *logger.Zerolog()),
		notification.NewSMTPMailer(cfg.SMTP),
		component(logger, "mailer"),
	)

	healthSrv := setupHealthCheck(store, registry, logger)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := consumer.Run(ctx, cfg.Broker.Topic); err != nil {
			logger.Error(err, "Notification consumer stopped")
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	<-scheduler.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = healthSrv.Shutdown(shutdownCtx)
	wg.Wait()
	logger.Info("Worker exited properly")
}
