package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/rx-scheduler/internal/config"
	"github.com/jwalitptl/rx-scheduler/internal/handler"
	appointmentHandler "github.com/jwalitptl/rx-scheduler/internal/handler/appointment"
	"github.com/jwalitptl/rx-scheduler/internal/handler/health"
	prescriptionHandler "github.com/jwalitptl/rx-scheduler/internal/handler/prescription"
	receiptHandler "github.com/jwalitptl/rx-scheduler/internal/handler/receipt"
	"github.com/jwalitptl/rx-scheduler/internal/middleware"
	"github.com/jwalitptl/rx-scheduler/internal/router"
	appointmentService "github.com/jwalitptl/rx-scheduler/internal/service/appointment"
	"github.com/jwalitptl/rx-scheduler/internal/service/event"
	prescriptionService "github.com/jwalitptl/rx-scheduler/internal/service/prescription"
	receiptService "github.com/jwalitptl/rx-scheduler/internal/service/receipt"
	"github.com/jwalitptl/rx-scheduler/pkg/auth"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/messaging/redis"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
	"github.com/jwalitptl/rx-scheduler/pkg/worker"
)

func main() {
	configPath := flag.String("config", "", "path to config.yml")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	})
	log.Logger = *appLogger.Zerolog()

	m := metrics.NewMetrics("rx", prometheus.DefaultRegisterer)

	// Initialize storage
	s, err := openStores(cfg, appLogger)
	if err != nil {
		appLogger.Fatal(err, "failed to open storage", "driver", cfg.Storage.Driver)
	}
	defer s.close()

	// Initialize services
	events := event.NewEventService(s.outbox)
	appointments := appointmentService.NewService(s.tx, s.appointments, s.patients, s.doctors, events, appLogger, m)
	prescriptions := prescriptionService.NewService(s.tx, s.prescriptions, s.receipts, s.patients, s.doctors, s.medications, events, appLogger, m)
	receipts := receiptService.NewService(s.tx, s.receipts, s.pharmacies, events, appLogger, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The worker cannot reach an in-process store, so memory mode relays
	// events from here when Redis is available.
	if cfg.Storage.Driver == "memory" && cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), appLogger.Zerolog(), m)
		if err != nil {
			appLogger.Warn("redis unavailable, events stay in the outbox", "error", err.Error())
		} else {
			defer broker.Close()
			processor := worker.NewOutboxProcessor(s.relayTx, s.outbox, broker, cfg.Outbox.ToWorkerConfig(), appLogger, m)
			go processor.Start(ctx)
		}
	}

	clock := handler.Clock(time.Now)
	authMiddleware := middleware.NewAuthMiddleware(auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer))

	routerConfig := router.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
	}
	if cfg.RateLimit.Enabled {
		routerConfig.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerConfig.RateBurst = cfg.RateLimit.Burst
	}

	r, err := router.NewRouter(
		authMiddleware,
		health.NewHandler(s.checks, prometheus.DefaultGatherer),
		m,
		routerConfig,
		appointmentHandler.NewHandler(appointments, clock),
		prescriptionHandler.NewHandler(prescriptions, clock),
		receiptHandler.NewHandler(receipts, clock),
	)
	if err != nil {
		appLogger.Fatal(err, "failed to build router")
	}

	// Create server
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r.Setup(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	// Start server
	go func() {
		appLogger.Info("listening", "addr", srv.Addr, "storage", cfg.Storage.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err, "failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "server forced to shutdown")
	}

	appLogger.Info("server exited properly")
}
