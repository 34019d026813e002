package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/rx-scheduler/internal/config"
	"github.com/jwalitptl/rx-scheduler/internal/handler/health"
	"github.com/jwalitptl/rx-scheduler/internal/notification"
	"github.com/jwalitptl/rx-scheduler/internal/repository/postgres"
	cleanup "github.com/jwalitptl/rx-scheduler/internal/worker"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/messaging/redis"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
	"github.com/jwalitptl/rx-scheduler/pkg/worker"
)

// settings are process-level options read from WORKER_* variables.
type settings struct {
	ID         string `envconfig:"ID"`
	HealthAddr string `envconfig:"HEALTH_ADDR" default:":8081"`
	ConfigPath string `envconfig:"CONFIG"`
}

type pinger interface {
	Ping(ctx context.Context) error
}

func setupHealthCheck(addr string, checks map[string]health.Check, appLogger *logger.Logger) *http.Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(checks, prometheus.DefaultGatherer).RegisterRoutes(engine)

	srv := &http.Server{Addr: addr, Handler: engine}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal(err, "health check server failed")
		}
	}()
	return srv
}

func workerID(configured string) string {
	if configured != "" {
		return configured
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("worker-%s-%d", hostname, os.Getpid())
}

func main() {
	var env settings
	if err := envconfig.Process("worker", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to read worker settings")
	}

	cfg, err := config.LoadConfig(env.ConfigPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Storage.Driver != "postgres" {
		log.Fatal().Str("driver", cfg.Storage.Driver).Msg("worker requires the postgres storage driver")
	}

	appLogger := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		JSON:       cfg.Log.JSON,
	}).WithFields(map[string]interface{}{"worker_id": workerID(env.ID)})
	log.Logger = *appLogger.Zerolog()

	m := metrics.NewMetrics("rx", prometheus.DefaultRegisterer)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		appLogger.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	broker, err := redis.NewRedisBroker(cfg.Redis.ToBrokerConfig(), appLogger.Zerolog(), m)
	if err != nil {
		appLogger.Fatal(err, "failed to create Redis broker")
	}
	defer broker.Close()

	tx := postgres.NewTxManager(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	var handlers []worker.Handler
	if cfg.Mail.Enabled {
		mail := notification.Config{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		}
		handlers = append(handlers, notification.NewNotifier(
			notification.NewDialer(mail),
			mail.From,
			postgres.NewPatientRepository(db),
			postgres.NewDoctorRepository(db),
			appLogger,
			m,
		))
	}

	processor := worker.NewOutboxProcessor(tx, outboxRepo, broker, cfg.Outbox.ToWorkerConfig(), appLogger, m, handlers...)

	janitor := cleanup.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, appLogger, m)
	if err := janitor.Start(cfg.Outbox.CleanupSpec); err != nil {
		appLogger.Fatal(err, "failed to schedule outbox cleanup")
	}
	defer janitor.Stop()

	checks := map[string]health.Check{"database": db.PingContext}
	if p, ok := broker.(pinger); ok {
		checks["redis"] = p.Ping
	}
	healthSrv := setupHealthCheck(env.HealthAddr, checks, appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("shutting down...")
		cancel()
	}()

	appLogger.Info("worker started", "mail", cfg.Mail.Enabled, "health_addr", env.HealthAddr)
	processor.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "health check server forced to shutdown")
	}
}
