package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jwalitptl/rx-scheduler/internal/repository"
	"github.com/jwalitptl/rx-scheduler/pkg/logger"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
)

// OutboxCleanupWorker deletes relayed outbox rows older than the retention
// period on a cron schedule.
type OutboxCleanupWorker struct {
	cron      *cron.Cron
	repo      repository.OutboxRepository
	retention time.Duration
	timeout   time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewOutboxCleanupWorker(repo repository.OutboxRepository, retention time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *OutboxCleanupWorker {
	return &OutboxCleanupWorker{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		repo:      repo,
		retention: retention,
		timeout:   time.Minute,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Start registers the job under spec (standard five-field cron syntax) and
// starts the scheduler.
func (w *OutboxCleanupWorker) Start(spec string) error {
	if _, err := w.cron.AddFunc(spec, w.run); err != nil {
		return fmt.Errorf("failed to register outbox cleanup job: %w", err)
	}
	w.cron.Start()
	w.logger.Info("Outbox cleanup scheduled", "spec", spec, "retention", w.retention.String())
	return nil
}

// Stop waits for a running job to finish.
func (w *OutboxCleanupWorker) Stop() {
	<-w.cron.Stop().Done()
}

func (w *OutboxCleanupWorker) run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if _, err := w.Cleanup(ctx); err != nil {
		w.logger.Error(err, "Outbox cleanup failed")
	}
}

// Cleanup deletes processed events older than the retention period.
func (w *OutboxCleanupWorker) Cleanup(ctx context.Context) (int64, error) {
	cutoff := w.now().Add(-w.retention)

	rows, err := w.repo.DeleteProcessedBefore(ctx, cutoff)
	w.metrics.ObserveDB("delete_processed_events", err)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup outbox events: %w", err)
	}

	w.metrics.OutboxEventsPurged.Add(float64(rows))
	w.logger.Info("Cleaned up outbox events", "deleted", rows, "cutoff", cutoff.Format(time.RFC3339))
	return rows, nil
}
