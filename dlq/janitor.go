package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xraph/beacon/observability"
)

// Janitor purges DLQ entries older than a retention period on a cron
// schedule.
type Janitor struct {
	svc       *Service
	retention time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
	cron      *cron.Cron
}

// NewJanitor validates schedule, a standard five-field cron expression or
// descriptor such as "@hourly", and returns a stopped Janitor.
func NewJanitor(svc *Service, schedule string, retention time.Duration, metrics *observability.Metrics, logger *slog.Logger) (*Janitor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, fmt.Errorf("dlq: janitor schedule %q: %w", schedule, err)
	}

	j := &Janitor{
		svc:       svc,
		retention: retention,
		metrics:   metrics,
		logger:    logger,
		cron:      cron.New(cron.WithLocation(time.UTC)),
	}
	j.cron.Schedule(sched, cron.FuncJob(func() {
		if _, err := j.RunOnce(context.Background()); err != nil {
			j.logger.Error("dlq purge failed", "error", err)
		}
	}))
	return j, nil
}

// Start begins running the schedule.
func (j *Janitor) Start() { j.cron.Start() }

// Stop halts the schedule and waits for a running purge, or ctx.
func (j *Janitor) Stop(ctx context.Context) {
	select {
	case <-j.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce purges expired entries immediately and refreshes the DLQ gauge.
func (j *Janitor) RunOnce(ctx context.Context) (int64, error) {
	purged, err := j.svc.Purge(ctx, time.Now().UTC().Add(-j.retention))
	if err != nil {
		return 0, err
	}
	if j.metrics != nil {
		if n, err := j.svc.Count(ctx); err == nil {
			j.metrics.DLQSize.Set(float64(n))
		}
	}
	if purged > 0 {
		j.logger.InfoContext(ctx, "dlq purged", "entries", purged, "retention", j.retention)
	}
	return purged, nil
}
