package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/rivoli-ai/gatekeeper/internal/jobs"
)

// ExpirySweepJob deletes assignment rows whose expiry has passed. Expired
// rows are already inert at resolution time, so the sweep is pure hygiene
// and needs no cache invalidation.
type ExpirySweepJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewExpirySweepJob wires dependencies for the sweep handler.
func NewExpirySweepJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *ExpirySweepJob {
	return &ExpirySweepJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes expiry sweep tasks.
func (j *ExpirySweepJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("expiry sweep: handler not configured")
	}

	tracker := j.metrics().Track(TaskExpirySweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	logger := j.logger()
	total := int64(0)
	for _, table := range []string{"subject_roles", "team_roles", "instance_permissions"} {
		tag, err := j.Pool.Exec(ctx,
			"DELETE FROM "+table+" WHERE expires_at IS NOT NULL AND expires_at <= $1", now)
		if err != nil {
			resultErr = err
			logger.Error("purge expired rows", slog.String("table", table), slog.Any("error", err))
			return resultErr
		}
		j.metrics().AddPurged(table, tag.RowsAffected())
		total += tag.RowsAffected()
	}

	logger.Info("completed expiry sweep", slog.Int64("purged", total), slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *ExpirySweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskExpirySweep))
	}
	return slog.Default().With(slog.String("job", TaskExpirySweep))
}

func (j *ExpirySweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *ExpirySweepJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
