package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/rivoli-ai/gatekeeper/internal/authz"
	jobmetrics "github.com/rivoli-ai/gatekeeper/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// SubjectWarmupJob rebuilds one subject's cached snapshot so the first
// check after an invalidation does not pay the resolution cost.
type SubjectWarmupJob struct {
	Resolver *authz.Resolver
	Cache    authz.Cache
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewSubjectWarmupJob wires dependencies for the warmup handler.
func NewSubjectWarmupJob(resolver *authz.Resolver, cache authz.Cache, logger *slog.Logger, metrics *jobmetrics.Metrics) *SubjectWarmupJob {
	return &SubjectWarmupJob{Resolver: resolver, Cache: cache, Logger: logger, Metrics: metrics}
}

// Handle processes subject warmup tasks.
func (j *SubjectWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Resolver == nil || j.Cache == nil {
		return errors.New("subject warmup: handler not configured")
	}
	var payload SubjectWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.SubjectID == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskSubjectWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	snap, err := j.Resolver.Snapshot(ctx, payload.SubjectID)
	switch {
	case errors.Is(err, authz.ErrSubjectNotFound), errors.Is(err, authz.ErrSubjectInactive):
		// Nothing to warm; the resolver denies these without a snapshot.
		j.logger().Info("skipping warmup", slog.String("subject", payload.SubjectID), slog.Any("reason", err))
		return nil
	case err != nil:
		resultErr = err
		j.logger().Error("resolve snapshot", slog.String("subject", payload.SubjectID), slog.Any("error", err))
		return resultErr
	}

	j.Cache.Set(ctx, payload.SubjectID, snap)
	j.logger().Info("warmed subject snapshot",
		slog.String("subject", payload.SubjectID),
		slog.Int("permissions", len(snap.Permissions)),
		slog.Int("roles", len(snap.Roles)))
	return resultErr
}

func (j *SubjectWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskSubjectWarmup))
	}
	return slog.Default().With(slog.String("job", TaskSubjectWarmup))
}

func (j *SubjectWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
