package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/civica-console/civica/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AccountSweeper reverts expired temporal blocks back to active accounts.
type AccountSweeper interface {
	ForceUnblockExpired(ctx context.Context) (int64, error)
}

// UnblockSweepJob periodically clears blocks whose deadline has passed.
type UnblockSweepJob struct {
	Service AccountSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewUnblockSweepJob initialises the sweep handler.
func NewUnblockSweepJob(service AccountSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *UnblockSweepJob {
	return &UnblockSweepJob{Service: service, Logger: logger, Metrics: metrics}
}

// Handle executes the sweep.
func (j *UnblockSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("unblock sweep: handler not configured")
	}
	var payload UnblockSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAccountsUnblockSweep)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Time("scheduled_for", payload.ScheduledFor))
	logger.Info("starting unblock sweep")

	count, err := j.Service.ForceUnblockExpired(ctx)
	if err != nil {
		resultErr = err
		logger.Error("unblock sweep failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddUnblocked(count)
	logger.Info("unblock sweep completed", slog.Int64("accounts_unblocked", count))
	return nil
}

func (j *UnblockSweepJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *UnblockSweepJob) logger() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
