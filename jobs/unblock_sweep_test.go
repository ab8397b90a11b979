package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/civica-console/civica/internal/jobs"
)

type stubSweeper struct {
	count int64
	err   error
	calls int
}

func (s *stubSweeper) ForceUnblockExpired(ctx context.Context) (int64, error) {
	s.calls++
	return s.count, s.err
}

func TestUnblockSweepJobHandle(t *testing.T) {
	sweeper := &stubSweeper{count: 3}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewUnblockSweepJob(sweeper, slog.Default(), metrics)

	task, err := NewUnblockSweepTask(time.Now().UTC())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1, sweeper.calls)
}

func TestUnblockSweepJobPropagatesServiceError(t *testing.T) {
	sweeper := &stubSweeper{err: errors.New("db down")}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewUnblockSweepJob(sweeper, slog.Default(), metrics)

	task, err := NewUnblockSweepTask(time.Now().UTC())
	require.NoError(t, err)

	require.Error(t, job.Handle(context.Background(), task))
}

func TestUnblockSweepJobSkipsMalformedPayload(t *testing.T) {
	sweeper := &stubSweeper{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewUnblockSweepJob(sweeper, slog.Default(), metrics)

	task := asynq.NewTask(TaskAccountsUnblockSweep, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Zero(t, sweeper.calls)
}

func TestUnblockSweepPayloadRoundTrip(t *testing.T) {
	at := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	task, err := NewUnblockSweepTask(at)
	require.NoError(t, err)
	require.Equal(t, TaskAccountsUnblockSweep, task.Type())

	var payload UnblockSweepPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.True(t, payload.ScheduledFor.Equal(at))
}
