package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAccountsUnblockSweep reverts accounts whose block deadline expired.
	TaskAccountsUnblockSweep = "accounts:unblock_sweep"
)

// UnblockSweepPayload carries scheduling metadata for the sweep.
type UnblockSweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewUnblockSweepTask constructs an Asynq task for the expired-block sweep.
func NewUnblockSweepTask(at time.Time) (*asynq.Task, error) {
	payload := UnblockSweepPayload{ScheduledFor: at}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAccountsUnblockSweep, body, asynq.Queue(QueueDefault)), nil
}
