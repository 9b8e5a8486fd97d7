package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSubjectWarmup re-resolves one subject's snapshot after invalidation.
	TaskSubjectWarmup = "authz:warmup_subject"
	// TaskExpirySweep purges expired assignment rows.
	TaskExpirySweep = "authz:sweep_expired"
)

// SubjectWarmupPayload names the subject whose snapshot should be rebuilt.
type SubjectWarmupPayload struct {
	SubjectID string `json:"subject_id"`
}

// NewSubjectWarmupTask constructs an Asynq task.
func NewSubjectWarmupTask(payload SubjectWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSubjectWarmup, data), nil
}

// NewExpirySweepTask constructs the scheduled sweep task.
func NewExpirySweepTask() *asynq.Task {
	return asynq.NewTask(TaskExpirySweep, nil)
}
