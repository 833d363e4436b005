package tasks

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
)

// Defines constants for task types used in Asynq.

const (
	// TypeProcessJob is the task type that runs the transcription pipeline
	// for one job.
	TypeProcessJob = "job:process"

	// QueueTranscription is the default queue for job tasks.
	QueueTranscription = "transcription"
)

// ProcessJobPayload is the queue message. It only names the job; everything
// else is read from the store.
type ProcessJobPayload struct {
	JobID string `json:"job_id"`
}

// NewProcessJobTask builds the task for a job.
func NewProcessJobTask(jobID string) (*asynq.Task, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, fmt.Errorf("job id is required")
	}
	payload, err := json.Marshal(ProcessJobPayload{JobID: jobID})
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return asynq.NewTask(TypeProcessJob, payload), nil
}

// ParseProcessJobPayload decodes a task payload.
func ParseProcessJobPayload(data []byte) (ProcessJobPayload, error) {
	var p ProcessJobPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	if p.JobID == "" {
		return p, fmt.Errorf("payload has no job_id")
	}
	return p, nil
}
