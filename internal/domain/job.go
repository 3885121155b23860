package domain

import "time"

// JobStatus enumerates queue envelope states.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
	JobDead    JobStatus = "dead"
)

// Job is the durable queue envelope that carries the work needed to drive a
// generation task. Delivery is at least once; consumers must be idempotent
// with respect to the order id.
type Job struct {
	ID          string
	OrderID     string
	Payload     GenerationParams
	Status      JobStatus
	Priority    int
	Attempts    int
	MaxAttempts int
	NextRunAt   time.Time
	ClaimedAt   *time.Time
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
