package domain

import "time"

// TaskStatus is the internal 4-state model every provider status code is
// normalized onto.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether the task will receive no further updates.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// GenerationTask records one external generation attempt, 1:1 with an order
// once enqueued. At most one non-terminal task may exist per order.
type GenerationTask struct {
	ID             string
	OrderID        string
	ExternalTaskID string
	Status         TaskStatus
	Progress       int
	ErrorMessage   string
	ArtifactURL    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
