// Package queue implements the durable generation work queue on Postgres.
// Claims use FOR UPDATE SKIP LOCKED so no two workers take the same job, and
// a visibility timeout returns jobs whose worker died mid-flight. Delivery is
// at least once; consumers check order state before doing external work.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tunesmith/internal/domain"
	"tunesmith/internal/infra"
	"tunesmith/internal/sqlinline"
)

// Options tunes retry and redelivery behaviour.
type Options struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	VisibilityTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 5 * time.Second
	}
	// The lease must outlast a worker's worst-case poll window (300 polls at
	// 2s) plus submit and download time, or a slow but healthy job gets
	// reclaimed and double-driven.
	if o.VisibilityTimeout <= 0 {
		o.VisibilityTimeout = 15 * time.Minute
	}
	return o
}

// ClaimedJob is what a worker receives from Claim.
type ClaimedJob struct {
	ID          string
	OrderID     string
	Payload     domain.GenerationParams
	Attempts    int
	MaxAttempts int
}

// FinalAttempt reports whether a nack of this delivery would exhaust the job.
func (j ClaimedJob) FinalAttempt() bool {
	return j.Attempts >= j.MaxAttempts
}

// Queue is the durable FIFO (with priority weighting) job queue.
type Queue struct {
	db     infra.SQLExecutor
	opts   Options
	logger zerolog.Logger
}

func New(db infra.SQLExecutor, opts Options, logger zerolog.Logger) *Queue {
	return &Queue{db: db, opts: opts.withDefaults(), logger: logger}
}

// WithExecutor returns a copy bound to a different executor so enqueue can
// participate in the reconciler's transaction.
func (q *Queue) WithExecutor(db infra.SQLExecutor) *Queue {
	return &Queue{db: db, opts: q.opts, logger: q.logger}
}

// Enqueue inserts a job for the order unless one is already queued or
// running. Returns the job id, or "" when the enqueue was a no-op.
func (q *Queue) Enqueue(ctx context.Context, orderID string, payload domain.GenerationParams, priority int) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("queue: encode payload: %w", err)
	}
	row := q.db.QueryRow(ctx, sqlinline.QEnqueueJob, uuid.NewString(), orderID, raw, priority, q.opts.MaxAttempts)
	var id string
	if err := row.Scan(&id); err != nil {
		if infra.IsNoRows(err) {
			q.logger.Debug().Str("order_id", orderID).Msg("queue: enqueue skipped, job already active")
			return "", nil
		}
		return "", fmt.Errorf("queue: enqueue: %w", err)
	}
	return id, nil
}

// ErrEmpty is returned by Claim when no job is runnable.
var ErrEmpty = fmt.Errorf("queue: no job available")

// Claim leases the next runnable job to the caller.
func (q *Queue) Claim(ctx context.Context) (ClaimedJob, error) {
	row := q.db.QueryRow(ctx, sqlinline.QClaimJob, int(q.opts.VisibilityTimeout.Seconds()))
	var j ClaimedJob
	var raw []byte
	if err := row.Scan(&j.ID, &j.OrderID, &raw, &j.Attempts, &j.MaxAttempts); err != nil {
		if infra.IsNoRows(err) {
			return ClaimedJob{}, ErrEmpty
		}
		return ClaimedJob{}, fmt.Errorf("queue: claim: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &j.Payload); err != nil {
			return ClaimedJob{}, fmt.Errorf("queue: decode payload: %w", err)
		}
	}
	return j, nil
}

// Ack marks a delivered job as done.
func (q *Queue) Ack(ctx context.Context, jobID string) error {
	if _, err := q.db.Exec(ctx, sqlinline.QAckJob, jobID); err != nil {
		return fmt.Errorf("queue: ack: %w", err)
	}
	return nil
}

// Nack reports a retryable failure. The job is requeued with exponential
// backoff, or moved to the dead set once attempts are exhausted. Returns true
// when the job is dead.
func (q *Queue) Nack(ctx context.Context, job ClaimedJob, cause error) (bool, error) {
	delay := q.backoff(job.Attempts)
	row := q.db.QueryRow(ctx, sqlinline.QNackJob, job.ID, cause.Error(), int(delay.Seconds()))
	var status string
	if err := row.Scan(&status); err != nil {
		return false, fmt.Errorf("queue: nack: %w", err)
	}
	dead := status == string(domain.JobDead)
	q.logger.Warn().
		Str("job_id", job.ID).
		Str("order_id", job.OrderID).
		Int("attempt", job.Attempts).
		Bool("dead", dead).
		Err(cause).
		Msg("queue: job nacked")
	return dead, nil
}

// FailTerminal retires a job whose failure is definitive; no retry applies.
func (q *Queue) FailTerminal(ctx context.Context, jobID string, cause error) error {
	if _, err := q.db.Exec(ctx, sqlinline.QFailJobTerminal, jobID, cause.Error()); err != nil {
		return fmt.Errorf("queue: fail terminal: %w", err)
	}
	return nil
}

// SetProgress mirrors task progress onto the job row for queue observers.
func (q *Queue) SetProgress(ctx context.Context, jobID string, progress int) error {
	if _, err := q.db.Exec(ctx, sqlinline.QUpdateJobProgress, jobID, progress); err != nil {
		return fmt.Errorf("queue: set progress: %w", err)
	}
	return nil
}

// ByOrder returns the order's most recent job envelope.
func (q *Queue) ByOrder(ctx context.Context, orderID string) (*domain.Job, error) {
	row := q.db.QueryRow(ctx, sqlinline.QSelectJobByOrder, orderID)
	var j domain.Job
	var status string
	var raw []byte
	if err := row.Scan(
		&j.ID, &j.OrderID, &raw, &status, &j.Priority, &j.Attempts, &j.MaxAttempts,
		&j.NextRunAt, &j.ClaimedAt, &j.LastError, &j.CreatedAt, &j.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("queue: select job: %w", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &j.Payload); err != nil {
			return nil, fmt.Errorf("queue: decode payload: %w", err)
		}
	}
	j.Status = domain.JobStatus(status)
	return &j, nil
}

// backoff doubles the base delay for every completed attempt.
func (q *Queue) backoff(attempts int) time.Duration {
	d := q.opts.BackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d > time.Hour {
			return time.Hour
		}
	}
	return d
}
