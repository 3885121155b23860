// Package worker drives claimed generation jobs end to end: backend
// submission, progress polling, artifact retrieval, publication and order
// finalization. Workers hold no state across jobs besides transient poll
// variables; every effect lands in the database or object storage, so a
// crashed worker's job is safely redelivered.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tunesmith/internal/domain"
	"tunesmith/internal/entitlement"
	"tunesmith/internal/providers/suno"
	"tunesmith/internal/queue"
	"tunesmith/internal/storage"
	"tunesmith/internal/store"
)

// Backend is the generation provider surface the worker depends on.
type Backend interface {
	Submit(ctx context.Context, req suno.SubmitRequest) (string, error)
	Poll(ctx context.Context, externalTaskID string) (suno.TaskState, error)
	Download(ctx context.Context, audioURL string) ([]byte, string, error)
}

// ArtifactStore is the storage surface the worker publishes artifacts to.
type ArtifactStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
}

// Config tunes the worker pool.
type Config struct {
	Concurrency     int
	PollInterval    time.Duration
	MaxPollAttempts int
	IdleDelay       time.Duration
	StorageBaseURL  string
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MaxPollAttempts <= 0 {
		c.MaxPollAttempts = 300
	}
	if c.IdleDelay <= 0 {
		c.IdleDelay = 2 * time.Second
	}
	return c
}

// Worker consumes generation jobs from the shared durable queue.
type Worker struct {
	cfg     Config
	queue   *queue.Queue
	orders  *store.Orders
	tasks   *store.Tasks
	tracks  *store.Tracks
	ledger  *entitlement.Ledger
	backend Backend
	files   ArtifactStore
	ids     *snowflake.Node
	logger  zerolog.Logger
	titler  cases.Caser
}

func New(cfg Config, q *queue.Queue, orders *store.Orders, tasks *store.Tasks, tracks *store.Tracks, ledger *entitlement.Ledger, backend Backend, files ArtifactStore, ids *snowflake.Node, logger zerolog.Logger) *Worker {
	return &Worker{
		cfg:     cfg.withDefaults(),
		queue:   q,
		orders:  orders,
		tasks:   tasks,
		tracks:  tracks,
		ledger:  ledger,
		backend: backend,
		files:   files,
		ids:     ids,
		logger:  logger,
		titler:  cases.Title(language.English),
	}
}

// Run consumes jobs until the context is cancelled. Concurrency is a fixed
// pool of independent consumer loops sharing the queue.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.cfg.Concurrency).Msg("worker: started")
	done := make(chan struct{})
	for i := 0; i < w.cfg.Concurrency; i++ {
		go func(slot int) {
			defer func() { done <- struct{}{} }()
			w.consume(ctx, slot)
		}(i)
	}
	for i := 0; i < w.cfg.Concurrency; i++ {
		<-done
	}
	return ctx.Err()
}

func (w *Worker) consume(ctx context.Context, slot int) {
	logger := w.logger.With().Int("slot", slot).Logger()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Claim(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) {
				logger.Error().Err(err).Msg("worker: claim failed")
			}
			w.sleep(ctx, w.cfg.IdleDelay)
			continue
		}
		w.handle(ctx, logger, job)
	}
}

func (w *Worker) handle(ctx context.Context, logger zerolog.Logger, job queue.ClaimedJob) {
	logger = logger.With().Str("job_id", job.ID).Str("order_id", job.OrderID).Logger()
	logger.Info().Int("attempt", job.Attempts).Msg("worker: picked job")

	order, err := w.orders.Get(ctx, job.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.Warn().Msg("worker: order vanished, acking job")
			w.ack(ctx, logger, job.ID)
			return
		}
		w.retryLater(ctx, logger, job, nil, fmt.Errorf("load order: %w", err))
		return
	}

	// Idempotency gate: a redelivered job for a finished or cancelled order
	// does no external work.
	if order.OrderStatus.Terminal() {
		logger.Info().Str("order_status", string(order.OrderStatus)).Msg("worker: order already terminal")
		w.ack(ctx, logger, job.ID)
		return
	}

	promoted, err := w.orders.Promote(ctx, order.ID)
	if err != nil {
		w.retryLater(ctx, logger, job, order, fmt.Errorf("promote order: %w", err))
		return
	}
	if !promoted {
		// Unpaid orders never generate.
		logger.Warn().Str("payment_status", string(order.PaymentStatus)).Msg("worker: order not payable, acking job")
		w.ack(ctx, logger, job.ID)
		return
	}

	task, err := w.ensureTask(ctx, logger, order, job.Payload)
	if err != nil {
		if suno.IsTransport(err) || isRetryable(err) {
			w.retryLater(ctx, logger, job, order, err)
		} else {
			w.failTerminal(ctx, logger, job, order, nil, err)
		}
		return
	}

	final, err := w.pollUntilDone(ctx, logger, job, task)
	if err != nil {
		var timeoutErr *pollTimeoutError
		switch {
		case errors.As(err, &timeoutErr):
			w.markTaskFailed(ctx, logger, task.ID, "timeout")
			w.retryLater(ctx, logger, job, order, err)
		case suno.IsTransport(err):
			w.retryLater(ctx, logger, job, order, err)
		default:
			w.failTerminal(ctx, logger, job, order, task, err)
		}
		return
	}

	if err := w.publish(ctx, logger, job, order, task, final); err != nil {
		// Storage and download problems follow the queue's retry policy.
		w.retryLater(ctx, logger, job, order, err)
	}
}

// ensureTask resumes the order's active task or submits a new external one.
func (w *Worker) ensureTask(ctx context.Context, logger zerolog.Logger, order *domain.Order, params domain.GenerationParams) (*domain.GenerationTask, error) {
	task, err := w.tasks.ActiveByOrder(ctx, order.ID)
	if err == nil {
		logger.Info().Str("external_task_id", task.ExternalTaskID).Msg("worker: resuming active task")
		return task, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, &retryableError{err: err}
	}

	externalID, err := w.backend.Submit(ctx, suno.SubmitRequest{
		Prompt:       submitPrompt(params),
		Style:        params.Style,
		Title:        params.Title,
		Instrumental: params.Instrumental,
		VocalGender:  params.VocalGender,
		Model:        params.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("submit generation: %w", err)
	}

	taskID, inserted, err := w.tasks.Create(ctx, order.ID, externalID)
	if err != nil {
		return nil, &retryableError{err: err}
	}
	if !inserted {
		// Lost a race with another delivery of the same order; use its task.
		return w.tasks.ActiveByOrder(ctx, order.ID)
	}
	logger.Info().Str("external_task_id", externalID).Msg("worker: submitted generation task")
	return &domain.GenerationTask{ID: taskID, OrderID: order.ID, ExternalTaskID: externalID, Status: domain.TaskPending}, nil
}

// submitPrompt picks the text sent to the backend. The backend's prompt
// field carries the song text when explicit lyrics were supplied; otherwise
// the free-form prompt describes the piece.
func submitPrompt(params domain.GenerationParams) string {
	if lyrics := strings.TrimSpace(params.Lyrics); lyrics != "" {
		return lyrics
	}
	return strings.TrimSpace(params.Prompt)
}

// retryableError marks an infrastructure failure (a database hiccup, not a
// provider verdict) that should go through the queue's backoff policy.
type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re)
}

type pollTimeoutError struct {
	attempts int
}

func (e *pollTimeoutError) Error() string {
	return fmt.Sprintf("generation timed out after %d polls", e.attempts)
}

// pollUntilDone drives the poll loop. The inter-attempt sleep is the only
// suspension and holds no lock or transaction.
func (w *Worker) pollUntilDone(ctx context.Context, logger zerolog.Logger, job queue.ClaimedJob, task *domain.GenerationTask) (suno.TaskState, error) {
	for attempt := 0; attempt < w.cfg.MaxPollAttempts; attempt++ {
		if err := w.sleep(ctx, w.cfg.PollInterval); err != nil {
			return suno.TaskState{}, &suno.TransportError{Err: err}
		}

		state, err := w.backend.Poll(ctx, task.ExternalTaskID)
		if err != nil {
			if suno.IsTransport(err) {
				logger.Warn().Err(err).Int("poll", attempt).Msg("worker: poll transport error, will retry next tick")
				continue
			}
			return suno.TaskState{}, err
		}

		if err := w.tasks.UpdateProgress(ctx, task.ID, state.Status, state.Progress, state.AudioURL, state.ErrorMessage); err != nil {
			logger.Error().Err(err).Msg("worker: persist task progress failed")
		}
		if err := w.queue.SetProgress(ctx, job.ID, state.Progress); err != nil {
			logger.Error().Err(err).Msg("worker: persist job progress failed")
		}

		switch state.Status {
		case domain.TaskCompleted:
			return state, nil
		case domain.TaskFailed:
			msg := state.ErrorMessage
			if msg == "" {
				msg = "generation failed"
			}
			return suno.TaskState{}, fmt.Errorf("%w: %s", domain.ErrProviderFailure, msg)
		}
	}
	return suno.TaskState{}, &pollTimeoutError{attempts: w.cfg.MaxPollAttempts}
}

// publish downloads the artifact, writes it to durable storage, finalizes the
// order and creates the public track record.
func (w *Worker) publish(ctx context.Context, logger zerolog.Logger, job queue.ClaimedJob, order *domain.Order, task *domain.GenerationTask, state suno.TaskState) error {
	data, mime, err := w.backend.Download(ctx, state.AudioURL)
	if err != nil {
		return fmt.Errorf("download artifact: %w", err)
	}

	key := fmt.Sprintf("audio/%s/track%s", order.ID, extensionForMIME(mime))
	savedKey, err := w.files.Write(ctx, key, data)
	if err != nil {
		return fmt.Errorf("persist artifact: %w", err)
	}
	publicURL := storage.PublicURL(w.cfg.StorageBaseURL, savedKey)

	// The track goes in before the order flips to completed. The reverse
	// order can strand a completed order without its track: redelivery hits
	// the terminal-order gate and never publishes. The unique order_id makes
	// a republished track a no-op.
	track := &domain.Track{
		ID:          w.ids.Generate().String(),
		OrderID:     order.ID,
		PrincipalID: order.PrincipalID,
		Title:       w.trackTitle(order.Params),
		Style:       order.Params.Style,
		AudioURL:    publicURL,
		DurationSec: state.DurationSec,
	}
	if err := w.tracks.Publish(ctx, track); err != nil {
		return fmt.Errorf("publish track: %w", err)
	}

	if err := w.orders.Complete(ctx, order.ID, publicURL); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Another actor finished the order first; nothing left to do.
			logger.Warn().Msg("worker: order no longer processing at completion")
			w.ack(ctx, logger, job.ID)
			return nil
		}
		return fmt.Errorf("complete order: %w", err)
	}

	w.ack(ctx, logger, job.ID)
	logger.Info().Str("artifact_url", publicURL).Msg("worker: order completed")
	return nil
}

// failTerminal settles a definitive failure: task and order are failed, the
// consumed allowance is refunded, and the job is retired without retry.
func (w *Worker) failTerminal(ctx context.Context, logger zerolog.Logger, job queue.ClaimedJob, order *domain.Order, task *domain.GenerationTask, cause error) {
	logger.Error().Err(cause).Msg("worker: job failed terminally")
	if task != nil {
		w.markTaskFailed(ctx, logger, task.ID, cause.Error())
	}
	if err := w.orders.Fail(ctx, order.ID, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("worker: mark order failed")
	}
	w.refund(ctx, logger, order)
	if err := w.queue.FailTerminal(ctx, job.ID, cause); err != nil {
		logger.Error().Err(err).Msg("worker: retire job failed")
	}
}

// retryLater hands a retryable failure to the queue's backoff policy. Once
// attempts are exhausted the order is settled as failed.
func (w *Worker) retryLater(ctx context.Context, logger zerolog.Logger, job queue.ClaimedJob, order *domain.Order, cause error) {
	dead, err := w.queue.Nack(ctx, job, cause)
	if err != nil {
		logger.Error().Err(err).Msg("worker: nack failed")
		return
	}
	if !dead || order == nil {
		return
	}
	if err := w.orders.Fail(ctx, order.ID, cause.Error()); err != nil {
		logger.Error().Err(err).Msg("worker: mark order failed after dead job")
	}
	w.refund(ctx, logger, order)
}

func (w *Worker) refund(ctx context.Context, logger zerolog.Logger, order *domain.Order) {
	if order.Kind != domain.OrderKindGeneration || order.QuotaPool == "" {
		return
	}
	if err := w.ledger.Refund(ctx, order.PrincipalID, entitlement.Pool(order.QuotaPool)); err != nil {
		logger.Error().Err(err).Msg("worker: quota refund failed")
	}
}

func (w *Worker) markTaskFailed(ctx context.Context, logger zerolog.Logger, taskID, msg string) {
	if err := w.tasks.UpdateProgress(ctx, taskID, domain.TaskFailed, 0, "", msg); err != nil {
		logger.Error().Err(err).Msg("worker: mark task failed")
	}
}

func (w *Worker) ack(ctx context.Context, logger zerolog.Logger, jobID string) {
	if err := w.queue.Ack(ctx, jobID); err != nil {
		logger.Error().Err(err).Msg("worker: ack failed")
	}
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (w *Worker) trackTitle(params domain.GenerationParams) string {
	if t := strings.TrimSpace(params.Title); t != "" {
		return t
	}
	words := strings.Fields(params.Prompt)
	if len(words) > 6 {
		words = words[:6]
	}
	if len(words) == 0 {
		return "Untitled Track"
	}
	return w.titler.String(strings.Join(words, " "))
}

func extensionForMIME(mime string) string {
	switch strings.ToLower(strings.TrimSpace(mime)) {
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".mp3"
	}
}
