package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tunesmith/internal/domain"
	"tunesmith/internal/infra"
	"tunesmith/internal/sqlinline"
)

// Tasks persists generation task records, one external attempt per row.
type Tasks struct {
	db     infra.SQLExecutor
	logger zerolog.Logger
}

func NewTasks(db infra.SQLExecutor, logger zerolog.Logger) *Tasks {
	return &Tasks{db: db, logger: logger}
}

// Create records a newly submitted external task. Returns false when the
// order already has an active task (the partial unique index rejected it).
func (s *Tasks) Create(ctx context.Context, orderID, externalTaskID string) (string, bool, error) {
	id := uuid.NewString()
	tag, err := s.db.Exec(ctx, sqlinline.QInsertTask, id, orderID, externalTaskID)
	if err != nil {
		return "", false, fmt.Errorf("store: insert task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", false, nil
	}
	return id, true, nil
}

// UpdateProgress persists one poll tick. Terminal tasks are left untouched,
// so duplicate callbacks and late polls are no-ops.
func (s *Tasks) UpdateProgress(ctx context.Context, taskID string, status domain.TaskStatus, progress int, artifactURL, errMsg string) error {
	_, err := s.db.Exec(ctx, sqlinline.QUpdateTaskProgress, taskID, string(status), progress, artifactURL, errMsg)
	if err != nil {
		return fmt.Errorf("store: update task progress: %w", err)
	}
	return nil
}

// ActiveByOrder returns the order's non-terminal task, if any.
func (s *Tasks) ActiveByOrder(ctx context.Context, orderID string) (*domain.GenerationTask, error) {
	return s.scanTask(s.db.QueryRow(ctx, sqlinline.QSelectActiveTask, orderID))
}

// LatestByOrder returns the most recent task for the order regardless of state.
func (s *Tasks) LatestByOrder(ctx context.Context, orderID string) (*domain.GenerationTask, error) {
	return s.scanTask(s.db.QueryRow(ctx, sqlinline.QSelectLatestTask, orderID))
}

// ByExternalID resolves a provider callback to its task record.
func (s *Tasks) ByExternalID(ctx context.Context, externalTaskID string) (*domain.GenerationTask, error) {
	return s.scanTask(s.db.QueryRow(ctx, sqlinline.QSelectTaskByExternalID, externalTaskID))
}

func (s *Tasks) scanTask(row interface{ Scan(...any) error }) (*domain.GenerationTask, error) {
	var t domain.GenerationTask
	var status string
	if err := row.Scan(
		&t.ID, &t.OrderID, &t.ExternalTaskID, &status, &t.Progress,
		&t.ErrorMessage, &t.ArtifactURL, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("store: scan task: %w", err)
	}
	t.Status = domain.TaskStatus(status)
	return &t, nil
}
