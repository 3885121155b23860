package store

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"tunesmith/internal/domain"
	"tunesmith/internal/infra"
	"tunesmith/internal/sqlinline"
)

// Tracks persists the public-facing records of completed generations.
type Tracks struct {
	db     infra.SQLExecutor
	logger zerolog.Logger
}

func NewTracks(db infra.SQLExecutor, logger zerolog.Logger) *Tracks {
	return &Tracks{db: db, logger: logger}
}

// Publish inserts a track for a completed order. Redelivered jobs hit the
// unique order constraint and insert nothing.
func (s *Tracks) Publish(ctx context.Context, t *domain.Track) error {
	_, err := s.db.Exec(ctx, sqlinline.QInsertTrack,
		t.ID, t.OrderID, t.PrincipalID, t.Title, t.Style, t.AudioURL, t.DurationSec)
	if err != nil {
		return fmt.Errorf("store: insert track: %w", err)
	}
	return nil
}

// Get fetches a single published track.
func (s *Tracks) Get(ctx context.Context, id string) (*domain.Track, error) {
	row := s.db.QueryRow(ctx, sqlinline.QSelectTrack, id)
	return scanTrack(row)
}

// ListByPrincipal returns the principal's most recent tracks.
func (s *Tracks) ListByPrincipal(ctx context.Context, principalID string, limit int) ([]domain.Track, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, sqlinline.QListTracksByPrincipal, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list tracks: %w", err)
	}
	defer rows.Close()
	var tracks []domain.Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

func scanTrack(row interface{ Scan(...any) error }) (*domain.Track, error) {
	var t domain.Track
	if err := row.Scan(&t.ID, &t.OrderID, &t.PrincipalID, &t.Title, &t.Style, &t.AudioURL, &t.DurationSec, &t.CreatedAt); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("store: scan track: %w", err)
	}
	return &t, nil
}
