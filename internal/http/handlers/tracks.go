package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tunesmith/internal/domain"
	"tunesmith/internal/middleware"
)

type trackResponse struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	Title       string `json:"title"`
	Style       string `json:"style,omitempty"`
	AudioURL    string `json:"audio_url"`
	DurationSec int    `json:"duration_sec,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// TracksList returns the caller's published tracks, newest first.
func (a *App) TracksList(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing principal context")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	tracks, err := a.Tracks.ListByPrincipal(r.Context(), p.ID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Str("principal_id", p.ID).Msg("tracks: list failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to list tracks")
		return
	}
	out := make([]trackResponse, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, toTrackResponse(t))
	}
	a.json(w, http.StatusOK, map[string]any{"tracks": out})
}

// TrackGet returns one published track owned by the caller.
func (a *App) TrackGet(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing principal context")
		return
	}
	trackID := chi.URLParam(r, "id")
	if trackID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "track id required")
		return
	}
	track, err := a.Tracks.Get(r.Context(), trackID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "track not found")
			return
		}
		a.Logger.Error().Err(err).Str("track_id", trackID).Msg("tracks: load failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load track")
		return
	}
	if track.PrincipalID != p.ID {
		a.error(w, http.StatusNotFound, "not_found", "track not found")
		return
	}
	a.json(w, http.StatusOK, toTrackResponse(*track))
}

func toTrackResponse(t domain.Track) trackResponse {
	return trackResponse{
		ID:          t.ID,
		OrderID:     t.OrderID,
		Title:       t.Title,
		Style:       t.Style,
		AudioURL:    t.AudioURL,
		DurationSec: t.DurationSec,
		CreatedAt:   t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
