// Package api provides HTTP handlers for the Deepfake Defender API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/deepfake-defender/internal/config"
	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/game"
	"github.com/ashureev/deepfake-defender/internal/imagesource"
	"github.com/ashureev/deepfake-defender/internal/session"
	"github.com/ashureev/deepfake-defender/internal/store"
)

const recordTimeout = 5 * time.Second

// Handler provides common handler utilities.
type Handler struct {
	repo     store.Repository
	games    *game.Manager
	sessions *session.Registry
	images   imagesource.Provider
	cfg      *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(repo store.Repository, games *game.Manager, sessions *session.Registry, images imagesource.Provider, cfg *config.Config) *Handler {
	return &Handler{
		repo:     repo,
		games:    games,
		sessions: sessions,
		images:   images,
		cfg:      cfg,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// record persists a game summary. It outlives the request context so a
// client hanging up does not lose the result.
func (h *Handler) record(rec *domain.GameRecord) {
	if rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	if err := h.repo.SaveGame(ctx, rec); err != nil {
		slog.Error("Failed to record game",
			"error", err,
			"user_id", rec.PlayerID,
			"session_id", rec.SessionID)
		return
	}
	slog.Info("Game recorded",
		"user_id", rec.PlayerID,
		"session_id", rec.SessionID,
		"rounds", rec.RoundsCompleted,
		"completed", rec.Completed)
}
