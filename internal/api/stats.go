package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/game"
	"github.com/ashureev/deepfake-defender/internal/identity"
	"github.com/go-chi/chi/v5"
)

const (
	historyLimit       = 20
	scoreboardLimit    = 10
	healthCheckTimeout = 5 * time.Second
)

// StatsHandler serves history, scoreboard and client configuration.
type StatsHandler struct {
	*Handler
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(base *Handler) *StatsHandler {
	return &StatsHandler{Handler: base}
}

// RegisterRoutes registers stats and config routes.
func (h *StatsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/api/stats", h.GetStats)
	r.Get("/api/config", h.GetConfig)
}

// GetStats returns the player's recent games and the global scoreboard.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	if playerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	games, err := h.repo.ListGames(r.Context(), playerID, historyLimit)
	if err != nil {
		slog.Error("Failed to list games", "error", err, "user_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	scores, err := h.repo.TopScores(r.Context(), scoreboardLimit)
	if err != nil {
		slog.Error("Failed to load scoreboard", "error", err)
		Error(w, http.StatusInternalServerError, "failed to load scoreboard")
		return
	}

	if games == nil {
		games = []*domain.GameRecord{}
	}
	if scores == nil {
		scores = []domain.ScoreEntry{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"username":   identity.UsernameFromContext(r.Context()),
		"games":      games,
		"scoreboard": scores,
	})
}

// GetConfig returns the game configuration for the frontend.
func (h *StatsHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	pool := make(map[string]int, len(domain.Labels))
	for label, n := range h.images.Counts() {
		if n == game.Unlimited {
			n = -1
		}
		pool[label.String()] = n
	}

	warnings := h.images.Warnings()
	if warnings == nil {
		warnings = []string{}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"image_source":  h.cfg.ImageSource,
		"draw_policy":   h.cfg.DrawPolicy.String(),
		"guess_policy":  h.games.GuessPolicy().String(),
		"display_width": h.cfg.DisplayWidth,
		"pool":          pool,
		"warnings":      warnings,
	})
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	*Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(base *Handler) *HealthHandler {
	return &HealthHandler{Handler: base}
}

// Health returns the health status of the API and its dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := map[string]interface{}{
		"status":   "healthy",
		"checks":   checks,
		"sessions": h.sessions.Len(),
	}
	statusCode := http.StatusOK

	if err := h.repo.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status["status"] = "degraded"
		checks["database"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	JSON(w, statusCode, status)
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
