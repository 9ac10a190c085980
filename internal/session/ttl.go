package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/ashureev/deepfake-defender/internal/store"
)

const ttlWorkerInterval = time.Minute

// StartTTLWorker runs a background goroutine that periodically evicts idle
// sessions, records their unfinished games and prunes old game history.
func StartTTLWorker(ctx context.Context, repo store.Repository, reg *Registry, ttl, retention time.Duration) {
	ticker := time.NewTicker(ttlWorkerInterval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", ttlWorkerInterval, "ttl", ttl, "retention", retention)

		for {
			select {
			case <-ticker.C:
				sweep(ctx, repo, reg, ttl, retention)
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweep(ctx context.Context, repo store.Repository, reg *Registry, ttl, retention time.Duration) {
	expired := reg.Evict(ttl)
	if len(expired) > 0 {
		slog.Info("TTL worker evicting idle sessions", "count", len(expired))
		recordAll(ctx, repo, expired)
	}

	if retention <= 0 {
		return
	}
	if deleted, err := repo.CleanupOldGames(ctx, retention); err != nil {
		slog.Error("TTL worker failed to cleanup old games", "error", err)
	} else if deleted > 0 {
		slog.Info("TTL worker cleaned up old games", "count", deleted)
	}
}

// Flush records the games of every live session. Used on shutdown.
func Flush(ctx context.Context, repo store.Repository, reg *Registry) {
	recordAll(ctx, repo, reg.Drain())
}

func recordAll(ctx context.Context, repo store.Repository, entries []*Entry) {
	for _, e := range entries {
		e.Lock()
		rec := e.TakeRecord()
		e.Unlock()
		if rec == nil {
			continue
		}

		if err := repo.SaveGame(ctx, rec); err != nil {
			if ctx.Err() != nil {
				slog.Debug("TTL worker: context canceled while recording game, history may be incomplete",
					"user_id", rec.PlayerID,
					"error", err)
				return
			}
			slog.Warn("Failed to record game",
				"error", err,
				"user_id", rec.PlayerID,
				"session_id", rec.SessionID)
			continue
		}
		slog.Info("Game recorded",
			"user_id", rec.PlayerID,
			"session_id", rec.SessionID,
			"rounds", rec.RoundsCompleted,
			"completed", rec.Completed)
	}
}
