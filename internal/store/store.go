// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/deepfake-defender/internal/domain"
)

// Repository defines the interface for persisting players and game history.
type Repository interface {
	// GetPlayer retrieves a player by ID. Returns nil, nil when not found.
	GetPlayer(ctx context.Context, playerID string) (*domain.Player, error)

	// UpsertPlayer creates or updates a player record.
	UpsertPlayer(ctx context.Context, player *domain.Player) error

	// UpdateLastSeen updates the last_seen_at timestamp for a player.
	UpdateLastSeen(ctx context.Context, playerID string, lastSeen time.Time) error

	// SaveGame stores the summary of a finished or abandoned game.
	SaveGame(ctx context.Context, game *domain.GameRecord) error

	// ListGames returns a player's most recent games, newest first.
	ListGames(ctx context.Context, playerID string, limit int) ([]*domain.GameRecord, error)

	// TopScores returns the players with the most correct guesses.
	TopScores(ctx context.Context, limit int) ([]domain.ScoreEntry, error)

	// CleanupOldGames removes game records finished before now-retention.
	CleanupOldGames(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
