package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Each connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS players (
		player_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS games (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		player_id TEXT NOT NULL,
		session_id TEXT NOT NULL,
		rounds_completed INTEGER NOT NULL DEFAULT 0,
		correct_count INTEGER NOT NULL DEFAULT 0,
		wrong_guesses INTEGER NOT NULL DEFAULT 0,
		completed INTEGER NOT NULL DEFAULT 0,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_games_player ON games(player_id, finished_at);
	CREATE INDEX IF NOT EXISTS idx_games_finished ON games(finished_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// GetPlayer retrieves a player by ID.
func (s *SQLiteStore) GetPlayer(ctx context.Context, playerID string) (*domain.Player, error) {
	query := `
		SELECT player_id, username, last_seen_at, created_at, updated_at
		FROM players WHERE player_id = ?`

	row := s.db.QueryRowContext(ctx, query, playerID)

	var player domain.Player
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&player.PlayerID, &player.Username, &lastSeen, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan player row: %w", err)
	}

	player.LastSeenAt = time.Unix(lastSeen, 0)
	player.CreatedAt = time.Unix(createdAt, 0)
	player.UpdatedAt = time.Unix(updatedAt, 0)

	return &player, nil
}

// UpsertPlayer creates or updates a player record.
func (s *SQLiteStore) UpsertPlayer(ctx context.Context, player *domain.Player) error {
	query := `
	INSERT INTO players (player_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(player_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		player.PlayerID, player.Username, player.LastSeenAt.Unix(),
		player.CreatedAt.Unix(), player.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a player.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, playerID string, lastSeen time.Time) error {
	query := `UPDATE players SET last_seen_at = ?, updated_at = ? WHERE player_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), playerID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "player_id", playerID)
	}

	return nil
}

// SaveGame stores a game summary.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) SaveGame(ctx context.Context, game *domain.GameRecord) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.saveGameOnce(ctx, game)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("SaveGame failed with SQLITE_BUSY, retrying",
				"player_id", game.PlayerID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		// Non-retryable error or max retries exceeded
		return fmt.Errorf("save game for %s after %d attempts: %w", game.PlayerID, i+1, err)
	}

	return nil
}

func (s *SQLiteStore) saveGameOnce(ctx context.Context, game *domain.GameRecord) error {
	query := `
		INSERT INTO games (
			player_id, session_id, rounds_completed, correct_count,
			wrong_guesses, completed, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := s.db.ExecContext(ctx, query,
		game.PlayerID, game.SessionID, game.RoundsCompleted, game.CorrectCount,
		game.WrongGuesses, game.Completed, game.StartedAt.Unix(), game.FinishedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert game: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	game.ID = id
	return nil
}

// ListGames returns a player's most recent games, newest first.
func (s *SQLiteStore) ListGames(ctx context.Context, playerID string, limit int) ([]*domain.GameRecord, error) {
	query := `
		SELECT id, player_id, session_id, rounds_completed, correct_count,
		       wrong_guesses, completed, started_at, finished_at
		FROM games WHERE player_id = ?
		ORDER BY finished_at DESC, id DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close games rows", "error", closeErr)
		}
	}()

	var games []*domain.GameRecord
	for rows.Next() {
		var g domain.GameRecord
		var startedAt, finishedAt int64

		if err := rows.Scan(
			&g.ID, &g.PlayerID, &g.SessionID, &g.RoundsCompleted, &g.CorrectCount,
			&g.WrongGuesses, &g.Completed, &startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan game row: %w", err)
		}

		g.StartedAt = time.Unix(startedAt, 0)
		g.FinishedAt = time.Unix(finishedAt, 0)
		games = append(games, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate games: %w", err)
	}

	return games, nil
}

// TopScores returns the players with the most correct guesses across all games.
func (s *SQLiteStore) TopScores(ctx context.Context, limit int) ([]domain.ScoreEntry, error) {
	query := `
		SELECT p.username,
		       SUM(g.correct_count) AS correct,
		       COUNT(*) AS games,
		       SUM(g.wrong_guesses) AS wrong
		FROM games g JOIN players p ON p.player_id = g.player_id
		GROUP BY g.player_id
		HAVING correct > 0
		ORDER BY correct DESC, wrong ASC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query top scores: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close score rows", "error", closeErr)
		}
	}()

	var scores []domain.ScoreEntry
	for rows.Next() {
		var e domain.ScoreEntry
		var wrong int
		if err := rows.Scan(&e.Username, &e.CorrectCount, &e.Games, &wrong); err != nil {
			return nil, fmt.Errorf("scan score row: %w", err)
		}
		if total := e.CorrectCount + wrong; total > 0 {
			e.Accuracy = float64(e.CorrectCount) / float64(total)
		}
		scores = append(scores, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top scores: %w", err)
	}

	return scores, nil
}

// CleanupOldGames removes game records finished before now-retention.
func (s *SQLiteStore) CleanupOldGames(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE finished_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup old games: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
