package domain

import (
	"time"
)

// Player is an anonymous per-device player.
type Player struct {
	PlayerID   string    `json:"player_id"`
	Username   string    `json:"username"`
	LastSeenAt time.Time `json:"last_seen_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IdleFor returns how long the player has been inactive at now.
func (p *Player) IdleFor(now time.Time) time.Duration {
	idle := now.Sub(p.LastSeenAt)
	if idle < 0 {
		return 0
	}
	return idle
}

// GameRecord is the persisted summary of one finished or abandoned game.
type GameRecord struct {
	ID              int64     `json:"id"`
	PlayerID        string    `json:"player_id"`
	SessionID       string    `json:"session_id"`
	RoundsCompleted int       `json:"rounds_completed"`
	CorrectCount    int       `json:"correct_count"`
	WrongGuesses    int       `json:"wrong_guesses"`
	Completed       bool      `json:"completed"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// Accuracy returns the share of guesses that were correct, in [0, 1].
func (g *GameRecord) Accuracy() float64 {
	total := g.CorrectCount + g.WrongGuesses
	if total == 0 {
		return 0
	}
	return float64(g.CorrectCount) / float64(total)
}

// ScoreEntry is one row of the global scoreboard.
type ScoreEntry struct {
	Username     string  `json:"username"`
	CorrectCount int     `json:"correct_count"`
	Games        int     `json:"games"`
	Accuracy     float64 `json:"accuracy"`
}
