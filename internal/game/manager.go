package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/google/uuid"
)

// GuessPolicy controls what a wrong guess does to the round.
type GuessPolicy int

const (
	// RetryUntilCorrect keeps the round active until the AI image is found.
	RetryUntilCorrect GuessPolicy = iota
	// AdvanceOnAny answers the round on any guess and reveals the AI side.
	AdvanceOnAny
)

func (p GuessPolicy) String() string {
	if p == AdvanceOnAny {
		return "advance_on_any"
	}
	return "retry_until_correct"
}

// ParseGuessPolicy parses a configured guess policy name.
func ParseGuessPolicy(s string) (GuessPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "retry_until_correct", "retry":
		return RetryUntilCorrect, nil
	case "advance_on_any", "advance":
		return AdvanceOnAny, nil
	default:
		return RetryUntilCorrect, fmt.Errorf("unknown guess policy %q", s)
	}
}

// Config configures a Manager.
type Config struct {
	GuessPolicy GuessPolicy
	Tips        []string
	Rand        *rand.Rand
	// NewID generates round IDs. Defaults to uuid.NewString.
	NewID  func() string
	Logger *slog.Logger
}

// Manager runs rounds against a caller-owned State. It holds no per-game
// state, so one Manager serves every session.
type Manager struct {
	guess  GuessPolicy
	tips   []string
	rng    *rand.Rand
	newID  func() string
	logger *slog.Logger
}

// NewManager creates a round manager.
func NewManager(cfg Config) *Manager {
	if cfg.Rand == nil {
		cfg.Rand = NewRand(0)
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		guess:  cfg.GuessPolicy,
		tips:   cfg.Tips,
		rng:    cfg.Rand,
		newID:  cfg.NewID,
		logger: cfg.Logger,
	}
}

// Rand returns the shared random source, for decks built for this manager.
func (m *Manager) Rand() *rand.Rand {
	return m.rng
}

// GuessPolicy returns the configured guess policy.
func (m *Manager) GuessPolicy() GuessPolicy {
	return m.guess
}

// StartOrContinue returns the current round, dealing a new one if there is none.
func (m *Manager) StartOrContinue(ctx context.Context, st *State) (*Round, error) {
	if st.current != nil {
		return st.current, nil
	}

	r, err := m.deal(ctx, st)
	if err != nil {
		return nil, err
	}
	st.current = r
	return r, nil
}

// SubmitGuess checks side against the AI image of the active round.
func (m *Manager) SubmitGuess(st *State, side domain.Side) (Outcome, error) {
	r := st.current
	switch {
	case r == nil:
		return Incorrect, ErrNoActiveRound
	case r.Answered:
		return Incorrect, ErrAlreadyAnswered
	case side != domain.SideLeft && side != domain.SideRight:
		return Incorrect, ErrInvalidSide
	}

	r.Attempts++
	if side == r.CorrectSide() {
		r.Answered = true
		st.CorrectCount++
		st.RoundsCompleted++
		m.logger.Debug("Round won", "round_id", r.ID, "attempts", r.Attempts)
		return Correct, nil
	}

	st.WrongGuesses++
	if m.guess == AdvanceOnAny {
		r.Answered = true
		st.RoundsCompleted++
	}
	m.logger.Debug("Wrong guess", "round_id", r.ID, "attempts", r.Attempts, "policy", m.guess.String())
	return Incorrect, nil
}

// RequestNewChallenge replaces an answered round with a fresh one. It is
// rejected while the current round is unanswered. On any error the current
// round is kept.
func (m *Manager) RequestNewChallenge(ctx context.Context, st *State) (*Round, error) {
	if st.current != nil && !st.current.Answered {
		return st.current, ErrRoundInProgress
	}

	r, err := m.deal(ctx, st)
	if err != nil {
		return nil, err
	}
	st.current = r
	return r, nil
}

// IsGameComplete reports whether the game has reached its terminal state.
func (m *Manager) IsGameComplete(st *State) bool {
	return st.IsGameComplete()
}

// Reset replaces the deck and clears all counters.
func (m *Manager) Reset(st *State, deck Source) {
	*st = *NewState(deck)
}

// Tip returns a uniformly chosen tip, or "" if none are configured.
func (m *Manager) Tip() string {
	if len(m.tips) == 0 {
		return ""
	}
	return m.tips[m.rng.IntN(len(m.tips))]
}

// deal draws one AI and one real image and places them. st is not modified
// except through the deck, and the deck is restored if the second draw fails.
func (m *Manager) deal(ctx context.Context, st *State) (*Round, error) {
	if st.Exhausted() {
		if st.fresh() {
			return nil, ErrEmptyPool
		}
		return nil, ErrDeckExhausted
	}

	ai, err := st.deck.Draw(ctx, domain.LabelAI)
	if err != nil {
		return nil, drawError(err)
	}
	genuine, err := st.deck.Draw(ctx, domain.LabelReal)
	if err != nil {
		if pb, ok := st.deck.(putbacker); ok {
			pb.Putback(ai)
		}
		return nil, drawError(err)
	}

	r := &Round{ID: m.newID()}
	if m.rng.IntN(2) == 0 {
		r.Left, r.Right = ai, genuine
	} else {
		r.Left, r.Right = genuine, ai
	}

	m.logger.Debug("Round dealt", "round_id", r.ID, "ai_side", r.CorrectSide().String())
	return r, nil
}

func drawError(err error) error {
	if errors.Is(err, ErrNotAvailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNotAvailable, err)
}
