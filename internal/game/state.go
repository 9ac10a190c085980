// Package game implements the spot-the-fake round state machine.
package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ashureev/deepfake-defender/internal/domain"
)

var (
	// ErrDeckExhausted signals that no further round can be formed. It is a
	// normal terminal condition, not a failure.
	ErrDeckExhausted = errors.New("deck exhausted")
	// ErrNotAvailable wraps image source failures. State is left unchanged.
	ErrNotAvailable = domain.ErrImageNotAvailable
	// ErrEmptyPool is returned when a fresh game cannot deal its first round
	// because a label has no images at all. It wraps ErrNotAvailable.
	ErrEmptyPool = fmt.Errorf("%w: image pool empty", ErrNotAvailable)
	// ErrNoActiveRound is returned when guessing without a round.
	ErrNoActiveRound = errors.New("no active round")
	// ErrAlreadyAnswered is returned when guessing on an answered round.
	ErrAlreadyAnswered = errors.New("round already answered")
	// ErrRoundInProgress is returned when a new challenge is requested
	// before the current round has been answered.
	ErrRoundInProgress = errors.New("current round not answered yet")
	// ErrInvalidSide is returned for sides other than left or right.
	ErrInvalidSide = errors.New("invalid side")
)

// Source supplies labelled images to a game.
type Source interface {
	// Draw returns one image of label or an error wrapping ErrNotAvailable.
	Draw(ctx context.Context, label domain.Label) (domain.ImageRef, error)
	// Available reports how many images of label can still be drawn.
	Available(label domain.Label) int
}

// putbacker is implemented by sources that can take back an unused draw.
type putbacker interface {
	Putback(ref domain.ImageRef)
}

// Status is the phase of a game.
type Status int

const (
	// NotStarted means no round has been dealt yet.
	NotStarted Status = iota
	// Active means the current round awaits a correct guess.
	Active
	// Answered means the current round is resolved and a new challenge may
	// be requested.
	Answered
	// Completed means no further round can be formed.
	Completed
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Answered:
		return "answered"
	case Completed:
		return "completed"
	default:
		return "not_started"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of a guess.
type Outcome int

const (
	// Incorrect means the guessed side held the real image.
	Incorrect Outcome = iota
	// Correct means the guessed side held the AI image.
	Correct
)

func (o Outcome) String() string {
	if o == Correct {
		return "correct"
	}
	return "incorrect"
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Round is one two-image challenge. Left and Right always carry opposite labels.
type Round struct {
	ID       string
	Left     domain.ImageRef
	Right    domain.ImageRef
	Answered bool
	Attempts int
}

// CorrectSide returns the side holding the AI image.
func (r *Round) CorrectSide() domain.Side {
	if r.Left.Label == domain.LabelAI {
		return domain.SideLeft
	}
	return domain.SideRight
}

// ImageAt returns the image shown on side.
func (r *Round) ImageAt(side domain.Side) domain.ImageRef {
	if side == domain.SideLeft {
		return r.Left
	}
	return r.Right
}

// State is the game state of one session. It is not safe for concurrent use;
// callers serialise access per session.
type State struct {
	deck    Source
	current *Round

	RoundsCompleted int
	CorrectCount    int
	WrongGuesses    int
	StartedAt       time.Time
}

// NewState creates a game over deck.
func NewState(deck Source) *State {
	return &State{deck: deck, StartedAt: time.Now()}
}

// Current returns the current round, or nil.
func (s *State) Current() *Round {
	return s.current
}

// Remaining returns the number of drawable images of label.
func (s *State) Remaining(label domain.Label) int {
	return s.deck.Available(label)
}

// Exhausted reports whether either sub-deck is empty.
func (s *State) Exhausted() bool {
	for _, l := range domain.Labels {
		if s.deck.Available(l) == 0 {
			return true
		}
	}
	return false
}

// IsGameComplete reports whether no further round can be formed and no
// round is awaiting an answer. A game that never dealt a round is not
// complete; an empty pool surfaces as ErrEmptyPool instead.
func (s *State) IsGameComplete() bool {
	if s.current != nil && !s.current.Answered {
		return false
	}
	if s.fresh() {
		return false
	}
	return s.Exhausted()
}

// fresh reports whether the game has not dealt a round yet.
func (s *State) fresh() bool {
	return s.current == nil && s.RoundsCompleted == 0
}

// Status derives the current phase.
func (s *State) Status() Status {
	switch {
	case s.IsGameComplete():
		return Completed
	case s.current == nil:
		return NotStarted
	case s.current.Answered:
		return Answered
	default:
		return Active
	}
}
