package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/game"
	"github.com/ashureev/deepfake-defender/internal/identity"
	"github.com/go-chi/chi/v5"
)

// Player-facing messages.
const (
	msgCorrect       = "Correct! That one was AI-generated."
	msgTryAgain      = "Not quite, try again."
	msgComplete      = "Game complete! You've seen every image in the deck."
	msgUnavailable   = "image unavailable, try New Challenge"
	msgEmptyPool     = "no images to play with, check the image folders and press Reset Game"
	msgInternalError = "internal error"
)

type action string

const (
	actionState action = "state"
	actionStart action = "start"
	actionGuess action = "guess"
	actionNew   action = "new"
	actionReset action = "reset"
)

// gameResponse is the body of every game endpoint and WebSocket reply.
type gameResponse struct {
	game.View
	Outcome  *game.Outcome `json:"outcome,omitempty"`
	Message  string        `json:"message,omitempty"`
	Error    string        `json:"error,omitempty"`
	Warnings []string      `json:"warnings,omitempty"`
}

type guessRequest struct {
	Side string `json:"side"`
}

// GameHandler handles the round endpoints.
type GameHandler struct {
	*Handler
}

// NewGameHandler creates a new game handler.
func NewGameHandler(base *Handler) *GameHandler {
	return &GameHandler{Handler: base}
}

// RegisterRoutes registers game routes.
func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/game", func(r chi.Router) {
		r.Get("/", h.GetGame)
		r.Post("/guess", h.Guess)
		r.Post("/new", h.NewChallenge)
		r.Post("/reset", h.Reset)
	})
}

// GetGame returns the session's game, dealing the first round if needed.
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, actionState, domain.SideLeft)
}

// Guess submits the player's pick for the current round.
func (h *GameHandler) Guess(w http.ResponseWriter, r *http.Request) {
	var req guessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	side, err := domain.ParseSide(req.Side)
	if err != nil {
		Error(w, http.StatusConflict, game.ErrInvalidSide.Error())
		return
	}
	h.respond(w, r, actionGuess, side)
}

// NewChallenge replaces an answered round with a new one.
func (h *GameHandler) NewChallenge(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, actionNew, domain.SideLeft)
}

// Reset starts the session over with a fresh deck.
func (h *GameHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, actionReset, domain.SideLeft)
}

func (h *GameHandler) respond(w http.ResponseWriter, r *http.Request, act action, side domain.Side) {
	playerID := identity.PlayerIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	if playerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp, status := h.play(r.Context(), playerID, sessionID, act, side)
	JSON(w, status, resp)
}

// play applies act to the session's game and returns the resulting view with
// its HTTP status. Invalid actions leave the game untouched.
func (h *Handler) play(ctx context.Context, playerID, sessionID string, act action, side domain.Side) (gameResponse, int) {
	entry := h.sessions.Acquire(playerID, sessionID)
	st := entry.Lock()

	var (
		resp      gameResponse
		err       error
		abandoned *domain.GameRecord
	)
	switch act {
	case actionState, actionStart:
		_, err = h.games.StartOrContinue(ctx, st)
	case actionGuess:
		var out game.Outcome
		if out, err = h.games.SubmitGuess(st, side); err == nil {
			resp.Outcome = &out
			resp.Message = outcomeMessage(out, st.Current())
		}
	case actionNew:
		_, err = h.games.RequestNewChallenge(ctx, st)
	case actionReset:
		abandoned = entry.TakeRecord()
		h.games.Reset(st, h.sessions.NewDeck())
		_, err = h.games.StartOrContinue(ctx, st)
	default:
		err = errUnknownAction
	}

	resp.View = h.games.Snapshot(st)
	var finished *domain.GameRecord
	if resp.Complete {
		finished = entry.TakeRecord()
	}
	entry.Unlock()

	h.record(abandoned)
	h.record(finished)

	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, game.ErrDeckExhausted):
		// Terminal, reported through resp.Complete.
	case errors.Is(err, game.ErrEmptyPool):
		slog.Warn("Image pool empty", "user_id", playerID, "session_id", sessionID, "action", string(act))
		resp.Error = msgEmptyPool
		resp.Warnings = h.images.Warnings()
		status = http.StatusServiceUnavailable
	case errors.Is(err, game.ErrNotAvailable):
		slog.Warn("Image source unavailable", "user_id", playerID, "session_id", sessionID, "action", string(act), "error", err)
		resp.Error = msgUnavailable
		status = http.StatusServiceUnavailable
	case isInvalidCall(err):
		resp.Error = err.Error()
		status = http.StatusConflict
	default:
		slog.Error("Game action failed", "user_id", playerID, "session_id", sessionID, "action", string(act), "error", err)
		resp.Error = msgInternalError
		status = http.StatusInternalServerError
	}

	if resp.Complete && resp.Message == "" {
		resp.Message = msgComplete
	}
	return resp, status
}

var errUnknownAction = errors.New("unknown action")

func isInvalidCall(err error) bool {
	return errors.Is(err, game.ErrNoActiveRound) ||
		errors.Is(err, game.ErrAlreadyAnswered) ||
		errors.Is(err, game.ErrRoundInProgress) ||
		errors.Is(err, game.ErrInvalidSide) ||
		errors.Is(err, errUnknownAction)
}

func outcomeMessage(out game.Outcome, r *game.Round) string {
	if out == game.Correct {
		return msgCorrect
	}
	if r != nil && r.Answered {
		return "Not quite, the AI-generated image was on the " + r.CorrectSide().Title() + "."
	}
	return msgTryAgain
}
