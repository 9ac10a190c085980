package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/identity"
	"github.com/coder/websocket"
)

const liveWriteTimeout = 5 * time.Second

// LiveHandler serves the game over a WebSocket so a tab can play without a
// request per click.
type LiveHandler struct {
	*Handler
	allowedOrigin string
	isDev         bool
}

// NewLiveHandler creates a new WebSocket game handler.
func NewLiveHandler(base *Handler) *LiveHandler {
	return &LiveHandler{
		Handler:       base,
		allowedOrigin: base.cfg.FrontendURL,
		isDev:         base.cfg.IsDevelopment(),
	}
}

// liveMessage is a client request on the game channel.
type liveMessage struct {
	Type string `json:"type"`
	Side string `json:"side,omitempty"`
}

// liveReply wraps a game response with the request type and HTTP-equivalent
// status code.
type liveReply struct {
	Type string `json:"type"`
	Code int    `json:"code"`
	gameResponse
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	slog.Info("WebSocket connection request", "user_id", playerID, "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if playerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", playerID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", playerID)
		}
	}()

	h.sessions.Register(playerID, sessionID, ws)
	defer h.sessions.Unregister(playerID, sessionID, ws)

	ctx := r.Context()
	if err := h.reply(ctx, ws, playerID, sessionID, actionState, domain.SideLeft); err != nil {
		slog.Debug("Failed to send initial state", "error", err, "user_id", playerID)
		return
	}

	h.readLoop(ctx, ws, playerID, sessionID)
	slog.Info("Game channel closed", "user_id", playerID, "session_id", sessionID)
}

func (h *LiveHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *LiveHandler) readLoop(ctx context.Context, ws *websocket.Conn, playerID, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", playerID)
			} else if ctx.Err() == nil {
				slog.Warn("WebSocket read error", "error", err, "user_id", playerID)
			}
			return
		}

		var msg liveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if err := h.writeJSON(ctx, ws, map[string]string{"type": "error", "error": "invalid message"}); err != nil {
				return
			}
			continue
		}

		switch act := action(msg.Type); act {
		case "ping":
			h.sessions.Touch(playerID, sessionID)
			err = h.writeJSON(ctx, ws, map[string]string{"type": "pong"})
		case actionGuess:
			side, perr := domain.ParseSide(msg.Side)
			if perr != nil {
				err = h.writeJSON(ctx, ws, liveReply{
					Type:         msg.Type,
					Code:         http.StatusConflict,
					gameResponse: gameResponse{Error: "invalid side"},
				})
				break
			}
			err = h.reply(ctx, ws, playerID, sessionID, act, side)
		case actionState, actionStart, actionNew, actionReset:
			err = h.reply(ctx, ws, playerID, sessionID, act, domain.SideLeft)
		default:
			err = h.writeJSON(ctx, ws, map[string]string{"type": "error", "error": "unknown message type"})
		}
		if err != nil {
			slog.Debug("WebSocket write error", "error", err, "user_id", playerID)
			return
		}

		go h.touchPlayer(playerID)
	}
}

func (h *LiveHandler) reply(ctx context.Context, ws *websocket.Conn, playerID, sessionID string, act action, side domain.Side) error {
	resp, code := h.play(ctx, playerID, sessionID, act, side)
	return h.writeJSON(ctx, ws, liveReply{Type: string(act), Code: code, gameResponse: resp})
}

func (h *LiveHandler) touchPlayer(playerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.repo.UpdateLastSeen(ctx, playerID, time.Now()); err != nil {
		slog.Warn("Failed to update last seen", "error", err, "user_id", playerID)
	}
}

func (h *LiveHandler) writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
