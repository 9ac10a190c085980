// Package identity gives every browser an anonymous player ID and every tab
// its own game session.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/store"
)

const (
	AnonCookieName        = "dfd_player_id"
	SessionHeaderName     = "X-Game-Session-ID"
	SessionQueryParam     = "session_id"
	DefaultSessionIDValue = "default"

	anonPrefix         = "anon_"
	anonIDBytes        = 16
	anonCookieMaxAge   = 30 * 24 * time.Hour
	lastSeenResolution = time.Minute
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Identity is who is playing and in which tab.
type Identity struct {
	PlayerID  string
	Username  string
	SessionID string
}

type ctxKey struct{}

// FromContext returns the identity attached by Middleware or WithIdentity.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// PlayerIDFromContext returns the player ID, or "" without an identity.
func PlayerIDFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.PlayerID
}

// UsernameFromContext returns the display name shown on the scoreboard.
func UsernameFromContext(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.Username
}

// SessionIDFromContext returns the tab session, DefaultSessionIDValue when
// the client sent none.
func SessionIDFromContext(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id.SessionID
	}
	return DefaultSessionIDValue
}

// WithIdentity returns ctx acting as playerID in sessionID.
func WithIdentity(ctx context.Context, playerID, sessionID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Identity{
		PlayerID:  playerID,
		Username:  usernameFor(playerID),
		SessionID: sanitizeSessionID(sessionID),
	})
}

func newAnonID() (string, error) {
	buf := make([]byte, anonIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate player id: %w", err)
	}
	return anonPrefix + hex.EncodeToString(buf), nil
}

// isValidAnonID accepts only IDs this package could have issued.
func isValidAnonID(id string) bool {
	raw, ok := strings.CutPrefix(id, anonPrefix)
	if !ok || raw != strings.ToLower(raw) {
		return false
	}
	b, err := hex.DecodeString(raw)
	return err == nil && len(b) == anonIDBytes
}

func sanitizeSessionID(id string) string {
	id = strings.TrimSpace(id)
	if !sessionIDPattern.MatchString(id) {
		return DefaultSessionIDValue
	}
	return id
}

// usernameFor derives a stable scoreboard name from the last six hex digits.
func usernameFor(playerID string) string {
	if !isValidAnonID(playerID) {
		return "player"
	}
	return "player-" + playerID[len(playerID)-6:]
}

func sessionIDFromRequest(r *http.Request) string {
	sid := r.Header.Get(SessionHeaderName)
	if sid == "" {
		// Browsers cannot set headers on a WebSocket handshake.
		sid = r.URL.Query().Get(SessionQueryParam)
	}
	return sanitizeSessionID(sid)
}

// players registers anonymous players and keeps their cookie fresh.
type players struct {
	repo   store.Repository
	secure bool
}

// playerID returns the cookie's player ID, minting one when the cookie is
// missing or was not issued by us. The cookie is re-sent on every request so
// players who keep playing never lose their history.
func (p players) playerID(w http.ResponseWriter, r *http.Request) (string, error) {
	var id string
	if c, err := r.Cookie(AnonCookieName); err == nil && isValidAnonID(c.Value) {
		id = c.Value
	} else if id, err = newAnonID(); err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AnonCookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(anonCookieMaxAge.Seconds()),
		Expires:  time.Now().Add(anonCookieMaxAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   p.secure,
	})
	return id, nil
}

// ensure creates the player record on first sight and otherwise bumps its
// last-seen time at most once per lastSeenResolution.
func (p players) ensure(ctx context.Context, playerID string) error {
	player, err := p.repo.GetPlayer(ctx, playerID)
	if err != nil {
		return err
	}
	now := time.Now()
	if player != nil {
		if player.IdleFor(now) < lastSeenResolution {
			return nil
		}
		return p.repo.UpdateLastSeen(ctx, playerID, now)
	}

	return p.repo.UpsertPlayer(ctx, &domain.Player{
		PlayerID:   playerID,
		Username:   usernameFor(playerID),
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
}

// Middleware attaches the player and tab identity to every request. Cookies
// are marked Secure outside development.
func Middleware(repo store.Repository, isDev bool) func(http.Handler) http.Handler {
	p := players{repo: repo, secure: !isDev}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			playerID, err := p.playerID(w, r)
			if err != nil {
				slog.Error("Failed to issue player id", "error", err)
				http.Error(w, `{"error":"failed to establish anonymous identity"}`, http.StatusInternalServerError)
				return
			}

			if err := p.ensure(r.Context(), playerID); err != nil {
				slog.Error("Failed to register player", "user_id", playerID, "error", err)
				http.Error(w, `{"error":"failed to initialize player"}`, http.StatusInternalServerError)
				return
			}

			ctx := WithIdentity(r.Context(), playerID, sessionIDFromRequest(r))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IPFromRequest returns the client IP without the port, for connection logs.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
