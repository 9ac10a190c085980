// Package session tracks the live game of every player and browser tab.
package session

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/game"
	"github.com/coder/websocket"
)

// Key identifies one tab of one device.
type Key struct {
	PlayerID  string
	SessionID string
}

// Entry holds the game of one session. Access to the state is serialised by
// Lock/Unlock.
type Entry struct {
	mu       sync.Mutex
	key      Key
	state    *game.State
	lastSeen atomic.Int64
	recorded time.Time // StartedAt of the last persisted game
}

// Lock acquires exclusive access to the game state and marks the session as
// seen.
func (e *Entry) Lock() *game.State {
	e.mu.Lock()
	e.touch()
	return e.state
}

// Unlock releases the state acquired by Lock.
func (e *Entry) Unlock() {
	e.mu.Unlock()
}

// LastSeen returns the time of the last Lock.
func (e *Entry) LastSeen() time.Time {
	return time.Unix(0, e.lastSeen.Load())
}

func (e *Entry) touch() {
	e.lastSeen.Store(time.Now().UnixNano())
}

// TakeRecord returns the summary of the current game unless it was already
// taken. Games without a single guess are never recorded. The caller must
// hold the lock.
func (e *Entry) TakeRecord() *domain.GameRecord {
	st := e.state
	if !e.recorded.IsZero() && e.recorded.Equal(st.StartedAt) {
		return nil
	}
	if st.RoundsCompleted == 0 && st.WrongGuesses == 0 {
		return nil
	}
	completed := st.IsGameComplete()

	e.recorded = st.StartedAt
	return &domain.GameRecord{
		PlayerID:        e.key.PlayerID,
		SessionID:       e.key.SessionID,
		RoundsCompleted: st.RoundsCompleted,
		CorrectCount:    st.CorrectCount,
		WrongGuesses:    st.WrongGuesses,
		Completed:       completed,
		StartedAt:       st.StartedAt,
		FinishedAt:      time.Now(),
	}
}

// Registry maps sessions to their games and live WebSocket connections.
type Registry struct {
	mu      sync.RWMutex
	entries map[Key]*Entry
	conns   map[Key]*websocket.Conn
	newDeck func() game.Source
}

// NewRegistry creates a registry. newDeck builds the deck of each new game.
func NewRegistry(newDeck func() game.Source) *Registry {
	return &Registry{
		entries: make(map[Key]*Entry),
		conns:   make(map[Key]*websocket.Conn),
		newDeck: newDeck,
	}
}

// NewDeck returns a fresh deck for a reset game.
func (r *Registry) NewDeck() game.Source {
	return r.newDeck()
}

// Acquire returns the entry for a session, creating a new game on first use.
// The entry is marked as seen before the registry lock is released, so a
// concurrent Evict cannot remove it between Acquire and Lock.
func (r *Registry) Acquire(playerID, sessionID string) *Entry {
	key := Key{PlayerID: playerID, SessionID: sessionID}

	r.mu.RLock()
	e, ok := r.entries[key]
	if ok {
		e.touch()
	}
	r.mu.RUnlock()
	if ok {
		return e
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[key]; ok {
		e.touch()
		return e
	}
	e = &Entry{key: key, state: game.NewState(r.newDeck())}
	e.touch()
	r.entries[key] = e
	slog.Info("Game session created", "user_id", playerID, "session_id", sessionID)
	return e
}

// Touch marks an existing session as seen without creating one. It reports
// whether the session was found.
func (r *Registry) Touch(playerID, sessionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[Key{PlayerID: playerID, SessionID: sessionID}]
	if ok {
		e.touch()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Evict removes every session idle for longer than ttl, closes its WebSocket
// and returns the removed entries.
func (r *Registry) Evict(ttl time.Duration) []*Entry {
	cutoff := time.Now().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*Entry
	for key, e := range r.entries {
		if !e.LastSeen().Before(cutoff) {
			continue
		}
		delete(r.entries, key)
		if conn, ok := r.conns[key]; ok {
			_ = conn.Close(websocket.StatusNormalClosure, "session expired")
			delete(r.conns, key)
		}
		evicted = append(evicted, e)
	}
	return evicted
}

// Drain removes and returns every session, closing all connections.
func (r *Registry) Drain() []*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	for key, conn := range r.conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(r.conns, key)
	}
	r.entries = make(map[Key]*Entry)
	return entries
}

// Register records conn as the live connection of a session, closing the
// connection it replaces.
func (r *Registry) Register(playerID, sessionID string, conn *websocket.Conn) {
	key := Key{PlayerID: playerID, SessionID: sessionID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.conns[key]; ok && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}
	r.conns[key] = conn
	slog.Info("Game channel registered", "user_id", playerID, "session_id", sessionID)
}

// Unregister removes conn if it is still the session's live connection.
func (r *Registry) Unregister(playerID, sessionID string, conn *websocket.Conn) {
	key := Key{PlayerID: playerID, SessionID: sessionID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.conns[key]; ok && current == conn {
		delete(r.conns, key)
		slog.Info("Game channel unregistered", "user_id", playerID, "session_id", sessionID)
	}
}
