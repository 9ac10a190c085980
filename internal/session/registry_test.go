package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/deepfake-defender/internal/domain"
	"github.com/ashureev/deepfake-defender/internal/game"
	"github.com/ashureev/deepfake-defender/internal/store"
	"github.com/coder/websocket"
)

func testManager() *game.Manager {
	return game.NewManager(game.Config{
		Rand:   game.NewRand(7),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func testRegistry(m *game.Manager, n int) *Registry {
	return NewRegistry(func() game.Source {
		var refs []domain.ImageRef
		for i := 0; i < n; i++ {
			refs = append(refs,
				domain.ImageRef{ID: fmt.Sprintf("ai-%d", i), Label: domain.LabelAI},
				domain.ImageRef{ID: fmt.Sprintf("real-%d", i), Label: domain.LabelReal},
			)
		}
		return game.NewDeck(refs, game.NoRepeat, m.Rand())
	})
}

func newRepo(t *testing.T) store.Repository {
	t.Helper()
	repo, err := store.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

// winRound plays one round correctly on the entry.
func winRound(t *testing.T, m *game.Manager, e *Entry) {
	t.Helper()
	st := e.Lock()
	defer e.Unlock()
	r, err := m.StartOrContinue(context.Background(), st)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := m.SubmitGuess(st, r.CorrectSide()); err != nil {
		t.Fatalf("guess: %v", err)
	}
	if _, err := m.RequestNewChallenge(context.Background(), st); err != nil && !errors.Is(err, game.ErrDeckExhausted) {
		t.Fatalf("new challenge: %v", err)
	}
}

func (r *Registry) conn(playerID, sessionID string) *websocket.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[Key{PlayerID: playerID, SessionID: sessionID}]
}

func TestRegistry_AcquireIsPerSession(t *testing.T) {
	m := testManager()
	reg := testRegistry(m, 3)

	a := reg.Acquire("p1", "tab-1")
	if reg.Acquire("p1", "tab-1") != a {
		t.Fatal("expected the same entry for the same session")
	}
	b := reg.Acquire("p1", "tab-2")
	if a == b {
		t.Fatal("tabs must not share a game")
	}
	if reg.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", reg.Len())
	}

	winRound(t, m, a)
	st := b.Lock()
	defer b.Unlock()
	if st.RoundsCompleted != 0 {
		t.Fatal("progress leaked across sessions")
	}
}

func TestRegistry_ConcurrentAcquire(t *testing.T) {
	reg := testRegistry(testManager(), 1)

	var wg sync.WaitGroup
	entries := make([]*Entry, 50)
	for i := range entries {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entries[i] = reg.Acquire("p", "tab")
		}(i)
	}
	wg.Wait()

	for _, e := range entries {
		if e != entries[0] {
			t.Fatal("concurrent Acquire created duplicate entries")
		}
	}
}

func TestRegistry_Evict(t *testing.T) {
	reg := testRegistry(testManager(), 1)
	old := reg.Acquire("p1", "tab-1")
	fresh := reg.Acquire("p2", "tab-1")

	old.lastSeen.Store(time.Now().Add(-2 * time.Hour).UnixNano())

	evicted := reg.Evict(time.Hour)
	if len(evicted) != 1 || evicted[0] != old {
		t.Fatalf("expected only the idle session to be evicted, got %d", len(evicted))
	}
	if reg.Len() != 1 {
		t.Fatalf("expected 1 remaining session, got %d", reg.Len())
	}
	if reg.Acquire("p2", "tab-1") != fresh {
		t.Fatal("active session should survive eviction")
	}
}

func TestRegistry_AcquireMarksSeen(t *testing.T) {
	reg := testRegistry(testManager(), 1)
	e := reg.Acquire("p", "tab")
	e.lastSeen.Store(time.Now().Add(-2 * time.Hour).UnixNano())

	if reg.Acquire("p", "tab") != e {
		t.Fatal("expected the existing entry")
	}
	if evicted := reg.Evict(time.Hour); len(evicted) != 0 {
		t.Fatal("a session handed out by Acquire must not be evicted as idle")
	}
}

func TestRegistry_Touch(t *testing.T) {
	reg := testRegistry(testManager(), 1)
	e := reg.Acquire("p", "tab")
	e.lastSeen.Store(time.Now().Add(-2 * time.Hour).UnixNano())

	if !reg.Touch("p", "tab") {
		t.Fatal("expected Touch to find the session")
	}
	if evicted := reg.Evict(time.Hour); len(evicted) != 0 {
		t.Fatal("touched session must survive eviction")
	}

	if reg.Touch("p", "other-tab") {
		t.Fatal("Touch must not report unknown sessions")
	}
	if reg.Len() != 1 {
		t.Fatalf("Touch must not create sessions, got %d", reg.Len())
	}
}

func TestRegistry_ConnRegistration(t *testing.T) {
	reg := testRegistry(testManager(), 1)
	conn1 := &websocket.Conn{}
	conn2 := &websocket.Conn{}

	reg.Register("p", "tab-1", conn1)
	reg.Register("p", "tab-2", conn2)

	// A stale unregister for another tab leaves the live one alone.
	reg.Unregister("p", "tab-2", conn1)
	if reg.conn("p", "tab-2") != conn2 {
		t.Fatal("stale unregister removed the live connection")
	}

	reg.Unregister("p", "tab-1", conn1)
	if reg.conn("p", "tab-1") != nil {
		t.Fatal("expected connection to be removed")
	}
}

func TestRegistry_ConcurrentConnAccess(t *testing.T) {
	reg := testRegistry(testManager(), 1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			reg.Register("p", "tab-"+strconv.Itoa(i), &websocket.Conn{})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			reg.conn("p", "tab-"+strconv.Itoa(i))
		}
	}()
	wg.Wait()
}

func TestEntry_TakeRecord(t *testing.T) {
	m := testManager()
	reg := testRegistry(m, 2)
	e := reg.Acquire("p", "tab")

	e.Lock()
	if rec := e.TakeRecord(); rec != nil {
		t.Fatal("an untouched game should not be recorded")
	}
	e.Unlock()

	winRound(t, m, e)
	winRound(t, m, e)

	e.Lock()
	rec := e.TakeRecord()
	if rec == nil {
		t.Fatal("expected a record for a finished game")
	}
	if !rec.Completed || rec.CorrectCount != 2 || rec.RoundsCompleted != 2 {
		t.Fatalf("unexpected record %+v", rec)
	}
	if again := e.TakeRecord(); again != nil {
		t.Fatal("a game must only be recorded once")
	}

	st := e.state
	m.Reset(st, reg.NewDeck())
	e.Unlock()

	winRound(t, m, e)
	e.Lock()
	defer e.Unlock()
	rec = e.TakeRecord()
	if rec == nil || rec.Completed || rec.RoundsCompleted != 1 {
		t.Fatalf("expected an unfinished record after reset, got %+v", rec)
	}
}

func TestSweep_RecordsEvictedGames(t *testing.T) {
	m := testManager()
	reg := testRegistry(m, 3)
	repo := newRepo(t)
	ctx := context.Background()

	e := reg.Acquire("p", "tab")
	winRound(t, m, e)
	e.lastSeen.Store(time.Now().Add(-time.Hour).UnixNano())

	// Idle but untouched, so nothing to record.
	idle := reg.Acquire("q", "tab")
	idle.lastSeen.Store(time.Now().Add(-time.Hour).UnixNano())

	sweep(ctx, repo, reg, time.Minute, 24*time.Hour)

	if reg.Len() != 0 {
		t.Fatalf("expected all sessions evicted, got %d", reg.Len())
	}
	games, err := repo.ListGames(ctx, "p", 10)
	if err != nil {
		t.Fatalf("ListGames failed: %v", err)
	}
	if len(games) != 1 || games[0].Completed || games[0].CorrectCount != 1 {
		t.Fatalf("expected one unfinished game, got %+v", games)
	}
	if others, _ := repo.ListGames(ctx, "q", 10); len(others) != 0 {
		t.Fatal("untouched game should not be recorded")
	}
}

func TestFlush_RecordsLiveGames(t *testing.T) {
	m := testManager()
	reg := testRegistry(m, 3)
	repo := newRepo(t)
	ctx := context.Background()

	winRound(t, m, reg.Acquire("p", "tab-1"))
	winRound(t, m, reg.Acquire("p", "tab-2"))

	Flush(ctx, repo, reg)

	games, err := repo.ListGames(ctx, "p", 10)
	if err != nil {
		t.Fatalf("ListGames failed: %v", err)
	}
	if len(games) != 2 {
		t.Fatalf("expected 2 games recorded, got %d", len(games))
	}
	if reg.Len() != 0 {
		t.Fatal("Flush should drain the registry")
	}
}

func TestEntry_TakeRecordSkipsEmptyPool(t *testing.T) {
	m := testManager()
	reg := testRegistry(m, 0)
	e := reg.Acquire("p", "tab")

	st := e.Lock()
	defer e.Unlock()
	for i := 0; i < 2; i++ {
		if _, err := m.StartOrContinue(context.Background(), st); !errors.Is(err, game.ErrEmptyPool) {
			t.Fatalf("expected ErrEmptyPool, got %v", err)
		}
		if rec := e.TakeRecord(); rec != nil {
			t.Fatalf("a game that never dealt a round must not be recorded, got %+v", rec)
		}
		m.Reset(st, reg.NewDeck())
	}
}
