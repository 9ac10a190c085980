package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/deepfake-defender/internal/domain"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func seedPlayer(t *testing.T, repo Repository, id, name string) {
	t.Helper()
	now := time.Now()
	if err := repo.UpsertPlayer(context.Background(), &domain.Player{
		PlayerID:   id,
		Username:   name,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		t.Fatalf("UpsertPlayer failed: %v", err)
	}
}

func TestPlayerRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	got, err := repo.GetPlayer(ctx, "anon_missing")
	if err != nil || got != nil {
		t.Fatalf("expected nil, nil for missing player, got %v, %v", got, err)
	}

	seedPlayer(t, repo, "anon_1", "anon-1")
	later := time.Now().Add(time.Hour)
	if err := repo.UpdateLastSeen(ctx, "anon_1", later); err != nil {
		t.Fatalf("UpdateLastSeen failed: %v", err)
	}

	got, err = repo.GetPlayer(ctx, "anon_1")
	if err != nil {
		t.Fatalf("GetPlayer failed: %v", err)
	}
	if got == nil || got.Username != "anon-1" {
		t.Fatalf("unexpected player %+v", got)
	}
	if got.LastSeenAt.Unix() != later.Unix() {
		t.Fatalf("expected last seen %v, got %v", later.Unix(), got.LastSeenAt.Unix())
	}
}

func TestGamesAndScores(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	seedPlayer(t, repo, "anon_a", "alice")
	seedPlayer(t, repo, "anon_b", "bob")

	start := time.Now().Add(-10 * time.Minute)
	games := []*domain.GameRecord{
		{PlayerID: "anon_a", SessionID: "tab-1", RoundsCompleted: 3, CorrectCount: 3, Completed: true, StartedAt: start, FinishedAt: start.Add(time.Minute)},
		{PlayerID: "anon_a", SessionID: "tab-2", RoundsCompleted: 2, CorrectCount: 2, WrongGuesses: 2, StartedAt: start, FinishedAt: start.Add(2 * time.Minute)},
		{PlayerID: "anon_b", SessionID: "tab-1", RoundsCompleted: 1, CorrectCount: 1, WrongGuesses: 4, StartedAt: start, FinishedAt: start.Add(3 * time.Minute)},
	}
	for _, g := range games {
		if err := repo.SaveGame(ctx, g); err != nil {
			t.Fatalf("SaveGame failed: %v", err)
		}
		if g.ID == 0 {
			t.Fatal("expected SaveGame to assign an id")
		}
	}

	list, err := repo.ListGames(ctx, "anon_a", 10)
	if err != nil {
		t.Fatalf("ListGames failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 games, got %d", len(list))
	}
	if list[0].SessionID != "tab-2" || list[1].SessionID != "tab-1" {
		t.Fatalf("expected newest first, got %s then %s", list[0].SessionID, list[1].SessionID)
	}
	if !list[1].Completed || list[0].Completed {
		t.Fatal("completed flag did not round-trip")
	}

	scores, err := repo.TopScores(ctx, 10)
	if err != nil {
		t.Fatalf("TopScores failed: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 score rows, got %d", len(scores))
	}
	if scores[0].Username != "alice" || scores[0].CorrectCount != 5 || scores[0].Games != 2 {
		t.Fatalf("unexpected leader %+v", scores[0])
	}
	if scores[0].Accuracy < 0.71 || scores[0].Accuracy > 0.72 {
		t.Fatalf("expected accuracy 5/7, got %f", scores[0].Accuracy)
	}
}

func TestCleanupOldGames(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	seedPlayer(t, repo, "anon_a", "alice")

	old := time.Now().Add(-48 * time.Hour)
	if err := repo.SaveGame(ctx, &domain.GameRecord{PlayerID: "anon_a", SessionID: "s", StartedAt: old, FinishedAt: old}); err != nil {
		t.Fatal(err)
	}
	if err := repo.SaveGame(ctx, &domain.GameRecord{PlayerID: "anon_a", SessionID: "s", StartedAt: time.Now(), FinishedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	deleted, err := repo.CleanupOldGames(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupOldGames failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted game, got %d", deleted)
	}
}
