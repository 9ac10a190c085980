package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/ashureev/deepfake-defender/internal/game"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "IMAGE_SOURCE", "DRAW_POLICY", "GUESS_POLICY", "LOG_LEVEL", "SESSION_TTL"} {
		t.Setenv(key, "")
	}
	t.Setenv("PORT", "8080")
	t.Setenv("IMAGE_SOURCE", "folder")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("SESSION_TTL", "1h")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DrawPolicy != game.NoRepeat {
		t.Errorf("expected no_repeat, got %v", cfg.DrawPolicy)
	}
	if cfg.GuessPolicy != game.RetryUntilCorrect {
		t.Errorf("expected retry_until_correct, got %v", cfg.GuessPolicy)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("expected 1h session ttl, got %v", cfg.SessionTTL)
	}
	if cfg.Log.Level != slog.LevelInfo {
		t.Errorf("expected info level, got %v", cfg.Log.Level)
	}
	if !cfg.IsDevelopment() {
		t.Error("empty FRONTEND_URL should be development")
	}
}

func TestLoadPolicies(t *testing.T) {
	t.Setenv("IMAGE_SOURCE", "remote")
	t.Setenv("DRAW_POLICY", "with_replacement")
	t.Setenv("GUESS_POLICY", "advance_on_any")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("REMOTE_RETRIES", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.DrawPolicy != game.WithReplacement || cfg.GuessPolicy != game.AdvanceOnAny {
		t.Fatalf("unexpected policies %v/%v", cfg.DrawPolicy, cfg.GuessPolicy)
	}
	if cfg.Remote.Retries != 3 {
		t.Fatalf("expected 3 retries, got %d", cfg.Remote.Retries)
	}
	if cfg.Log.Level != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.Log.Level)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]map[string]string{
		"unknown source":      {"IMAGE_SOURCE": "ftp"},
		"unknown draw policy": {"IMAGE_SOURCE": "folder", "DRAW_POLICY": "shuffle"},
		"unknown guess":       {"IMAGE_SOURCE": "folder", "GUESS_POLICY": "maybe"},
		"empty port":          {"IMAGE_SOURCE": "folder", "PORT": ""},
		"bad log level":       {"IMAGE_SOURCE": "folder", "LOG_LEVEL": "loud"},
	}

	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
