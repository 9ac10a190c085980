// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/deepfake-defender/internal/game"
)

// Image source kinds.
const (
	SourceFolder = "folder"
	SourceRemote = "remote"
)

// Config holds all application configuration.
type Config struct {
	Port          string
	FrontendURL   string
	DBPath        string
	ImageSource   string // "folder" or "remote"
	ImageDir      string
	TipsFile      string // empty = built-in tips
	DrawPolicy    game.DrawPolicy
	GuessPolicy   game.GuessPolicy
	DisplayWidth  int
	RandomSeed    uint64 // 0 = random
	SessionTTL    time.Duration
	GameRetention time.Duration
	Remote        RemoteConfig
	Log           LogConfig
}

// RemoteConfig controls the remote image source.
type RemoteConfig struct {
	AIURL     string
	RealURL   string
	Retries   int
	BaseDelay time.Duration
	Timeout   time.Duration
	CacheSize int
}

// LogConfig controls structured logging and file rotation.
type LogConfig struct {
	Level      slog.Level
	File       string // empty = stdout only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	drawPolicy, err := game.ParseDrawPolicy(getEnv("DRAW_POLICY", "no_repeat"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	guessPolicy, err := game.ParseGuessPolicy(getEnv("GUESS_POLICY", "retry_until_correct"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		DBPath:        getEnv("DB_PATH", "./data/defender.db"),
		ImageSource:   strings.ToLower(getEnv("IMAGE_SOURCE", SourceFolder)),
		ImageDir:      getEnv("IMAGE_DIR", "./images"),
		TipsFile:      getEnv("TIPS_FILE", ""),
		DrawPolicy:    drawPolicy,
		GuessPolicy:   guessPolicy,
		DisplayWidth:  getEnvInt("DISPLAY_WIDTH", 400),
		RandomSeed:    uint64(getEnvInt("RANDOM_SEED", 0)),
		SessionTTL:    getEnvDuration("SESSION_TTL", 60*time.Minute),
		GameRetention: getEnvDuration("GAME_RETENTION", 30*24*time.Hour),
		Remote: RemoteConfig{
			AIURL:     getEnv("REMOTE_AI_URL", ""),
			RealURL:   getEnv("REMOTE_REAL_URL", ""),
			Retries:   getEnvInt("REMOTE_RETRIES", 5),
			BaseDelay: getEnvDuration("REMOTE_RETRY_DELAY", 200*time.Millisecond),
			Timeout:   getEnvDuration("REMOTE_TIMEOUT", 10*time.Second),
			CacheSize: getEnvInt("REMOTE_CACHE_SIZE", 512),
		},
		Log: LogConfig{
			Level:      level,
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 10),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 3),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	switch c.ImageSource {
	case SourceFolder:
		if c.ImageDir == "" {
			return fmt.Errorf("IMAGE_DIR cannot be empty when IMAGE_SOURCE=folder")
		}
	case SourceRemote:
		if c.Remote.Retries <= 0 {
			return fmt.Errorf("REMOTE_RETRIES must be > 0")
		}
	default:
		return fmt.Errorf("IMAGE_SOURCE must be %q or %q, got %q", SourceFolder, SourceRemote, c.ImageSource)
	}
	if c.DisplayWidth < 0 {
		return fmt.Errorf("DISPLAY_WIDTH must be >= 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}
