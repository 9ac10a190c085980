// Package logging configures the process-wide structured logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ashureev/deepfake-defender/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New builds a JSON slog logger writing to out and, when cfg.File is set, to a
// size-rotated log file. The returned closer flushes and closes the file.
func New(cfg config.LogConfig, out io.Writer) (*slog.Logger, io.Closer) {
	if out == nil {
		out = os.Stdout
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			slog.Warn("Failed to create log directory, logging to stdout only", "file", cfg.File, "error", err)
		} else {
			rotating := &lumberjack.Logger{
				Filename:   cfg.File,
				MaxSize:    cfg.MaxSizeMB,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAgeDays,
				Compress:   true,
			}
			out = io.MultiWriter(out, rotating)
			closer = rotating
		}
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.Level,
	}))
	return logger, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
