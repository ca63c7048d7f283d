package logger

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	envLocal    = "local"
	envDev      = "dev"
	envProd     = "prod"
	logFileName = "promoreg.log"
)

// SetupLogger builds the process logger: text to stdout for local runs, text to
// <dir>/promoreg.log otherwise.
func SetupLogger(env, dir string) (*slog.Logger, error) {
	if env == envLocal {
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		), nil
	}

	var level slog.Level
	switch env {
	case envDev:
		level = slog.LevelDebug
	case envProd:
		level = slog.LevelInfo
	default:
		return nil, fmt.Errorf("invalid environment: %s", env)
	}

	logPath := filepath.Join(dir, logFileName)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("error opening log file: %w", err)
	}
	return slog.New(
		slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: level}),
	), nil
}

// ParseLevel maps a config level name to a slog level, defaulting to warn.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelWarn
	}
	return level
}
