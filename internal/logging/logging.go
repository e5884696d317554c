package logging

import (
	"log/slog"
	"os"
	"strings"
)

func NewLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

// ForMachine returns a child logger scoped to one machine's pipeline.
func ForMachine(logger *slog.Logger, machineID string) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With("machine_id", machineID)
}
