package ingest

import (
	"context"
	"log/slog"
	"time"

	"healthwatch/internal/model"
)

// SendNonBlocking drops the window rather than stall a slow pipeline; a lost
// window only delays the next trend point for that machine.
func SendNonBlocking(ctx context.Context, out chan<- model.SensorWindow, window model.SensorWindow, logger *slog.Logger) bool {
	select {
	case out <- window:
		return true
	case <-ctx.Done():
		return false
	default:
		if logger != nil {
			logger.Warn("window channel full, dropping window",
				"machine_id", window.MachineID, "timestamp", window.Timestamp)
		}
		return false
	}
}

func BackoffSleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 200 * time.Millisecond
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
