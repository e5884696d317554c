package ingest

import (
	"context"
	"testing"
	"time"

	"healthwatch/internal/model"
)

func TestSendNonBlockingDropsWhenFull(t *testing.T) {
	out := make(chan model.SensorWindow, 1)
	w := model.SensorWindow{MachineID: "EQP-001"}
	if !SendNonBlocking(context.Background(), out, w, nil) {
		t.Fatalf("send into empty channel failed")
	}
	if SendNonBlocking(context.Background(), out, w, nil) {
		t.Fatalf("send into full channel did not drop")
	}
	if got := <-out; got.MachineID != "EQP-001" {
		t.Fatalf("unexpected window %+v", got)
	}
}

func TestBackoffSleepCompletes(t *testing.T) {
	start := time.Now()
	if !BackoffSleep(context.Background(), 10*time.Millisecond) {
		t.Fatalf("backoff reported cancellation without one")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Fatalf("backoff returned before the delay elapsed")
	}
}

func TestBackoffSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if BackoffSleep(ctx, time.Minute) {
		t.Fatalf("backoff ignored cancelled context")
	}
}
