package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestForMachineScopesRecords(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ForMachine(base, "EQP-001").Info("cycle scored", "health_index", 0.9)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["machine_id"] != "EQP-001" {
		t.Fatalf("machine_id = %v, want EQP-001", entry["machine_id"])
	}
	if entry["msg"] != "cycle scored" {
		t.Fatalf("msg = %v", entry["msg"])
	}
}

func TestForMachineNilLogger(t *testing.T) {
	if got := ForMachine(nil, "EQP-001"); got != nil {
		t.Fatalf("nil logger should stay nil, got %v", got)
	}
}
