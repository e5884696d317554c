package ingest

import (
	"testing"
	"time"

	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

func TestParseWindowRFC3339(t *testing.T) {
	data := []byte(`{
		"machine_id": "EQP-001",
		"timestamp": "2026-08-27T10:00:00Z",
		"sampling_rate": 2000,
		"vibration": [0.1, 0.2, -0.1],
		"temperature": [55.0, 55.1],
		"acoustic": [0.05, 0.06, 0.04]
	}`)
	window, err := ParseWindow(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if window.MachineID != "EQP-001" {
		t.Fatalf("machine id %q", window.MachineID)
	}
	want := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	if !window.Timestamp.Equal(want) {
		t.Fatalf("timestamp %v, want %v", window.Timestamp, want)
	}
	if window.SamplingRate != 2000 || len(window.Vibration) != 3 || len(window.Temperature) != 2 {
		t.Fatalf("window fields wrong: %+v", window)
	}
}

func TestParseWindowUnixTimestamps(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"seconds", `1700000000`, time.Unix(1700000000, 0).UTC()},
		{"fractional seconds", `1700000000.5`, time.Unix(1700000000, 500000000).UTC()},
		{"milliseconds", `1700000000000`, time.Unix(1700000000, 0).UTC()},
	}
	for _, tc := range cases {
		data := []byte(`{"machine_id":"m","timestamp":` + tc.raw + `,"sampling_rate":1000,"vibration":[1]}`)
		window, err := ParseWindow(data)
		if err != nil {
			t.Fatalf("%s: parse: %v", tc.name, err)
		}
		if !window.Timestamp.Equal(tc.want) {
			t.Fatalf("%s: timestamp %v, want %v", tc.name, window.Timestamp, tc.want)
		}
	}
}

func TestParseWindowBadPayloads(t *testing.T) {
	for _, raw := range []string{
		`not json`,
		`{"machine_id":"m","timestamp":"yesterday","vibration":[1]}`,
	} {
		if _, err := ParseWindow([]byte(raw)); err == nil {
			t.Fatalf("expected parse error for %q", raw)
		}
	}
}

func TestNormalizeDefaultsAndClamp(t *testing.T) {
	cfg := config.DefaultConfig()
	window := model.SensorWindow{
		SamplingRate: 2000,
		Vibration:    []float64{1, 2},
		Timestamp:    time.Now().Add(-time.Hour),
	}
	got, err := Normalize(window, cfg)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got.MachineID != cfg.Ingest.DefaultMachineID {
		t.Fatalf("machine id %q, want default %q", got.MachineID, cfg.Ingest.DefaultMachineID)
	}
	if time.Since(got.Timestamp) > time.Minute {
		t.Fatalf("stale timestamp not clamped: %v", got.Timestamp)
	}

	if _, err := Normalize(model.SensorWindow{MachineID: "m"}, cfg); err == nil {
		t.Fatalf("expected error for window without vibration")
	}
}

func TestDedupeCache(t *testing.T) {
	cache := NewDedupeCache()
	now := time.Now().UTC()
	window := model.SensorWindow{MachineID: "EQP-001", Timestamp: now}
	if cache.Seen(window, now, time.Second) {
		t.Fatalf("first sighting flagged as duplicate")
	}
	if !cache.Seen(window, now.Add(100*time.Millisecond), time.Second) {
		t.Fatalf("replay within ttl not flagged")
	}
	other := model.SensorWindow{MachineID: "EQP-002", Timestamp: now}
	if cache.Seen(other, now, time.Second) {
		t.Fatalf("different machine flagged as duplicate")
	}
	if cache.Seen(window, now.Add(5*time.Second), time.Second) {
		t.Fatalf("replay after ttl flagged as duplicate")
	}
}
