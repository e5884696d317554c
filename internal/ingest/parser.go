package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

// windowPayload is the wire shape gateways send. Timestamp may be RFC3339,
// unix seconds or unix milliseconds.
type windowPayload struct {
	MachineID    string          `json:"machine_id"`
	Timestamp    json.RawMessage `json:"timestamp"`
	SamplingRate float64         `json:"sampling_rate"`
	Vibration    []float64       `json:"vibration"`
	Temperature  []float64       `json:"temperature"`
	Acoustic     []float64       `json:"acoustic"`
}

// ParseWindow decodes one JSON window payload.
func ParseWindow(data []byte) (model.SensorWindow, error) {
	var p windowPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return model.SensorWindow{}, fmt.Errorf("decode window: %w", err)
	}
	ts, err := parseTimestamp(p.Timestamp)
	if err != nil {
		return model.SensorWindow{}, err
	}
	return model.SensorWindow{
		MachineID:    strings.TrimSpace(p.MachineID),
		Timestamp:    ts,
		SamplingRate: p.SamplingRate,
		Vibration:    p.Vibration,
		Temperature:  p.Temperature,
		Acoustic:     p.Acoustic,
	}, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 {
		return time.Time{}, nil
	}
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, nil
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}, err
		}
		t, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", str)
		}
		return t.UTC(), nil
	}
	num, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unsupported timestamp value: %q", s)
	}
	// Heuristic: values this large are unix milliseconds.
	if num > 1e12 {
		return time.Unix(0, int64(num)*int64(time.Millisecond)).UTC(), nil
	}
	sec := int64(num)
	nsec := int64((num - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC(), nil
}

// Normalize applies ingest defaults: machine id fallback, clock-skew clamp,
// and a minimum of shape sanity so obviously empty payloads are rejected
// before they reach the pipeline.
func Normalize(window model.SensorWindow, cfg *config.Config) (model.SensorWindow, error) {
	if len(window.Vibration) == 0 {
		return model.SensorWindow{}, errors.New("window has no vibration samples")
	}
	if window.MachineID == "" {
		window.MachineID = cfg.Ingest.DefaultMachineID
	}
	now := time.Now().UTC()
	window.Timestamp = clampTimestamp(window.Timestamp, now, cfg.Ingest.MaxClockSkew, cfg.Ingest.MaxFutureSkew)
	return window, nil
}

func clampTimestamp(ts, now time.Time, maxPast, maxFuture time.Duration) time.Time {
	if ts.IsZero() {
		return now
	}
	if maxPast > 0 && now.Sub(ts) > maxPast {
		return now
	}
	if maxFuture > 0 && ts.Sub(now) > maxFuture {
		return now
	}
	return ts
}
