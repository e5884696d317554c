package model

import "time"

// SensorWindow is one acquisition window for a single machine. Vibration and
// acoustic run at the full sampling rate; temperature may be sampled slower.
type SensorWindow struct {
	MachineID    string    `json:"machine_id"`
	Timestamp    time.Time `json:"timestamp"`
	SamplingRate float64   `json:"sampling_rate"`
	Vibration    []float64 `json:"vibration"`
	Temperature  []float64 `json:"temperature,omitempty"`
	Acoustic     []float64 `json:"acoustic,omitempty"`
	Source       string    `json:"source,omitempty"`
}

// Band is a frequency interval in Hz, inclusive low, exclusive high.
type Band struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

type BandEnergy struct {
	Band   Band    `json:"band"`
	Energy float64 `json:"energy"`
}

// FeatureVector is the fixed-shape output of the feature extractor.
// Every field is finite; a NaN or Inf here is an extractor bug.
type FeatureVector struct {
	RMS               float64      `json:"rms"`
	Kurtosis          float64      `json:"kurtosis"`
	Skewness          float64      `json:"skewness"`
	DominantFrequency float64      `json:"dominant_frequency"`
	BandEnergies      []BandEnergy `json:"band_energies"`
	EnvelopePeak      float64      `json:"envelope_peak"`
	TemperatureMean   float64      `json:"temperature_mean"`
	TemperatureSlope  float64      `json:"temperature_drift_slope"`
	AcousticRMS       float64      `json:"acoustic_rms"`
}

// RUL is a remaining-useful-life estimate in seconds. Known is false when no
// failure is forecastable (stable or improving trend, or too little history).
type RUL struct {
	Known   bool    `json:"known"`
	Seconds float64 `json:"seconds"`
}

func UnknownRUL() RUL {
	return RUL{}
}

func KnownRUL(seconds float64) RUL {
	if seconds < 0 {
		seconds = 0
	}
	return RUL{Known: true, Seconds: seconds}
}

// HealthRecord is one scored monitoring cycle. Records are immutable once
// appended to the memory bank.
type HealthRecord struct {
	MachineID    string        `json:"machine_id"`
	Timestamp    time.Time     `json:"timestamp"`
	HealthIndex  float64       `json:"health_index"`
	AnomalyScore float64       `json:"anomaly_score"`
	RULEstimate  RUL           `json:"rul_estimate"`
	Features     FeatureVector `json:"features"`
}

// MaintenanceAlert is the decision output of one cycle that crossed a
// threshold. CorrelationKey is derivable without the ticket sink; TicketID is
// whatever the sink returned and is treated as opaque.
type MaintenanceAlert struct {
	MachineID      string    `json:"machine_id"`
	TriggeredAt    time.Time `json:"triggered_at"`
	AnomalyScore   float64   `json:"anomaly_score"`
	RULEstimate    RUL       `json:"rul_estimate"`
	HealthIndex    float64   `json:"health_index"`
	Reasons        []string  `json:"reasons"`
	CorrelationKey string    `json:"correlation_key"`
	TicketID       string    `json:"ticket_id,omitempty"`
}

// Fault records a failed monitoring cycle for one machine.
type Fault struct {
	MachineID string    `json:"machine_id"`
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage"`
	TraceID   string    `json:"trace_id"`
	Err       string    `json:"error"`
}
