package health

import (
	"math"
	"testing"
	"time"

	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

func healthyFeatures() model.FeatureVector {
	return model.FeatureVector{
		RMS:      0.3,
		Kurtosis: 2.9,
		BandEnergies: []model.BandEnergy{
			{Band: model.Band{Low: 0, High: 100}, Energy: 10},
			{Band: model.Band{Low: 100, High: 300}, Energy: 5},
			{Band: model.Band{Low: 300, High: 600}, Energy: 0.5},
			{Band: model.Band{Low: 600, High: 1000}, Energy: 0.1},
		},
		EnvelopePeak:     0.8,
		TemperatureMean:  55,
		TemperatureSlope: 0.0,
		AcousticRMS:      0.3,
	}
}

func historyOf(indexes ...float64) []model.HealthRecord {
	base := time.Unix(1700000000, 0).UTC()
	out := make([]model.HealthRecord, len(indexes))
	for i, h := range indexes {
		out[i] = model.HealthRecord{
			MachineID:   "EQP-001",
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
			HealthIndex: h,
		}
	}
	return out
}

func TestScoreIsPure(t *testing.T) {
	cfg := *config.DefaultConfig()
	features := healthyFeatures()
	history := historyOf(0.9, 0.89, 0.88, 0.91, 0.9)
	h1, a1 := Score(features, history, cfg)
	h2, a2 := Score(features, history, cfg)
	if h1 != h2 || a1 != a2 {
		t.Fatalf("score not deterministic: (%v,%v) != (%v,%v)", h1, a1, h2, a2)
	}
}

func TestIndexBoundsAndMonotonicity(t *testing.T) {
	cfg := config.DefaultConfig().Health
	base := healthyFeatures()
	h := Index(base, cfg)
	if h <= 0 || h > 1 {
		t.Fatalf("health index %v outside (0,1]", h)
	}

	worse := base
	worse.RMS *= 4
	if Index(worse, cfg) >= h {
		t.Fatalf("raising RMS did not lower health index")
	}

	worse = base
	worse.Kurtosis = 9
	if Index(worse, cfg) >= h {
		t.Fatalf("raising kurtosis did not lower health index")
	}

	worse = base
	worse.BandEnergies[2].Energy = 50
	worse.BandEnergies[3].Energy = 50
	if Index(worse, cfg) >= h {
		t.Fatalf("shifting energy into high bands did not lower health index")
	}

	worse = base
	worse.TemperatureSlope = 0.5
	if Index(worse, cfg) >= h {
		t.Fatalf("temperature drift did not lower health index")
	}
}

func TestAnomalyScoreColdStart(t *testing.T) {
	cfg := *config.DefaultConfig()
	if _, a := Score(healthyFeatures(), nil, cfg); a != 0 {
		t.Fatalf("anomaly score %v with no history, want 0", a)
	}
	if _, a := Score(healthyFeatures(), historyOf(0.9), cfg); a != 0 {
		t.Fatalf("anomaly score %v with one record, want 0", a)
	}
}

func TestAnomalyScoreZeroVariance(t *testing.T) {
	cfg := config.DefaultConfig().Anomaly
	if z := zScore(0.2, historyOf(0.9, 0.9, 0.9, 0.9), cfg); z != 0 {
		t.Fatalf("zero-variance baseline produced z=%v, want 0", z)
	}
}

func TestAnomalyScoreDeviation(t *testing.T) {
	cfg := config.DefaultConfig().Anomaly
	history := historyOf(0.90, 0.91, 0.89, 0.90, 0.91, 0.89)
	if z := zScore(0.5, history, cfg); z < 3 {
		t.Fatalf("large drop scored z=%v, want >= 3", z)
	}
	if z := zScore(0.90, history, cfg); z > 1 {
		t.Fatalf("nominal value scored z=%v, want <= 1", z)
	}
}

func TestAnomalyScoreMinStdFloor(t *testing.T) {
	// An almost flat baseline must not inflate tiny jitter into an anomaly.
	cfg := config.AnomalyConfig{MinStd: 0.01}
	history := historyOf(0.9000, 0.9001, 0.8999, 0.9000)
	if z := zScore(0.9005, history, cfg); z > 1 {
		t.Fatalf("jitter on a flat baseline scored z=%v, want <= 1", z)
	}
}

func TestAnomalyScoreTrailingWindow(t *testing.T) {
	// Old erratic history outside the window must not affect the baseline.
	history := append(historyOf(0.1, 0.9, 0.2, 0.8), historyOf(0.90, 0.91, 0.89, 0.90)...)
	full := zScore(0.5, history, config.AnomalyConfig{MinStd: 0.01})
	windowed := zScore(0.5, history, config.AnomalyConfig{WindowLength: 4, MinStd: 0.01})
	if windowed <= full {
		t.Fatalf("trailing window did not tighten baseline: windowed=%v full=%v", windowed, full)
	}
}

func TestEstimateRULInsufficientHistory(t *testing.T) {
	cfg := config.DefaultConfig().RUL
	if rul := EstimateRUL(nil, cfg); rul.Known {
		t.Fatalf("RUL known with empty history")
	}
	if rul := EstimateRUL(historyOf(0.9), cfg); rul.Known {
		t.Fatalf("RUL known with one record")
	}
}

func TestEstimateRULStableTrend(t *testing.T) {
	cfg := config.DefaultConfig().RUL
	if rul := EstimateRUL(historyOf(0.9, 0.9, 0.9, 0.9), cfg); rul.Known {
		t.Fatalf("flat trend produced known RUL %v", rul)
	}
	if rul := EstimateRUL(historyOf(0.7, 0.8, 0.9), cfg); rul.Known {
		t.Fatalf("improving trend produced known RUL %v", rul)
	}
}

func TestEstimateRULDecreasesAsDegradationGrows(t *testing.T) {
	cfg := config.DefaultConfig().RUL
	indexes := []float64{1.0, 0.95, 0.9, 0.85}
	var prev float64 = math.Inf(1)
	for next := 0.8; next >= 0.4; next -= 0.05 {
		indexes = append(indexes, next)
		rul := EstimateRUL(historyOf(indexes...), cfg)
		if !rul.Known {
			t.Fatalf("linear degradation at %.2f produced unknown RUL", next)
		}
		if rul.Seconds >= prev {
			t.Fatalf("RUL did not decrease: %.1f -> %.1f", prev, rul.Seconds)
		}
		prev = rul.Seconds
	}
}

func TestEstimateRULPastCrossingIsZero(t *testing.T) {
	cfg := config.DefaultConfig().RUL
	rul := EstimateRUL(historyOf(0.5, 0.3, 0.1), cfg)
	if !rul.Known || rul.Seconds != 0 {
		t.Fatalf("history already below threshold: got %+v, want RUL 0", rul)
	}
}

func TestEstimateRULLinearCrossing(t *testing.T) {
	cfg := config.RULConfig{TrendWindow: 10, FailureThreshold: 0.2}
	// Health falls 0.1 per minute from 1.0; threshold 0.2 is reached 6
	// minutes after the 0.8 record, i.e. 4 minutes after the newest (0.6).
	rul := EstimateRUL(historyOf(1.0, 0.9, 0.8, 0.7, 0.6), cfg)
	if !rul.Known {
		t.Fatalf("expected known RUL")
	}
	want := 4 * time.Minute.Seconds()
	if math.Abs(rul.Seconds-want) > 1 {
		t.Fatalf("RUL %.1fs, want %.1fs", rul.Seconds, want)
	}
}
