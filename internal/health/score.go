package health

import (
	"math"

	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

// Score reduces a feature vector to a health index in [0,1] (1 = healthy) and
// an anomaly score relative to the trailing history window. Pure function:
// it reads history but never appends, so the caller decides when a record
// enters its own baseline (it never should).
func Score(features model.FeatureVector, history []model.HealthRecord, cfg config.Config) (healthIndex, anomalyScore float64) {
	healthIndex = Index(features, cfg.Health)
	anomalyScore = zScore(healthIndex, history, cfg.Anomaly)
	return healthIndex, anomalyScore
}

// Index maps fault-indicating features to [0,1] via 1/(1+penalty). Every
// term is clamped non-negative, so increasing any fault feature can only
// lower the index.
func Index(features model.FeatureVector, cfg config.HealthConfig) float64 {
	w := cfg.Weights
	penalty := w.RMS*ratio(features.RMS, cfg.RMSNorm) +
		w.Kurtosis*ratio(features.Kurtosis-cfg.KurtosisNorm, 1) +
		w.BandRatio*highBandRatio(features.BandEnergies, cfg.HighBandCutoff) +
		w.Envelope*ratio(features.EnvelopePeak, cfg.EnvelopeNorm) +
		w.TempSlope*ratio(features.TemperatureSlope, cfg.TempSlopeNorm)
	return 1.0 / (1.0 + penalty)
}

// ratio normalizes a feature against its nominal scale, clamped at zero so
// better-than-nominal values contribute no penalty.
func ratio(value, norm float64) float64 {
	if norm <= 0 {
		norm = 1
	}
	r := value / norm
	if r < 0 {
		return 0
	}
	return r
}

// highBandRatio is the share of spectral energy above the cutoff frequency.
// Bearing and gear faults push energy into the upper bands.
func highBandRatio(energies []model.BandEnergy, cutoff float64) float64 {
	var total, high float64
	for _, be := range energies {
		total += be.Energy
		if be.Band.Low >= cutoff {
			high += be.Energy
		}
	}
	if total <= 0 {
		return 0
	}
	return high / total
}

// zScore is the absolute z-score of value against the trailing window of
// prior health indexes. Fewer than 2 prior records or zero variance yields 0,
// so cold starts never trigger alerts. MinStd floors the baseline std so a
// near-constant baseline does not inflate ordinary jitter into an anomaly.
func zScore(value float64, history []model.HealthRecord, cfg config.AnomalyConfig) float64 {
	if cfg.WindowLength > 0 && len(history) > cfg.WindowLength {
		history = history[len(history)-cfg.WindowLength:]
	}
	if len(history) < 2 {
		return 0
	}
	var sum float64
	for _, r := range history {
		sum += r.HealthIndex
	}
	mean := sum / float64(len(history))
	var m2 float64
	for _, r := range history {
		d := r.HealthIndex - mean
		m2 += d * d
	}
	if m2 == 0 {
		return 0
	}
	std := math.Sqrt(m2 / float64(len(history)))
	if std < cfg.MinStd {
		std = cfg.MinStd
	}
	return math.Abs(value-mean) / std
}
