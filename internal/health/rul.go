package health

import (
	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

// EstimateRUL fits a least-squares line to health index versus time over the
// trailing trend window and extrapolates when it crosses the failure
// threshold. A flat or improving trend, or fewer than 2 records, yields an
// unknown RUL. A crossing already in the past yields 0.
//
// This is a deliberate simplification: a linear degradation trend, not a
// physics-based or learned curve.
func EstimateRUL(history []model.HealthRecord, cfg config.RULConfig) model.RUL {
	if cfg.TrendWindow > 0 && len(history) > cfg.TrendWindow {
		history = history[len(history)-cfg.TrendWindow:]
	}
	if len(history) < 2 {
		return model.UnknownRUL()
	}

	// Time origin at the newest record keeps the regression well conditioned.
	last := history[len(history)-1].Timestamp
	var sumT, sumH, sumTH, sumTT float64
	for _, r := range history {
		t := r.Timestamp.Sub(last).Seconds()
		sumT += t
		sumH += r.HealthIndex
		sumTH += t * r.HealthIndex
		sumTT += t * t
	}
	n := float64(len(history))
	denom := n*sumTT - sumT*sumT
	if denom == 0 {
		return model.UnknownRUL()
	}
	slope := (n*sumTH - sumT*sumH) / denom
	if slope >= 0 {
		return model.UnknownRUL()
	}
	intercept := (sumH - slope*sumT) / n

	// intercept is the fitted health at the newest timestamp; seconds until
	// the line reaches the failure threshold.
	seconds := (cfg.FailureThreshold - intercept) / slope
	return model.KnownRUL(seconds)
}
