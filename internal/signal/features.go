package signal

import (
	"errors"
	"fmt"
	"math"

	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

// ErrInvalidWindow marks a malformed sensor window. It is the only error the
// extractor produces; the orchestrator records it as a per-machine fault.
var ErrInvalidWindow = errors.New("invalid sensor window")

// Extractor turns raw sensor windows into feature vectors. It holds only
// configuration and is safe for concurrent use.
type Extractor struct {
	cfg config.SignalConfig
}

func NewExtractor(cfg config.SignalConfig) *Extractor {
	return &Extractor{cfg: cfg}
}

// Extract computes the full feature vector for one window. Statistical
// indicators use the raw vibration; spectral and envelope features use the
// bandpass-filtered vibration. Pure given the window. Moments are population
// moments (kurtosis 3 = Gaussian), and degrade to 0 on zero variance.
func (e *Extractor) Extract(window model.SensorWindow) (model.FeatureVector, error) {
	if err := validate(window); err != nil {
		return model.FeatureVector{}, err
	}

	filter := NewBandpass(e.cfg.BandpassLow, e.cfg.BandpassHigh, window.SamplingRate, e.cfg.FilterOrder)
	filtered := filter.Apply(window.Vibration)

	env := Envelope(filtered)
	envPeak := 0.0
	for _, v := range env {
		if v > envPeak {
			envPeak = v
		}
	}

	spec := NewSpectrum(filtered, window.SamplingRate)

	_, _, kurt, skew := moments(window.Vibration)

	fv := model.FeatureVector{
		RMS:               rms(window.Vibration),
		Kurtosis:          kurt,
		Skewness:          skew,
		DominantFrequency: spec.DominantFrequency(),
		BandEnergies:      spec.BandEnergies(e.cfg.Bands),
		EnvelopePeak:      envPeak,
		TemperatureMean:   mean(window.Temperature),
		TemperatureSlope:  indexSlope(window.Temperature),
		AcousticRMS:       rms(window.Acoustic),
	}
	if !finiteVector(fv) {
		return model.FeatureVector{}, fmt.Errorf("extractor produced non-finite feature for %s", window.MachineID)
	}
	return fv, nil
}

func validate(window model.SensorWindow) error {
	if len(window.Vibration) == 0 {
		return fmt.Errorf("%w: empty vibration sequence", ErrInvalidWindow)
	}
	if window.SamplingRate <= 0 {
		return fmt.Errorf("%w: sampling rate %.3f", ErrInvalidWindow, window.SamplingRate)
	}
	for name, seq := range map[string][]float64{
		"vibration":   window.Vibration,
		"temperature": window.Temperature,
		"acoustic":    window.Acoustic,
	} {
		for _, v := range seq {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: non-finite sample in %s", ErrInvalidWindow, name)
			}
		}
	}
	return nil
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum / float64(len(x))
}

// moments returns mean, variance, kurtosis and skewness using population
// central moments. Kurtosis and skewness are 0 when variance is 0.
func moments(x []float64) (m, variance, kurtosis, skewness float64) {
	n := float64(len(x))
	if n == 0 {
		return 0, 0, 0, 0
	}
	m = mean(x)
	var m2, m3, m4 float64
	for _, v := range x {
		d := v - m
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	m2 /= n
	m3 /= n
	m4 /= n
	variance = m2
	if m2 <= 0 {
		return m, 0, 0, 0
	}
	skewness = m3 / math.Pow(m2, 1.5)
	kurtosis = m4 / (m2 * m2)
	return m, variance, kurtosis, skewness
}

// indexSlope is the least-squares slope of x against its sample index.
func indexSlope(x []float64) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}
	var sumI, sumX, sumIX, sumII float64
	for i, v := range x {
		fi := float64(i)
		sumI += fi
		sumX += v
		sumIX += fi * v
		sumII += fi * fi
	}
	fn := float64(n)
	denom := fn*sumII - sumI*sumI
	if denom == 0 {
		return 0
	}
	return (fn*sumIX - sumI*sumX) / denom
}

func finiteVector(fv model.FeatureVector) bool {
	values := []float64{
		fv.RMS, fv.Kurtosis, fv.Skewness, fv.DominantFrequency,
		fv.EnvelopePeak, fv.TemperatureMean, fv.TemperatureSlope, fv.AcousticRMS,
	}
	for _, be := range fv.BandEnergies {
		values = append(values, be.Energy)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
