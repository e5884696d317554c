package signal

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"healthwatch/internal/config"
	"healthwatch/internal/model"
)

func testSignalConfig() config.SignalConfig {
	return config.DefaultConfig().Signal
}

func sine(freq, sampleRate float64, n int, amp float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return out
}

func addInPlace(dst, src []float64) {
	for i := range dst {
		dst[i] += src[i]
	}
}

func testWindow(vibration []float64, sampleRate float64) model.SensorWindow {
	return model.SensorWindow{
		MachineID:    "EQP-001",
		Timestamp:    time.Now().UTC(),
		SamplingRate: sampleRate,
		Vibration:    vibration,
		Temperature:  []float64{55.0, 55.1, 54.9, 55.2},
		Acoustic:     vibration,
	}
}

func TestDominantFrequencyOfNoisySine(t *testing.T) {
	const (
		sampleRate = 2000.0
		freq       = 130.0
		n          = 1024
	)
	rng := rand.New(rand.NewSource(1))
	vib := sine(freq, sampleRate, n, 1.0)
	for i := range vib {
		vib[i] += 0.1 * rng.NormFloat64()
	}
	ex := NewExtractor(testSignalConfig())
	fv, err := ex.Extract(testWindow(vib, sampleRate))
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	binWidth := sampleRate / float64(nextPow2(n))
	if math.Abs(fv.DominantFrequency-freq) > binWidth {
		t.Fatalf("dominant frequency %.2f not within one bin (%.2f) of %.2f", fv.DominantFrequency, binWidth, freq)
	}
}

func TestBandpassAttenuatesOutOfBandTone(t *testing.T) {
	const (
		sampleRate = 2000.0
		n          = 2048
		inBand     = 200.0
		outOfBand  = 2.0
	)
	vib := sine(inBand, sampleRate, n, 1.0)
	addInPlace(vib, sine(outOfBand, sampleRate, n, 1.0))

	filter := NewBandpass(10, 800, sampleRate, 4)
	filtered := filter.Apply(vib)
	if len(filtered) != len(vib) {
		t.Fatalf("filter changed sample count: %d != %d", len(filtered), len(vib))
	}

	spec := NewSpectrum(filtered, sampleRate)
	energyAt := func(freq float64) float64 {
		bin := int(freq/spec.BinWidth + 0.5)
		var sum float64
		for i := bin - 2; i <= bin+2; i++ {
			if i >= 0 && i < len(spec.Magnitudes) {
				sum += spec.Magnitudes[i] * spec.Magnitudes[i]
			}
		}
		return sum
	}
	in := energyAt(inBand)
	out := energyAt(outOfBand)
	if out*100 > in {
		t.Fatalf("out-of-band tone not attenuated: in=%.4g out=%.4g", in, out)
	}
}

func TestMomentsZeroVariance(t *testing.T) {
	flat := make([]float64, 64)
	for i := range flat {
		flat[i] = 3.5
	}
	_, variance, kurt, skew := moments(flat)
	if variance != 0 || kurt != 0 || skew != 0 {
		t.Fatalf("expected zero variance/kurtosis/skewness, got %v %v %v", variance, kurt, skew)
	}
}

func TestMomentsGaussianKurtosis(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	x := make([]float64, 100000)
	for i := range x {
		x[i] = rng.NormFloat64()
	}
	_, _, kurt, skew := moments(x)
	if math.Abs(kurt-3.0) > 0.2 {
		t.Fatalf("gaussian kurtosis %.3f not near 3", kurt)
	}
	if math.Abs(skew) > 0.1 {
		t.Fatalf("gaussian skewness %.3f not near 0", skew)
	}
}

func TestExtractInvalidWindow(t *testing.T) {
	ex := NewExtractor(testSignalConfig())
	cases := []struct {
		name   string
		window model.SensorWindow
	}{
		{"empty vibration", model.SensorWindow{MachineID: "m", SamplingRate: 2000}},
		{"zero sampling rate", model.SensorWindow{MachineID: "m", Vibration: []float64{1, 2}}},
		{"nan sample", model.SensorWindow{MachineID: "m", SamplingRate: 2000, Vibration: []float64{1, math.NaN()}}},
		{"inf temperature", model.SensorWindow{
			MachineID: "m", SamplingRate: 2000,
			Vibration:   []float64{1, 2, 3},
			Temperature: []float64{math.Inf(1)},
		}},
	}
	for _, tc := range cases {
		if _, err := ex.Extract(tc.window); !errors.Is(err, ErrInvalidWindow) {
			t.Fatalf("%s: expected ErrInvalidWindow, got %v", tc.name, err)
		}
	}
}

func TestEnvelopePeakTracksAmplitude(t *testing.T) {
	const (
		sampleRate = 2000.0
		n          = 1024
	)
	vib := sine(150, sampleRate, n, 2.0)
	env := Envelope(vib)
	if len(env) != n {
		t.Fatalf("envelope length %d != %d", len(env), n)
	}
	var peak float64
	for _, v := range env[n/4 : 3*n/4] {
		if v > peak {
			peak = v
		}
	}
	if math.Abs(peak-2.0) > 0.2 {
		t.Fatalf("envelope peak %.3f not near amplitude 2.0", peak)
	}
}

func TestTemperatureSlope(t *testing.T) {
	temps := []float64{50, 51, 52, 53, 54}
	if got := indexSlope(temps); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("slope %.6f != 1.0", got)
	}
	if got := indexSlope([]float64{55}); got != 0 {
		t.Fatalf("single sample slope %.6f != 0", got)
	}
}

func TestBandEnergiesOrderedAndConcentrated(t *testing.T) {
	const sampleRate = 2000.0
	vib := sine(200, sampleRate, 2048, 1.0)
	spec := NewSpectrum(vib, sampleRate)
	bands := []model.Band{{Low: 0, High: 100}, {Low: 100, High: 300}, {Low: 300, High: 1000}}
	energies := spec.BandEnergies(bands)
	if len(energies) != len(bands) {
		t.Fatalf("band energy count %d != %d", len(energies), len(bands))
	}
	if energies[1].Energy <= energies[0].Energy || energies[1].Energy <= energies[2].Energy {
		t.Fatalf("energy not concentrated in 100-300 band: %+v", energies)
	}
}
