package acquire

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"healthwatch/internal/config"
	"healthwatch/internal/ingest"
	"healthwatch/internal/model"
)

// Simulator produces synthetic sensor windows for the configured machines:
// a 50 Hz base harmonic plus a 250 Hz component and Gaussian noise. Machines
// listed as degrading grow their high-frequency amplitude, noise floor and
// temperature drift a little every cycle.
type Simulator struct {
	cfg    config.AcquireConfig
	logger *slog.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	cycles map[string]int
}

const (
	baseFrequency = 50.0
	highFrequency = 250.0
	baseAmplitude = 0.8
	highAmplitude = 0.2
	noiseLevel    = 0.1
	baseTemp      = 55.0
)

func NewSimulator(cfg config.AcquireConfig, logger *slog.Logger) *Simulator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Simulator{
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
		cycles: make(map[string]int),
	}
}

func (s *Simulator) degrading(machineID string) bool {
	for _, id := range s.cfg.Degrading {
		if id == machineID {
			return true
		}
	}
	return false
}

// AcquireWindow builds the next window for one machine.
func (s *Simulator) AcquireWindow(machineID string) model.SensorWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles[machineID]++
	cycle := s.cycles[machineID]

	factor := 1.0
	tempDrift := 0.0
	if s.degrading(machineID) {
		factor = 1.0 + 0.002*float64(cycle)
		tempDrift = 0.01 * float64(cycle)
	}

	n := s.cfg.WindowSize
	vibration := make([]float64, n)
	acoustic := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / s.cfg.SampleRate
		v := baseAmplitude*math.Sin(2*math.Pi*baseFrequency*t) +
			highAmplitude*factor*math.Sin(2*math.Pi*highFrequency*t) +
			noiseLevel*factor*s.rng.NormFloat64()
		vibration[i] = v
		acoustic[i] = v + 0.05*s.rng.NormFloat64()
	}

	// Temperature is sampled far slower than vibration.
	temps := make([]float64, 8)
	for i := range temps {
		temps[i] = baseTemp + tempDrift + 0.5*s.rng.NormFloat64()
	}

	return model.SensorWindow{
		MachineID:    machineID,
		Timestamp:    time.Now().UTC(),
		SamplingRate: s.cfg.SampleRate,
		Vibration:    vibration,
		Temperature:  temps,
		Acoustic:     acoustic,
		Source:       "simulator",
	}
}

// Start emits one window per machine every interval until ctx is done.
func (s *Simulator) Start(ctx context.Context, machines []string, out chan<- model.SensorWindow) {
	if !s.cfg.Enabled {
		if s.logger != nil {
			s.logger.Info("acquisition simulator disabled")
		}
		return
	}
	if s.logger != nil {
		s.logger.Info("acquisition simulator enabled",
			"machines", len(machines),
			"sample_rate", s.cfg.SampleRate,
			"window_size", s.cfg.WindowSize,
			"interval", s.cfg.Interval,
		)
	}
	go func() {
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, machineID := range machines {
					ingest.SendNonBlocking(ctx, out, s.AcquireWindow(machineID), s.logger)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
