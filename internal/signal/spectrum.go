package signal

import (
	"math"
	"math/cmplx"

	"healthwatch/internal/model"
)

// fft is an in-place iterative radix-2 transform. len(x) must be a power of 2.
func fft(x []complex128) {
	n := len(x)
	if n <= 1 {
		return
	}
	// bit-reversal permutation
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			x[i], x[j] = x[j], x[i]
		}
	}
	for length := 2; length <= n; length <<= 1 {
		ang := -2 * math.Pi / float64(length)
		wl := cmplx.Rect(1, ang)
		for i := 0; i < n; i += length {
			w := complex(1, 0)
			for k := 0; k < length/2; k++ {
				u := x[i+k]
				v := x[i+k+length/2] * w
				x[i+k] = u + v
				x[i+k+length/2] = u - v
				w *= wl
			}
		}
	}
}

func ifft(x []complex128) {
	for i := range x {
		x[i] = cmplx.Conj(x[i])
	}
	fft(x)
	n := complex(float64(len(x)), 0)
	for i := range x {
		x[i] = cmplx.Conj(x[i]) / n
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Spectrum holds the one-sided magnitude spectrum of a real signal.
type Spectrum struct {
	Magnitudes []float64
	BinWidth   float64
}

// NewSpectrum computes a Hann-windowed magnitude spectrum. The signal is
// zero-padded to the next power of two.
func NewSpectrum(x []float64, sampleRate float64) Spectrum {
	n := len(x)
	if n == 0 {
		return Spectrum{}
	}
	size := nextPow2(n)
	buf := make([]complex128, size)
	for i, v := range x {
		// Hann window
		w := 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
		buf[i] = complex(v*w, 0)
	}
	fft(buf)
	half := size/2 + 1
	mags := make([]float64, half)
	for i := 0; i < half; i++ {
		mags[i] = cmplx.Abs(buf[i])
	}
	return Spectrum{Magnitudes: mags, BinWidth: sampleRate / float64(size)}
}

// DominantFrequency returns the frequency of the strongest bin, excluding DC.
func (s Spectrum) DominantFrequency() float64 {
	if len(s.Magnitudes) < 2 {
		return 0
	}
	best := 1
	for i := 2; i < len(s.Magnitudes); i++ {
		if s.Magnitudes[i] > s.Magnitudes[best] {
			best = i
		}
	}
	return float64(best) * s.BinWidth
}

// BandEnergies sums squared magnitude per configured band, low inclusive,
// high exclusive. Band order follows the configuration.
func (s Spectrum) BandEnergies(bands []model.Band) []model.BandEnergy {
	out := make([]model.BandEnergy, len(bands))
	for i, b := range bands {
		out[i] = model.BandEnergy{Band: b}
	}
	if s.BinWidth <= 0 {
		return out
	}
	for i, m := range s.Magnitudes {
		freq := float64(i) * s.BinWidth
		for j, b := range bands {
			if freq >= b.Low && freq < b.High {
				out[j].Energy += m * m
			}
		}
	}
	return out
}

// Envelope returns the analytic-signal magnitude (Hilbert envelope) of x.
// The result has the same length as the input.
func Envelope(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}
	size := nextPow2(n)
	buf := make([]complex128, size)
	for i, v := range x {
		buf[i] = complex(v, 0)
	}
	fft(buf)
	// Build the analytic signal: keep DC and Nyquist, double positive
	// frequencies, zero the negative half.
	for i := 1; i < size/2; i++ {
		buf[i] *= 2
	}
	for i := size/2 + 1; i < size; i++ {
		buf[i] = 0
	}
	ifft(buf)
	env := make([]float64, n)
	for i := 0; i < n; i++ {
		env[i] = cmplx.Abs(buf[i])
	}
	return env
}
