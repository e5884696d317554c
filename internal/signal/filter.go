package signal

import "math"

// biquad is one direct-form-I second-order section.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

func (q biquad) apply(x []float64) []float64 {
	out := make([]float64, len(x))
	var x1, x2, y1, y2 float64
	for i, v := range x {
		y := q.b0*v + q.b1*x1 + q.b2*x2 - q.a1*y1 - q.a2*y2
		x2, x1 = x1, v
		y2, y1 = y1, y
		out[i] = y
	}
	return out
}

// lowpassBiquad and highpassBiquad follow the audio-EQ cookbook forms.
func lowpassBiquad(cutoff, sampleRate, q float64) biquad {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)
	a0 := 1 + alpha
	return biquad{
		b0: (1 - cosw) / 2 / a0,
		b1: (1 - cosw) / a0,
		b2: (1 - cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

func highpassBiquad(cutoff, sampleRate, q float64) biquad {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosw, sinw := math.Cos(w0), math.Sin(w0)
	alpha := sinw / (2 * q)
	a0 := 1 + alpha
	return biquad{
		b0: (1 + cosw) / 2 / a0,
		b1: -(1 + cosw) / a0,
		b2: (1 + cosw) / 2 / a0,
		a1: -2 * cosw / a0,
		a2: (1 - alpha) / a0,
	}
}

// Bandpass is a Butterworth-style bandpass built from cascaded highpass and
// lowpass sections. Odd orders are rounded up to the next even order.
type Bandpass struct {
	sections []biquad
}

// NewBandpass designs a bandpass for the given sampling rate. The high cutoff
// is clamped just below Nyquist so a fixed config works across sensor rates.
func NewBandpass(low, high, sampleRate float64, order int) *Bandpass {
	if order < 2 {
		order = 2
	}
	if order%2 != 0 {
		order++
	}
	nyquist := sampleRate / 2
	if high >= nyquist {
		high = 0.99 * nyquist
	}
	if low <= 0 {
		low = 1
	}
	pairs := order / 2
	sections := make([]biquad, 0, 2*pairs)
	for k := 0; k < pairs; k++ {
		// Butterworth pole Q for the k-th conjugate pair.
		theta := float64(2*k+1) * math.Pi / float64(2*order)
		q := 1 / (2 * math.Sin(theta))
		sections = append(sections, highpassBiquad(low, sampleRate, q))
		sections = append(sections, lowpassBiquad(high, sampleRate, q))
	}
	return &Bandpass{sections: sections}
}

// Apply runs the filter forward and backward so the output is zero-phase and
// keeps the sample count and time alignment of the input.
func (f *Bandpass) Apply(x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)
	for _, s := range f.sections {
		out = s.apply(out)
	}
	reverse(out)
	for _, s := range f.sections {
		out = s.apply(out)
	}
	reverse(out)
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
