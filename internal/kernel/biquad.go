package kernel

import (
	"math"
	"slices"
)

// Coefficients of one second-order section with a0 normalized to 1.
//
// Direct Form II Transposed:
//
//	y  = B0*x + d0
//	d0 = B1*x - A1*y + d1
//	d1 = B2*x - A2*y
type Coefficients struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Section is a stateful biquad.
type Section struct {
	Coefficients

	d0, d1 float64
}

// ProcessSample filters one sample.
func (s *Section) ProcessSample(x float64) float64 {
	y := s.B0*x + s.d0
	s.d0 = s.B1*x - s.A1*y + s.d1
	s.d1 = s.B2*x - s.A2*y

	return y
}

// Chain is a cascade of biquad sections.
type Chain []Section

// NewChain creates a cascade with zero state.
func NewChain(coeffs ...Coefficients) Chain {
	c := make(Chain, len(coeffs))
	for i, co := range coeffs {
		c[i] = Section{Coefficients: co}
	}

	return c
}

// Process returns the filtered copy of x. State carries over between calls.
func (c Chain) Process(x []float64) []float64 {
	out := slices.Clone(x)

	for i := range c {
		s := &c[i]
		for n, v := range out {
			out[n] = s.ProcessSample(v)
		}
	}

	return out
}

// Reset clears the state of all sections.
func (c Chain) Reset() {
	for i := range c {
		c[i].d0, c[i].d1 = 0, 0
	}
}

// FiltFilt applies the cascade forwards and backwards, giving zero phase and
// squared magnitude response. The chain is reset before each pass.
func FiltFilt(c Chain, x []float64) []float64 {
	c.Reset()
	y := c.Process(x)
	slices.Reverse(y)

	c.Reset()
	y = c.Process(y)
	slices.Reverse(y)

	return y
}

// Lowpass designs an RBJ lowpass biquad.
func Lowpass(freq, q, sampleRate float64) Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return passThrough()
	}

	cw, alpha := math.Cos(w0), math.Sin(w0)/(2*q)

	return normalize(
		(1-cw)/2, 1-cw, (1-cw)/2,
		1+alpha, -2*cw, 1-alpha,
	)
}

// Highpass designs an RBJ highpass biquad.
func Highpass(freq, q, sampleRate float64) Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return passThrough()
	}

	cw, alpha := math.Cos(w0), math.Sin(w0)/(2*q)

	return normalize(
		(1+cw)/2, -(1 + cw), (1+cw)/2,
		1+alpha, -2*cw, 1-alpha,
	)
}

// HighShelf designs an RBJ high-shelf biquad with gain in dB.
func HighShelf(freq, gainDB, q, sampleRate float64) Coefficients {
	w0, ok := normalizedW0(freq, sampleRate)
	if !ok {
		return passThrough()
	}

	cw := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * q)
	a := math.Pow(10, gainDB/40)
	beta := 2 * math.Sqrt(a) * alpha

	return normalize(
		a*((a+1)+(a-1)*cw+beta),
		-2*a*((a-1)+(a+1)*cw),
		a*((a+1)+(a-1)*cw-beta),
		(a+1)-(a-1)*cw+beta,
		2*((a-1)-(a+1)*cw),
		(a+1)-(a-1)*cw-beta,
	)
}

// ButterworthLowpass returns the sections of an even-order Butterworth
// lowpass. Odd orders are rounded up.
func ButterworthLowpass(order int, freq, sampleRate float64) Chain {
	pairs := max((order+1)/2, 1)
	n := float64(2 * pairs)
	coeffs := make([]Coefficients, pairs)

	for k := range pairs {
		theta := math.Pi * float64(2*k+1) / (2 * n)
		coeffs[k] = Lowpass(freq, 1/(2*math.Sin(theta)), sampleRate)
	}

	return NewChain(coeffs...)
}

// KWeighting returns the two-stage loudness pre-filter: a +4 dB high shelf
// near 1.5 kHz followed by a highpass near 38 Hz.
func KWeighting(sampleRate float64) Chain {
	return NewChain(
		HighShelf(1681.97, 3.99984, 0.7072, sampleRate),
		Highpass(38.1355, 0.5003, sampleRate),
	)
}

func normalizedW0(freq, sampleRate float64) (float64, bool) {
	if sampleRate <= 0 || freq <= 0 || freq >= sampleRate/2 {
		return 0, false
	}

	return 2 * math.Pi * freq / sampleRate, true
}

func passThrough() Coefficients { return Coefficients{B0: 1} }

func normalize(b0, b1, b2, a0, a1, a2 float64) Coefficients {
	if a0 == 0 {
		return passThrough()
	}

	return Coefficients{B0: b0 / a0, B1: b1 / a0, B2: b2 / a0, A1: a1 / a0, A2: a2 / a0}
}
