package kernel

import (
	"math"
	"math/cmplx"
)

// AnalyticSignal returns the analytic signal of x (x + j*H{x}) via the FFT,
// truncated to len(x).
func AnalyticSignal(x []float64) ([]complex128, error) {
	spec, err := FFT(x, len(x))
	if err != nil {
		return nil, err
	}

	n := len(spec)
	for k := 1; k < n/2; k++ {
		spec[k] *= 2
	}

	for k := n/2 + 1; k < n; k++ {
		spec[k] = 0
	}

	td, err := IFFT(spec)
	if err != nil {
		return nil, err
	}

	return td[:len(x)], nil
}

// HilbertEnvelope returns the magnitude of the analytic signal.
func HilbertEnvelope(x []float64) ([]float64, error) {
	a, err := AnalyticSignal(x)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(a))
	for i, v := range a {
		out[i] = cmplx.Abs(v)
	}

	return out, nil
}

// InstantaneousPhase returns the unwrapped phase of the analytic signal.
func InstantaneousPhase(x []float64) ([]float64, error) {
	a, err := AnalyticSignal(x)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(a))

	var offset, prev float64

	for i, v := range a {
		p := cmplx.Phase(v)
		if i > 0 {
			d := p - prev
			if d > math.Pi {
				offset -= 2 * math.Pi
			} else if d < -math.Pi {
				offset += 2 * math.Pi
			}
		}

		prev = p
		out[i] = p + offset
	}

	return out, nil
}

// RMSEnvelope returns the RMS of consecutive non-overlapping blocks of size
// window. A trailing partial block is included.
func RMSEnvelope(x []float64, window int) []float64 {
	if window <= 0 || len(x) == 0 {
		return nil
	}

	out := make([]float64, 0, (len(x)+window-1)/window)

	for start := 0; start < len(x); start += window {
		end := min(start+window, len(x))

		var sum float64
		for _, v := range x[start:end] {
			sum += v * v
		}

		out = append(out, math.Sqrt(sum/float64(end-start)))
	}

	return out
}
