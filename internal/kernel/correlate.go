package kernel

import "math"

// AutoCorrelate returns the autocorrelation of x for lags 0..maxLag computed
// through the FFT. With normalize the zero-lag value is scaled to 1.
func AutoCorrelate(x []float64, maxLag int, normalize bool) ([]float64, error) {
	if len(x) == 0 {
		return nil, ErrEmptyInput
	}

	maxLag = min(max(maxLag, 0), len(x)-1)

	spec, err := FFT(x, 2*len(x))
	if err != nil {
		return nil, err
	}

	for k, v := range spec {
		spec[k] = complex(real(v)*real(v)+imag(v)*imag(v), 0)
	}

	td, err := IFFT(spec)
	if err != nil {
		return nil, err
	}

	out := make([]float64, maxLag+1)
	for i := range out {
		out[i] = real(td[i])
	}

	if normalize && out[0] != 0 {
		zero := out[0]
		for i := range out {
			out[i] /= zero
		}
	}

	return out, nil
}

// CrossCorrelate returns the cross-correlation of a and b for lags
// -maxLag..maxLag, normalized by the product of their L2 norms. Index
// maxLag holds lag 0; a positive lag means b lags a.
func CrossCorrelate(a, b []float64, maxLag int) ([]float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return nil, ErrEmptyInput
	}

	maxLag = min(max(maxLag, 0), max(len(a), len(b))-1)
	size := len(a) + len(b)

	fa, err := FFT(a, size)
	if err != nil {
		return nil, err
	}

	fb, err := FFT(b, size)
	if err != nil {
		return nil, err
	}

	for k := range fa {
		fa[k] = fb[k] * complex(real(fa[k]), -imag(fa[k]))
	}

	td, err := IFFT(fa)
	if err != nil {
		return nil, err
	}

	norm := l2Norm(a) * l2Norm(b)
	if norm == 0 {
		norm = 1
	}

	n := len(td)
	out := make([]float64, 2*maxLag+1)

	for lag := -maxLag; lag <= maxLag; lag++ {
		idx := lag
		if idx < 0 {
			idx += n
		}

		out[lag+maxLag] = real(td[idx]) / norm
	}

	return out, nil
}

func l2Norm(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}

	return math.Sqrt(sum)
}
