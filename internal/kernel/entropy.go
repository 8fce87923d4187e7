package kernel

import "math"

// Histogram bins x into n equal-width bins over [min(x), max(x)] and returns
// the counts and the n+1 bin edges.
func Histogram(x []float64, n int) ([]float64, []float64) {
	if len(x) == 0 || n <= 0 {
		return nil, nil
	}

	lo, hi := x[0], x[0]
	for _, v := range x {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	counts := make([]float64, n)
	edges := make([]float64, n+1)
	width := (hi - lo) / float64(n)

	for i := range edges {
		edges[i] = lo + float64(i)*width
	}

	for _, v := range x {
		idx := n - 1
		if width > 0 {
			idx = min(int((v-lo)/width), n-1)
		}

		counts[idx]++
	}

	return counts, edges
}

// ShannonEntropy returns the entropy in bits of the distribution given by
// counts. Empty bins contribute nothing.
func ShannonEntropy(counts []float64) float64 {
	var total float64
	for _, c := range counts {
		total += c
	}

	if total == 0 {
		return 0
	}

	var h float64

	for _, c := range counts {
		if c > 0 {
			p := c / total
			h -= p * math.Log2(p)
		}
	}

	return h
}
