package methods

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/internal/kernel"
)

// maxPlotPoints bounds every visualization series.
const maxPlotPoints = 2048

// typed adapts a method taking a decoded parameter struct to analysis.Func.
func typed[P any](fn func(in analysis.Input, p P) (analysis.Output, error)) analysis.Func {
	return func(in analysis.Input, params analysis.Params) (analysis.Output, error) {
		p, err := analysis.DecodeParams[P](params)
		if err != nil {
			return analysis.Output{}, err
		}

		return fn(in, p)
	}
}

func metrics(kv map[string]any) analysis.Output {
	return analysis.Output{Metrics: kv}
}

// head returns the first maxSamples samples, or all of x when maxSamples <= 0.
func head(x []float64, maxSamples int) []float64 {
	if maxSamples > 0 && len(x) > maxSamples {
		return x[:maxSamples]
	}

	return x
}

// decimate keeps at most n evenly spaced points of x.
func decimate(x []float64, n int) []float64 {
	if len(x) <= n || n <= 0 {
		return append([]float64(nil), x...)
	}

	out := make([]float64, n)
	step := float64(len(x)) / float64(n)

	for i := range out {
		out[i] = x[int(float64(i)*step)]
	}

	return out
}

// axis returns n values start, start+step, ...
func axis(n int, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i) * step
	}

	return out
}

func toDB(v float64) float64 {
	return 20 * math.Log10(math.Max(v, 1e-12))
}

func window(name string) kernel.WindowType {
	w, err := kernel.ParseWindow(name)
	if err != nil {
		return kernel.WindowHann
	}

	return w
}

// percentile returns the p-th percentile (0..100) of x by linear
// interpolation between order statistics.
func percentile(x []float64, p float64) float64 {
	if len(x) == 0 {
		return 0
	}

	s := append([]float64(nil), x...)
	sort.Float64s(s)

	pos := p / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(s)-1)
	frac := pos - float64(lo)

	return s[lo]*(1-frac) + s[hi]*frac
}

// coefficientOfVariation returns std/mean, or 0 when the mean is zero.
func coefficientOfVariation(x []float64) float64 {
	mean, std := kernel.MeanStd(x)
	if mean == 0 {
		return 0
	}

	return std / math.Abs(mean)
}
