package kernel

import "math"

// Moments holds time-domain distribution statistics of a signal.
type Moments struct {
	Length        int
	Mean          float64
	Variance      float64
	Std           float64
	Skewness      float64
	Kurtosis      float64 // excess kurtosis
	RMS           float64
	Min           float64
	Max           float64
	Peak          float64 // max(|min|, |max|)
	CrestFactor   float64 // peak / RMS, 0 for silence
	Energy        float64 // sum of squares
	ZeroCrossings int
}

// CalculateMoments computes Moments in a single pass using Welford's online
// update for the central moments.
func CalculateMoments(x []float64) Moments {
	n := len(x)
	if n == 0 {
		return Moments{}
	}

	var mean, m2, m3, m4, sumSq float64

	minVal, maxVal := x[0], x[0]
	crossings := 0

	for i, v := range x {
		ni := float64(i + 1)
		delta := v - mean
		deltaN := delta / ni
		deltaN2 := deltaN * deltaN
		term1 := delta * deltaN * float64(i)

		// M4 before M3 before M2.
		m4 += term1*deltaN2*(ni*ni-3*ni+3) + 6*deltaN2*m2 - 4*deltaN*m3
		m3 += term1*deltaN*(float64(i)-1) - 3*deltaN*m2
		m2 += term1
		mean += deltaN

		sumSq += v * v
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)

		if i > 0 && x[i-1]*v < 0 {
			crossings++
		}
	}

	nf := float64(n)
	variance := m2 / nf
	rms := math.Sqrt(sumSq / nf)
	peak := math.Max(math.Abs(minVal), math.Abs(maxVal))

	m := Moments{
		Length:        n,
		Mean:          mean,
		Variance:      variance,
		Std:           math.Sqrt(variance),
		RMS:           rms,
		Min:           minVal,
		Max:           maxVal,
		Peak:          peak,
		Energy:        sumSq,
		ZeroCrossings: crossings,
	}

	if rms > 0 {
		m.CrestFactor = peak / rms
	}

	if variance > 0 {
		m.Skewness = (m3 / nf) / (variance * math.Sqrt(variance))
		m.Kurtosis = (m4/nf)/(variance*variance) - 3
	}

	return m
}

// MeanStd returns the population mean and standard deviation of x.
func MeanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return 0, 0
	}

	m := CalculateMoments(x)

	return m.Mean, m.Std
}
