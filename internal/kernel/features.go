package kernel

import "math"

// Centroid returns the magnitude-weighted mean frequency of s.
func Centroid(s Spectrum) float64 {
	var num, den float64

	for k, m := range s.Magnitude {
		num += s.Frequency(k) * m
		den += m
	}

	if den == 0 {
		return 0
	}

	return num / den
}

// Bandwidth returns the magnitude-weighted standard deviation around the centroid.
func Bandwidth(s Spectrum) float64 {
	c := Centroid(s)

	var num, den float64

	for k, m := range s.Magnitude {
		d := s.Frequency(k) - c
		num += d * d * m
		den += m
	}

	if den == 0 {
		return 0
	}

	return math.Sqrt(num / den)
}

// Flatness returns the ratio of the geometric to the arithmetic mean of the
// power spectrum, in [0, 1].
func Flatness(s Spectrum) float64 {
	if len(s.Magnitude) == 0 {
		return 0
	}

	const floor = 1e-20

	var logSum, sum float64

	for _, m := range s.Magnitude {
		p := m*m + floor
		logSum += mathLog(p)
		sum += p
	}

	n := float64(len(s.Magnitude))
	arith := sum / n

	if arith == 0 {
		return 0
	}

	return mathExp(logSum/n) / arith
}

// Rolloff returns the frequency below which percent (0..1) of the spectral
// energy is contained.
func Rolloff(s Spectrum, percent float64) float64 {
	var total float64
	for _, m := range s.Magnitude {
		total += m * m
	}

	if total == 0 {
		return 0
	}

	target := total * percent

	var acc float64

	for k, m := range s.Magnitude {
		acc += m * m
		if acc >= target {
			return s.Frequency(k)
		}
	}

	return s.Frequency(len(s.Magnitude) - 1)
}

// BandEnergy returns the energy of the bins within [lo, hi) Hz.
func BandEnergy(s Spectrum, lo, hi float64) float64 {
	var e float64

	for k, m := range s.Magnitude {
		f := s.Frequency(k)
		if f >= lo && f < hi {
			e += m * m
		}
	}

	return e
}
