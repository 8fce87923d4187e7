// Package testutil provides deterministic synthetic audio for tests.
package testutil

import (
	"math"
	"math/rand"
)

// DeterministicSine generates amplitude*sin(2*pi*freqHz*n/sampleRate).
func DeterministicSine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)

	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}

	return out
}

// DeterministicNoise generates uniform white noise in [-amplitude, amplitude)
// from a fixed seed.
func DeterministicNoise(seed int64, amplitude float64, length int) []float64 {
	out := make([]float64, length)

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec
	for i := range out {
		out[i] = (rng.Float64()*2 - 1) * amplitude
	}

	return out
}

// AMTone generates a carrier at carrierHz whose amplitude is modulated by a
// sine at modHz with the given depth (0..1).
func AMTone(carrierHz, modHz, depth, sampleRate float64, length int) []float64 {
	out := make([]float64, length)

	wc := 2 * math.Pi * carrierHz / sampleRate
	wm := 2 * math.Pi * modHz / sampleRate

	for i := range out {
		n := float64(i)
		out[i] = (1 + depth*math.Sin(wm*n)) * math.Sin(wc*n) / (1 + depth)
	}

	return out
}

// PulseTrain generates unit-height rectangular pulses of width samples
// starting every period samples.
func PulseTrain(period, width, length int) []float64 {
	out := make([]float64, length)
	if period <= 0 {
		return out
	}

	for i := range out {
		if i%period < width {
			out[i] = 1
		}
	}

	return out
}

// DC generates a constant-valued signal.
func DC(value float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = value
	}

	return out
}

// Stereo returns left and right in the planar layout used by channel.Audio.
func Stereo(left, right []float64) [][]float64 {
	return [][]float64{left, right}
}
