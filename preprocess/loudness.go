package preprocess

import (
	"math"

	"github.com/cwbudde/algo-protocol/internal/kernel"
)

const (
	blockSeconds   = 0.4
	hopSeconds     = 0.1
	absoluteGate   = -70.0
	relativeGateLU = -10.0
)

// IntegratedLoudness returns the gated integrated loudness in LUFS of the
// given channels using K-weighting, 400 ms blocks with 75% overlap, an
// absolute gate at -70 LUFS and a relative gate 10 LU below the
// absolute-gated mean. ok is false when every block is gated out.
func IntegratedLoudness(channels [][]float64, sampleRate int) (float64, bool) {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return 0, false
	}

	weighted := make([][]float64, len(channels))
	for i, ch := range channels {
		weighted[i] = kernel.KWeighting(float64(sampleRate)).Process(ch)
	}

	n := len(weighted[0])
	block := min(int(blockSeconds*float64(sampleRate)), n)
	hop := max(int(hopSeconds*float64(sampleRate)), 1)

	var powers []float64

	for start := 0; start+block <= n; start += hop {
		var z float64

		for _, ch := range weighted {
			var sum float64
			for _, v := range ch[start : start+block] {
				sum += v * v
			}

			z += sum / float64(block)
		}

		powers = append(powers, z)
	}

	gated := gate(powers, absoluteGate)
	if len(gated) == 0 {
		return 0, false
	}

	relative := loudness(mean(gated)) + relativeGateLU

	gated = gate(gated, relative)
	if len(gated) == 0 {
		return 0, false
	}

	return loudness(mean(gated)), true
}

func loudness(power float64) float64 {
	return -0.691 + 10*math.Log10(power)
}

func gate(powers []float64, threshold float64) []float64 {
	var out []float64

	for _, p := range powers {
		if p > 0 && loudness(p) > threshold {
			out = append(out, p)
		}
	}

	return out
}

func mean(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}

	return s / float64(len(x))
}
