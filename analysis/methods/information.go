package methods

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/internal/kernel"
)

type entropyParams struct {
	NumBins    int `yaml:"num_bins"    validate:"gte=2,lte=65536"`
	MaxSamples int `yaml:"max_samples" validate:"gte=0"`
}

type localEntropyParams struct {
	WindowSize int `yaml:"window_size" validate:"gte=16"`
	HopLength  int `yaml:"hop_length"  validate:"gte=1"`
	NumBins    int `yaml:"num_bins"    validate:"gte=2,lte=65536"`
	MaxSamples int `yaml:"max_samples" validate:"gte=0"`
}

type compressionParams struct {
	Level      int `yaml:"level"       validate:"gte=1,lte=9"`
	MaxSamples int `yaml:"max_samples" validate:"gte=0"`
}

func information() []analysis.Descriptor {
	return []analysis.Descriptor{
		{
			ID:          "shannon_entropy",
			Family:      analysis.FamilyInformation,
			Description: "Shannon entropy of the amplitude histogram",
			Func:        typed(shannonEntropy),
			Defaults:    analysis.Params{"num_bins": 256, "max_samples": 0},
			Outputs:     []string{"entropy_bits", "normalized_entropy", "occupied_bins"},
			Check:       analysis.Checker[entropyParams](),
		},
		{
			ID:          "local_entropy",
			Family:      analysis.FamilyInformation,
			Description: "Entropy over sliding windows",
			Func:        typed(localEntropy),
			Defaults: analysis.Params{
				"window_size": 2048, "hop_length": 1024, "num_bins": 64, "max_samples": 2_000_000,
			},
			Outputs: []string{
				"mean_entropy", "entropy_std", "min_entropy", "max_entropy", "num_windows",
			},
			Visualization: true,
			Check:         analysis.Checker[localEntropyParams](),
		},
		{
			ID:          "compression_ratio",
			Family:      analysis.FamilyInformation,
			Description: "DEFLATE compressibility of 16-bit PCM",
			Func:        typed(compressionRatio),
			Defaults:    analysis.Params{"level": 6, "max_samples": 1 << 20},
			Outputs:     []string{"compression_ratio", "raw_bytes", "compressed_bytes", "samples_analyzed"},
			Check:       analysis.Checker[compressionParams](),
		},
	}
}

func shannonEntropy(in analysis.Input, p entropyParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)
	if len(x) == 0 {
		return analysis.Output{}, kernel.ErrEmptyInput
	}

	counts, _ := kernel.Histogram(x, p.NumBins)
	h := kernel.ShannonEntropy(counts)

	occupied := 0

	for _, c := range counts {
		if c > 0 {
			occupied++
		}
	}

	return metrics(map[string]any{
		"entropy_bits":       h,
		"normalized_entropy": h / math.Log2(float64(p.NumBins)),
		"occupied_bins":      occupied,
	}), nil
}

func localEntropy(in analysis.Input, p localEntropyParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)
	if len(x) < p.WindowSize {
		return analysis.Output{}, fmt.Errorf("local_entropy: %d samples shorter than window %d", len(x), p.WindowSize)
	}

	var values []float64

	for start := 0; start+p.WindowSize <= len(x); start += p.HopLength {
		counts, _ := kernel.Histogram(x[start:start+p.WindowSize], p.NumBins)
		values = append(values, kernel.ShannonEntropy(counts))
	}

	m := kernel.CalculateMoments(values)

	out := metrics(map[string]any{
		"mean_entropy": m.Mean,
		"entropy_std":  m.Std,
		"min_entropy":  m.Min,
		"max_entropy":  m.Max,
		"num_windows":  len(values),
	})
	out.Visualization = map[string]any{
		"times":   decimate(axis(len(values), float64(p.HopLength)/float64(in.SampleRate)), maxPlotPoints),
		"entropy": decimate(values, maxPlotPoints),
	}

	return out, nil
}

func compressionRatio(in analysis.Input, p compressionParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)
	if len(x) == 0 {
		return analysis.Output{}, kernel.ErrEmptyInput
	}

	raw := make([]byte, 2*len(x))
	for i, v := range x {
		binary.LittleEndian.PutUint16(raw[2*i:], uint16(toInt16(v)))
	}

	var buf bytes.Buffer

	w, err := flate.NewWriter(&buf, p.Level)
	if err != nil {
		return analysis.Output{}, err
	}

	_, err = w.Write(raw)
	if err != nil {
		return analysis.Output{}, err
	}

	err = w.Close()
	if err != nil {
		return analysis.Output{}, err
	}

	return metrics(map[string]any{
		"compression_ratio": float64(len(raw)) / float64(buf.Len()),
		"raw_bytes":         len(raw),
		"compressed_bytes":  buf.Len(),
		"samples_analyzed":  len(x),
	}), nil
}

// toInt16 scales a [-1, 1] sample to 16-bit PCM with clipping.
func toInt16(v float64) int16 {
	s := math.Trunc(v * 32767)

	return int16(math.Max(-32768, math.Min(32767, s)))
}
