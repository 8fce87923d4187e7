package methods

import (
	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/internal/kernel"
)

type amParams struct {
	MinModHz   float64 `yaml:"min_mod_hz"  validate:"gt=0"`
	MaxModHz   float64 `yaml:"max_mod_hz"  validate:"gtfield=MinModHz"`
	MaxSamples int     `yaml:"max_samples" validate:"gte=0"`
}

type modulationIndexParams struct {
	PercentileLow  float64 `yaml:"percentile_low"  validate:"gte=0,lt=50"`
	PercentileHigh float64 `yaml:"percentile_high" validate:"gt=50,lte=100"`
	MaxSamples     int     `yaml:"max_samples"     validate:"gte=0"`
}

func modulation() []analysis.Descriptor {
	return []analysis.Descriptor{
		{
			ID:          "am_detection",
			Family:      analysis.FamilyModulation,
			Description: "Dominant amplitude modulation rate from the envelope spectrum",
			Func:        typed(amDetection),
			Defaults:    analysis.Params{"min_mod_hz": 0.5, "max_mod_hz": 50.0, "max_samples": 1 << 20},
			Outputs: []string{
				"mod_frequency_hz", "mod_depth", "mod_peak_ratio", "samples_analyzed",
			},
			Visualization: true,
			Check:         analysis.Checker[amParams](),
		},
		{
			ID:          "modulation_index",
			Family:      analysis.FamilyModulation,
			Description: "Envelope excursion between two percentiles",
			Func:        typed(modulationIndex),
			Defaults:    analysis.Params{"percentile_low": 5.0, "percentile_high": 95.0, "max_samples": 1 << 20},
			Outputs:     []string{"modulation_index", "envelope_cv", "samples_analyzed"},
			Check:       analysis.Checker[modulationIndexParams](),
		},
	}
}

func amDetection(in analysis.Input, p amParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)

	env, err := kernel.HilbertEnvelope(x)
	if err != nil {
		return analysis.Output{}, err
	}

	mean, _ := kernel.MeanStd(env)

	ac := make([]float64, len(env))
	for i, v := range env {
		ac[i] = v - mean
	}

	s, err := kernel.AmplitudeSpectrum(ac, kernel.WindowHann, float64(in.SampleRate))
	if err != nil {
		return analysis.Output{}, err
	}

	var (
		bestMag, bandMean float64
		bins              int
		freqs, mags       []float64
	)

	bestK := -1

	for k, m := range s.Magnitude {
		f := s.Frequency(k)
		if f < p.MinModHz || f > p.MaxModHz {
			continue
		}

		freqs = append(freqs, f)
		mags = append(mags, m)
		bandMean += m
		bins++

		if m > bestMag {
			bestK, bestMag = k, m
		}
	}

	var modHz, depth, ratio float64

	if bestK >= 0 {
		modHz = s.Frequency(bestK)
		bandMean /= float64(bins)

		if mean > 0 {
			depth = bestMag / mean
		}

		if bandMean > 0 {
			ratio = bestMag / bandMean
		}
	}

	out := metrics(map[string]any{
		"mod_frequency_hz": modHz,
		"mod_depth":        depth,
		"mod_peak_ratio":   ratio,
		"samples_analyzed": len(x),
	})
	out.Visualization = map[string]any{
		"frequencies": decimate(freqs, maxPlotPoints),
		"magnitude":   decimate(mags, maxPlotPoints),
	}

	return out, nil
}

func modulationIndex(in analysis.Input, p modulationIndexParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)

	env, err := kernel.HilbertEnvelope(x)
	if err != nil {
		return analysis.Output{}, err
	}

	lo := percentile(env, p.PercentileLow)
	hi := percentile(env, p.PercentileHigh)

	var index float64
	if hi+lo > 0 {
		index = (hi - lo) / (hi + lo)
	}

	return metrics(map[string]any{
		"modulation_index": index,
		"envelope_cv":      coefficientOfVariation(env),
		"samples_analyzed": len(x),
	}), nil
}
