package methods

import (
	"math"
	"sort"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/internal/kernel"
)

type spectrumParams struct {
	Window     string `yaml:"window"      validate:"oneof=rectangular hann hamming blackman"`
	MaxSamples int    `yaml:"max_samples" validate:"gte=0"`
}

type peakParams struct {
	Window        string  `yaml:"window"          validate:"oneof=rectangular hann hamming blackman"`
	HeightDB      float64 `yaml:"height_db"       validate:"lte=0"`
	MinDistanceHz float64 `yaml:"min_distance_hz" validate:"gte=0"`
	MaxPeaks      int     `yaml:"max_peaks"       validate:"gte=1"`
	MaxSamples    int     `yaml:"max_samples"     validate:"gte=0"`
}

type bandwidthParams struct {
	Window         string  `yaml:"window"          validate:"oneof=rectangular hann hamming blackman"`
	RolloffPercent float64 `yaml:"rolloff_percent" validate:"gt=0,lt=1"`
	MaxSamples     int     `yaml:"max_samples"     validate:"gte=0"`
}

type cepstrumParams struct {
	Window         string  `yaml:"window"           validate:"oneof=rectangular hann hamming blackman"`
	MinQuefrencyMS float64 `yaml:"min_quefrency_ms" validate:"gt=0"`
	MaxQuefrencyMS float64 `yaml:"max_quefrency_ms" validate:"gtfield=MinQuefrencyMS"`
	MaxSamples     int     `yaml:"max_samples"      validate:"gte=0"`
}

const defaultSpectrumSamples = 1 << 20

func spectrumDefaults() analysis.Params {
	return analysis.Params{"window": "hann", "max_samples": defaultSpectrumSamples}
}

func spectral() []analysis.Descriptor {
	return []analysis.Descriptor{
		{
			ID:          "fft_global",
			Family:      analysis.FamilySpectral,
			Description: "Global amplitude spectrum",
			Func:        typed(fftGlobal),
			Defaults:    spectrumDefaults(),
			Outputs: []string{
				"peak_frequency_hz", "peak_level_db", "spectral_energy", "dc_level",
				"frequency_resolution_hz", "samples_analyzed",
			},
			Visualization: true,
			Check:         analysis.Checker[spectrumParams](),
		},
		{
			ID:          "peak_detection",
			Family:      analysis.FamilySpectral,
			Description: "Prominent spectral peaks",
			Func:        typed(peakDetection),
			Defaults: analysis.Params{
				"window": "hann", "height_db": -40.0, "min_distance_hz": 20.0,
				"max_peaks": 10, "max_samples": defaultSpectrumSamples,
			},
			Outputs: []string{
				"peak_count", "dominant_frequency_hz", "peak_frequencies_hz", "peak_levels_db",
			},
			Check: analysis.Checker[peakParams](),
		},
		{
			ID:          "spectral_centroid",
			Family:      analysis.FamilySpectral,
			Description: "Magnitude-weighted mean frequency",
			Func:        typed(spectralCentroid),
			Defaults:    spectrumDefaults(),
			Outputs:     []string{"centroid_hz", "centroid_normalized"},
			Check:       analysis.Checker[spectrumParams](),
		},
		{
			ID:          "spectral_bandwidth",
			Family:      analysis.FamilySpectral,
			Description: "Spread around the centroid and energy rolloff",
			Func:        typed(spectralBandwidth),
			Defaults:    analysis.Params{"window": "hann", "rolloff_percent": 0.85, "max_samples": defaultSpectrumSamples},
			Outputs:     []string{"bandwidth_hz", "rolloff_hz"},
			Check:       analysis.Checker[bandwidthParams](),
		},
		{
			ID:          "spectral_flatness",
			Family:      analysis.FamilySpectral,
			Description: "Geometric over arithmetic mean of the power spectrum",
			Func:        typed(spectralFlatness),
			Defaults:    spectrumDefaults(),
			Outputs:     []string{"flatness", "flatness_db"},
			Check:       analysis.Checker[spectrumParams](),
		},
		{
			ID:          "cepstrum",
			Family:      analysis.FamilySpectral,
			Description: "Real cepstrum peak for repetition detection",
			Func:        typed(cepstrum),
			Defaults: analysis.Params{
				"window": "hann", "min_quefrency_ms": 1.0, "max_quefrency_ms": 20.0, "max_samples": 1 << 18,
			},
			Outputs:       []string{"peak_quefrency_ms", "peak_value", "fundamental_hz", "samples_analyzed"},
			Visualization: true,
			Check:         analysis.Checker[cepstrumParams](),
		},
	}
}

func amplitude(in analysis.Input, win string, maxSamples int) (kernel.Spectrum, int, error) {
	x := head(in.Samples, maxSamples)

	s, err := kernel.AmplitudeSpectrum(x, window(win), float64(in.SampleRate))

	return s, len(x), err
}

func fftGlobal(in analysis.Input, p spectrumParams) (analysis.Output, error) {
	s, n, err := amplitude(in, p.Window, p.MaxSamples)
	if err != nil {
		return analysis.Output{}, err
	}

	k, peak := kernel.ArgMax(s.Magnitude[1:])

	var energy float64
	for _, m := range s.Magnitude {
		energy += m * m
	}

	levels := make([]float64, len(s.Magnitude))
	for i, m := range s.Magnitude {
		levels[i] = toDB(m)
	}

	out := metrics(map[string]any{
		"peak_frequency_hz":       s.Frequency(k + 1),
		"peak_level_db":           toDB(peak),
		"spectral_energy":         energy,
		"dc_level":                s.Magnitude[0] / 2,
		"frequency_resolution_hz": s.BinHz,
		"samples_analyzed":        n,
	})
	out.Visualization = map[string]any{
		"frequencies": decimate(axis(len(levels), s.BinHz), maxPlotPoints),
		"magnitude":   decimate(levels, maxPlotPoints),
	}

	return out, nil
}

func peakDetection(in analysis.Input, p peakParams) (analysis.Output, error) {
	s, _, err := amplitude(in, p.Window, p.MaxSamples)
	if err != nil {
		return analysis.Output{}, err
	}

	_, top := kernel.ArgMax(s.Magnitude)
	threshold := top * math.Pow(10, p.HeightDB/20)
	minDist := max(int(p.MinDistanceHz/s.BinHz), 1)

	idx := kernel.FindPeaks(s.Magnitude, threshold, minDist)
	if top == 0 {
		idx = nil
	}

	sort.SliceStable(idx, func(a, b int) bool { return s.Magnitude[idx[a]] > s.Magnitude[idx[b]] })

	if len(idx) > p.MaxPeaks {
		idx = idx[:p.MaxPeaks]
	}

	dominant := 0.0
	if len(idx) > 0 {
		dominant = s.Frequency(idx[0])
	}

	sort.Ints(idx)

	freqs := make([]float64, len(idx))
	levels := make([]float64, len(idx))

	for i, k := range idx {
		freqs[i] = s.Frequency(k)
		levels[i] = toDB(s.Magnitude[k])
	}

	return metrics(map[string]any{
		"peak_count":            len(idx),
		"dominant_frequency_hz": dominant,
		"peak_frequencies_hz":   freqs,
		"peak_levels_db":        levels,
	}), nil
}

func spectralCentroid(in analysis.Input, p spectrumParams) (analysis.Output, error) {
	s, _, err := amplitude(in, p.Window, p.MaxSamples)
	if err != nil {
		return analysis.Output{}, err
	}

	c := kernel.Centroid(s)

	return metrics(map[string]any{
		"centroid_hz":         c,
		"centroid_normalized": c / (float64(in.SampleRate) / 2),
	}), nil
}

func spectralBandwidth(in analysis.Input, p bandwidthParams) (analysis.Output, error) {
	s, _, err := amplitude(in, p.Window, p.MaxSamples)
	if err != nil {
		return analysis.Output{}, err
	}

	return metrics(map[string]any{
		"bandwidth_hz": kernel.Bandwidth(s),
		"rolloff_hz":   kernel.Rolloff(s, p.RolloffPercent),
	}), nil
}

func spectralFlatness(in analysis.Input, p spectrumParams) (analysis.Output, error) {
	s, _, err := amplitude(in, p.Window, p.MaxSamples)
	if err != nil {
		return analysis.Output{}, err
	}

	f := kernel.Flatness(s)

	return metrics(map[string]any{
		"flatness":    f,
		"flatness_db": 10 * math.Log10(math.Max(f, 1e-12)),
	}), nil
}

func cepstrum(in analysis.Input, p cepstrumParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)

	c, err := kernel.RealCepstrum(x, window(p.Window))
	if err != nil {
		return analysis.Output{}, err
	}

	sr := float64(in.SampleRate)
	lo := max(int(p.MinQuefrencyMS/1000*sr), 1)
	hi := min(int(p.MaxQuefrencyMS/1000*sr), len(c)-1)

	var (
		quefrency, value, f0 float64
		search, axisMS       []float64
	)

	if hi > lo {
		search = c[lo : hi+1]
		k, v := kernel.ArgMax(search)
		q := lo + k
		quefrency = float64(q) / sr * 1000
		value = v
		f0 = sr / float64(q)

		axisMS = axis(len(search), 1000/sr)
		for i := range axisMS {
			axisMS[i] += float64(lo) / sr * 1000
		}
	}

	out := metrics(map[string]any{
		"peak_quefrency_ms": quefrency,
		"peak_value":        value,
		"fundamental_hz":    f0,
		"samples_analyzed":  len(x),
	})
	out.Visualization = map[string]any{
		"quefrency_ms": decimate(axisMS, maxPlotPoints),
		"cepstrum":     decimate(search, maxPlotPoints),
	}

	return out, nil
}
