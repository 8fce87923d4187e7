package methods

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/internal/kernel"
)

type stftParams struct {
	FFTSize    int    `yaml:"fft_size"    validate:"gte=64,lte=65536"`
	HopLength  int    `yaml:"hop_length"  validate:"gte=1"`
	Window     string `yaml:"window"      validate:"oneof=rectangular hann hamming blackman"`
	MaxSamples int    `yaml:"max_samples" validate:"gte=0"`
}

type bandStabilityParams struct {
	Bands      []float64 `yaml:"bands"       validate:"min=2,dive,gte=0"`
	FFTSize    int       `yaml:"fft_size"    validate:"gte=64,lte=65536"`
	HopLength  int       `yaml:"hop_length"  validate:"gte=1"`
	MaxSamples int       `yaml:"max_samples" validate:"gte=0"`
}

func (p *bandStabilityParams) Validate() error {
	for i := 1; i < len(p.Bands); i++ {
		if p.Bands[i] <= p.Bands[i-1] {
			return errors.New("bands must be strictly ascending")
		}
	}

	return nil
}

const spectrogramRows = 256

func timeFrequency() []analysis.Descriptor {
	return []analysis.Descriptor{
		{
			ID:          "stft",
			Family:      analysis.FamilyTimeFrequency,
			Description: "Short-time spectrum summary",
			Func:        typed(stft),
			Defaults: analysis.Params{
				"fft_size": 2048, "hop_length": 512, "window": "hann", "max_samples": 2_000_000,
			},
			Outputs: []string{
				"num_frames", "time_resolution_ms", "frequency_resolution_hz",
				"mean_centroid_hz", "centroid_std_hz", "mean_flatness", "spectral_flux_mean",
			},
			Visualization: true,
			Check:         analysis.Checker[stftParams](),
		},
		{
			ID:          "band_stability",
			Family:      analysis.FamilyTimeFrequency,
			Description: "Per-band energy share and its variation over time",
			Func:        typed(bandStability),
			Defaults: analysis.Params{
				"bands":    []float64{0, 250, 2000, 8000, 20000},
				"fft_size": 2048, "hop_length": 1024, "max_samples": 2_000_000,
			},
			Outputs: []string{
				"band_energy_ratios", "band_cv", "mean_band_cv", "most_stable_band", "num_frames",
			},
			Check: analysis.Checker[bandStabilityParams](),
		},
	}
}

func stft(in analysis.Input, p stftParams) (analysis.Output, error) {
	sr := float64(in.SampleRate)

	st, err := kernel.ShortTime(head(in.Samples, p.MaxSamples), p.FFTSize, p.HopLength, window(p.Window), sr)
	if err != nil {
		return analysis.Output{}, err
	}

	centroids := make([]float64, len(st.Frames))
	flatness := make([]float64, len(st.Frames))
	flux := make([]float64, 0, len(st.Frames))

	for i, frame := range st.Frames {
		s := kernel.Spectrum{Magnitude: frame, BinHz: st.BinHz, FFTSize: st.FFTSize}
		centroids[i] = kernel.Centroid(s)
		flatness[i] = kernel.Flatness(s)

		if i > 0 {
			flux = append(flux, frameDistance(st.Frames[i-1], frame))
		}
	}

	meanC, stdC := kernel.MeanStd(centroids)
	meanF, _ := kernel.MeanStd(flatness)
	meanFlux, _ := kernel.MeanStd(flux)

	out := metrics(map[string]any{
		"num_frames":              len(st.Frames),
		"time_resolution_ms":      st.HopSec * 1000,
		"frequency_resolution_hz": st.BinHz,
		"mean_centroid_hz":        meanC,
		"centroid_std_hz":         stdC,
		"mean_flatness":           meanF,
		"spectral_flux_mean":      meanFlux,
	})
	out.Visualization = map[string]any{
		"times":       decimate(axis(len(st.Frames), st.HopSec), maxPlotPoints),
		"centroid":    decimate(centroids, maxPlotPoints),
		"spectrogram": spectrogram(st.Frames),
	}

	return out, nil
}

// frameDistance is the Euclidean distance between two magnitude frames,
// each normalized to unit sum.
func frameDistance(a, b []float64) float64 {
	sa, sb := sum(a), sum(b)
	if sa == 0 || sb == 0 {
		return 0
	}

	var d float64

	for i := range a {
		diff := a[i]/sa - b[i]/sb
		d += diff * diff
	}

	return math.Sqrt(d)
}

// spectrogram returns at most spectrogramRows frames of at most
// spectrogramRows bins each, in dB.
func spectrogram(frames [][]float64) [][]float64 {
	step := max(len(frames)/spectrogramRows, 1)

	var out [][]float64

	for i := 0; i < len(frames) && len(out) < spectrogramRows; i += step {
		row := decimate(frames[i], spectrogramRows)
		for k, v := range row {
			row[k] = toDB(v)
		}

		out = append(out, row)
	}

	return out
}

func bandStability(in analysis.Input, p bandStabilityParams) (analysis.Output, error) {
	sr := float64(in.SampleRate)

	st, err := kernel.ShortTime(head(in.Samples, p.MaxSamples), p.FFTSize, p.HopLength, kernel.WindowHann, sr)
	if err != nil {
		return analysis.Output{}, err
	}

	nBands := len(p.Bands) - 1
	perBand := make([][]float64, nBands)
	totals := make([]float64, nBands)

	for _, frame := range st.Frames {
		s := kernel.Spectrum{Magnitude: frame, BinHz: st.BinHz, FFTSize: st.FFTSize}
		for b := range nBands {
			e := kernel.BandEnergy(s, p.Bands[b], p.Bands[b+1])
			perBand[b] = append(perBand[b], e)
			totals[b] += e
		}
	}

	grand := sum(totals)
	ratios := make([]float64, nBands)
	cvs := make([]float64, nBands)
	stable, bestCV := -1, math.Inf(1)

	for b := range nBands {
		if grand > 0 {
			ratios[b] = totals[b] / grand
		}

		cvs[b] = coefficientOfVariation(perBand[b])
		if totals[b] > 0 && cvs[b] < bestCV {
			stable, bestCV = b, cvs[b]
		}
	}

	if stable < 0 {
		return analysis.Output{}, fmt.Errorf("band_stability: no energy in any band %v", p.Bands)
	}

	meanCV, _ := kernel.MeanStd(cvs)

	return metrics(map[string]any{
		"band_energy_ratios": ratios,
		"band_cv":            cvs,
		"mean_band_cv":       meanCV,
		"most_stable_band":   stable,
		"num_frames":         len(st.Frames),
	}), nil
}

func sum(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v
	}

	return s
}
