package methods

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/internal/kernel"
)

type statisticsParams struct {
	NumBins    int `yaml:"num_bins"    validate:"gte=2,lte=4096"`
	MaxSamples int `yaml:"max_samples" validate:"gte=0"`
}

type stabilityParams struct {
	WindowSize int `yaml:"window_size" validate:"gte=16"`
	HopLength  int `yaml:"hop_length"  validate:"gte=1"`
	MaxSamples int `yaml:"max_samples" validate:"gte=0"`
}

type segmentComparisonParams struct {
	NumSegments        int  `yaml:"num_segments"         validate:"gte=2,lte=1000"`
	UseContextSegments bool `yaml:"use_context_segments"`
	MinSegmentLength   int  `yaml:"min_segment_length"   validate:"gte=1"`
}

func metaAnalysis() []analysis.Descriptor {
	return []analysis.Descriptor{
		{
			ID:          "high_order_statistics",
			Family:      analysis.FamilyMetaAnalysis,
			Description: "Amplitude distribution moments and peak statistics",
			Func:        typed(highOrderStatistics),
			Defaults:    analysis.Params{"num_bins": 50, "max_samples": 200000},
			Outputs: []string{
				"mean", "std", "variance", "skewness", "kurtosis",
				"peak_value", "crest_factor", "samples_analyzed",
			},
			Visualization: true,
			Check:         analysis.Checker[statisticsParams](),
		},
		{
			ID:          "stability_scores",
			Family:      analysis.FamilyMetaAnalysis,
			Description: "Temporal and spectral stability indicators",
			Func:        typed(stabilityScores),
			Defaults:    analysis.Params{"window_size": 2048, "hop_length": 512, "max_samples": 200000},
			Outputs: []string{
				"energy_stability", "spectral_stability", "overall_stability", "num_windows",
			},
			Visualization: true,
			Check:         analysis.Checker[stabilityParams](),
		},
		{
			ID:          "inter_segment_comparison",
			Family:      analysis.FamilyMetaAnalysis,
			Description: "Pairwise feature distances between segments",
			Func:        typed(interSegmentComparison),
			Defaults: analysis.Params{
				"num_segments": 10, "use_context_segments": false, "min_segment_length": 1024,
			},
			Outputs: []string{
				"num_segments", "mean_distance", "std_distance", "min_distance",
				"max_distance", "similarity_score",
			},
			Check: analysis.Checker[segmentComparisonParams](),
		},
	}
}

func highOrderStatistics(in analysis.Input, p statisticsParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)
	if len(x) == 0 {
		return analysis.Output{}, kernel.ErrEmptyInput
	}

	m := kernel.CalculateMoments(x)
	counts, edges := kernel.Histogram(x, p.NumBins)

	centers := make([]float64, len(counts))
	density := make([]float64, len(counts))

	for i := range counts {
		centers[i] = (edges[i] + edges[i+1]) / 2

		if w := edges[i+1] - edges[i]; w > 0 {
			density[i] = counts[i] / (float64(len(x)) * w)
		}
	}

	out := metrics(map[string]any{
		"mean":             m.Mean,
		"std":              m.Std,
		"variance":         m.Variance,
		"skewness":         m.Skewness,
		"kurtosis":         m.Kurtosis,
		"peak_value":       m.Peak,
		"crest_factor":     m.CrestFactor,
		"samples_analyzed": len(x),
	})
	out.Visualization = map[string]any{
		"bin_centers": centers,
		"density":     density,
	}

	return out, nil
}

func stabilityScores(in analysis.Input, p stabilityParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)
	sr := float64(in.SampleRate)

	var energies, centroids []float64

	for start := 0; start+p.WindowSize <= len(x); start += p.HopLength {
		frame := x[start : start+p.WindowSize]

		s, err := kernel.RealSpectrum(frame, kernel.WindowRectangular, sr)
		if err != nil {
			return analysis.Output{}, err
		}

		energies = append(energies, kernel.CalculateMoments(frame).Energy)
		centroids = append(centroids, kernel.Centroid(s))
	}

	if len(energies) == 0 {
		return analysis.Output{}, fmt.Errorf("stability_scores: %d samples shorter than window %d", len(x), p.WindowSize)
	}

	energyStability := 1 / (1 + coefficientOfVariation(energies))
	spectralStability := 1 / (1 + coefficientOfVariation(centroids))

	meanE, _ := kernel.MeanStd(energies)
	meanC, _ := kernel.MeanStd(centroids)

	out := metrics(map[string]any{
		"energy_stability":   energyStability,
		"spectral_stability": spectralStability,
		"overall_stability":  (energyStability + spectralStability) / 2,
		"num_windows":        len(energies),
	})
	out.Visualization = map[string]any{
		"times":             decimate(axis(len(energies), float64(p.HopLength)/sr), maxPlotPoints),
		"energy":            decimate(energies, maxPlotPoints),
		"spectral_centroid": decimate(centroids, maxPlotPoints),
		"energy_mean":       meanE,
		"centroid_mean":     meanC,
	}

	return out, nil
}

func interSegmentComparison(in analysis.Input, p segmentComparisonParams) (analysis.Output, error) {
	segments, err := comparisonSegments(in, p)
	if err != nil {
		return analysis.Output{}, err
	}

	features := make([][4]float64, len(segments))

	for i, seg := range segments {
		s, err := kernel.RealSpectrum(seg, kernel.WindowRectangular, float64(in.SampleRate))
		if err != nil {
			return analysis.Output{}, err
		}

		mean, std := kernel.MeanStd(s.Magnitude)
		features[i] = [4]float64{
			kernel.CalculateMoments(seg).Energy,
			kernel.Centroid(s),
			mean,
			std,
		}
	}

	var distances []float64

	for i := range features {
		for j := i + 1; j < len(features); j++ {
			var d float64
			for k := range features[i] {
				diff := features[i][k] - features[j][k]
				d += diff * diff
			}

			distances = append(distances, math.Sqrt(d))
		}
	}

	m := kernel.CalculateMoments(distances)

	return metrics(map[string]any{
		"num_segments":     len(segments),
		"mean_distance":    m.Mean,
		"std_distance":     m.Std,
		"min_distance":     m.Min,
		"max_distance":     m.Max,
		"similarity_score": 1 / (1 + m.Mean),
	}), nil
}

// comparisonSegments splits the channel into equal segments, or uses the
// run's segmentation when UseContextSegments is set.
func comparisonSegments(in analysis.Input, p segmentComparisonParams) ([][]float64, error) {
	var out [][]float64

	if p.UseContextSegments && in.Context != nil {
		for _, seg := range in.Context.Segments() {
			if seg.Len() >= p.MinSegmentLength {
				out = append(out, in.Samples[seg.Start:seg.End])
			}
		}

		if len(out) < 2 {
			return nil, fmt.Errorf("inter_segment_comparison: %d context segments of at least %d samples, need 2",
				len(out), p.MinSegmentLength)
		}

		return out, nil
	}

	length := len(in.Samples) / p.NumSegments
	if length < p.MinSegmentLength {
		return nil, fmt.Errorf("inter_segment_comparison: segment length %d below minimum %d",
			length, p.MinSegmentLength)
	}

	for i := range p.NumSegments {
		out = append(out, in.Samples[i*length:(i+1)*length])
	}

	return out, nil
}
