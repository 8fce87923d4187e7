package methods

import (
	"math"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/internal/kernel"
)

type envelopeParams struct {
	Method     string `yaml:"method"      validate:"oneof=hilbert rms"`
	WindowSize int    `yaml:"window_size" validate:"gte=1"`
	MaxSamples int    `yaml:"max_samples" validate:"gte=0"`
}

type autocorrelationParams struct {
	MaxLag     int  `yaml:"max_lag"     validate:"gte=1"`
	Normalize  bool `yaml:"normalize"`
	MaxSamples int  `yaml:"max_samples" validate:"gte=0"`
}

// eventParams drives envelope-based event detection shared by
// pulse_detection and duration_ratios. Threshold is relative to the
// envelope maximum.
type eventParams struct {
	Threshold     float64 `yaml:"threshold"       validate:"gt=0,lte=1"`
	MinDistanceMS float64 `yaml:"min_distance_ms" validate:"gte=0"`
	FrameSize     int     `yaml:"frame_size"      validate:"gte=1"`
}

var eventDefaults = analysis.Params{
	"threshold":       0.5,
	"min_distance_ms": 50.0,
	"frame_size":      256,
}

func temporal() []analysis.Descriptor {
	return []analysis.Descriptor{
		{
			ID:          "envelope",
			Family:      analysis.FamilyTemporal,
			Description: "Amplitude envelope via Hilbert transform or block RMS",
			Func:        typed(envelope),
			Defaults:    analysis.Params{"method": "hilbert", "window_size": 1024, "max_samples": 0},
			Outputs: []string{
				"envelope_mean", "envelope_std", "envelope_max", "dynamic_range_db", "profile",
			},
			Visualization: true,
			Check:         analysis.Checker[envelopeParams](),
		},
		{
			ID:          "autocorrelation",
			Family:      analysis.FamilyTemporal,
			Description: "Temporal autocorrelation and first periodicity peak",
			Func:        typed(autocorrelation),
			Defaults:    analysis.Params{"max_lag": 2048, "normalize": true, "max_samples": 200000},
			Outputs: []string{
				"autocorr_max", "first_peak_lag", "first_peak_value", "peak_found",
				"periodicity_hz", "samples_analyzed",
			},
			Visualization: true,
			Check:         analysis.Checker[autocorrelationParams](),
		},
		{
			ID:          "pulse_detection",
			Family:      analysis.FamilyTemporal,
			Description: "Discrete pulse detection on the block RMS envelope",
			Func:        typed(pulseDetection),
			Defaults:    eventDefaults,
			Outputs: []string{
				"pulse_count", "pulse_rate_hz", "mean_interval_ms", "interval_std_ms", "pulse_times_s",
			},
			Check: analysis.Checker[eventParams](),
		},
		{
			ID:          "duration_ratios",
			Family:      analysis.FamilyTemporal,
			Description: "Ratios between consecutive event intervals",
			Func:        typed(durationRatios),
			Defaults:    eventDefaults,
			Outputs: []string{
				"event_count", "mean_ratio", "ratio_std", "min_ratio", "max_ratio", "ratios",
			},
			Check: analysis.Checker[eventParams](),
		},
	}
}

func envelope(in analysis.Input, p envelopeParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)

	var profile []float64

	switch p.Method {
	case "rms":
		profile = kernel.RMSEnvelope(x, p.WindowSize)
	default:
		env, err := kernel.HilbertEnvelope(x)
		if err != nil {
			return analysis.Output{}, err
		}

		profile = blockMean(env, p.WindowSize)
	}

	if len(profile) == 0 {
		return analysis.Output{}, kernel.ErrEmptyInput
	}

	m := kernel.CalculateMoments(profile)
	lo := percentile(profile, 5)
	hi := percentile(profile, 95)

	out := metrics(map[string]any{
		"envelope_mean":    m.Mean,
		"envelope_std":     m.Std,
		"envelope_max":     m.Max,
		"dynamic_range_db": toDB(hi) - toDB(lo),
		"profile":          profile,
	})
	out.Visualization = map[string]any{
		"times":    decimate(axis(len(profile), float64(p.WindowSize)/float64(in.SampleRate)), maxPlotPoints),
		"envelope": decimate(profile, maxPlotPoints),
	}

	return out, nil
}

func autocorrelation(in analysis.Input, p autocorrelationParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)

	ac, err := kernel.AutoCorrelate(x, p.MaxLag, p.Normalize)
	if err != nil {
		return analysis.Output{}, err
	}

	acMax := 0.0
	if len(ac) > 1 {
		_, acMax = kernel.ArgMax(ac[1:])
	}

	var (
		lag   int
		value float64
		freq  float64
	)

	peaks := kernel.FindPeaks(ac, 0, 1)
	if len(peaks) > 0 {
		lag = peaks[0]
		value = ac[lag]
		freq = float64(in.SampleRate) / float64(lag)
	}

	out := metrics(map[string]any{
		"autocorr_max":     acMax,
		"first_peak_lag":   lag,
		"first_peak_value": value,
		"peak_found":       len(peaks) > 0,
		"periodicity_hz":   freq,
		"samples_analyzed": len(x),
	})
	out.Visualization = map[string]any{
		"lags":            axis(len(ac), 1),
		"autocorrelation": decimate(ac, maxPlotPoints),
	}

	return out, nil
}

func pulseDetection(in analysis.Input, p eventParams) (analysis.Output, error) {
	times, err := detectEvents(in.Samples, in.SampleRate, p)
	if err != nil {
		return analysis.Output{}, err
	}

	intervals := diffMS(times)
	meanIv, stdIv := kernel.MeanStd(intervals)
	duration := float64(len(in.Samples)) / float64(in.SampleRate)

	return metrics(map[string]any{
		"pulse_count":      len(times),
		"pulse_rate_hz":    float64(len(times)) / duration,
		"mean_interval_ms": meanIv,
		"interval_std_ms":  stdIv,
		"pulse_times_s":    times,
	}), nil
}

func durationRatios(in analysis.Input, p eventParams) (analysis.Output, error) {
	times, err := detectEvents(in.Samples, in.SampleRate, p)
	if err != nil {
		return analysis.Output{}, err
	}

	intervals := diffMS(times)

	ratios := make([]float64, 0, max(len(intervals)-1, 0))
	for i := 1; i < len(intervals); i++ {
		if intervals[i-1] > 0 {
			ratios = append(ratios, intervals[i]/intervals[i-1])
		}
	}

	m := kernel.CalculateMoments(ratios)

	return metrics(map[string]any{
		"event_count": len(times),
		"mean_ratio":  m.Mean,
		"ratio_std":   m.Std,
		"min_ratio":   m.Min,
		"max_ratio":   m.Max,
		"ratios":      ratios,
	}), nil
}

// detectEvents returns event onset times in seconds: local maxima of the
// block RMS envelope above threshold*max, at least MinDistanceMS apart.
func detectEvents(x []float64, sampleRate int, p eventParams) ([]float64, error) {
	if len(x) == 0 {
		return nil, kernel.ErrEmptyInput
	}

	env := kernel.RMSEnvelope(x, p.FrameSize)

	_, peak := kernel.ArgMax(env)
	if peak == 0 {
		return []float64{}, nil
	}

	frameSec := float64(p.FrameSize) / float64(sampleRate)
	minDist := int(math.Ceil(p.MinDistanceMS / 1000 / frameSec))

	idx := kernel.FindPeaks(padEdges(env), p.Threshold*peak, minDist)

	times := make([]float64, len(idx))
	for i, k := range idx {
		times[i] = float64(k-1) * frameSec
	}

	return times, nil
}

// padEdges surrounds x with zeros so events touching either end are
// still local maxima.
func padEdges(x []float64) []float64 {
	out := make([]float64, len(x)+2)
	copy(out[1:], x)

	return out
}

func diffMS(times []float64) []float64 {
	if len(times) < 2 {
		return []float64{}
	}

	out := make([]float64, len(times)-1)
	for i := range out {
		out[i] = (times[i+1] - times[i]) * 1000
	}

	return out
}

func blockMean(x []float64, size int) []float64 {
	out := make([]float64, 0, (len(x)+size-1)/size)

	for start := 0; start < len(x); start += size {
		end := min(start+size, len(x))

		var sum float64
		for _, v := range x[start:end] {
			sum += v
		}

		out = append(out, sum/float64(end-start))
	}

	return out
}
