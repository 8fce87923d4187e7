package methods

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/internal/kernel"
)

// ErrPeerUnavailable is returned when an inter-channel method's peer channel
// was not derived for the run.
var ErrPeerUnavailable = errors.New("peer channel not available")

type crossCorrelationParams struct {
	With       string  `yaml:"with"        validate:"oneof=left right mono sum difference"`
	MaxLagMS   float64 `yaml:"max_lag_ms"  validate:"gt=0"`
	MaxSamples int     `yaml:"max_samples" validate:"gte=0"`
}

type channelDifferenceParams struct {
	With       string `yaml:"with"        validate:"oneof=left right mono sum difference"`
	MaxSamples int    `yaml:"max_samples" validate:"gte=0"`
}

func interChannel() []analysis.Descriptor {
	return []analysis.Descriptor{
		{
			ID:          "cross_correlation",
			Family:      analysis.FamilyInterChannel,
			Description: "Normalized cross-correlation against a peer channel",
			Func:        typed(crossCorrelation),
			Defaults:    analysis.Params{"with": "right", "max_lag_ms": 10.0, "max_samples": 1 << 20},
			Outputs: []string{
				"max_correlation", "lag_samples", "lag_ms", "zero_lag_correlation", "samples_analyzed",
			},
			Visualization: true,
			Check:         analysis.Checker[crossCorrelationParams](),
		},
		{
			ID:          "channel_difference",
			Family:      analysis.FamilyInterChannel,
			Description: "Level and shape difference against a peer channel",
			Func:        typed(channelDifference),
			Defaults:    analysis.Params{"with": "right", "max_samples": 0},
			Outputs: []string{
				"rms_difference", "relative_difference_db", "level_difference_db", "pearson_correlation",
			},
			Check: analysis.Checker[channelDifferenceParams](),
		},
	}
}

// peer returns the aligned leading samples of the channel and its peer.
func peer(in analysis.Input, with string, maxSamples int) ([]float64, []float64, error) {
	if in.Context == nil {
		return nil, nil, fmt.Errorf("%w: %s (no execution context)", ErrPeerUnavailable, with)
	}

	other, ok := in.Context.Channel(with)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrPeerUnavailable, with)
	}

	return head(in.Samples, maxSamples), head(other, maxSamples), nil
}

func crossCorrelation(in analysis.Input, p crossCorrelationParams) (analysis.Output, error) {
	a, b, err := peer(in, p.With, p.MaxSamples)
	if err != nil {
		return analysis.Output{}, err
	}

	maxLag := max(int(p.MaxLagMS/1000*float64(in.SampleRate)), 1)

	cc, err := kernel.CrossCorrelate(a, b, maxLag)
	if err != nil {
		return analysis.Output{}, err
	}

	center := len(cc) / 2
	idx, best := 0, math.Inf(-1)

	for i, v := range cc {
		if math.Abs(v) > best {
			idx, best = i, math.Abs(v)
		}
	}

	lag := idx - center

	out := metrics(map[string]any{
		"max_correlation":      cc[idx],
		"lag_samples":          lag,
		"lag_ms":               float64(lag) / float64(in.SampleRate) * 1000,
		"zero_lag_correlation": cc[center],
		"samples_analyzed":     len(a),
	})
	out.Visualization = map[string]any{
		"lags_ms":     decimate(axisCentered(len(cc), 1000/float64(in.SampleRate)), maxPlotPoints),
		"correlation": decimate(cc, maxPlotPoints),
	}

	return out, nil
}

func channelDifference(in analysis.Input, p channelDifferenceParams) (analysis.Output, error) {
	a, b, err := peer(in, p.With, p.MaxSamples)
	if err != nil {
		return analysis.Output{}, err
	}

	if len(a) == 0 {
		return analysis.Output{}, kernel.ErrEmptyInput
	}

	diff := make([]float64, len(a))
	for i := range a {
		diff[i] = a[i] - b[i]
	}

	ma := kernel.CalculateMoments(a)
	mb := kernel.CalculateMoments(b)
	md := kernel.CalculateMoments(diff)

	return metrics(map[string]any{
		"rms_difference":         md.RMS,
		"relative_difference_db": toDB(md.RMS) - toDB(ma.RMS),
		"level_difference_db":    toDB(ma.RMS) - toDB(mb.RMS),
		"pearson_correlation":    pearson(a, b, ma, mb),
	}), nil
}

func pearson(a, b []float64, ma, mb kernel.Moments) float64 {
	if ma.Std == 0 || mb.Std == 0 {
		return 0
	}

	var cov float64
	for i := range a {
		cov += (a[i] - ma.Mean) * (b[i] - mb.Mean)
	}

	return cov / float64(len(a)) / (ma.Std * mb.Std)
}

func axisCentered(n int, step float64) []float64 {
	out := axis(n, step)
	offset := float64(n/2) * step

	for i := range out {
		out[i] -= offset
	}

	return out
}
