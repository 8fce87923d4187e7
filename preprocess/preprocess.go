// Package preprocess applies the protocol's global preprocessing to the
// derived channel buffers and records what was done.
package preprocess

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/cwbudde/algo-protocol/analysis"
)

// ErrSilentInput is returned when normalization is requested for a signal
// with no measurable level.
var ErrSilentInput = errors.New("preprocess: cannot normalize silent input")

// Normalize selects level normalization. TargetLevel is in dBFS for rms and
// peak and in LUFS for lufs.
type Normalize struct {
	Enabled     bool    `yaml:"enabled"`
	Method      string  `yaml:"method"       validate:"oneof=rms peak lufs"`
	TargetLevel float64 `yaml:"target_level" validate:"lte=0"`
}

// Segmentation selects how segment boundaries are computed. Fixed uses
// SegmentDuration; energy uses ThresholdDB and MinDuration.
type Segmentation struct {
	Enabled         bool    `yaml:"enabled"`
	Method          string  `yaml:"method"           validate:"oneof=fixed energy"`
	SegmentDuration float64 `yaml:"segment_duration" validate:"gte=0"`
	ThresholdDB     float64 `yaml:"threshold_db"     validate:"lte=0"`
	MinDuration     float64 `yaml:"min_duration"     validate:"gte=0"`
}

// Config is the preprocessing block of a protocol.
type Config struct {
	Normalize    Normalize    `yaml:"normalize"`
	Segmentation Segmentation `yaml:"segmentation"`
}

// DefaultConfig returns preprocessing disabled. Protocol blocks are decoded
// over it, so absent keys keep these values.
func DefaultConfig() Config {
	return Config{
		Normalize:    Normalize{Method: "rms", TargetLevel: -20},
		Segmentation: Segmentation{Method: "fixed", SegmentDuration: 1, ThresholdDB: -40, MinDuration: 0.1},
	}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	err := configValidator.Struct(c)
	if err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}

	if c.Segmentation.Enabled && c.Segmentation.Method == "fixed" && c.Segmentation.SegmentDuration <= 0 {
		return errors.New("preprocess: fixed segmentation needs a positive segment_duration")
	}

	return nil
}

// Apply returns normalized copies of buffers together with the metadata the
// execution context records. The input map is not modified.
func Apply(cfg Config, buffers map[string][]float64, order []string, sampleRate int) (
	map[string][]float64, analysis.Preprocessing, error,
) {
	var meta analysis.Preprocessing

	err := cfg.Validate()
	if err != nil {
		return nil, meta, err
	}

	if len(order) == 0 {
		return nil, meta, errors.New("preprocess: no channels")
	}

	out := make(map[string][]float64, len(buffers))
	for k, v := range buffers {
		out[k] = append([]float64(nil), v...)
	}

	if cfg.Normalize.Enabled {
		gain, err := normalizationGain(cfg.Normalize, out, order, sampleRate)
		if err != nil {
			return nil, meta, err
		}

		meta.Normalization = cfg.Normalize.Method
		meta.TargetLevel = cfg.Normalize.TargetLevel
		meta.Gains = make(map[string]float64, len(order))

		for _, name := range order {
			buf := out[name]
			for i := range buf {
				buf[i] *= gain
			}

			meta.Gains[name] = gain
		}
	}

	if cfg.Segmentation.Enabled {
		meta.Segmentation = cfg.Segmentation.Method
		meta.Segments = segment(cfg.Segmentation, out, order, sampleRate)
	}

	return out, meta, nil
}

// normalizationGain returns one gain for all channels so inter-channel
// relationships survive normalization.
func normalizationGain(n Normalize, buffers map[string][]float64, order []string, sampleRate int) (float64, error) {
	var level float64

	switch n.Method {
	case "peak":
		for _, name := range order {
			for _, v := range buffers[name] {
				level = math.Max(level, math.Abs(v))
			}
		}
	case "lufs":
		lufs, ok := IntegratedLoudness(pick(buffers, order), sampleRate)
		if !ok {
			return 0, ErrSilentInput
		}

		return math.Pow(10, (n.TargetLevel-lufs)/20), nil
	default:
		var sum float64

		count := 0

		for _, name := range order {
			for _, v := range buffers[name] {
				sum += v * v
			}

			count += len(buffers[name])
		}

		if count > 0 {
			level = math.Sqrt(sum / float64(count))
		}
	}

	if level == 0 {
		return 0, ErrSilentInput
	}

	return math.Pow(10, n.TargetLevel/20) / level, nil
}

func pick(buffers map[string][]float64, order []string) [][]float64 {
	out := make([][]float64, 0, len(order))
	for _, name := range order {
		out = append(out, buffers[name])
	}

	return out
}
