package methods

import (
	"math"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/internal/kernel"
)

type lsbParams struct {
	MaxSamples int `yaml:"max_samples" validate:"gte=0"`
}

type quantizationParams struct {
	MaxLag     int `yaml:"max_lag"     validate:"gte=1"`
	MaxSamples int `yaml:"max_samples" validate:"gte=0"`
}

type residualParams struct {
	CutoffHz   float64 `yaml:"cutoff_freq" validate:"gt=0"`
	Order      int     `yaml:"order"       validate:"gte=2,lte=8"`
	MaxSamples int     `yaml:"max_samples" validate:"gte=0"`
}

func steganography() []analysis.Descriptor {
	return []analysis.Descriptor{
		{
			ID:          "lsb_analysis",
			Family:      analysis.FamilySteganography,
			Description: "Least significant bit statistics of 16-bit PCM",
			Func:        typed(lsbAnalysis),
			Defaults:    analysis.Params{"max_samples": 100000},
			Outputs: []string{
				"lsb_mean", "lsb_std", "transition_rate", "mean_zero_run", "mean_one_run", "samples_analyzed",
			},
			Check: analysis.Checker[lsbParams](),
		},
		{
			ID:          "quantization_noise",
			Family:      analysis.FamilySteganography,
			Description: "Structure of the 16-bit requantization error",
			Func:        typed(quantizationNoise),
			Defaults:    analysis.Params{"max_lag": 100, "max_samples": 100000},
			Outputs: []string{
				"noise_power", "noise_std", "autocorr_peak", "spectral_flatness", "samples_analyzed",
			},
			Check: analysis.Checker[quantizationParams](),
		},
		{
			ID:          "signal_residual",
			Family:      analysis.FamilySteganography,
			Description: "Power split between a zero-phase lowpass and its residual",
			Func:        typed(signalResidual),
			Defaults:    analysis.Params{"cutoff_freq": 1000.0, "order": 4, "max_samples": 100000},
			Outputs: []string{
				"signal_power", "residual_power", "snr_db", "residual_peak_freq", "energy_ratio", "samples_analyzed",
			},
			Check: analysis.Checker[residualParams](),
		},
	}
}

func lsbAnalysis(in analysis.Input, p lsbParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)
	if len(x) == 0 {
		return analysis.Output{}, kernel.ErrEmptyInput
	}

	bits := make([]float64, len(x))
	for i, v := range x {
		bits[i] = float64(toInt16(v) & 1)
	}

	var (
		transitions       int
		zeroRuns, oneRuns []float64
	)

	run := 1

	for i := 1; i < len(bits); i++ {
		if bits[i] == bits[i-1] {
			run++

			continue
		}

		transitions++

		if bits[i-1] == 0 {
			zeroRuns = append(zeroRuns, float64(run))
		} else {
			oneRuns = append(oneRuns, float64(run))
		}

		run = 1
	}

	mean, std := kernel.MeanStd(bits)
	meanZero, _ := kernel.MeanStd(zeroRuns)
	meanOne, _ := kernel.MeanStd(oneRuns)

	return metrics(map[string]any{
		"lsb_mean":         mean,
		"lsb_std":          std,
		"transition_rate":  float64(transitions) / float64(len(bits)),
		"mean_zero_run":    meanZero,
		"mean_one_run":     meanOne,
		"samples_analyzed": len(x),
	}), nil
}

func quantizationNoise(in analysis.Input, p quantizationParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)
	if len(x) == 0 {
		return analysis.Output{}, kernel.ErrEmptyInput
	}

	noise := make([]float64, len(x))
	for i, v := range x {
		noise[i] = v - float64(toInt16(v))/32767
	}

	m := kernel.CalculateMoments(noise)

	var peak float64

	if m.Energy > 0 {
		ac, err := kernel.AutoCorrelate(noise, p.MaxLag-1, true)
		if err != nil {
			return analysis.Output{}, err
		}

		if len(ac) > 1 {
			_, peak = kernel.ArgMax(ac[1:])
		}
	}

	s, err := kernel.RealSpectrum(noise, kernel.WindowRectangular, float64(in.SampleRate))
	if err != nil {
		return analysis.Output{}, err
	}

	return metrics(map[string]any{
		"noise_power":       m.Energy / float64(len(noise)),
		"noise_std":         m.Std,
		"autocorr_peak":     peak,
		"spectral_flatness": magnitudeFlatness(s.Magnitude),
		"samples_analyzed":  len(x),
	}), nil
}

// magnitudeFlatness is the geometric over arithmetic mean of the magnitude
// (not power) spectrum.
func magnitudeFlatness(mag []float64) float64 {
	const eps = 1e-10

	var logSum, total float64

	for _, m := range mag {
		logSum += math.Log(m + eps)
		total += m
	}

	n := float64(len(mag))

	return math.Exp(logSum/n) / (total/n + eps)
}

func signalResidual(in analysis.Input, p residualParams) (analysis.Output, error) {
	x := head(in.Samples, p.MaxSamples)
	if len(x) == 0 {
		return analysis.Output{}, kernel.ErrEmptyInput
	}

	sr := float64(in.SampleRate)
	filtered := kernel.FiltFilt(kernel.ButterworthLowpass(p.Order, p.CutoffHz, sr), x)

	residual := make([]float64, len(x))
	for i := range x {
		residual[i] = x[i] - filtered[i]
	}

	sig := kernel.CalculateMoments(filtered)
	res := kernel.CalculateMoments(residual)
	sigPower := sig.Energy / float64(len(x))
	resPower := res.Energy / float64(len(x))

	var snr float64
	if sigPower > 0 {
		snr = 10 * math.Log10(sigPower/(resPower+1e-10))
	}

	s, err := kernel.RealSpectrum(residual, kernel.WindowRectangular, sr)
	if err != nil {
		return analysis.Output{}, err
	}

	k, _ := kernel.ArgMax(s.Magnitude)

	return metrics(map[string]any{
		"signal_power":       sigPower,
		"residual_power":     resPower,
		"snr_db":             snr,
		"residual_peak_freq": s.Frequency(k),
		"energy_ratio":       resPower / (sigPower + 1e-10),
		"samples_analyzed":   len(x),
	}), nil
}
