package preprocess

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-protocol/analysis"
	"github.com/cwbudde/algo-protocol/internal/testutil"
)

func rmsDB(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}

	return 20 * math.Log10(math.Sqrt(s/float64(len(x))))
}

func TestApplyDisabledCopiesBuffers(t *testing.T) {
	t.Parallel()

	in := map[string][]float64{"mono": {0.1, 0.2}}

	out, meta, err := Apply(DefaultConfig(), in, []string{"mono"}, 8000)
	if err != nil {
		t.Fatal(err)
	}

	out["mono"][0] = 9
	if in["mono"][0] != 0.1 {
		t.Fatal("Apply modified its input")
	}

	if meta.Normalization != "" || meta.Segmentation != "" || meta.Segments != nil {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestNormalizeRMSAndPeak(t *testing.T) {
	t.Parallel()

	sine := testutil.DeterministicSine(440, 48000, 0.1, 48000)

	tests := []struct {
		method string
		target float64
		check  func(x []float64) float64
	}{
		{"rms", -20, rmsDB},
		{"peak", -1, func(x []float64) float64 {
			var p float64
			for _, v := range x {
				p = math.Max(p, math.Abs(v))
			}

			return 20 * math.Log10(p)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.Normalize = Normalize{Enabled: true, Method: tt.method, TargetLevel: tt.target}

			out, meta, err := Apply(cfg, map[string][]float64{"left": sine, "right": sine},
				[]string{"left", "right"}, 48000)
			if err != nil {
				t.Fatal(err)
			}

			if got := tt.check(out["left"]); math.Abs(got-tt.target) > 1e-9 {
				t.Errorf("level = %.6f, want %v", got, tt.target)
			}

			if meta.Gains["left"] != meta.Gains["right"] {
				t.Errorf("channels got different gains: %v", meta.Gains)
			}

			if meta.Normalization != tt.method {
				t.Errorf("normalization = %q, want %q", meta.Normalization, tt.method)
			}
		})
	}
}

func TestNormalizeLUFS(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Normalize = Normalize{Enabled: true, Method: "lufs", TargetLevel: -23}

	out, _, err := Apply(cfg, map[string][]float64{"mono": testutil.DeterministicSine(1000, 48000, 0.3, 3*48000)},
		[]string{"mono"}, 48000)
	if err != nil {
		t.Fatal(err)
	}

	got, ok := IntegratedLoudness([][]float64{out["mono"]}, 48000)
	if !ok {
		t.Fatal("loudness gated out")
	}

	if math.Abs(got+23) > 0.05 {
		t.Errorf("loudness after normalization = %.3f LUFS, want -23", got)
	}
}

func TestIntegratedLoudnessSilence(t *testing.T) {
	t.Parallel()

	if _, ok := IntegratedLoudness([][]float64{testutil.DC(0, 48000)}, 48000); ok {
		t.Error("silence should be gated out")
	}
}

func TestNormalizeSilentInput(t *testing.T) {
	t.Parallel()

	for _, method := range []string{"rms", "peak", "lufs"} {
		cfg := DefaultConfig()
		cfg.Normalize = Normalize{Enabled: true, Method: method, TargetLevel: -20}

		_, _, err := Apply(cfg, map[string][]float64{"mono": testutil.DC(0, 48000)}, []string{"mono"}, 48000)
		if !errors.Is(err, ErrSilentInput) {
			t.Errorf("%s: expected ErrSilentInput, got %v", method, err)
		}
	}
}

func TestFixedSegmentation(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Segmentation = Segmentation{Enabled: true, Method: "fixed", SegmentDuration: 0.5}

	_, meta, err := Apply(cfg, map[string][]float64{"mono": make([]float64, 2500)}, []string{"mono"}, 2000)
	if err != nil {
		t.Fatal(err)
	}

	want := []analysis.Segment{{Start: 0, End: 1000}, {Start: 1000, End: 2000}, {Start: 2000, End: 2500}}
	if len(meta.Segments) != len(want) {
		t.Fatalf("segments = %v, want %v", meta.Segments, want)
	}

	for i := range want {
		if meta.Segments[i] != want[i] {
			t.Fatalf("segments = %v, want %v", meta.Segments, want)
		}
	}
}

func TestEnergySegmentation(t *testing.T) {
	t.Parallel()

	const sr = 8000

	// 0.5 s silence, 1 s tone, 0.5 s silence, 0.05 s blip, 0.45 s silence.
	x := make([]float64, 2.5*sr)
	copy(x[sr/2:], testutil.DeterministicSine(440, sr, 0.5, sr))
	copy(x[2*sr:], testutil.DeterministicSine(440, sr, 0.5, sr/20))

	cfg := DefaultConfig()
	cfg.Segmentation = Segmentation{Enabled: true, Method: "energy", ThresholdDB: -40, MinDuration: 0.1}

	_, meta, err := Apply(cfg, map[string][]float64{"mono": x}, []string{"mono"}, sr)
	if err != nil {
		t.Fatal(err)
	}

	if len(meta.Segments) != 1 {
		t.Fatalf("segments = %v, want exactly one", meta.Segments)
	}

	if s := meta.Segments[0]; s.Start != sr/2 || s.End != sr/2+sr {
		t.Errorf("segment = %+v, want [%d, %d)", s, sr/2, sr/2+sr)
	}
}

func TestConfigValidation(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Normalize.Method = "loudest"

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown normalization method")
	}

	cfg = DefaultConfig()
	cfg.Segmentation = Segmentation{Enabled: true, Method: "fixed"}

	if err := cfg.Validate(); err == nil {
		t.Error("expected error for fixed segmentation without duration")
	}
}
