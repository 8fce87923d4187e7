package kernel

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-protocol/internal/testutil"
)

func rms(x []float64) float64 {
	var s float64
	for _, v := range x {
		s += v * v
	}

	return math.Sqrt(s / float64(len(x)))
}

func TestButterworthLowpass(t *testing.T) {
	t.Parallel()

	const sr = 48000.0

	tests := []struct {
		name    string
		freq    float64
		wantMin float64
		wantMax float64
	}{
		{"passband", 100, 0.68, 0.72},
		{"stopband", 10000, 0, 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			x := testutil.DeterministicSine(tt.freq, sr, 1, 48000)
			y := FiltFilt(ButterworthLowpass(4, 1000, sr), x)

			if len(y) != len(x) {
				t.Fatalf("len = %d, want %d", len(y), len(x))
			}

			got := rms(y[4800 : len(y)-4800])
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("rms = %.4f, want in [%v, %v]", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestKWeightingShelf(t *testing.T) {
	t.Parallel()

	const sr = 48000.0

	low := KWeighting(sr).Process(testutil.DeterministicSine(500, sr, 1, 48000))
	high := KWeighting(sr).Process(testutil.DeterministicSine(8000, sr, 1, 48000))

	gainDB := 20 * math.Log10(rms(high[4800:])/rms(low[4800:]))
	if gainDB < 3 || gainDB > 5 {
		t.Errorf("shelf gain = %.2f dB, want about 4", gainDB)
	}
}

func TestInvalidDesignPassesThrough(t *testing.T) {
	t.Parallel()

	x := []float64{1, 2, 3}
	y := NewChain(Lowpass(30000, 0.7, 48000)).Process(x)
	testutil.RequireSliceNearlyEqual(t, y, x, 0)
}
