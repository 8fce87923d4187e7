package testutil

import (
	"errors"
	"math"
	"testing"
)

var errLengthMismatch = errors.New("testutil: buffers differ in length")

// Deviation locates the largest absolute difference between two buffers.
type Deviation struct {
	Index int
	Got   float64
	Want  float64
	Abs   float64
}

// WorstDeviation compares got and want element by element. Index is -1 for
// empty buffers.
func WorstDeviation(got, want []float64) (Deviation, error) {
	if len(got) != len(want) {
		return Deviation{Index: -1}, errLengthMismatch
	}

	worst := Deviation{Index: -1}

	for i := range got {
		d := math.Abs(got[i] - want[i])
		if worst.Index < 0 || d > worst.Abs || math.IsNaN(d) {
			worst = Deviation{Index: i, Got: got[i], Want: want[i], Abs: d}
		}

		if math.IsNaN(d) {
			break
		}
	}

	return worst, nil
}

// RequireSliceNearlyEqual fails t unless got matches want within eps at
// every sample. A NaN on either side is a mismatch.
func RequireSliceNearlyEqual(t *testing.T, got, want []float64, eps float64) {
	t.Helper()

	dev, err := WorstDeviation(got, want)
	if err != nil {
		t.Fatalf("%v: got %d samples, want %d", err, len(got), len(want))
	}

	if dev.Index >= 0 && !(dev.Abs <= eps) {
		t.Fatalf("sample %d: got %v, want %v (|diff| %v, tolerance %v)", dev.Index, dev.Got, dev.Want, dev.Abs, eps)
	}
}

// RequireFinite fails t if a generated buffer holds NaN or Inf.
func RequireFinite(t *testing.T, x []float64) {
	t.Helper()

	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("sample %d is %v", i, v)
		}
	}
}
