package channel

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-protocol/internal/testutil"
)

func stereo(n int) Audio {
	return Audio{
		Channels:   testutil.Stereo(testutil.DeterministicNoise(1, 1, n), testutil.DeterministicNoise(2, 1, n)),
		SampleRate: 48000,
		Frames:     n,
	}
}

func TestDeriveStereo(t *testing.T) {
	t.Parallel()

	a := stereo(257)

	got, err := Derive(a, []string{"left", "right", "mono", "sum", "difference"})
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}

	l, r := a.Channels[0], a.Channels[1]

	for name, buf := range got {
		if len(buf) != len(l) {
			t.Fatalf("%s: len = %d, want %d", name, len(buf), len(l))
		}
	}

	sum := make([]float64, len(l))
	diff := make([]float64, len(l))
	mono := make([]float64, len(l))

	for i := range l {
		sum[i] = l[i] + r[i]
		diff[i] = l[i] - r[i]
		mono[i] = (l[i] + r[i]) * 0.5
	}

	testutil.RequireSliceNearlyEqual(t, got["sum"], sum, 1e-12)
	testutil.RequireSliceNearlyEqual(t, got["difference"], diff, 1e-12)
	testutil.RequireSliceNearlyEqual(t, got["mono"], mono, 1e-12)
	testutil.RequireSliceNearlyEqual(t, got["left"], l, 0)
	testutil.RequireSliceNearlyEqual(t, got["right"], r, 0)
}

func TestDeriveBuffersAreIndependent(t *testing.T) {
	t.Parallel()

	a := stereo(8)

	got, err := Derive(a, []string{"left", "right", "mono", "sum", "difference"})
	if err != nil {
		t.Fatal(err)
	}

	l0, r0 := a.Channels[0][0], a.Channels[1][0]

	for name, buf := range got {
		buf[0] = 42

		if a.Channels[0][0] != l0 || a.Channels[1][0] != r0 {
			t.Fatalf("%s aliases the source", name)
		}
	}
}

func TestDeriveErrors(t *testing.T) {
	t.Parallel()

	mono := Audio{Channels: [][]float64{{1, 2, 3}}, SampleRate: 8000, Frames: 3}

	tests := []struct {
		name      string
		audio     Audio
		requested []string
		want      error
	}{
		{"left from mono source", mono, []string{"left"}, ErrChannelUnavailable},
		{"difference from mono source", mono, []string{"difference"}, ErrChannelUnavailable},
		{"unknown channel", mono, []string{"center"}, ErrUnknownChannel},
		{"declared length differs", Audio{Channels: [][]float64{{1, 2}}, Frames: 3}, []string{"mono"}, ErrLengthMismatch},
		{"no channels", Audio{}, []string{"mono"}, ErrNoAudio},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Derive(tt.audio, tt.requested)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestDeriveMonoFromMonoSource(t *testing.T) {
	t.Parallel()

	got, err := Derive(Audio{Channels: [][]float64{{1, -2, 3}}, Frames: 3}, []string{"mono"})
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, got["mono"], []float64{1, -2, 3}, 0)
}

func TestDeriveMonoAveragesAllChannels(t *testing.T) {
	t.Parallel()

	a := Audio{Channels: [][]float64{{3, 0, -3}, {0, 3, 0}, {0, 0, 6}}, Frames: 3}

	got, err := Derive(a, []string{"mono", "sum"})
	if err != nil {
		t.Fatal(err)
	}

	testutil.RequireSliceNearlyEqual(t, got["mono"], []float64{1, 1, 1}, 1e-12)
	testutil.RequireSliceNearlyEqual(t, got["sum"], []float64{3, 3, -3}, 1e-12)
}

func TestKnown(t *testing.T) {
	t.Parallel()

	for _, n := range Names() {
		if !Known(string(n)) {
			t.Errorf("Known(%q) = false", n)
		}
	}

	if Known("centre") {
		t.Error("Known(centre) = true")
	}
}
