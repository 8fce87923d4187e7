// Package channel derives the logical analysis channels from planar audio.
package channel

import (
	"errors"
	"fmt"
	"slices"

	"github.com/cwbudde/algo-vecmath"
)

var (
	// ErrChannelUnavailable is returned when a stereo-only channel is
	// requested from a mono source.
	ErrChannelUnavailable = errors.New("channel unavailable")
	// ErrLengthMismatch is returned when the declared frame count differs
	// from the actual sample count.
	ErrLengthMismatch = errors.New("length mismatch")
	// ErrUnknownChannel is returned for names outside the closed channel set.
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrNoAudio is returned when the source has no channels.
	ErrNoAudio = errors.New("no audio channels")
)

// Name is a logical channel identifier.
type Name string

const (
	Left       Name = "left"
	Right      Name = "right"
	Mono       Name = "mono"
	Sum        Name = "sum"
	Difference Name = "difference"
)

// Names returns the closed channel set in canonical order.
func Names() []Name {
	return []Name{Left, Right, Mono, Sum, Difference}
}

// Known reports whether s names a channel in the closed set.
func Known(s string) bool {
	return slices.Contains(Names(), Name(s))
}

// stereoOnly reports whether n needs at least two source channels.
func (n Name) stereoOnly() bool {
	return n != Mono
}

// Audio is decoded planar audio. Frames is the declared length per channel.
type Audio struct {
	Channels   [][]float64
	SampleRate int
	Frames     int
}

// Derive returns one independent buffer per requested channel. All buffers
// have exactly Frames samples; nothing is resampled or trimmed.
func Derive(a Audio, requested []string) (map[string][]float64, error) {
	err := a.check()
	if err != nil {
		return nil, err
	}

	out := make(map[string][]float64, len(requested))

	for _, r := range requested {
		if !Known(r) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, r)
		}

		n := Name(r)
		if n.stereoOnly() && len(a.Channels) < 2 {
			return nil, fmt.Errorf("%w: %s requires a stereo source, got %d channel(s)",
				ErrChannelUnavailable, n, len(a.Channels))
		}

		out[r] = a.derive(n)
	}

	return out, nil
}

func (a Audio) check() error {
	if len(a.Channels) == 0 {
		return ErrNoAudio
	}

	for i, ch := range a.Channels {
		if len(ch) != a.Frames {
			return fmt.Errorf("%w: channel %d has %d samples, declared %d",
				ErrLengthMismatch, i, len(ch), a.Frames)
		}
	}

	return nil
}

func (a Audio) derive(n Name) []float64 {
	switch n {
	case Left:
		return slices.Clone(a.Channels[0])
	case Right:
		return slices.Clone(a.Channels[1])
	case Sum:
		out := slices.Clone(a.Channels[0])
		vecmath.AddBlockInPlace(out, a.Channels[1])

		return out
	case Difference:
		out := make([]float64, a.Frames)
		vecmath.ScaleBlock(out, a.Channels[1], -1)
		vecmath.AddBlockInPlace(out, a.Channels[0])

		return out
	default:
		out := slices.Clone(a.Channels[0])
		for _, ch := range a.Channels[1:] {
			vecmath.AddBlockInPlace(out, ch)
		}

		vecmath.ScaleBlock(out, out, 1/float64(len(a.Channels)))

		return out
	}
}
