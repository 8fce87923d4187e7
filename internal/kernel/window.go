package kernel

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// WindowType identifies a tapering window.
type WindowType string

const (
	WindowRectangular WindowType = "rectangular"
	WindowHann        WindowType = "hann"
	WindowHamming     WindowType = "hamming"
	WindowBlackman    WindowType = "blackman"
)

// ParseWindow validates a window name. The empty string selects Hann.
func ParseWindow(name string) (WindowType, error) {
	switch w := WindowType(name); w {
	case "":
		return WindowHann, nil
	case WindowRectangular, WindowHann, WindowHamming, WindowBlackman:
		return w, nil
	default:
		return "", fmt.Errorf("kernel: unknown window %q", name)
	}
}

// Window returns symmetric window coefficients of the given length.
func Window(t WindowType, length int) []float64 {
	if length <= 0 {
		return nil
	}

	out := make([]float64, length)
	if length == 1 {
		out[0] = 1

		return out
	}

	den := float64(length - 1)

	for i := range out {
		x := 2 * math.Pi * float64(i) / den

		switch t {
		case WindowHann:
			out[i] = 0.5 - 0.5*math.Cos(x)
		case WindowHamming:
			out[i] = 0.54 - 0.46*math.Cos(x)
		case WindowBlackman:
			out[i] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
		default:
			out[i] = 1
		}
	}

	return out
}

// ApplyWindow returns a windowed copy of x.
func ApplyWindow(t WindowType, x []float64) []float64 {
	out := make([]float64, len(x))
	copy(out, x)

	if t == "" || t == WindowRectangular || len(out) == 0 {
		return out
	}

	vecmath.MulBlockInPlace(out, Window(t, len(out)))

	return out
}
