package kernel

import (
	"errors"
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// ErrEmptyInput is returned when a kernel receives no samples.
var ErrEmptyInput = errors.New("kernel: empty input")

// NextPowerOf2 returns the next power of 2 >= n.
func NextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}

	p := 1
	for p < n {
		p *= 2
	}

	return p
}

// FFT zero-pads x to size (a power of two >= len(x)) and returns its complex spectrum.
func FFT(x []float64, size int) ([]complex128, error) {
	if len(x) == 0 {
		return nil, ErrEmptyInput
	}

	size = NextPowerOf2(max(size, len(x)))

	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, fmt.Errorf("kernel: failed to create FFT plan: %w", err)
	}

	in := make([]complex128, size)
	for i, v := range x {
		in[i] = complex(v, 0)
	}

	out := make([]complex128, size)

	err = plan.Forward(out, in)
	if err != nil {
		return nil, fmt.Errorf("kernel: forward FFT failed: %w", err)
	}

	return out, nil
}

// IFFT returns the inverse transform of a power-of-two sized spectrum.
func IFFT(spec []complex128) ([]complex128, error) {
	if len(spec) == 0 {
		return nil, ErrEmptyInput
	}

	plan, err := algofft.NewPlan64(len(spec))
	if err != nil {
		return nil, fmt.Errorf("kernel: failed to create FFT plan: %w", err)
	}

	out := make([]complex128, len(spec))

	err = plan.Inverse(out, spec)
	if err != nil {
		return nil, fmt.Errorf("kernel: inverse FFT failed: %w", err)
	}

	return out, nil
}

// Spectrum is the one-sided magnitude spectrum of a real signal.
type Spectrum struct {
	Magnitude []float64
	// BinHz is the frequency spacing between bins.
	BinHz   float64
	FFTSize int
}

// Frequency returns the centre frequency of bin k.
func (s Spectrum) Frequency(k int) float64 { return float64(k) * s.BinHz }

// RealSpectrum windows x with w (empty for rectangular), zero-pads to the next
// power of two and returns bins 0..N/2.
func RealSpectrum(x []float64, w WindowType, sampleRate float64) (Spectrum, error) {
	if len(x) == 0 {
		return Spectrum{}, ErrEmptyInput
	}

	frame := ApplyWindow(w, x)

	spec, err := FFT(frame, len(frame))
	if err != nil {
		return Spectrum{}, err
	}

	n := len(spec)/2 + 1
	re := make([]float64, n)
	im := make([]float64, n)

	for k := range n {
		re[k] = real(spec[k])
		im[k] = imag(spec[k])
	}

	mag := make([]float64, n)
	vecmath.Magnitude(mag, re, im)

	return Spectrum{
		Magnitude: mag,
		BinHz:     sampleRate / float64(len(spec)),
		FFTSize:   len(spec),
	}, nil
}

// PowerSpectrum returns |X[k]|^2 for the one-sided spectrum of x.
func PowerSpectrum(x []float64) ([]float64, error) {
	spec, err := FFT(x, len(x))
	if err != nil {
		return nil, err
	}

	n := len(spec)/2 + 1
	re := make([]float64, n)
	im := make([]float64, n)

	for k := range n {
		re[k] = real(spec[k])
		im[k] = imag(spec[k])
	}

	out := make([]float64, n)
	vecmath.Power(out, re, im)

	return out, nil
}

// AmplitudeSpectrum is RealSpectrum scaled so that a full-scale sine whose
// frequency falls on a bin reads 1.
func AmplitudeSpectrum(x []float64, w WindowType, sampleRate float64) (Spectrum, error) {
	s, err := RealSpectrum(x, w, sampleRate)
	if err != nil {
		return Spectrum{}, err
	}

	var gain float64
	for _, c := range Window(w, len(x)) {
		gain += c
	}

	if gain > 0 {
		vecmath.ScaleBlock(s.Magnitude, s.Magnitude, 2/gain)
	}

	return s, nil
}

// RealCepstrum returns the real cepstrum IFFT(log|FFT(x)|) of the windowed
// signal, truncated to len(x).
func RealCepstrum(x []float64, w WindowType) ([]float64, error) {
	spec, err := FFT(ApplyWindow(w, x), len(x))
	if err != nil {
		return nil, err
	}

	for k, v := range spec {
		mag := math.Hypot(real(v), imag(v))
		spec[k] = complex(mathLog(mag+1e-12), 0)
	}

	td, err := IFFT(spec)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(x))
	for i := range out {
		out[i] = real(td[i])
	}

	return out, nil
}
