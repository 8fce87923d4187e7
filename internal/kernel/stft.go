package kernel

// STFT holds short-time magnitude spectra, one frame per hop.
type STFT struct {
	Frames  [][]float64
	BinHz   float64
	HopSec  float64
	FFTSize int
}

// ShortTime computes magnitude spectra of windowed frames of size fftSize
// (a power of two) advanced by hop samples. Signals shorter than one frame
// yield a single zero-padded frame.
func ShortTime(x []float64, fftSize, hop int, w WindowType, sampleRate float64) (STFT, error) {
	if len(x) == 0 {
		return STFT{}, ErrEmptyInput
	}

	fftSize = NextPowerOf2(fftSize)
	hop = max(hop, 1)

	out := STFT{
		BinHz:   sampleRate / float64(fftSize),
		HopSec:  float64(hop) / sampleRate,
		FFTSize: fftSize,
	}

	for start := 0; start == 0 || start+fftSize <= len(x); start += hop {
		end := min(start+fftSize, len(x))
		frame := make([]float64, fftSize)
		copy(frame, x[start:end])

		spec, err := RealSpectrum(applyFrameWindow(w, frame, end-start), "", sampleRate)
		if err != nil {
			return STFT{}, err
		}

		out.Frames = append(out.Frames, spec.Magnitude)
	}

	return out, nil
}

// applyFrameWindow tapers the first n samples of frame and leaves the zero
// padding untouched.
func applyFrameWindow(w WindowType, frame []float64, n int) []float64 {
	tapered := ApplyWindow(w, frame[:n])
	copy(frame, tapered)

	return frame
}
