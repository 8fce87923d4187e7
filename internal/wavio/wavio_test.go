package wavio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeReadRoundTrip(t *testing.T) {
	t.Parallel()

	left := []float64{0, 0.5, -0.5, 1, -1}
	right := []float64{0.25, -0.25, 0, 0.75, -0.75}

	var buf bytes.Buffer
	if err := Encode(&buf, [][]float64{left, right}, 8000); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	f, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if f.SampleRate != 8000 || f.Frames != 5 || len(f.Channels) != 2 || f.Format != "pcm16" {
		t.Fatalf("unexpected header %+v", f)
	}

	for i, want := range [][]float64{left, right} {
		for j, w := range want {
			if d := math.Abs(f.Channels[i][j] - w); d > 1e-4 {
				t.Fatalf("channel %d sample %d = %v, want %v", i, j, f.Channels[i][j], w)
			}
		}
	}

	if d := f.Duration(); math.Abs(d-5.0/8000) > 1e-12 {
		t.Fatalf("Duration = %v", d)
	}
}

// rawWAVE builds a stream with the given fmt fields and data bytes and an
// odd-sized LIST chunk before the data.
func rawWAVE(code, channels uint16, rate uint32, bits uint16, data []byte) []byte {
	var b bytes.Buffer

	put := func(v any) { _ = binary.Write(&b, binary.LittleEndian, v) }
	block := channels * ((bits + 7) / 8)

	b.WriteString("RIFF")
	put(uint32(0))
	b.WriteString("WAVE")
	b.WriteString("fmt ")
	put(uint32(16))
	put(code)
	put(channels)
	put(rate)
	put(rate * uint32(block))
	put(block)
	put(bits)
	b.WriteString("LIST")
	put(uint32(3))
	b.Write([]byte{1, 2, 3, 0})
	b.WriteString("data")
	put(uint32(len(data)))
	b.Write(data)

	return b.Bytes()
}

func TestReadEncodings(t *testing.T) {
	t.Parallel()

	f32 := make([]byte, 8)
	binary.LittleEndian.PutUint32(f32, math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(f32[4:], math.Float32bits(-0.25))

	tests := []struct {
		name   string
		stream []byte
		format string
		want   []float64
	}{
		{"pcm8", rawWAVE(formatPCM, 1, 8000, 8, []byte{128, 192, 64}), "pcm8", []float64{0, 0.5, -0.5}},
		{"pcm24", rawWAVE(formatPCM, 1, 8000, 24, []byte{0, 0, 0x40, 0, 0, 0xC0}), "pcm24", []float64{0.5, -0.5}},
		{"float32", rawWAVE(formatFloat, 1, 8000, 32, f32), "float32", []float64{0.5, -0.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f, err := Read(bytes.NewReader(tt.stream))
			if err != nil {
				t.Fatalf("Read: %v", err)
			}

			if f.Format != tt.format {
				t.Fatalf("Format = %q, want %q", f.Format, tt.format)
			}

			for i, w := range tt.want {
				if math.Abs(f.Channels[0][i]-w) > 1e-9 {
					t.Fatalf("sample %d = %v, want %v", i, f.Channels[0][i], w)
				}
			}
		})
	}
}

func TestReadErrors(t *testing.T) {
	t.Parallel()

	partial := rawWAVE(formatPCM, 2, 8000, 16, []byte{1, 2, 3, 4, 5, 6})
	truncated := rawWAVE(formatPCM, 1, 8000, 16, []byte{1, 2, 3, 4})
	truncated = truncated[:len(truncated)-2]

	tests := []struct {
		name   string
		stream []byte
		want   error
	}{
		{"not riff", []byte("RIFX....WAVEjunk"), ErrNotWAVE},
		{"partial frame", partial, ErrSizeMismatch},
		{"short data", truncated, ErrSizeMismatch},
		{"adpcm", rawWAVE(2, 1, 8000, 16, []byte{0, 0}), ErrUnsupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Read(bytes.NewReader(tt.stream))
			if !errors.Is(err, tt.want) {
				t.Fatalf("Read error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tone.wav")

	var buf bytes.Buffer
	if err := Encode(&buf, [][]float64{{0.1, 0.2, 0.3}}, 44100); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if f.Frames != 3 || f.SampleRate != 44100 {
		t.Fatalf("unexpected file %+v", f)
	}
}
