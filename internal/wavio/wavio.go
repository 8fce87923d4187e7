// Package wavio decodes RIFF/WAVE files into float64 channel buffers.
//
// Supported encodings are 8, 16, 24 and 32 bit integer PCM and 32/64 bit
// IEEE float, including WAVE_FORMAT_EXTENSIBLE headers. Integer samples are
// scaled to [-1, 1).
package wavio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

var (
	// ErrNotWAVE is returned when the input is not a RIFF/WAVE stream.
	ErrNotWAVE = errors.New("wavio: not a RIFF/WAVE file")
	// ErrUnsupported is returned for encodings this package cannot decode.
	ErrUnsupported = errors.New("wavio: unsupported encoding")
	// ErrSizeMismatch is returned when the data chunk does not hold a whole
	// number of frames or is shorter than declared.
	ErrSizeMismatch = errors.New("wavio: data size does not match declared layout")
)

const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

// File is a decoded WAVE file.
type File struct {
	SampleRate int
	// Channels holds one buffer per source channel, all Frames long.
	Channels [][]float64
	Frames   int
	// Format describes the source encoding, e.g. "pcm16" or "float32".
	Format string
}

// Duration returns the length in seconds.
func (f *File) Duration() float64 {
	if f.SampleRate == 0 {
		return 0
	}

	return float64(f.Frames) / float64(f.SampleRate)
}

type format struct {
	code          uint16
	channels      int
	sampleRate    int
	blockAlign    int
	bitsPerSample int
}

// ReadFile decodes the WAVE file at path.
func ReadFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavio: %w", err)
	}
	defer f.Close()

	return Read(f)
}

// Read decodes a WAVE stream.
func Read(r io.Reader) (*File, error) {
	var header [12]byte

	_, err := io.ReadFull(r, header[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotWAVE, err)
	}

	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, ErrNotWAVE
	}

	var (
		fmtChunk *format
		data     []byte
	)

	for data == nil {
		var ch [8]byte

		_, err := io.ReadFull(r, ch[:])
		if err != nil {
			return nil, fmt.Errorf("wavio: missing chunk: %w", err)
		}

		id := string(ch[0:4])
		size := int64(binary.LittleEndian.Uint32(ch[4:8]))

		switch id {
		case "fmt ":
			body := make([]byte, size)

			_, err := io.ReadFull(r, body)
			if err != nil {
				return nil, fmt.Errorf("wavio: fmt chunk: %w", err)
			}

			fmtChunk, err = parseFormat(body)
			if err != nil {
				return nil, err
			}
		case "data":
			if fmtChunk == nil {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWAVE)
			}

			data = make([]byte, size)

			_, err := io.ReadFull(r, data)
			if err != nil {
				return nil, fmt.Errorf("%w: declared %d bytes: %v", ErrSizeMismatch, size, err)
			}
		default:
			_, err := io.CopyN(io.Discard, r, size)
			if err != nil {
				return nil, fmt.Errorf("wavio: skip %q chunk: %w", id, err)
			}
		}

		if size%2 == 1 && data == nil {
			_, err := io.CopyN(io.Discard, r, 1)
			if err != nil {
				return nil, fmt.Errorf("wavio: chunk padding: %w", err)
			}
		}
	}

	return decode(fmtChunk, data)
}

func parseFormat(b []byte) (*format, error) {
	if len(b) < 16 {
		return nil, fmt.Errorf("%w: fmt chunk too short", ErrNotWAVE)
	}

	f := &format{
		code:          binary.LittleEndian.Uint16(b[0:2]),
		channels:      int(binary.LittleEndian.Uint16(b[2:4])),
		sampleRate:    int(binary.LittleEndian.Uint32(b[4:8])),
		blockAlign:    int(binary.LittleEndian.Uint16(b[12:14])),
		bitsPerSample: int(binary.LittleEndian.Uint16(b[14:16])),
	}

	if f.code == formatExtensible {
		if len(b) < 26 {
			return nil, fmt.Errorf("%w: extensible fmt chunk too short", ErrNotWAVE)
		}

		f.code = binary.LittleEndian.Uint16(b[24:26])
	}

	switch {
	case f.channels == 0:
		return nil, fmt.Errorf("%w: zero channels", ErrNotWAVE)
	case f.sampleRate == 0:
		return nil, fmt.Errorf("%w: zero sample rate", ErrNotWAVE)
	case f.blockAlign != f.channels*((f.bitsPerSample+7)/8):
		return nil, fmt.Errorf("%w: block align %d for %d channels of %d bits",
			ErrUnsupported, f.blockAlign, f.channels, f.bitsPerSample)
	}

	return f, nil
}

func decode(f *format, data []byte) (*File, error) {
	sample, name, err := sampleDecoder(f)
	if err != nil {
		return nil, err
	}

	if len(data)%f.blockAlign != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of block align %d",
			ErrSizeMismatch, len(data), f.blockAlign)
	}

	frames := len(data) / f.blockAlign
	width := f.blockAlign / f.channels

	out := &File{
		SampleRate: f.sampleRate,
		Channels:   make([][]float64, f.channels),
		Frames:     frames,
		Format:     name,
	}

	for c := range out.Channels {
		out.Channels[c] = make([]float64, frames)
	}

	for i := range frames {
		frame := data[i*f.blockAlign:]
		for c := range f.channels {
			out.Channels[c][i] = sample(frame[c*width:])
		}
	}

	return out, nil
}

func sampleDecoder(f *format) (func([]byte) float64, string, error) {
	switch {
	case f.code == formatPCM && f.bitsPerSample == 8:
		return func(b []byte) float64 { return (float64(b[0]) - 128) / 128 }, "pcm8", nil
	case f.code == formatPCM && f.bitsPerSample == 16:
		return func(b []byte) float64 {
			return float64(int16(binary.LittleEndian.Uint16(b))) / (1 << 15)
		}, "pcm16", nil
	case f.code == formatPCM && f.bitsPerSample == 24:
		return func(b []byte) float64 {
			v := int32(uint32(b[0])<<8|uint32(b[1])<<16|uint32(b[2])<<24) >> 8

			return float64(v) / (1 << 23)
		}, "pcm24", nil
	case f.code == formatPCM && f.bitsPerSample == 32:
		return func(b []byte) float64 {
			return float64(int32(binary.LittleEndian.Uint32(b))) / (1 << 31)
		}, "pcm32", nil
	case f.code == formatFloat && f.bitsPerSample == 32:
		return func(b []byte) float64 {
			return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
		}, "float32", nil
	case f.code == formatFloat && f.bitsPerSample == 64:
		return func(b []byte) float64 {
			return math.Float64frombits(binary.LittleEndian.Uint64(b))
		}, "float64", nil
	default:
		return nil, "", fmt.Errorf("%w: format %d with %d bits", ErrUnsupported, f.code, f.bitsPerSample)
	}
}

// Encode writes channels as a 16 bit PCM WAVE stream. Samples are clipped
// to [-1, 1].
func Encode(w io.Writer, channels [][]float64, sampleRate int) error {
	if len(channels) == 0 {
		return fmt.Errorf("%w: no channels", ErrUnsupported)
	}

	frames := len(channels[0])
	for _, ch := range channels {
		if len(ch) != frames {
			return fmt.Errorf("%w: channel lengths differ", ErrSizeMismatch)
		}
	}

	blockAlign := 2 * len(channels)
	dataSize := frames * blockAlign

	var buf bytes.Buffer

	put := func(v any) { _ = binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	put(uint32(36 + dataSize))
	buf.WriteString("WAVEfmt ")
	put(uint32(16))
	put(uint16(formatPCM))
	put(uint16(len(channels)))
	put(uint32(sampleRate))
	put(uint32(sampleRate * blockAlign))
	put(uint16(blockAlign))
	put(uint16(16))
	buf.WriteString("data")
	put(uint32(dataSize))

	for i := range frames {
		for _, ch := range channels {
			v := math.Max(-1, math.Min(1, ch[i]))
			put(int16(math.Round(v * 32767)))
		}
	}

	_, err := w.Write(buf.Bytes())
	if err != nil {
		return fmt.Errorf("wavio: %w", err)
	}

	return nil
}
