package preprocess

import (
	"math"

	"github.com/cwbudde/algo-protocol/analysis"
)

// energyFrameSeconds is the analysis frame of energy segmentation.
const energyFrameSeconds = 0.02

func segment(s Segmentation, buffers map[string][]float64, order []string, sampleRate int) []analysis.Segment {
	frames := len(buffers[order[0]])

	if s.Method == "energy" {
		return energySegments(s, mix(buffers, order), sampleRate)
	}

	return fixedSegments(frames, int(math.Round(s.SegmentDuration*float64(sampleRate))))
}

// fixedSegments splits [0, frames) into consecutive segments of length size;
// the last one may be shorter.
func fixedSegments(frames, size int) []analysis.Segment {
	size = max(size, 1)

	out := make([]analysis.Segment, 0, (frames+size-1)/size)
	for start := 0; start < frames; start += size {
		out = append(out, analysis.Segment{Start: start, End: min(start+size, frames)})
	}

	return out
}

// energySegments returns runs of 20 ms frames whose RMS exceeds ThresholdDB,
// dropping runs shorter than MinDuration.
func energySegments(s Segmentation, x []float64, sampleRate int) []analysis.Segment {
	frame := max(int(energyFrameSeconds*float64(sampleRate)), 1)
	threshold := math.Pow(10, s.ThresholdDB/20)
	minLen := int(s.MinDuration * float64(sampleRate))

	var out []analysis.Segment

	start := -1
	frames := len(x)

	flush := func(end int) {
		if start >= 0 && end-start >= minLen {
			out = append(out, analysis.Segment{Start: start, End: end})
		}

		start = -1
	}

	for pos := 0; pos < frames; pos += frame {
		end := min(pos+frame, frames)

		var sum float64
		for _, v := range x[pos:end] {
			sum += v * v
		}

		active := math.Sqrt(sum/float64(end-pos)) > threshold

		switch {
		case active && start < 0:
			start = pos
		case !active && start >= 0:
			flush(pos)
		}
	}

	flush(frames)

	return out
}

// mix averages the channels in order.
func mix(buffers map[string][]float64, order []string) []float64 {
	out := make([]float64, len(buffers[order[0]]))

	for _, name := range order {
		for i, v := range buffers[name] {
			out[i] += v
		}
	}

	for i := range out {
		out[i] /= float64(len(order))
	}

	return out
}
