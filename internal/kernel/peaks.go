package kernel

import "sort"

// FindPeaks returns indices of local maxima whose value is >= threshold.
// Peaks closer than minDistance samples to a larger peak are discarded.
// The result is sorted by index.
func FindPeaks(x []float64, threshold float64, minDistance int) []int {
	var candidates []int

	for i := 1; i < len(x)-1; i++ {
		if x[i] >= threshold && x[i] > x[i-1] && x[i] >= x[i+1] {
			candidates = append(candidates, i)
		}
	}

	if minDistance <= 1 || len(candidates) < 2 {
		return candidates
	}

	byHeight := append([]int(nil), candidates...)
	sort.SliceStable(byHeight, func(a, b int) bool { return x[byHeight[a]] > x[byHeight[b]] })

	kept := make([]int, 0, len(byHeight))

	for _, idx := range byHeight {
		ok := true

		for _, k := range kept {
			if abs(idx-k) < minDistance {
				ok = false

				break
			}
		}

		if ok {
			kept = append(kept, idx)
		}
	}

	sort.Ints(kept)

	return kept
}

// ArgMax returns the index and value of the largest element, or -1 for empty input.
func ArgMax(x []float64) (int, float64) {
	if len(x) == 0 {
		return -1, 0
	}

	idx, val := 0, x[0]
	for i, v := range x {
		if v > val {
			idx, val = i, v
		}
	}

	return idx, val
}

func abs(v int) int {
	if v < 0 {
		return -v
	}

	return v
}
