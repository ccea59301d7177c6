package luminance

import (
	"math"
	"sort"
)

// FindPeaks returns the indices of local maxima in x whose value is at least
// height, keeping at most one peak within any window of minDistance samples.
//
// A flat-topped maximum (plateau) reports its middle index, rounded down.
// The first and last samples are never peaks. When two peaks are closer than
// minDistance the higher one wins. The result is ascending.
func FindPeaks(x []float64, height float64, minDistance float64) []int {
	candidates := localMaxima(x)

	peaks := candidates[:0]
	for _, p := range candidates {
		if x[p] >= height {
			peaks = append(peaks, p)
		}
	}

	distance := int(math.Ceil(minDistance))
	if distance > 1 && len(peaks) > 1 {
		peaks = selectByDistance(x, peaks, distance)
	}
	return peaks
}

func localMaxima(x []float64) []int {
	var out []int
	n := len(x)
	i := 1
	for i < n-1 {
		if x[i-1] < x[i] {
			ahead := i + 1
			for ahead < n-1 && x[ahead] == x[i] {
				ahead++
			}
			if x[ahead] < x[i] {
				left, right := i, ahead-1
				out = append(out, (left+right)/2)
				i = ahead
				continue
			}
		}
		i++
	}
	return out
}

// selectByDistance visits peaks from highest to lowest and suppresses every
// neighbour closer than distance to a kept peak.
func selectByDistance(x []float64, peaks []int, distance int) []int {
	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return x[peaks[order[a]]] < x[peaks[order[b]]] })

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}
	for i := len(order) - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	out := make([]int, 0, len(peaks))
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}
