package fit

import (
	"math"
	"sort"
)

// smoothWindow is the rolling-median width used to pick the initial
// center-time guess. Five samples is enough to reject single-sample noise
// spikes without washing out a short transit floor.
const smoothWindow = 5

// InitialT0 returns the time of the deepest point of a smoothed copy of the
// flux. Smoothing uses a centered rolling median so an outlier sample cannot
// hijack the guess; if the smoothed series is all-NaN the raw minimum is
// used instead.
func InitialT0(time, flux []float64) float64 {
	if len(time) == 0 {
		return math.NaN()
	}
	if idx, ok := smoothedMinIndex(flux); ok {
		return time[idx]
	}
	return time[rawMinIndex(flux)]
}

func smoothedMinIndex(flux []float64) (int, bool) {
	smoothed := rollingMedian(flux, smoothWindow)
	best := -1
	for i, v := range smoothed {
		if math.IsNaN(v) {
			continue
		}
		if best < 0 || v < smoothed[best] {
			best = i
		}
	}
	if best < 0 {
		return 0, false
	}
	return best, true
}

func rawMinIndex(flux []float64) int {
	best := 0
	for i, v := range flux {
		if v < flux[best] {
			best = i
		}
	}
	return best
}

// rollingMedian computes a centered rolling median that shrinks the window
// at the edges and skips NaN samples. Positions whose window holds no finite
// value stay NaN.
func rollingMedian(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	half := window / 2
	buf := make([]float64, 0, window)
	for i := range values {
		lo := max(i-half, 0)
		hi := min(i+half+1, len(values))
		buf = buf[:0]
		for _, v := range values[lo:hi] {
			if !math.IsNaN(v) {
				buf = append(buf, v)
			}
		}
		out[i] = median(buf)
	}
	return out
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
