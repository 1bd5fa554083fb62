// Package ephemeris predicts transit center times from a linear ephemeris.
package ephemeris

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ExpectedTimes returns every transit center t0 + n*period that falls inside
// the observed span, padded at both ends by twice the mean cadence so that
// events straddling the first or last sample are kept. With fewer than two
// samples the pad falls back to period/100. Degenerate inputs produce an
// empty result.
func ExpectedTimes(time []float64, epoch, period float64) []float64 {
	if len(time) == 0 || period <= 0 {
		return nil
	}

	tMin := floats.Min(time)
	tMax := floats.Max(time)
	nStart := int(math.Floor((tMin - epoch) / period))
	nEnd := int(math.Ceil((tMax - epoch) / period))

	margin := period / 100
	if len(time) > 1 {
		diffs := make([]float64, len(time)-1)
		for i := range diffs {
			diffs[i] = time[i+1] - time[i]
		}
		margin = 2 * stat.Mean(diffs, nil)
	}

	var centers []float64
	for n := nStart; n <= nEnd; n++ {
		tc := epoch + float64(n)*period
		if tc >= tMin-margin && tc <= tMax+margin {
			centers = append(centers, tc)
		}
	}
	sort.Float64s(centers)
	return centers
}
