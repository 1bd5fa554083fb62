// Package testutil provides deterministic fixtures for fitting and pipeline
// tests: synthetic light curves built from the forward model, a writer that
// serializes them in the archive CSV format, and a renderer double that
// records requests instead of drawing.
package testutil

import (
	"math"

	"github.com/emoons/transitscan/internal/ephemeris"
	"github.com/emoons/transitscan/internal/lightcurve"
	"github.com/emoons/transitscan/internal/transit"
)

// SeriesSpec describes a synthetic light curve. Flux comes from the forward
// model under Params, noise free, so fits recover the injected values.
type SeriesSpec struct {
	Name  string
	Start float64 // first sample time [days]
	End   float64 // last sample time the grid may reach
	Step  float64 // sample cadence [days]

	// Params must carry Period and Epoch. Header fields left nil resolve
	// to package defaults, as they would for a loaded file.
	Params lightcurve.Params

	// Offsets shifts individual event centers, keyed by 1-based event index
	// in the series' expected-event grid. Events without an entry stay on
	// the linear ephemeris.
	Offsets map[int]float64
}

// NewSeries generates the synthetic series described by spec.
func NewSeries(spec SeriesSpec) *lightcurve.Series {
	mp := spec.Params.Model()
	epoch := *spec.Params.Epoch
	cfg := transit.Config{
		Period:      mp.Period,
		RadiusRatio: mp.RadiusRatio,
		AxisRatio:   mp.AxisRatio,
		Inclination: mp.Inclination,
		U1:          mp.U1,
		U2:          mp.U2,
		Ecc:         mp.Ecc,
		Omega:       mp.Omega,
		ExpTime:     mp.ExpTime,
		Supersample: mp.Supersample,
	}

	n := int((spec.End-spec.Start)/spec.Step) + 1
	time := make([]float64, n)
	for i := range time {
		time[i] = spec.Start + float64(i)*spec.Step
	}
	flux := cfg.Curve(time, epoch)

	if len(spec.Offsets) > 0 {
		centers := ephemeris.ExpectedTimes(time, epoch, mp.Period)
		for num, delta := range spec.Offsets {
			if num < 1 || num > len(centers) {
				continue
			}
			center := centers[num-1]

			// Regenerate the phase cell of this event around the shifted
			// center. Neighboring events are more than half a period away,
			// so they are untouched.
			var idx []int
			var wt []float64
			for i, t := range time {
				if math.Abs(t-center) < mp.Period/2 {
					idx = append(idx, i)
					wt = append(wt, t)
				}
			}
			shifted := cfg.Curve(wt, center+delta)
			for j, i := range idx {
				flux[i] = shifted[j]
			}
		}
	}

	return &lightcurve.Series{
		Name:     spec.Name,
		Time:     time,
		Flux:     flux,
		Params:   spec.Params,
		DataType: lightcurve.DataTypeSimulated,
	}
}
