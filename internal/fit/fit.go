// Package fit estimates transit parameters from observed light curves: a
// global planet-radius and orbit-size fit across all events of a series, and
// a per-event center-time fit that feeds the timing-variation report.
package fit

import (
	"github.com/emoons/transitscan/internal/lightcurve"
	"github.com/emoons/transitscan/internal/transit"
)

// Window selects the samples with |time - center| < halfWidth. The returned
// slices alias nothing and stay index-aligned.
func Window(time, flux []float64, center, halfWidth float64) ([]float64, []float64) {
	var wt, wf []float64
	for i, t := range time {
		d := t - center
		if d < 0 {
			d = -d
		}
		if d < halfWidth {
			wt = append(wt, t)
			wf = append(wf, flux[i])
		}
	}
	return wt, wf
}

func modelConfig(mp lightcurve.ModelParams, rp, a float64) transit.Config {
	return transit.Config{
		Period:      mp.Period,
		RadiusRatio: rp,
		AxisRatio:   a,
		Inclination: mp.Inclination,
		U1:          mp.U1,
		U2:          mp.U2,
		Ecc:         mp.Ecc,
		Omega:       mp.Omega,
		ExpTime:     mp.ExpTime,
		Supersample: mp.Supersample,
	}
}

func sumSquaredResiduals(flux, model []float64) float64 {
	total := 0.0
	for i := range flux {
		d := flux[i] - model[i]
		total += d * d
	}
	return total
}
