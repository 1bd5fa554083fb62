package fit

import (
	"log/slog"
	"math"

	"github.com/emoons/transitscan/internal/lightcurve"
	"github.com/emoons/transitscan/internal/numeric"
)

const (
	// shapeMaxIter caps the outer radius/axis optimization.
	shapeMaxIter = 1000
	// shapeWindowMin keeps per-event windows usable for short transits.
	shapeWindowMin = 0.5
	// minWindowSamples is the smallest per-event window that contributes
	// to the shape objective.
	minWindowSamples = 5
	// innerPad widens the per-event center search beyond half the transit
	// duration.
	innerPad = 0.1
	// innerFailurePenalty is charged to the objective when a per-event
	// center fit fails, steering the outer search away from shapes that
	// make events unfittable.
	innerFailurePenalty = 1e20
	// minRadiusRatio floors the radius-ratio search range.
	minRadiusRatio = 1e-4
)

// GlobalShape fits the planet-to-star radius ratio and the scaled orbit size
// against every expected event at once. The search box is +-15% around the
// header values (radius capped to [1e-4, 1], axis floored at 1 stellar
// radius). If the fit cannot converge the header values are kept, so the
// caller always gets usable shape parameters.
func GlobalShape(time, flux []float64, mp lightcurve.ModelParams, centers []float64) (rp, a float64) {
	rpSeed := mp.RadiusRatio
	aSeed := mp.AxisRatio

	bounds := []numeric.Interval{
		{Lo: math.Max(rpSeed*0.85, minRadiusRatio), Hi: math.Min(rpSeed*1.15, 1.0)},
		{Lo: math.Max(aSeed*0.85, 1.0), Hi: aSeed * 1.15},
	}

	obj := func(x []float64) float64 {
		return shapeObjective(time, flux, mp, centers, x[0], x[1])
	}

	res, err := numeric.Minimize(obj, []float64{rpSeed, aSeed}, bounds, numeric.Caps{MaxIterations: shapeMaxIter})
	if err != nil {
		slog.Warn("global shape fit failed, keeping header values", "error", err, "rp", rpSeed, "a", aSeed)
		return rpSeed, aSeed
	}
	if !res.Converged {
		slog.Warn("global shape fit did not converge, keeping header values", "reason", res.Reason, "rp", rpSeed, "a", aSeed)
		return rpSeed, aSeed
	}
	return res.X[0], res.X[1]
}

// shapeObjective sums squared residuals over every event window, re-fitting
// each event's center time for the trial shape so that timing offsets cannot
// masquerade as a different planet radius.
func shapeObjective(time, flux []float64, mp lightcurve.ModelParams, centers []float64, rpTrial, aTrial float64) float64 {
	cfg := modelConfig(mp, rpTrial, aTrial)
	searchW := math.Max(mp.Duration*1.5, shapeWindowMin)
	innerMargin := mp.Duration/2 + innerPad

	total := 0.0
	for _, tc := range centers {
		wt, wf := Window(time, flux, tc, searchW)
		if len(wt) <= minWindowSamples {
			continue
		}
		guess := InitialT0(wt, wf)
		sse := func(t0 float64) float64 {
			return sumSquaredResiduals(wf, cfg.Curve(wt, t0))
		}
		res, err := numeric.Minimize(
			func(x []float64) float64 { return sse(x[0]) },
			[]float64{guess},
			[]numeric.Interval{{Lo: tc - innerMargin, Hi: tc + innerMargin}},
			numeric.Caps{},
		)
		if err != nil || !res.Converged {
			total += innerFailurePenalty
			continue
		}
		total += sse(res.X[0])
	}
	return total
}
