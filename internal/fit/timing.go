package fit

import (
	"errors"
	"math"

	"github.com/emoons/transitscan/internal/lightcurve"
	"github.com/emoons/transitscan/internal/numeric"
	"github.com/emoons/transitscan/internal/transit"
)

// Center-time fit failures. Callers mark the event as failed and move on.
var (
	// ErrConstantFlux reports a window whose flux never varies, which
	// leaves the center-time fit undefined.
	ErrConstantFlux = errors.New("constant flux in transit window")
	// ErrNoValidStarts reports that every perturbed start point fell
	// outside the search interval.
	ErrNoValidStarts = errors.New("no valid start points inside the search interval")
	// ErrAllStartsFailed reports that no start point produced a converged
	// fit.
	ErrAllStartsFailed = errors.New("all center-time fit attempts failed")
)

const (
	// searchPad widens the center-time search interval beyond the duration
	// and timing-variation terms.
	searchPad = 0.02
	// timingMaxEvals caps the objective evaluations of one start-point
	// attempt.
	timingMaxEvals = 10000
)

// startOffsets perturb the initial guess so a local minimum next to the true
// center cannot capture every attempt.
var startOffsets = [5]float64{-0.0075, -0.003, 0.0, 0.003, 0.0075}

// FittedTransit is the outcome of a successful center-time fit together
// with the model parameters the fit was run under.
type FittedTransit struct {
	T0          float64
	RadiusRatio float64
	AxisRatio   float64
	Period      float64
	Inclination float64
	U1          float64
	U2          float64
	Ecc         float64
	Omega       float64
	ExpTime     float64
	Supersample int
}

// ModelConfig returns the forward-model configuration that reproduces the
// fitted curve.
func (f *FittedTransit) ModelConfig() transit.Config {
	return transit.Config{
		Period:      f.Period,
		RadiusRatio: f.RadiusRatio,
		AxisRatio:   f.AxisRatio,
		Inclination: f.Inclination,
		U1:          f.U1,
		U2:          f.U2,
		Ecc:         f.Ecc,
		Omega:       f.Omega,
		ExpTime:     f.ExpTime,
		Supersample: f.Supersample,
	}
}

// TransitT0 fits the center time of a single transit. rp and a come from the
// global shape fit; t0Initial anchors the search interval, whose half-width
// is duration/2 + 3*maxTTV + searchPad. Each start point searches a
// sub-interval half that wide around itself, and the attempt with the lowest
// residual sum wins.
func TransitT0(time, flux []float64, mp lightcurve.ModelParams, rp, a, t0Initial float64) (*FittedTransit, error) {
	if constantFlux(flux) {
		return nil, ErrConstantFlux
	}

	margin := mp.Duration/2 + mp.MaxTTV*3 + searchPad
	lo := t0Initial - margin
	hi := t0Initial + margin

	var starts []float64
	for _, off := range startOffsets {
		s := t0Initial + off
		if s >= lo && s <= hi {
			starts = append(starts, s)
		}
	}
	if len(starts) == 0 {
		return nil, ErrNoValidStarts
	}

	cfg := modelConfig(mp, rp, a)
	sse := func(t0 float64) float64 {
		return sumSquaredResiduals(flux, cfg.Curve(time, t0))
	}

	bestT0 := math.NaN()
	bestSSE := math.Inf(1)
	for _, start := range starts {
		subLo := math.Max(lo, start-margin/2)
		subHi := math.Min(hi, start+margin/2)
		if subLo >= subHi {
			continue
		}
		res, err := numeric.Minimize(
			func(x []float64) float64 { return sse(x[0]) },
			[]float64{start},
			[]numeric.Interval{{Lo: subLo, Hi: subHi}},
			numeric.Caps{MaxEvaluations: timingMaxEvals},
		)
		if err != nil || !res.Converged {
			continue
		}
		if s := sse(res.X[0]); s < bestSSE {
			bestSSE = s
			bestT0 = res.X[0]
		}
	}
	if math.IsNaN(bestT0) {
		return nil, ErrAllStartsFailed
	}

	return &FittedTransit{
		T0:          bestT0,
		RadiusRatio: rp,
		AxisRatio:   a,
		Period:      mp.Period,
		Inclination: mp.Inclination,
		U1:          mp.U1,
		U2:          mp.U2,
		Ecc:         mp.Ecc,
		Omega:       mp.Omega,
		ExpTime:     mp.ExpTime,
		Supersample: mp.Supersample,
	}, nil
}

// constantFlux mirrors an elementwise equality test against the first
// sample: NaNs compare unequal, an empty window counts as constant.
func constantFlux(flux []float64) bool {
	if len(flux) == 0 {
		return true
	}
	for _, f := range flux[1:] {
		if f != flux[0] {
			return false
		}
	}
	return true
}
