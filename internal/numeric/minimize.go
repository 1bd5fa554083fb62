// Package numeric wraps gonum's local optimizers with box bounds and
// failure-as-data reporting for the fitting layers.
package numeric

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/optimize"
)

// boundsPenalty scales the quadratic penalty added when the optimizer
// wanders outside the box. It dwarfs any plausible residual sum so the
// simplex is always pushed back in.
const boundsPenalty = 1e8

// Interval is a closed search range for one parameter.
type Interval struct {
	Lo, Hi float64
}

func (iv Interval) clamp(x float64) float64 {
	if x < iv.Lo {
		return iv.Lo
	}
	if x > iv.Hi {
		return iv.Hi
	}
	return x
}

// Caps limits the optimizer run. Zero values leave the corresponding limit
// unset.
type Caps struct {
	MaxIterations  int
	MaxEvaluations int
}

// Result reports a minimization outcome. A run that fails to converge keeps
// Converged false and names the cause in Reason instead of returning an
// error: callers treat non-convergence as data.
type Result struct {
	X         []float64
	F         float64
	Converged bool
	Reason    string
}

// Minimize searches for the minimum of obj inside the given box using
// Nelder-Mead. Evaluations outside the box are clamped to the nearest face
// and charged a distance penalty; the start point is clamped too. The error
// is non-nil only for malformed arguments.
func Minimize(obj func([]float64) float64, x0 []float64, bounds []Interval, caps Caps) (res Result, err error) {
	if len(x0) == 0 {
		return Result{}, errors.New("numeric: empty start point")
	}
	if len(x0) != len(bounds) {
		return Result{}, fmt.Errorf("numeric: %d start values for %d bounds", len(x0), len(bounds))
	}
	for i, iv := range bounds {
		if !(iv.Lo <= iv.Hi) {
			return Result{}, fmt.Errorf("numeric: invalid interval %d: [%v, %v]", i, iv.Lo, iv.Hi)
		}
	}

	start := make([]float64, len(x0))
	for i := range x0 {
		start[i] = bounds[i].clamp(x0[i])
	}

	wrapped := func(x []float64) float64 {
		clamped := make([]float64, len(x))
		penalty := 0.0
		for i := range x {
			c := bounds[i].clamp(x[i])
			d := x[i] - c
			penalty += d * d
			clamped[i] = c
		}
		return obj(clamped) + boundsPenalty*penalty
	}

	defer func() {
		if r := recover(); r != nil {
			res = Result{Reason: fmt.Sprintf("objective panicked: %v", r)}
			err = nil
		}
	}()

	settings := &optimize.Settings{
		MajorIterations: caps.MaxIterations,
		FuncEvaluations: caps.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Iterations: 30,
		},
	}

	opt, optErr := optimize.Minimize(optimize.Problem{Func: wrapped}, start, settings, &optimize.NelderMead{})
	if optErr != nil {
		return Result{Reason: optErr.Error()}, nil
	}
	if opt == nil {
		return Result{Reason: "optimizer returned no result"}, nil
	}

	x := make([]float64, len(opt.Location.X))
	for i := range x {
		x[i] = bounds[i].clamp(opt.Location.X[i])
	}
	return Result{
		X:         x,
		F:         opt.Location.F,
		Converged: convergedStatus(opt.Status),
		Reason:    opt.Status.String(),
	}, nil
}

func convergedStatus(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionThreshold,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	}
	return false
}
