package pipeline

import (
	"errors"
	"fmt"

	"github.com/emoons/transitscan/internal/lightcurve"
)

// ErrMissingParameter marks a series whose header lacks a value the
// pipeline cannot run without.
var ErrMissingParameter = errors.New("missing required parameter")

// CheckSeries reports whether a loaded series carries everything the
// pipeline needs to predict events. The returned error wraps
// ErrMissingParameter and names the absent header field.
func CheckSeries(s *lightcurve.Series) error {
	if s.Params.Period == nil {
		return fmt.Errorf("%s: orbital period: %w", s.Name, ErrMissingParameter)
	}
	if s.Params.Epoch == nil {
		return fmt.Errorf("%s: transit epoch: %w", s.Name, ErrMissingParameter)
	}
	return nil
}
