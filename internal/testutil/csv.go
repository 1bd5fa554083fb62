package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emoons/transitscan/internal/lightcurve"
)

// WriteCurveFile serializes s into dir/<s.Name> in the simulated-header CSV
// format the loader reads, and returns the full path. Samples are written at
// full precision so a load round-trips them exactly.
func WriteCurveFile(t *testing.T, dir string, s *lightcurve.Series) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("Type: Simulacion\n")
	p := s.Params
	headerFloat(&b, "Orbit Period (days)", p.Period)
	headerFloat(&b, "Transit Epoch (BJD)", p.Epoch)
	headerFloat(&b, "Calculated Transit Duration (days)", p.Duration)
	headerFloat(&b, "Planet Radius (R_planet/R_star)", p.RadiusRatio)
	headerFloat(&b, "Planet Semi-major Axis (a/R_star)", p.AxisRatio)
	headerFloat(&b, "Planet Inclination (deg)", p.Inclination)
	headerFloat(&b, "Limb Darkening Coeff (u1)", p.U1)
	headerFloat(&b, "Limb Darkening Coeff (u2)", p.U2)
	headerFloat(&b, "Orbital Eccentricity", p.Ecc)
	headerFloat(&b, "Longitude of Periastron (deg)", p.Omega)
	headerFloat(&b, "Exposure Time (days)", p.ExpTime)
	headerInt(&b, "Supersample Factor", p.Supersample)
	b.WriteString("Tiempo [BJDS],Flujo\n")
	for i := range s.Time {
		fmt.Fprintf(&b, "%s,%s\n", sample(s.Time[i]), sample(s.Flux[i]))
	}

	path := filepath.Join(dir, s.Name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func headerFloat(b *strings.Builder, key string, v *float64) {
	if v == nil {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", key, sample(*v))
}

func headerInt(b *strings.Builder, key string, v *int) {
	if v == nil {
		return
	}
	fmt.Fprintf(b, "%s: %d\n", key, *v)
}

func sample(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
