// Package transit computes model light curves for a transiting planet on a
// Keplerian orbit around a quadratically limb-darkened star. Distances are
// in units of the stellar radius, times in days, angles in degrees.
package transit

import "math"

const (
	keplerTol      = 1e-12
	keplerMaxIter  = 50
	circularEccTol = 1e-10

	// occultSteps is the midpoint-rule resolution for the blocked-light
	// integral. The fitters compare model against model-plus-noise, so the
	// quadrature only has to be self-consistent, not machine-exact.
	occultSteps = 64
)

// Config fixes the orbit and star for a model evaluation. Period must be
// positive. ExpTime <= 0 or Supersample <= 1 disables exposure-time
// integration.
type Config struct {
	Period      float64 // orbital period [days]
	RadiusRatio float64 // planet radius over star radius
	AxisRatio   float64 // semi-major axis over star radius
	Inclination float64 // [deg]
	U1          float64 // quadratic limb darkening, linear term
	U2          float64 // quadratic limb darkening, quadratic term
	Ecc         float64 // eccentricity
	Omega       float64 // argument of periastron [deg]
	ExpTime     float64 // exposure time [days]
	Supersample int     // model samples averaged per exposure
}

// Curve evaluates the relative flux at every time for a transit centered on
// t0. With supersampling enabled each exposure is the average of Supersample
// model points spread uniformly across ExpTime.
func (c Config) Curve(time []float64, t0 float64) []float64 {
	flux := make([]float64, len(time))
	n := c.Supersample
	if c.ExpTime <= 0 || n <= 1 {
		for i, t := range time {
			flux[i] = c.fluxAt(t, t0)
		}
		return flux
	}
	for i, t := range time {
		sum := 0.0
		for j := 0; j < n; j++ {
			dt := c.ExpTime * ((float64(j)+0.5)/float64(n) - 0.5)
			sum += c.fluxAt(t+dt, t0)
		}
		flux[i] = sum / float64(n)
	}
	return flux
}

func (c Config) fluxAt(t, t0 float64) float64 {
	z, front := c.separation(t, t0)
	if !front {
		return 1
	}
	return occult(z, c.RadiusRatio, c.U1, c.U2)
}

// separation returns the sky-projected planet-star distance in stellar radii
// and whether the planet is on the near side of the star. t0 is the time of
// inferior conjunction (transit center).
func (c Config) separation(t, t0 float64) (float64, bool) {
	inc := c.Inclination * math.Pi / 180
	w := c.Omega * math.Pi / 180
	e := c.Ecc

	// mean anomaly at transit center
	fc := math.Pi/2 - w
	mc := fc
	if e > circularEccTol {
		ec := 2 * math.Atan2(math.Sqrt(1-e)*math.Sin(fc/2), math.Sqrt(1+e)*math.Cos(fc/2))
		mc = ec - e*math.Sin(ec)
	}

	m := mc + 2*math.Pi*(t-t0)/c.Period
	ea := solveKepler(m, e)

	f := ea
	r := c.AxisRatio
	if e > circularEccTol {
		f = 2 * math.Atan2(math.Sqrt(1+e)*math.Sin(ea/2), math.Sqrt(1-e)*math.Cos(ea/2))
		r = c.AxisRatio * (1 - e*e) / (1 + e*math.Cos(f))
	}

	s := math.Sin(w + f)
	d2 := 1 - s*s*math.Sin(inc)*math.Sin(inc)
	if d2 < 0 {
		d2 = 0
	}
	return r * math.Sqrt(d2), s > 0
}

// solveKepler inverts M = E - e*sin(E) by Newton iteration.
func solveKepler(m, e float64) float64 {
	m = math.Mod(m, 2*math.Pi)
	if e < circularEccTol {
		return m
	}
	ea := m + e*math.Sin(m)
	for i := 0; i < keplerMaxIter; i++ {
		delta := (ea - e*math.Sin(ea) - m) / (1 - e*math.Cos(ea))
		ea -= delta
		if math.Abs(delta) < keplerTol {
			break
		}
	}
	return ea
}

// occult returns the relative flux of a star of unit radius partially
// covered by an opaque disk of radius p whose center is z stellar radii from
// the star center. The blocked light is the integral of I(r)*2r*kappa(r)
// over the covered annulus, where kappa is the half-angle of the stellar
// ring of radius r hidden behind the planet.
func occult(z, p, u1, u2 float64) float64 {
	if p <= 0 || z >= 1+p {
		return 1
	}
	rLo := math.Max(z-p, 0)
	rHi := math.Min(z+p, 1)
	if rHi <= rLo {
		return 1
	}

	h := (rHi - rLo) / occultSteps
	blocked := 0.0
	for i := 0; i < occultSteps; i++ {
		r := rLo + (float64(i)+0.5)*h
		blocked += intensity(r, u1, u2) * 2 * r * hiddenHalfAngle(r, z, p) * h
	}

	total := math.Pi * (1 - u1/3 - u2/6)
	flux := 1 - blocked/total
	if flux < 0 {
		flux = 0
	}
	return flux
}

// intensity is the quadratic limb-darkening law I(r) normalized to 1 at disk
// center.
func intensity(r, u1, u2 float64) float64 {
	m := 1 - r*r
	if m < 0 {
		m = 0
	}
	mu := math.Sqrt(m)
	return 1 - u1*(1-mu) - u2*(1-mu)*(1-mu)
}

// hiddenHalfAngle returns the half-angle of the arc of the circle of radius
// r (centered on the star) that lies inside the planet disk.
func hiddenHalfAngle(r, z, p float64) float64 {
	if r <= p-z {
		return math.Pi
	}
	if r >= z+p || r <= z-p {
		return 0
	}
	cos := (r*r + z*z - p*p) / (2 * r * z)
	if cos >= 1 {
		return 0
	}
	if cos <= -1 {
		return math.Pi
	}
	return math.Acos(cos)
}
