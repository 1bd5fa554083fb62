package lightcurve

// Defaults applied when a series header omits a parameter. Values are in
// days unless noted otherwise.
const (
	DefaultPeriod      = 2.36
	DefaultDuration    = 0.2
	DefaultMaxTTV      = 2.0
	DefaultRadiusRatio = 0.1
	DefaultAxisRatio   = 8.0
	DefaultInclination = 89.0
	DefaultU1          = 0.65
	DefaultU2          = 0.08
	DefaultEcc         = 0.0
	DefaultOmega       = 90.0
	DefaultExpTime     = 0.00068113
	DefaultSupersample = 15
)

// Params holds the physical and instrumental parameters parsed from a
// light-curve file header. Fields are nil when the header does not carry
// them; resolution against defaults happens in Model.
type Params struct {
	Period      *float64 // orbital period [days]
	Epoch       *float64 // reference transit epoch [BJD]
	Duration    *float64 // transit duration [days]
	RadiusRatio *float64 // planet radius over star radius
	AxisRatio   *float64 // semi-major axis over star radius
	Inclination *float64 // orbital inclination [deg]
	U1          *float64 // quadratic limb-darkening, linear term
	U2          *float64 // quadratic limb-darkening, quadratic term
	Ecc         *float64 // orbital eccentricity
	Omega       *float64 // argument of periastron [deg]
	ExpTime     *float64 // exposure time [days]
	Supersample *int     // samples averaged per exposure
	MaxTTV      *float64 // timing-variation search budget [days]

	StarRadius *float64 // star radius [solar radii]
	StarTeff   *float64 // effective temperature [K]
	StarLogg   *float64
	NoiseSigma *float64
	ObjectName string

	// Truth is present only for simulated series whose header records the
	// injected signal.
	Truth *GroundTruth
}

// GroundTruth carries injected-signal parameters from simulated headers.
// They are reported, never fed into fits.
type GroundTruth struct {
	SpotCount    *int
	SpotSizeMin  *float64
	SpotSizeMax  *float64
	SpotContrast *float64
	MoonRadius   *float64 // moon radius over star radius
	MoonPeriod   *float64 // [days]
	MoonAxis     *float64 // moon semi-major axis over star radius
	TTVAmplitude *float64 // [days]
	TTVPeriod    *float64 // [planet orbits]
	TTVPhase     *float64 // [rad]
}

// ModelParams is the fully resolved parameter set used by the forward model
// and the fitters.
type ModelParams struct {
	Period      float64
	Duration    float64
	MaxTTV      float64
	RadiusRatio float64
	AxisRatio   float64
	Inclination float64
	U1          float64
	U2          float64
	Ecc         float64
	Omega       float64
	ExpTime     float64
	Supersample int
}

// Model resolves p against the package defaults.
func (p *Params) Model() ModelParams {
	return ModelParams{
		Period:      orDefault(p.Period, DefaultPeriod),
		Duration:    orDefault(p.Duration, DefaultDuration),
		MaxTTV:      orDefault(p.MaxTTV, DefaultMaxTTV),
		RadiusRatio: orDefault(p.RadiusRatio, DefaultRadiusRatio),
		AxisRatio:   orDefault(p.AxisRatio, DefaultAxisRatio),
		Inclination: orDefault(p.Inclination, DefaultInclination),
		U1:          orDefault(p.U1, DefaultU1),
		U2:          orDefault(p.U2, DefaultU2),
		Ecc:         orDefault(p.Ecc, DefaultEcc),
		Omega:       orDefault(p.Omega, DefaultOmega),
		ExpTime:     orDefault(p.ExpTime, DefaultExpTime),
		Supersample: orDefaultInt(p.Supersample, DefaultSupersample),
	}
}

func orDefault(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

func orDefaultInt(v *int, def int) int {
	if v != nil {
		return *v
	}
	return def
}

func ptr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
