package lightcurve

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Data type labels as reported in Series.DataType.
const (
	DataTypeSimulated = "simulated"
	DataTypeReal      = "real"
)

const (
	dataHeaderComma = "Tiempo [BJDS],Flujo"
	dataHeaderTab   = "Tiempo [BJDS]\tFlujo"
	typeScanLimit   = 40
)

// Series is one light curve: a time/flux table plus the header parameters
// that came with it.
type Series struct {
	Name     string // base file name, extension included
	Time     []float64
	Flux     []float64
	Params   Params
	DataType string
}

// LoadError describes a light-curve file that could not be parsed.
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads a light-curve CSV file: a quoted "key: value" header block,
// a "Tiempo [BJDS],Flujo" marker line, then comma-separated time/flux rows.
// The header block decides whether the series is simulated or real, which
// selects the parameter vocabulary used for the rest of the header.
func Load(path string) (*Series, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	dataStart := findDataStart(lines)
	if dataStart < 0 {
		return nil, &LoadError{Path: path, Reason: `no data header ("Tiempo [BJDS],Flujo")`}
	}

	dataType := detectType(lines)
	var params Params
	if dataType == DataTypeSimulated {
		params = parseSimulatedHeader(lines, path)
	} else {
		dataType = DataTypeReal
		params = parseRealHeader(lines, path)
	}

	time, flux, err := parseRows(lines[dataStart:], path)
	if err != nil {
		return nil, err
	}

	return &Series{
		Name:     filepath.Base(path),
		Time:     time,
		Flux:     flux,
		Params:   params,
		DataType: dataType,
	}, nil
}

// readLines loads the file as UTF-8, falling back to latin-1 for the
// accented headers some archives ship.
func readLines(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read light curve: %w", err)
	}
	if !utf8.Valid(raw) {
		slog.Warn("light curve is not valid UTF-8, decoding as latin-1", "path", path)
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, &LoadError{Path: path, Reason: "undecodable text", Err: err}
		}
		raw = decoded
	}
	lines := strings.Split(string(raw), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines, nil
}

func cleanLine(line string) string {
	return strings.Trim(strings.TrimSpace(line), `"`)
}

// findDataStart returns the index of the first data row, or -1 when the
// marker line is missing.
func findDataStart(lines []string) int {
	for i, line := range lines {
		cleaned := cleanLine(line)
		if strings.Contains(cleaned, dataHeaderComma) || strings.Contains(cleaned, dataHeaderTab) {
			return i + 1
		}
	}
	return -1
}

// detectType scans the leading header lines for an exact "Type" key. Files
// without one are treated as real.
func detectType(lines []string) string {
	limit := min(len(lines), typeScanLimit)
	for _, line := range lines[:limit] {
		cleaned := cleanLine(line)
		key, value, ok := strings.Cut(cleaned, ":")
		if !ok || strings.TrimSpace(key) != "Type" {
			continue
		}
		v := strings.ToLower(strings.Trim(strings.TrimSpace(value), `"`))
		if strings.Contains(v, "simulacion") {
			return DataTypeSimulated
		}
		if strings.Contains(v, "real") {
			return DataTypeReal
		}
	}
	return ""
}

// walkHeader visits every "key: value" line above the data marker. Keys in
// the wild carry unit suffixes and stray annotations, so callers match them
// by substring.
func walkHeader(lines []string, visit func(key, value string)) {
	for _, line := range lines {
		cleaned := cleanLine(line)
		if strings.Contains(cleaned, "Tiempo [BJDS]") {
			return
		}
		key, value, ok := strings.Cut(cleaned, ":")
		if !ok {
			continue
		}
		visit(strings.TrimSpace(key), strings.Trim(strings.TrimSpace(value), `"`))
	}
}

func parseSimulatedHeader(lines []string, path string) Params {
	var p Params
	truth := func() *GroundTruth {
		if p.Truth == nil {
			p.Truth = &GroundTruth{}
		}
		return p.Truth
	}
	walkHeader(lines, func(key, value string) {
		switch {
		case strings.Contains(key, "Orbit Period (days)"):
			setFloat(&p.Period, key, value, path)
		case strings.Contains(key, "Transit Epoch (BJD)"):
			setFloat(&p.Epoch, key, value, path)
		case strings.Contains(key, "Calculated Transit Duration (days)"):
			setFloat(&p.Duration, key, value, path)
		case strings.Contains(key, "Star Radius (R_star/R_solar)"):
			setFloat(&p.StarRadius, key, value, path)
		case strings.Contains(key, "Planet Radius (R_planet/R_star)"):
			setFloat(&p.RadiusRatio, key, value, path)
		case strings.Contains(key, "Planet Semi-major Axis (a/R_star)"):
			setFloat(&p.AxisRatio, key, value, path)
		case strings.Contains(key, "Limb Darkening Coeff (u1)"):
			setFloat(&p.U1, key, value, path)
		case strings.Contains(key, "Limb Darkening Coeff (u2)"):
			setFloat(&p.U2, key, value, path)
		case strings.Contains(key, "Planet Inclination (deg)"):
			setFloat(&p.Inclination, key, value, path)
		case strings.Contains(key, "Orbital Eccentricity"):
			setFloat(&p.Ecc, key, value, path)
		case strings.Contains(key, "Longitude of Periastron (deg)"):
			setFloat(&p.Omega, key, value, path)
		case strings.Contains(key, "Exposure Time (days)"):
			setFloat(&p.ExpTime, key, value, path)
		case strings.Contains(key, "Supersample Factor"):
			setInt(&p.Supersample, key, value, path)
		case strings.Contains(key, "Noise Sigma"):
			setFloat(&p.NoiseSigma, key, value, path)
		case strings.Contains(key, "Type"):
			// resolved by detectType
		case strings.Contains(key, "Number of Spots"):
			setInt(&truth().SpotCount, key, value, path)
		case strings.Contains(key, "Spot Size Min (R_star)"):
			setFloat(&truth().SpotSizeMin, key, value, path)
		case strings.Contains(key, "Spot Size Max (R_star)"):
			setFloat(&truth().SpotSizeMax, key, value, path)
		case strings.Contains(key, "Spot Contrast"):
			setFloat(&truth().SpotContrast, key, value, path)
		case strings.Contains(key, "Satellite Radius (R_satellite/R_star)"):
			setFloat(&truth().MoonRadius, key, value, path)
		case strings.Contains(key, "Satellite Orbital Period (days)"):
			setFloat(&truth().MoonPeriod, key, value, path)
		case strings.Contains(key, "Satellite Semi-major Axis (a_sat/R_star)"):
			setFloat(&truth().MoonAxis, key, value, path)
		case strings.Contains(key, "TTV Amplitude (days)"):
			setFloat(&truth().TTVAmplitude, key, value, path)
		case strings.Contains(key, "TTV Period (planet orbits)"):
			setFloat(&truth().TTVPeriod, key, value, path)
		case strings.Contains(key, "TTV Phase (radians)"):
			setFloat(&truth().TTVPhase, key, value, path)
		}
	})
	if p.Ecc == nil {
		p.Ecc = ptr(DefaultEcc)
	}
	if p.Omega == nil {
		p.Omega = ptr(DefaultOmega)
	}
	return p
}

// parseRealHeader handles archive exports for confirmed planets. Numeric
// values may carry a unit or uncertainty after the number, so only the first
// whitespace-separated token is parsed.
func parseRealHeader(lines []string, path string) Params {
	var p Params
	walkHeader(lines, func(key, value string) {
		switch {
		case strings.Contains(key, "Orbit Period (days)"):
			setFloatToken(&p.Period, key, value, path)
		case strings.Contains(key, "Transit Duration (days)"):
			setFloatToken(&p.Duration, key, value, path)
		case strings.Contains(key, "Transit Epoch (BJD)"):
			setFloatToken(&p.Epoch, key, value, path)
		case strings.Contains(key, "Star Radius (R_star/R_solar)"):
			setFloatToken(&p.StarRadius, key, value, path)
		case strings.Contains(key, "Planet Radius (R_planet/R_star)"):
			setFloatToken(&p.RadiusRatio, key, value, path)
		case strings.Contains(key, "Semi-major Axis (a/R_star)"):
			setFloatToken(&p.AxisRatio, key, value, path)
		case strings.Contains(key, "Limb Darkening Coefficient u1"):
			setFloatToken(&p.U1, key, value, path)
		case strings.Contains(key, "Limb Darkening Coefficient u2"):
			setFloatToken(&p.U2, key, value, path)
		case strings.Contains(key, "Orbital Inclination (deg)"):
			setFloatToken(&p.Inclination, key, value, path)
		case strings.Contains(key, "Type"):
			// resolved by detectType
		case strings.Contains(key, "Planet Name"):
			p.ObjectName = value
		case strings.Contains(key, "Star Teff (K)"):
			setFloatToken(&p.StarTeff, key, value, path)
		case strings.Contains(key, "Star logg"):
			setFloatToken(&p.StarLogg, key, value, path)
		case strings.Contains(key, "Orbital Eccentricity"):
			setFloatToken(&p.Ecc, key, value, path)
		case strings.Contains(key, "Longitude of Periastron (deg)"):
			setFloatToken(&p.Omega, key, value, path)
		case strings.Contains(key, "Exposure Time (days)"):
			setFloatToken(&p.ExpTime, key, value, path)
		case strings.Contains(key, "Supersample Factor"):
			setIntToken(&p.Supersample, key, value, path)
		}
	})
	if p.Ecc == nil {
		p.Ecc = ptr(DefaultEcc)
	}
	if p.Omega == nil {
		p.Omega = ptr(DefaultOmega)
	}
	if p.ExpTime == nil {
		p.ExpTime = ptr(DefaultExpTime)
	}
	if p.Supersample == nil {
		p.Supersample = intPtr(DefaultSupersample)
	}
	if p.U1 == nil {
		p.U1 = ptr(DefaultU1)
	}
	if p.U2 == nil {
		p.U2 = ptr(DefaultU2)
	}
	if p.Inclination == nil {
		p.Inclination = ptr(DefaultInclination)
	}
	return p
}

func parseRows(rows []string, path string) (time, flux []float64, err error) {
	for _, line := range rows {
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) > 2 {
			return nil, nil, &LoadError{Path: path, Reason: fmt.Sprintf("data row has %d columns, want 2", len(fields))}
		}
		t, perr := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if perr != nil {
			return nil, nil, &LoadError{Path: path, Reason: fmt.Sprintf("bad time value %q", fields[0]), Err: perr}
		}
		f := math.NaN()
		if len(fields) == 2 {
			f, perr = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
			if perr != nil {
				return nil, nil, &LoadError{Path: path, Reason: fmt.Sprintf("bad flux value %q", fields[1]), Err: perr}
			}
		}
		time = append(time, t)
		flux = append(flux, f)
	}
	return time, flux, nil
}

func setFloat(dst **float64, key, value, path string) {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		warnBadValue(key, value, path)
		return
	}
	*dst = &v
}

func setInt(dst **int, key, value, path string) {
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		warnBadValue(key, value, path)
		return
	}
	*dst = &v
}

func setFloatToken(dst **float64, key, value, path string) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		warnBadValue(key, value, path)
		return
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		warnBadValue(key, value, path)
		return
	}
	*dst = &v
}

func setIntToken(dst **int, key, value, path string) {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		warnBadValue(key, value, path)
		return
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		warnBadValue(key, value, path)
		return
	}
	*dst = &v
}

func warnBadValue(key, value, path string) {
	slog.Warn("could not convert header value", "key", key, "value", value, "path", path)
}
