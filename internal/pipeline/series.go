package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/emoons/transitscan/internal/ephemeris"
	"github.com/emoons/transitscan/internal/fit"
	"github.com/emoons/transitscan/internal/lightcurve"
	"github.com/emoons/transitscan/internal/render"
)

const (
	// minEventSamples is the fewest points around an expected center that
	// still count as an observed event.
	minEventSamples = 10
	// searchWindowScale and searchWindowMin size the half-width of the
	// window searched for each event: 2x the duration, at least half a day.
	searchWindowScale = 2.0
	searchWindowMin   = 0.5
	// plotWindowScale sizes the plotted half-width as a duration multiple.
	plotWindowScale = 1.25

	minutesPerDay = 24 * 60
)

// eventFit holds the per-event fit outputs that land in the record. A nil
// eventFit marks the event failed.
type eventFit struct {
	t0Fitted     *float64
	ttvMinutes   *float64
	rmsResiduals *float64
}

// ProcessFile runs the full per-series flow: load, predict events, partition
// against existing artifacts and the failure ledger, fit, render, and record.
// Files that cannot be processed at all are logged and yield no records; an
// error is returned only when output cannot be written.
func (b *Batch) ProcessFile(ctx context.Context, path string, ledger *Ledger) ([]TransitRecord, *CurveRecord, error) {
	name := filepath.Base(path)
	slog.Info("processing series", "file", name)

	series, err := b.loader.Load(path)
	if err != nil {
		slog.Error("failed to load series", "file", name, "error", err)
		return nil, nil, nil
	}
	if err := CheckSeries(series); err != nil {
		slog.Error("series is not processable", "file", name, "error", err)
		return nil, nil, nil
	}
	epoch := *series.Params.Epoch
	mp := series.Params.Model()

	expected := ephemeris.ExpectedTimes(series.Time, epoch, mp.Period)
	if len(expected) == 0 {
		slog.Warn("no transits inside the observed span", "file", name)
		return nil, nil, nil
	}
	slog.Info("expected transits", "file", name, "count", len(expected))

	curveRecord := func(found int, rp, a float64) *CurveRecord {
		return &CurveRecord{
			File:             name,
			TimeMin:          floats.Min(series.Time),
			TimeMax:          floats.Max(series.Time),
			ExpectedTransits: len(expected),
			FoundTransits:    found,
			DataType:         series.DataType,
			Period:           mp.Period,
			Epoch:            epoch,
			Duration:         mp.Duration,
			Rp:               rp,
			A:                a,
			Inc:              mp.Inclination,
			U1:               mp.U1,
			U2:               mp.U2,
		}
	}

	ledger.Reload()
	failed := ledger.FailedSet(name)
	stem := strings.TrimSuffix(name, filepath.Ext(name))

	type event struct {
		num      int
		expected float64
		plotPath string
	}
	var pending, skippedFailed []event
	for i, center := range expected {
		ev := event{
			num:      i + 1,
			expected: center,
			plotPath: filepath.Join(b.outputDir, fmt.Sprintf("%s_transit_%03d.png", stem, i+1)),
		}
		if !b.force {
			if _, err := os.Stat(ev.plotPath); err == nil {
				continue
			}
			if failed[ev.num] {
				slog.Debug("skipping previously failed transit", "file", name, "transit", ev.num)
				skippedFailed = append(skippedFailed, ev)
				continue
			}
		}
		pending = append(pending, ev)
	}

	if len(pending) == 0 && len(skippedFailed) == 0 {
		slog.Info("all plots already exist", "file", name, "count", len(expected))
		return nil, curveRecord(0, mp.RadiusRatio, mp.AxisRatio), nil
	}
	if len(pending) > 0 {
		slog.Info("plots to generate", "file", name, "pending", len(pending), "total", len(expected))
	}

	rpGlobal, aGlobal := mp.RadiusRatio, mp.AxisRatio
	if len(pending) > 0 && !b.skipFitting {
		slog.Info("fitting global shape parameters", "file", name)
		rpGlobal, aGlobal = fit.GlobalShape(series.Time, series.Flux, mp, expected)
		slog.Info("global shape fit done", "file", name, "rp", rpGlobal, "a", aGlobal)
	}

	records := make([]TransitRecord, 0, len(pending)+len(skippedFailed))
	for _, ev := range skippedFailed {
		records = append(records, b.eventRecord(name, ev.num, ev.expected, mp, rpGlobal, aGlobal, nil, ""))
	}

	results := make([]*eventFit, len(pending))
	if b.workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.workers)
		for i, ev := range pending {
			i, ev := i, ev
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := b.processEvent(series, mp, rpGlobal, aGlobal, ev.num, ev.expected, ev.plotPath)
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, nil, err
		}
	} else {
		for i, ev := range pending {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			res, err := b.processEvent(series, mp, rpGlobal, aGlobal, ev.num, ev.expected, ev.plotPath)
			if err != nil {
				return nil, nil, err
			}
			results[i] = res
		}
	}

	var newFailed []int
	for i, ev := range pending {
		res := results[i]
		if res == nil {
			newFailed = append(newFailed, ev.num)
			records = append(records, b.eventRecord(name, ev.num, ev.expected, mp, rpGlobal, aGlobal, nil, ""))
			continue
		}
		records = append(records, b.eventRecord(name, ev.num, ev.expected, mp, rpGlobal, aGlobal, res, filepath.Base(ev.plotPath)))
	}

	if len(newFailed) > 0 {
		if err := ledger.Record(name, newFailed); err != nil {
			return nil, nil, fmt.Errorf("persist failure ledger: %w", err)
		}
		slog.Info("marked transits as failed", "file", name, "count", len(newFailed))
	}

	slog.Info("series done", "file", name, "records", len(records))
	return records, curveRecord(len(records), rpGlobal, aGlobal), nil
}

// processEvent fits and renders a single event. A nil result with a nil
// error marks the event failed; an error aborts the whole series.
func (b *Batch) processEvent(s *lightcurve.Series, mp lightcurve.ModelParams, rp, a float64, num int, t0Expected float64, plotPath string) (*eventFit, error) {
	searchW := math.Max(mp.Duration*searchWindowScale, searchWindowMin)
	wt, wf := fit.Window(s.Time, s.Flux, t0Expected, searchW)
	if len(wt) < minEventSamples {
		slog.Warn("too few samples around expected center", "file", s.Name, "transit", num, "samples", len(wt))
		return nil, nil
	}

	guess := fit.InitialT0(wt, wf)

	var fitted *fit.FittedTransit
	if !b.skipFitting {
		ft, err := fit.TransitT0(wt, wf, mp, rp, a, guess)
		if err != nil {
			slog.Warn("center-time fit failed", "file", s.Name, "transit", num, "error", err)
			return nil, nil
		}
		fitted = ft
	}

	center := t0Expected
	if fitted != nil {
		center = fitted.T0
	}
	pt, pf := plotWindow(s.Time, s.Flux, center, mp.Duration*plotWindowScale)
	if len(pt) == 0 {
		slog.Warn("no samples in plot window", "file", s.Name, "transit", num)
		return nil, nil
	}

	res := &eventFit{}
	var model []float64
	if fitted != nil {
		model = fitted.ModelConfig().Curve(pt, fitted.T0)
		rms := rootMeanSquare(pf, model)
		ttv := (fitted.T0 - t0Expected) * minutesPerDay
		t0 := fitted.T0
		res.t0Fitted = &t0
		res.ttvMinutes = &ttv
		res.rmsResiduals = &rms
	}

	req := render.Request{
		Time:         pt,
		Flux:         pf,
		ModelFlux:    model,
		T0Fitted:     res.t0Fitted,
		T0Expected:   t0Expected,
		TTVMinutes:   res.ttvMinutes,
		RMSResiduals: res.rmsResiduals,
		TransitIndex: num,
		OutputPath:   plotPath,
		DPI:          b.dpi,
	}
	if err := b.renderer.Render(req); err != nil {
		return nil, fmt.Errorf("render transit %d: %w", num, err)
	}
	slog.Debug("saved plot", "file", filepath.Base(plotPath))
	return res, nil
}

func (b *Batch) eventRecord(file string, num int, t0Expected float64, mp lightcurve.ModelParams, rp, a float64, res *eventFit, plotFile string) TransitRecord {
	rec := TransitRecord{
		File:         file,
		TransitIndex: num,
		T0Expected:   t0Expected,
		RpFitted:     rp,
		AFitted:      a,
		Period:       mp.Period,
		Duration:     mp.Duration,
		Inc:          mp.Inclination,
		U1:           mp.U1,
		U2:           mp.U2,
		PlotFile:     plotFile,
	}
	if res != nil {
		rec.T0Fitted = res.t0Fitted
		rec.TTVMinutes = res.ttvMinutes
		rec.RMSResiduals = res.rmsResiduals
	}
	return rec
}

// plotWindow selects the samples within halfWidth of center, bounds
// included.
func plotWindow(time, flux []float64, center, halfWidth float64) ([]float64, []float64) {
	var wt, wf []float64
	for i, t := range time {
		if t >= center-halfWidth && t <= center+halfWidth {
			wt = append(wt, t)
			wf = append(wf, flux[i])
		}
	}
	return wt, wf
}

func rootMeanSquare(flux, model []float64) float64 {
	if len(flux) == 0 {
		return 0
	}
	var total float64
	for i := range flux {
		d := flux[i] - model[i]
		total += d * d
	}
	return math.Sqrt(total / float64(len(flux)))
}
