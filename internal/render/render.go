// Package render draws per-transit diagnostic plots: observed flux with the
// fitted model overlaid, and a residual strip underneath.
package render

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// DefaultDPI matches the resolution the CLI advertises.
const DefaultDPI = 150

const (
	pageWidth  = 10 * vg.Inch
	pageHeight = 8 * vg.Inch
)

// Request carries everything needed to draw one transit window. ModelFlux
// and the pointer fields are nil when the center-time fit did not run or did
// not succeed.
type Request struct {
	Time         []float64
	Flux         []float64
	ModelFlux    []float64
	T0Fitted     *float64
	T0Expected   float64
	TTVMinutes   *float64
	RMSResiduals *float64
	TransitIndex int
	OutputPath   string
	DPI          int
}

// PNG renders requests to PNG files on disk.
type PNG struct{}

// Render writes the two-panel plot for req, creating parent directories as
// needed. The top panel (3/4 of the page) shows data and model, the bottom
// strip shows residuals around a dashed zero line.
func (PNG) Render(req Request) error {
	mainPlot := plot.New()
	resPlot := plot.New()

	mainPlot.Y.Label.Text = "Normalized Flux"
	mainPlot.Add(plotter.NewGrid())
	resPlot.X.Label.Text = "Time [BJDS]"
	resPlot.Add(plotter.NewGrid())

	hasModel := req.ModelFlux != nil && req.T0Fitted != nil

	var title string
	switch {
	case len(req.Time) == 0:
		title = "No data"
	case hasModel && req.TTVMinutes != nil:
		title = fmt.Sprintf("TTV: %.3f min", *req.TTVMinutes)
	case hasModel:
		title = "Transit"
	default:
		title = "Fit failed"
	}
	if req.TransitIndex > 0 {
		title = fmt.Sprintf("Transit %d - %s", req.TransitIndex, title)
	}
	mainPlot.Title.Text = title

	if len(req.Time) > 0 {
		if err := addData(mainPlot, req.Time, req.Flux); err != nil {
			return fmt.Errorf("render plot: %w", err)
		}

		tMin, tMax := bounds(req.Time)
		mainPlot.X.Min, mainPlot.X.Max = tMin, tMax
		resPlot.X.Min, resPlot.X.Max = tMin, tMax

		if err := addZeroLine(resPlot, tMin, tMax); err != nil {
			return fmt.Errorf("render plot: %w", err)
		}

		if hasModel {
			if err := addModelAndResiduals(mainPlot, resPlot, req); err != nil {
				return fmt.Errorf("render plot: %w", err)
			}
		} else {
			resPlot.Title.Text = "Residuals (no fitted model)"
		}
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	if err := writePNG(mainPlot, resPlot, req.OutputPath, req.DPI); err != nil {
		return fmt.Errorf("render plot: %w", err)
	}
	return nil
}

func addData(p *plot.Plot, time, flux []float64) error {
	scatter, err := plotter.NewScatter(xyPoints(time, flux))
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Color = color.Black
	scatter.GlyphStyle.Radius = vg.Points(2)
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	p.Add(scatter)
	p.Legend.Add("Transit Data", scatter)
	p.Legend.Top = true
	return nil
}

func addModelAndResiduals(mainPlot, resPlot *plot.Plot, req Request) error {
	line, err := plotter.NewLine(xyPoints(req.Time, req.ModelFlux))
	if err != nil {
		return err
	}
	line.LineStyle.Color = color.RGBA{R: 0xcc, A: 0xff}
	line.LineStyle.Width = vg.Points(2)
	mainPlot.Add(line)
	mainPlot.Legend.Add("Fitted Model", line)

	residuals := make([]float64, len(req.Flux))
	maxAbs := 0.0
	for i := range req.Flux {
		residuals[i] = req.Flux[i] - req.ModelFlux[i]
		if abs := math.Abs(residuals[i]); abs > maxAbs {
			maxAbs = abs
		}
	}

	dots, err := plotter.NewScatter(xyPoints(req.Time, residuals))
	if err != nil {
		return err
	}
	dots.GlyphStyle.Color = color.Black
	dots.GlyphStyle.Radius = vg.Points(1.5)
	dots.GlyphStyle.Shape = draw.CircleGlyph{}
	resPlot.Add(dots)

	if req.RMSResiduals != nil {
		resPlot.Title.Text = fmt.Sprintf("RMS Residuals: %.4f", *req.RMSResiduals)
	}
	if maxAbs > 0 {
		resPlot.Y.Min = -maxAbs * 1.2
		resPlot.Y.Max = maxAbs * 1.2
	}
	return nil
}

func addZeroLine(p *plot.Plot, tMin, tMax float64) error {
	zero, err := plotter.NewLine(plotter.XYs{{X: tMin, Y: 0}, {X: tMax, Y: 0}})
	if err != nil {
		return err
	}
	zero.LineStyle.Color = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	zero.LineStyle.Width = vg.Points(0.8)
	zero.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(zero)
	return nil
}

// writePNG lays both panels onto one canvas, the main panel above at three
// times the residual strip's height.
func writePNG(mainPlot, resPlot *plot.Plot, path string, dpi int) error {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	img := vgimg.NewWith(vgimg.UseWH(pageWidth, pageHeight), vgimg.UseDPI(dpi))
	dc := draw.New(img)

	h := dc.Max.Y - dc.Min.Y
	mainPlot.Draw(draw.Crop(dc, 0, 0, h/4, 0))
	resPlot.Draw(draw.Crop(dc, 0, 0, 0, -3*h/4))

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// xyPoints pairs time and value samples, dropping NaNs so axis ranging stays
// finite.
func xyPoints(time, values []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(time))
	for i := range time {
		if math.IsNaN(values[i]) || math.IsNaN(time[i]) {
			continue
		}
		pts = append(pts, plotter.XY{X: time[i], Y: values[i]})
	}
	return pts
}

func bounds(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
