package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/emoons/transitscan/internal/lightcurve"
	"github.com/emoons/transitscan/internal/render"
)

// Loader reads one light-curve file into a series.
type Loader interface {
	Load(path string) (*lightcurve.Series, error)
}

// LoaderFunc adapts a plain function to the Loader interface.
type LoaderFunc func(path string) (*lightcurve.Series, error)

// Load implements Loader.
func (f LoaderFunc) Load(path string) (*lightcurve.Series, error) { return f(path) }

// Renderer writes one per-event plot artifact.
type Renderer interface {
	Render(req render.Request) error
}

// Batch processes every light-curve file in a data directory and writes plot
// artifacts, summary tables, and the failure ledger into an output directory.
type Batch struct {
	dataDir   string
	outputDir string
	runID     string

	files       []string
	dpi         int
	workers     int
	skipFitting bool
	force       bool
	dryRun      bool

	loader   Loader
	renderer Renderer
	listing  io.Writer
}

// Option configures a Batch.
type Option func(*Batch)

// WithFiles restricts the batch to the named files inside the data
// directory. Names that do not exist are skipped with a warning.
func WithFiles(names []string) Option {
	return func(b *Batch) { b.files = names }
}

// WithDPI sets the plot artifact resolution.
func WithDPI(dpi int) Option {
	return func(b *Batch) { b.dpi = dpi }
}

// WithWorkers sets how many events of one series are fitted concurrently.
func WithWorkers(n int) Option {
	return func(b *Batch) { b.workers = n }
}

// WithSkipFitting disables shape and timing fits; plots show data only.
func WithSkipFitting(skip bool) Option {
	return func(b *Batch) { b.skipFitting = skip }
}

// WithForce reprocesses events whose plot artifact already exists and
// retries events the failure ledger would otherwise skip.
func WithForce(force bool) Option {
	return func(b *Batch) { b.force = force }
}

// WithDryRun lists the files a run would process without touching anything.
func WithDryRun(dry bool) Option {
	return func(b *Batch) { b.dryRun = dry }
}

// WithLoader replaces the file loader.
func WithLoader(l Loader) Option {
	return func(b *Batch) { b.loader = l }
}

// WithRenderer replaces the plot renderer.
func WithRenderer(r Renderer) Option {
	return func(b *Batch) { b.renderer = r }
}

// WithListingWriter sets where dry-run listings are printed.
func WithListingWriter(w io.Writer) Option {
	return func(b *Batch) { b.listing = w }
}

// NewBatch builds a batch over dataDir writing into outputDir.
func NewBatch(dataDir, outputDir string, opts ...Option) *Batch {
	b := &Batch{
		dataDir:   dataDir,
		outputDir: outputDir,
		runID:     uuid.Must(uuid.NewV7()).String(),
		dpi:       render.DefaultDPI,
		workers:   1,
		loader:    LoaderFunc(lightcurve.Load),
		renderer:  render.PNG{},
		listing:   os.Stdout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RunID identifies this batch in logs.
func (b *Batch) RunID() string { return b.runID }

// Run processes the batch and returns the transit records it produced. A
// file that fails to process is logged and skipped; Run only returns an
// error when the run as a whole cannot continue.
func (b *Batch) Run(ctx context.Context) ([]TransitRecord, error) {
	files, err := b.listFiles()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		slog.Warn("no light-curve files found", "dir", b.dataDir)
		return nil, nil
	}

	if b.dryRun {
		for _, path := range files {
			fmt.Fprintf(b.listing, "  %s\n", filepath.Base(path))
		}
		return nil, nil
	}

	slog.Info("starting batch", "run_id", b.runID, "files", len(files), "output", b.outputDir)
	if err := os.MkdirAll(b.outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	ledger := OpenLedger(b.outputDir)

	var transits []TransitRecord
	var curves []CurveRecord
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return transits, err
		}
		records, curve, err := b.processFileGuarded(ctx, path, ledger)
		if err != nil {
			slog.Error("series failed", "file", filepath.Base(path), "error", err)
			continue
		}
		transits = append(transits, records...)
		if curve != nil {
			curves = append(curves, *curve)
		}
	}

	if len(transits) > 0 {
		path := filepath.Join(b.outputDir, TransitsFileName)
		if err := MergeTransits(transits, path); err != nil {
			return transits, err
		}
		slog.Info("saved transit summary", "path", path, "records", len(transits))
	}
	if len(curves) > 0 {
		path := filepath.Join(b.outputDir, CurvesFileName)
		if err := MergeCurves(curves, path); err != nil {
			return transits, err
		}
		slog.Info("saved curve summary", "path", path, "records", len(curves))
	}
	return transits, nil
}

// processFileGuarded contains a panic from one series so a malformed file
// cannot take down the rest of the batch.
func (b *Batch) processFileGuarded(ctx context.Context, path string, ledger *Ledger) (records []TransitRecord, curve *CurveRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, curve = nil, nil
			err = fmt.Errorf("panic processing %s: %v", filepath.Base(path), r)
		}
	}()
	return b.ProcessFile(ctx, path, ledger)
}

func (b *Batch) listFiles() ([]string, error) {
	if len(b.files) > 0 {
		var paths []string
		for _, name := range b.files {
			path := filepath.Join(b.dataDir, name)
			if _, err := os.Stat(path); err != nil {
				slog.Warn("requested file not found", "file", name, "dir", b.dataDir)
				continue
			}
			paths = append(paths, path)
		}
		return paths, nil
	}
	paths, err := filepath.Glob(filepath.Join(b.dataDir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("scan data dir: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}
