package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/emoons/transitscan/internal/catalog"
	"github.com/emoons/transitscan/internal/pipeline"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database string
	Results  string
}

// IngestResult summarizes a catalog import for command output.
type IngestResult struct {
	Database string `json:"database"`
	Curves   int    `json:"curves"`
	Transits int    `json:"transits"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load summary tables into a SQLite catalog",
		Long: `Import the merged transits.csv and curves.csv from a results directory
into a SQLite catalog database (created on first use).

Curves are upserted by file name. Transits are replaced wholesale and the
per-curve found counts recomputed, so the catalog always mirrors the most
recent summaries.

Example:
  transitscan ingest --db catalog.db
  transitscan ingest --db catalog.db --results my_plots`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the catalog SQLite database")
	cmd.Flags().StringVar(&opts.Results, "results", "", "results directory holding the summary CSVs (default: output dir)")

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	dbPath := cfg.Catalog
	if cmd.Flags().Changed("db") {
		dbPath = opts.Database
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no catalog database given: set --db or the catalog config key")
	}
	results := cfg.OutputDir
	if cmd.Flags().Changed("results") {
		results = opts.Results
	}

	curves, err := pipeline.ReadCurves(filepath.Join(results, pipeline.CurvesFileName))
	if err != nil {
		return WrapExitError(ExitCommandError, "reading curve summary", err)
	}
	transits, err := pipeline.ReadTransits(filepath.Join(results, pipeline.TransitsFileName))
	if err != nil {
		return WrapExitError(ExitCommandError, "reading transit summary", err)
	}

	slog.Info("opening catalog", "path", dbPath)
	cat, err := catalog.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open catalog", err)
	}
	defer func() {
		if closeErr := cat.Close(); closeErr != nil {
			slog.Error("error closing catalog", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	nCurves, err := cat.ImportCurves(ctx, curves)
	if err != nil {
		return WrapExitError(ExitFailure, "importing curves", err)
	}
	nTransits, err := cat.ImportTransits(ctx, transits)
	if err != nil {
		return WrapExitError(ExitFailure, "importing transits", err)
	}
	slog.Info("catalog import done", "curves", nCurves, "transits", nTransits)

	result := IngestResult{Database: dbPath, Curves: nCurves, Transits: nTransits}
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d curve(s) and %d transit(s) into %s\n", nCurves, nTransits, dbPath)
	return nil
}
