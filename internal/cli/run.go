package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emoons/transitscan/internal/config"
	"github.com/emoons/transitscan/internal/pipeline"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	DataDir     string
	OutputDir   string
	Files       []string
	DPI         int
	Workers     int
	SkipFitting bool
	Force       bool
	DryRun      bool
}

// RunResult summarizes a finished batch for command output.
type RunResult struct {
	Records   int    `json:"records"`
	OutputDir string `json:"output_dir"`
	Summary   string `json:"summary,omitempty"`
	RunID     string `json:"run_id"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate transit plots and timing summaries",
		Long: `Process light-curve CSV files into per-transit plots and summary tables.

Every CSV in the data directory (or the files named with -f) is loaded,
its transits are predicted from the header ephemeris, each transit is
fitted and rendered as a PNG, and the merged transits.csv / curves.csv
tables are updated in the output directory. Transits whose plot already
exists are skipped, as are transits recorded in the failure ledger; use
--force to redo both.

Example:
  transitscan run
  transitscan run -f Corot1b.csv -v
  transitscan run --dry-run
  transitscan run -i my_data -o my_plots --dpi 300 --workers 4`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.DataDir, "data-dir", "i", defaults.DataDir, "input directory with light-curve CSV files")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", defaults.OutputDir, "output directory for PNG files and summary CSVs")
	cmd.Flags().StringArrayVarP(&opts.Files, "file", "f", nil, "process specific file(s) only, repeatable")
	cmd.Flags().IntVar(&opts.DPI, "dpi", defaults.DPI, "plot resolution in DPI")
	cmd.Flags().IntVar(&opts.Workers, "workers", defaults.Workers, "transits fitted in parallel per file")
	cmd.Flags().BoolVar(&opts.SkipFitting, "skip-fitting", false, "skip model fitting, plot data only")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "regenerate plots even if they already exist")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list files to process without generating plots")

	return cmd
}

func runBatch(opts *RunOptions, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	applyRunFlags(&cfg, opts, cmd)

	info, err := os.Stat(cfg.DataDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "data directory not found", err)
	}
	if !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("not a directory: %s", cfg.DataDir))
	}

	// Use the command's context if available (for testing), otherwise
	// create one.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if opts.DryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Files that would be processed from %s:\n", cfg.DataDir)
	}

	batch := pipeline.NewBatch(cfg.DataDir, cfg.OutputDir,
		pipeline.WithFiles(opts.Files),
		pipeline.WithDPI(cfg.DPI),
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithSkipFitting(cfg.SkipFitting),
		pipeline.WithForce(cfg.Force),
		pipeline.WithDryRun(opts.DryRun),
		pipeline.WithListingWriter(cmd.OutOrStdout()),
	)

	records, err := batch.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Info("batch interrupted, partial results are on disk")
			return nil
		}
		return WrapExitError(ExitFailure, "batch failed", err)
	}
	if opts.DryRun {
		return nil
	}

	result := RunResult{
		Records:   len(records),
		OutputDir: cfg.OutputDir,
		RunID:     batch.RunID(),
	}
	if len(records) > 0 {
		result.Summary = filepath.Join(cfg.OutputDir, pipeline.TransitsFileName)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nGenerated %d transit records in %s\n", result.Records, cfg.OutputDir)
	if result.Summary != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Summary saved to %s\n", result.Summary)
	}
	return nil
}

// applyRunFlags lays explicitly set flags over the config file values.
func applyRunFlags(cfg *config.Config, opts *RunOptions, cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = opts.DataDir
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = opts.OutputDir
	}
	if flags.Changed("dpi") {
		cfg.DPI = opts.DPI
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.Workers
	}
	if flags.Changed("skip-fitting") {
		cfg.SkipFitting = opts.SkipFitting
	}
	if flags.Changed("force") {
		cfg.Force = opts.Force
	}
}
