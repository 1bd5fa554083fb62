package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/emoons/transitscan/internal/lightcurve"
	"github.com/emoons/transitscan/internal/pipeline"
)

// FileIssue describes one input file that failed validation.
type FileIssue struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationResult holds validation results over a data directory.
type ValidationResult struct {
	Valid   bool        `json:"valid"`
	Checked int         `json:"checked"`
	Issues  []FileIssue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [data-dir]",
		Short: "Check input files without processing them",
		Long: `Load every light-curve CSV in the data directory and report files that
cannot be processed: unreadable layout, malformed samples, or a header
that lacks the orbital period or transit epoch. Nothing is fitted or
written, so this is a fast pre-flight for large archives.

The directory defaults to the configured data dir.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Errors come out through our own formatter
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs must not corrupt JSON output
		Verbose:   opts.Verbose,
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	dir := cfg.DataDir
	if len(args) == 1 {
		dir = args[0]
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		msg := fmt.Sprintf("data directory not found: %s", dir)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", ErrCodeNotFound, msg))
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "scanning data directory", err)
	}
	sort.Strings(paths)
	if len(paths) == 0 {
		msg := fmt.Sprintf("no light-curve files found in %s", dir)
		_ = formatter.Error(ErrCodeNoFiles, msg, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", ErrCodeNoFiles, msg))
	}

	formatter.VerboseLog("Found %d CSV file(s) in %s", len(paths), dir)

	var issues []FileIssue
	for _, path := range paths {
		name := filepath.Base(path)
		formatter.VerboseLog("Checking %s", name)

		series, err := lightcurve.Load(path)
		if err != nil {
			issues = append(issues, FileIssue{File: name, Code: ErrCodeBadFile, Message: loadMessage(err)})
			continue
		}
		if err := pipeline.CheckSeries(series); err != nil {
			issues = append(issues, FileIssue{File: name, Code: ErrCodeMissing, Message: err.Error()})
		}
	}

	if len(issues) > 0 {
		return outputIssues(formatter, len(paths), issues)
	}
	return outputAllValid(formatter, len(paths))
}

// loadMessage prefers the parse reason over the full wrapped chain; the
// issue already names the file.
func loadMessage(err error) string {
	var loadErr *lightcurve.LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Reason
	}
	return err.Error()
}

func outputAllValid(formatter *OutputFormatter, checked int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Checked: checked})
	}

	fmt.Fprintf(formatter.Writer, "✓ All %d file(s) valid\n", checked)
	return nil
}

func outputIssues(formatter *OutputFormatter, checked int, issues []FileIssue) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:   false,
			Checked: checked,
			Issues:  issues,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		fmt.Fprintf(formatter.Writer, "%s\n  %s: %s\n\n", issue.File, issue.Code, issue.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(issues)))
}
