package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emoons/transitscan/internal/lightcurve"
	"github.com/emoons/transitscan/internal/pipeline"
	"github.com/emoons/transitscan/internal/testutil"
)

func fptr(v float64) *float64 { return &v }
func iptr(v int) *int         { return &v }

// writeDataDir creates a data directory with one synthetic light curve
// spanning two transits (epoch 10.125, period 2.36, samples 9..13).
func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteCurveFile(t, dir, testutil.NewSeries(testutil.SeriesSpec{
		Name:  "sim.csv",
		Start: 9,
		End:   13,
		Step:  0.01,
		Params: lightcurve.Params{
			Period:      fptr(2.36),
			Epoch:       fptr(10.125),
			Duration:    fptr(0.2),
			RadiusRatio: fptr(0.1),
			AxisRatio:   fptr(8),
			Inclination: fptr(89),
			U1:          fptr(0.65),
			U2:          fptr(0.08),
			Ecc:         fptr(0),
			Omega:       fptr(90),
			ExpTime:     fptr(0),
			Supersample: iptr(1),
		},
	}))
	return dir
}

func execRun(t *testing.T, rootOpts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRunCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	if args == nil {
		// nil makes cobra fall back to os.Args, which holds test flags.
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRunCommand_DryRunListsFiles(t *testing.T) {
	dataDir := writeDataDir(t)
	outDir := filepath.Join(t.TempDir(), "plots")

	out, err := execRun(t, &RootOptions{Format: "text"}, "-i", dataDir, "-o", outDir, "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, out, "Files that would be processed from "+dataDir)
	assert.Contains(t, out, "sim.csv")
	assert.NotContains(t, out, "Generated")
	assert.NoDirExists(t, outDir)
}

func TestRunCommand_GeneratesPlotsAndSummaries(t *testing.T) {
	dataDir := writeDataDir(t)
	outDir := filepath.Join(t.TempDir(), "plots")

	out, err := execRun(t, &RootOptions{Format: "text"}, "-i", dataDir, "-o", outDir, "--skip-fitting")
	require.NoError(t, err)

	assert.Contains(t, out, "Generated 2 transit records in "+outDir)
	assert.Contains(t, out, "Summary saved to "+filepath.Join(outDir, pipeline.TransitsFileName))

	assert.FileExists(t, filepath.Join(outDir, "sim_transit_001.png"))
	assert.FileExists(t, filepath.Join(outDir, "sim_transit_002.png"))
	assert.FileExists(t, filepath.Join(outDir, pipeline.CurvesFileName))

	records, err := pipeline.ReadTransits(filepath.Join(outDir, pipeline.TransitsFileName))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Nil(t, records[0].T0Fitted, "skip-fitting leaves timing fields empty")
	assert.Equal(t, "sim_transit_001.png", records[0].PlotFile)
}

func TestRunCommand_SecondRunSkipsExistingPlots(t *testing.T) {
	dataDir := writeDataDir(t)
	outDir := filepath.Join(t.TempDir(), "plots")

	_, err := execRun(t, &RootOptions{Format: "text"}, "-i", dataDir, "-o", outDir, "--skip-fitting")
	require.NoError(t, err)

	out, err := execRun(t, &RootOptions{Format: "text"}, "-i", dataDir, "-o", outDir, "--skip-fitting")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated 0 transit records")
	assert.NotContains(t, out, "Summary saved")
}

func TestRunCommand_WorkersFlag(t *testing.T) {
	dataDir := writeDataDir(t)
	outDir := filepath.Join(t.TempDir(), "plots")

	out, err := execRun(t, &RootOptions{Format: "text"}, "-i", dataDir, "-o", outDir, "--skip-fitting", "--workers", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated 2 transit records")
}

func TestRunCommand_JSONOutput(t *testing.T) {
	dataDir := writeDataDir(t)
	outDir := filepath.Join(t.TempDir(), "plots")

	out, err := execRun(t, &RootOptions{Format: "json"}, "-i", dataDir, "-o", outDir, "--skip-fitting")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), data["records"])
	assert.Equal(t, outDir, data["output_dir"])
	assert.NotEmpty(t, data["run_id"])
	assert.Equal(t, filepath.Join(outDir, pipeline.TransitsFileName), data["summary"])
}

func TestRunCommand_MissingDataDir(t *testing.T) {
	outDir := filepath.Join(t.TempDir(), "plots")

	_, err := execRun(t, &RootOptions{Format: "text"}, "-i", "/nonexistent/archive", "-o", outDir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "data directory not found")
}

func TestRunCommand_ConfigFileDefaults(t *testing.T) {
	dataDir := writeDataDir(t)
	cfgOut := filepath.Join(t.TempDir(), "cfg_plots")
	cfgPath := filepath.Join(t.TempDir(), "transitscan.yaml")
	cfg := fmt.Sprintf("data_dir: %s\noutput_dir: %s\nskip_fitting: true\n", dataDir, cfgOut)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, err := execRun(t, &RootOptions{Format: "text", Config: cfgPath})
	require.NoError(t, err)

	assert.Contains(t, out, "Generated 2 transit records in "+cfgOut)
	assert.FileExists(t, filepath.Join(cfgOut, "sim_transit_001.png"))
}

func TestRunCommand_FlagsOverrideConfig(t *testing.T) {
	dataDir := writeDataDir(t)
	cfgOut := filepath.Join(t.TempDir(), "cfg_plots")
	flagOut := filepath.Join(t.TempDir(), "flag_plots")
	cfgPath := filepath.Join(t.TempDir(), "transitscan.yaml")
	cfg := fmt.Sprintf("data_dir: %s\noutput_dir: %s\nskip_fitting: true\n", dataDir, cfgOut)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	_, err := execRun(t, &RootOptions{Format: "text", Config: cfgPath}, "-o", flagOut)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(flagOut, "sim_transit_001.png"))
	assert.NoDirExists(t, cfgOut)
}

func TestRunCommand_BadConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "transitscan.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("plot_dir: nope\n"), 0o644))

	_, err := execRun(t, &RootOptions{Format: "text", Config: cfgPath})
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to load config")
}
