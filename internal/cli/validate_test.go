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
)

func execValidate(t *testing.T, rootOpts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd := NewValidateCommand(rootOpts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// writeRawCurve drops file contents into dir without going through the
// synthetic series builder, for malformed inputs.
func writeRawCurve(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

const missingEpochCurve = "Type: Simulacion\n" +
	"Orbit Period (days): 2.36\n" +
	"Tiempo [BJDS],Flujo\n" +
	"1,1\n" +
	"1.01,0.99\n"

func TestValidateAllValid(t *testing.T) {
	dir := writeDataDir(t)

	out, _, err := execValidate(t, &RootOptions{Format: "text"}, dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 1 file(s) valid")
}

func TestValidateReportsMissingParameter(t *testing.T) {
	dir := t.TempDir()
	writeRawCurve(t, dir, "partial.csv", missingEpochCurve)

	out, _, err := execValidate(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "partial.csv")
	assert.Contains(t, out, ErrCodeMissing)
	assert.Contains(t, out, "epoch")
}

func TestValidateReportsUnparseableFile(t *testing.T) {
	dir := writeDataDir(t)
	writeRawCurve(t, dir, "broken.csv", "just,some,rows\n")

	out, _, err := execValidate(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	assert.Contains(t, out, "broken.csv")
	assert.Contains(t, out, ErrCodeBadFile)
	assert.Contains(t, out, "no data header")
	// The valid file must not show up as an issue.
	assert.NotContains(t, out, "sim.csv\n")
}

func TestValidateEmptyDirectory(t *testing.T) {
	out, _, err := execValidate(t, &RootOptions{Format: "text"}, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoFiles)
	assert.Contains(t, out, "no light-curve files found")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	out, _, err := execValidate(t, &RootOptions{Format: "text"}, "/nonexistent/directory/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNotFound)
	assert.Contains(t, out, "not found")
}

func TestValidateJSONValid(t *testing.T) {
	dir := writeDataDir(t)

	out, _, err := execValidate(t, &RootOptions{Format: "json"}, dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["valid"])
	assert.Equal(t, float64(1), data["checked"])
}

func TestValidateJSONIssues(t *testing.T) {
	dir := writeDataDir(t)
	writeRawCurve(t, dir, "partial.csv", missingEpochCurve)

	out, _, err := execValidate(t, &RootOptions{Format: "json"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeMissing, resp.Error.Code)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, false, data["valid"])
	assert.Equal(t, float64(2), data["checked"])

	issues, ok := data["issues"].([]interface{})
	require.True(t, ok)
	require.Len(t, issues, 1)
}

func TestValidateVerboseOutput(t *testing.T) {
	dir := writeDataDir(t)

	_, errOut, err := execValidate(t, &RootOptions{Format: "text", Verbose: true}, dir)
	require.NoError(t, err)

	// Diagnostics go to stderr so JSON on stdout stays intact.
	assert.Contains(t, errOut, "Found 1 CSV file(s)")
	assert.Contains(t, errOut, "Checking sim.csv")
}

func TestValidateUsesConfiguredDataDir(t *testing.T) {
	dir := writeDataDir(t)
	cfgPath := filepath.Join(t.TempDir(), "transitscan.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf("data_dir: %s\n", dir)), 0o644))

	out, _, err := execValidate(t, &RootOptions{Format: "text", Config: cfgPath})
	require.NoError(t, err)
	assert.Contains(t, out, "✓ All 1 file(s) valid")
}
