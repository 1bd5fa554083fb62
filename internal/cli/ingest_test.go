package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emoons/transitscan/internal/catalog"
	"github.com/emoons/transitscan/internal/pipeline"
)

func execIngest(t *testing.T, rootOpts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewIngestCommand(rootOpts)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	if args == nil {
		args = []string{}
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeSummaries builds a results directory holding merged summary tables
// for two curves and three transits, one of them failed.
func writeSummaries(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	curves := []pipeline.CurveRecord{
		{
			File: "sim_a.csv", TimeMin: 9, TimeMax: 13,
			ExpectedTransits: 2, FoundTransits: 2, DataType: "simulated",
			Period: 2.36, Epoch: 10.125, Duration: 0.2,
			Rp: 0.1, A: 8, Inc: 89, U1: 0.65, U2: 0.08,
		},
		{
			File: "sim_b.csv", TimeMin: 99, TimeMax: 104,
			ExpectedTransits: 1, FoundTransits: 1, DataType: "simulated",
			Period: 2.36, Epoch: 100.3, Duration: 0.2,
			Rp: 0.1, A: 8, Inc: 89, U1: 0.65, U2: 0.08,
		},
	}
	transits := []pipeline.TransitRecord{
		{
			File: "sim_a.csv", TransitIndex: 1, T0Expected: 10.125,
			T0Fitted: fptr(10.1252), TTVMinutes: fptr(0.288), RMSResiduals: fptr(0.0002),
			RpFitted: 0.1, AFitted: 8, Period: 2.36, Duration: 0.2,
			Inc: 89, U1: 0.65, U2: 0.08, PlotFile: "sim_a_transit_001.png",
		},
		{
			File: "sim_a.csv", TransitIndex: 2, T0Expected: 12.485,
			T0Fitted: fptr(12.485), TTVMinutes: fptr(0), RMSResiduals: fptr(0.0003),
			RpFitted: 0.1, AFitted: 8, Period: 2.36, Duration: 0.2,
			Inc: 89, U1: 0.65, U2: 0.08, PlotFile: "sim_a_transit_002.png",
		},
		{
			File: "sim_b.csv", TransitIndex: 1, T0Expected: 100.3,
			RpFitted: 0.1, AFitted: 8, Period: 2.36, Duration: 0.2,
			Inc: 89, U1: 0.65, U2: 0.08,
		},
	}

	require.NoError(t, pipeline.MergeCurves(curves, filepath.Join(dir, pipeline.CurvesFileName)))
	require.NoError(t, pipeline.MergeTransits(transits, filepath.Join(dir, pipeline.TransitsFileName)))
	return dir
}

func TestIngestImportsSummaries(t *testing.T) {
	results := writeSummaries(t)
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	out, err := execIngest(t, &RootOptions{Format: "text"}, "--db", dbPath, "--results", results)
	require.NoError(t, err)
	assert.Contains(t, out, fmt.Sprintf("Imported 2 curve(s) and 3 transit(s) into %s", dbPath))

	cat, err := catalog.Open(dbPath)
	require.NoError(t, err)
	defer cat.Close()

	nCurves, nTransits, err := cat.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, nCurves)
	assert.Equal(t, 3, nTransits)

	recs, err := cat.TransitsForFile(context.Background(), "sim_a.csv")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "sim_a_transit_001.png", recs[0].PlotFile)
}

func TestIngestIsRepeatable(t *testing.T) {
	results := writeSummaries(t)
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	_, err := execIngest(t, &RootOptions{Format: "text"}, "--db", dbPath, "--results", results)
	require.NoError(t, err)
	_, err = execIngest(t, &RootOptions{Format: "text"}, "--db", dbPath, "--results", results)
	require.NoError(t, err)

	cat, err := catalog.Open(dbPath)
	require.NoError(t, err)
	defer cat.Close()

	nCurves, nTransits, err := cat.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, nCurves, "curves upsert by file")
	assert.Equal(t, 3, nTransits, "transits are replaced, not duplicated")
}

func TestIngestJSON(t *testing.T) {
	results := writeSummaries(t)
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	out, err := execIngest(t, &RootOptions{Format: "json"}, "--db", dbPath, "--results", results)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, dbPath, data["database"])
	assert.Equal(t, float64(2), data["curves"])
	assert.Equal(t, float64(3), data["transits"])
}

func TestIngestRequiresDatabase(t *testing.T) {
	results := writeSummaries(t)

	_, err := execIngest(t, &RootOptions{Format: "text"}, "--results", results)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "no catalog database")
}

func TestIngestMissingSummaries(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	_, err := execIngest(t, &RootOptions{Format: "text"}, "--db", dbPath, "--results", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "reading curve summary")
}

func TestIngestConfigProvidesCatalogAndResults(t *testing.T) {
	results := writeSummaries(t)
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	cfgPath := filepath.Join(t.TempDir(), "transitscan.yaml")
	cfg := fmt.Sprintf("output_dir: %s\ncatalog: %s\n", results, dbPath)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, err := execIngest(t, &RootOptions{Format: "text", Config: cfgPath})
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 curve(s) and 3 transit(s)")
}
