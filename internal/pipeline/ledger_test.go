package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_RecordAndReload(t *testing.T) {
	dir := t.TempDir()

	l := OpenLedger(dir)
	assert.Empty(t, l.FailedSet("sim_b.csv"))

	require.NoError(t, l.Record("sim_b.csv", []int{4, 2}))
	require.NoError(t, l.Record("sim_a.csv", []int{1}))

	// a fresh ledger sees what the first one persisted
	reopened := OpenLedger(dir)
	assert.Equal(t, map[int]bool{2: true, 4: true}, reopened.FailedSet("sim_b.csv"))
	assert.Equal(t, map[int]bool{1: true}, reopened.FailedSet("sim_a.csv"))
	assert.Empty(t, reopened.FailedSet("other.csv"))

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "failed_ledger", data)
}

func TestLedger_UnionKeepsEarlierFailures(t *testing.T) {
	dir := t.TempDir()

	l := OpenLedger(dir)
	require.NoError(t, l.Record("sim.csv", []int{3}))
	require.NoError(t, l.Record("sim.csv", []int{1, 3, 5}))

	reopened := OpenLedger(dir)
	assert.Equal(t, map[int]bool{1: true, 3: true, 5: true}, reopened.FailedSet("sim.csv"))
}

func TestLedger_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, LedgerFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	l := OpenLedger(dir)
	assert.Empty(t, l.FailedSet("sim.csv"))

	// recording replaces the unreadable file with a valid one
	require.NoError(t, l.Record("sim.csv", []int{2}))
	reopened := OpenLedger(dir)
	assert.Equal(t, map[int]bool{2: true}, reopened.FailedSet("sim.csv"))
}

func TestLedger_RecordNothingIsNoop(t *testing.T) {
	dir := t.TempDir()

	l := OpenLedger(dir)
	require.NoError(t, l.Record("sim.csv", nil))

	_, err := os.Stat(l.Path())
	assert.True(t, os.IsNotExist(err), "empty record must not create the ledger file")
}
