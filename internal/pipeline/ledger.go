package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

// LedgerFileName is the failure ledger's file name inside the output
// directory.
const LedgerFileName = "_failed_transits.json"

// Ledger records which events of which series failed processing, so later
// runs skip them instead of refitting. On disk it is a JSON object mapping
// file name to a sorted list of 1-based event indices.
type Ledger struct {
	path   string
	failed map[string][]int
}

// OpenLedger loads the ledger stored in outputDir. A missing or unreadable
// file yields an empty ledger.
func OpenLedger(outputDir string) *Ledger {
	l := &Ledger{path: filepath.Join(outputDir, LedgerFileName)}
	l.Reload()
	return l
}

// Reload re-reads the ledger from disk, picking up entries written since it
// was opened.
func (l *Ledger) Reload() {
	l.failed = map[string][]int{}
	data, err := os.ReadFile(l.path)
	if err != nil {
		return
	}
	var failed map[string][]int
	if err := json.Unmarshal(data, &failed); err != nil {
		slog.Warn("failure ledger is unreadable, starting empty", "path", l.path, "error", err)
		return
	}
	if failed != nil {
		l.failed = failed
	}
}

// FailedSet returns the failed event indices recorded for file.
func (l *Ledger) FailedSet(file string) map[int]bool {
	set := make(map[int]bool, len(l.failed[file]))
	for _, n := range l.failed[file] {
		set[n] = true
	}
	return set
}

// Record unions indices into the entry for file and rewrites the ledger.
// Entries only ever accumulate; clearing one means deleting the ledger file.
func (l *Ledger) Record(file string, indices []int) error {
	if len(indices) == 0 {
		return nil
	}
	set := l.FailedSet(file)
	for _, n := range indices {
		set[n] = true
	}
	merged := make([]int, 0, len(set))
	for n := range set {
		merged = append(merged, n)
	}
	sort.Ints(merged)
	l.failed[file] = merged

	data, err := json.MarshalIndent(l.failed, "", "  ")
	if err != nil {
		return fmt.Errorf("encode failure ledger: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return fmt.Errorf("write failure ledger: %w", err)
	}
	return nil
}

// Path returns the ledger's on-disk location.
func (l *Ledger) Path() string { return l.path }
