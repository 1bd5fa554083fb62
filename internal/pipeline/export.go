package pipeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
)

// Summary table file names inside the output directory.
const (
	TransitsFileName = "transits.csv"
	CurvesFileName   = "curves.csv"
)

var transitColumns = []string{
	"file", "transit_index", "t0_expected", "t0_fitted", "ttv_minutes",
	"rp_fitted", "a_fitted", "rms_residuals", "period", "duration",
	"inc", "u1", "u2", "plot_file",
}

var curveColumns = []string{
	"file", "time_min", "time_max", "expected_transits", "found_transits",
	"data_type", "period", "epoch", "duration", "rp", "a", "inc", "u1", "u2",
}

func (r TransitRecord) row() []string {
	return []string{
		r.File,
		strconv.Itoa(r.TransitIndex),
		formatFloat(r.T0Expected),
		formatFloatPtr(r.T0Fitted),
		formatFloatPtr(r.TTVMinutes),
		formatFloat(r.RpFitted),
		formatFloat(r.AFitted),
		formatFloatPtr(r.RMSResiduals),
		formatFloat(r.Period),
		formatFloat(r.Duration),
		formatFloat(r.Inc),
		formatFloat(r.U1),
		formatFloat(r.U2),
		r.PlotFile,
	}
}

func (r CurveRecord) row() []string {
	return []string{
		r.File,
		formatFloat(r.TimeMin),
		formatFloat(r.TimeMax),
		strconv.Itoa(r.ExpectedTransits),
		strconv.Itoa(r.FoundTransits),
		r.DataType,
		formatFloat(r.Period),
		formatFloat(r.Epoch),
		formatFloat(r.Duration),
		formatFloat(r.Rp),
		formatFloat(r.A),
		formatFloat(r.Inc),
		formatFloat(r.U1),
		formatFloat(r.U2),
	}
}

// MergeTransits upserts records into the transits table at path, keyed by
// (file, transit_index). New rows replace matching existing ones, untouched
// rows survive, and the table is rewritten sorted by key. An empty batch
// leaves the file alone.
func MergeTransits(records []TransitRecord, path string) error {
	if len(records) == 0 {
		return nil
	}
	existing, err := readTable(path, transitColumns)
	if err != nil {
		return err
	}

	type rowKey struct {
		file  string
		index int
	}
	type keyedRow struct {
		key   rowKey
		cells []string
	}
	pos := map[rowKey]int{}
	var rows []keyedRow
	upsert := func(cells []string) error {
		index, err := strconv.Atoi(cells[1])
		if err != nil {
			return fmt.Errorf("%s: bad transit_index %q: %w", path, cells[1], err)
		}
		k := rowKey{cells[0], index}
		if at, ok := pos[k]; ok {
			rows[at].cells = cells
			return nil
		}
		pos[k] = len(rows)
		rows = append(rows, keyedRow{k, cells})
		return nil
	}
	for _, cells := range existing {
		if err := upsert(cells); err != nil {
			return err
		}
	}
	for _, r := range records {
		if err := upsert(r.row()); err != nil {
			return err
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].key.file != rows[j].key.file {
			return rows[i].key.file < rows[j].key.file
		}
		return rows[i].key.index < rows[j].key.index
	})
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = r.cells
	}
	return writeTable(path, transitColumns, out)
}

// MergeCurves upserts records into the curves table at path, keyed by file.
// Semantics match MergeTransits.
func MergeCurves(records []CurveRecord, path string) error {
	if len(records) == 0 {
		return nil
	}
	existing, err := readTable(path, curveColumns)
	if err != nil {
		return err
	}

	pos := map[string]int{}
	var rows [][]string
	upsert := func(cells []string) {
		if at, ok := pos[cells[0]]; ok {
			rows[at] = cells
			return
		}
		pos[cells[0]] = len(rows)
		rows = append(rows, cells)
	}
	for _, cells := range existing {
		upsert(cells)
	}
	for _, r := range records {
		upsert(r.row())
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
	return writeTable(path, curveColumns, rows)
}

// ReadTransits loads the transits table written by MergeTransits. Empty
// cells become nil fields.
func ReadTransits(path string) ([]TransitRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read transits table: %w", err)
	}
	rows, err := readTable(path, transitColumns)
	if err != nil {
		return nil, err
	}
	records := make([]TransitRecord, 0, len(rows))
	for _, cells := range rows {
		index, err := strconv.Atoi(cells[1])
		if err != nil {
			return nil, fmt.Errorf("%s: bad transit_index %q: %w", path, cells[1], err)
		}
		records = append(records, TransitRecord{
			File:         cells[0],
			TransitIndex: index,
			T0Expected:   parseFloat(cells[2]),
			T0Fitted:     parseFloatPtr(cells[3]),
			TTVMinutes:   parseFloatPtr(cells[4]),
			RpFitted:     parseFloat(cells[5]),
			AFitted:      parseFloat(cells[6]),
			RMSResiduals: parseFloatPtr(cells[7]),
			Period:       parseFloat(cells[8]),
			Duration:     parseFloat(cells[9]),
			Inc:          parseFloat(cells[10]),
			U1:           parseFloat(cells[11]),
			U2:           parseFloat(cells[12]),
			PlotFile:     cells[13],
		})
	}
	return records, nil
}

// ReadCurves loads the curves table written by MergeCurves.
func ReadCurves(path string) ([]CurveRecord, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("read curves table: %w", err)
	}
	rows, err := readTable(path, curveColumns)
	if err != nil {
		return nil, err
	}
	records := make([]CurveRecord, 0, len(rows))
	for _, cells := range rows {
		records = append(records, CurveRecord{
			File:             cells[0],
			TimeMin:          parseFloat(cells[1]),
			TimeMax:          parseFloat(cells[2]),
			ExpectedTransits: parseInt(cells[3]),
			FoundTransits:    parseInt(cells[4]),
			DataType:         cells[5],
			Period:           parseFloat(cells[6]),
			Epoch:            parseFloat(cells[7]),
			Duration:         parseFloat(cells[8]),
			Rp:               parseFloat(cells[9]),
			A:                parseFloat(cells[10]),
			Inc:              parseFloat(cells[11]),
			U1:               parseFloat(cells[12]),
			U2:               parseFloat(cells[13]),
		})
	}
	return records, nil
}

func readTable(path string, columns []string) ([][]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if !slices.Equal(header, columns) {
		return nil, fmt.Errorf("%s: unexpected columns %v", path, header)
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}

func writeTable(path string, columns []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create table dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%.10g", v)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseFloatPtr(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}
