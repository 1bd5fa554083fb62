package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/emoons/transitscan/internal/pipeline"
)

// ImportCurves upserts curve records keyed by file name and returns how many
// rows were written. Existing rows are replaced field by field; found_transits
// is preserved until the next transit import recounts it.
func (c *Catalog) ImportCurves(ctx context.Context, records []pipeline.CurveRecord) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("import curves: begin tx: %w", err)
	}
	defer tx.Rollback()

	written := 0
	for _, r := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO curves
			(file, time_min, time_max, expected_transits, data_type, period, epoch, duration, rp, a, inc, u1, u2)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(file) DO UPDATE SET
				time_min = excluded.time_min,
				time_max = excluded.time_max,
				expected_transits = excluded.expected_transits,
				data_type = excluded.data_type,
				period = excluded.period,
				epoch = excluded.epoch,
				duration = excluded.duration,
				rp = excluded.rp,
				a = excluded.a,
				inc = excluded.inc,
				u1 = excluded.u1,
				u2 = excluded.u2
		`,
			r.File, r.TimeMin, r.TimeMax, r.ExpectedTransits, r.DataType,
			r.Period, r.Epoch, r.Duration, r.Rp, r.A, r.Inc, r.U1, r.U2,
		)
		if err != nil {
			return 0, fmt.Errorf("import curves: upsert %s: %w", r.File, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import curves: commit: %w", err)
	}
	return written, nil
}

// ImportTransits replaces the transits table with records and recounts
// found_transits per curve. Records for files with no curve row are skipped
// with a warning. Returns how many rows were inserted.
func (c *Catalog) ImportTransits(ctx context.Context, records []pipeline.TransitRecord) (int, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("import transits: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM transits"); err != nil {
		return 0, fmt.Errorf("import transits: clear table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE curves SET found_transits = 0"); err != nil {
		return 0, fmt.Errorf("import transits: reset counts: %w", err)
	}

	curveIDs, err := curveIDsByFile(ctx, tx)
	if err != nil {
		return 0, err
	}

	counts := make(map[int64]int)
	inserted := 0
	for _, r := range records {
		curveID, ok := curveIDs[r.File]
		if !ok {
			slog.Warn("no curve row for transit record", "file", r.File, "transit", r.TransitIndex)
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO transits
			(curve_id, transit_index, t0_expected, t0_fitted, ttv_minutes,
			 rp_fitted, a_fitted, rms_residuals, period, duration, inc, u1, u2, plot_file)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			curveID, r.TransitIndex, r.T0Expected, r.T0Fitted, r.TTVMinutes,
			r.RpFitted, r.AFitted, r.RMSResiduals, r.Period, r.Duration,
			r.Inc, r.U1, r.U2, r.PlotFile,
		)
		if err != nil {
			return 0, fmt.Errorf("import transits: insert %s transit %d: %w", r.File, r.TransitIndex, err)
		}
		counts[curveID]++
		inserted++
	}

	for curveID, count := range counts {
		if _, err := tx.ExecContext(ctx, "UPDATE curves SET found_transits = ? WHERE id = ?", count, curveID); err != nil {
			return 0, fmt.Errorf("import transits: update count for curve %d: %w", curveID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("import transits: commit: %w", err)
	}
	return inserted, nil
}

func curveIDsByFile(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, file FROM curves")
	if err != nil {
		return nil, fmt.Errorf("import transits: query curves: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]int64)
	for rows.Next() {
		var id int64
		var file string
		if err := rows.Scan(&id, &file); err != nil {
			return nil, fmt.Errorf("import transits: scan curve: %w", err)
		}
		ids[file] = id
	}
	return ids, rows.Err()
}
