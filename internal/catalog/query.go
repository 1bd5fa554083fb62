package catalog

import (
	"context"
	"fmt"

	"github.com/emoons/transitscan/internal/pipeline"
)

// Counts returns how many curves and transits the catalog holds.
func (c *Catalog) Counts(ctx context.Context) (curves, transits int, err error) {
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM curves").Scan(&curves); err != nil {
		return 0, 0, fmt.Errorf("count curves: %w", err)
	}
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transits").Scan(&transits); err != nil {
		return 0, 0, fmt.Errorf("count transits: %w", err)
	}
	return curves, transits, nil
}

// TransitsForFile returns the transits of one curve ordered by index.
func (c *Catalog) TransitsForFile(ctx context.Context, file string) ([]pipeline.TransitRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT t.transit_index, t.t0_expected, t.t0_fitted, t.ttv_minutes,
		       t.rp_fitted, t.a_fitted, t.rms_residuals, t.period, t.duration,
		       t.inc, t.u1, t.u2, t.plot_file
		FROM transits t
		JOIN curves c ON t.curve_id = c.id
		WHERE c.file = ?
		ORDER BY t.transit_index
	`, file)
	if err != nil {
		return nil, fmt.Errorf("query transits for %s: %w", file, err)
	}
	defer rows.Close()

	var records []pipeline.TransitRecord
	for rows.Next() {
		r := pipeline.TransitRecord{File: file}
		err := rows.Scan(
			&r.TransitIndex, &r.T0Expected, &r.T0Fitted, &r.TTVMinutes,
			&r.RpFitted, &r.AFitted, &r.RMSResiduals, &r.Period, &r.Duration,
			&r.Inc, &r.U1, &r.U2, &r.PlotFile,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transit for %s: %w", file, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
