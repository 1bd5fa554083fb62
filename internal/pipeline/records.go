// Package pipeline orchestrates transit processing for whole directories of
// light curves: predicting events, fitting shape and timing, rendering plot
// artifacts, and maintaining the summary tables and the failure ledger that
// make reruns incremental.
package pipeline

// TransitRecord is one row of the transits table: a single predicted event
// of one series. The pointer fields stay nil for events that were skipped or
// failed, and serialize as empty cells.
type TransitRecord struct {
	File         string
	TransitIndex int // 1-based position in the series' event grid
	T0Expected   float64
	T0Fitted     *float64
	TTVMinutes   *float64
	RpFitted     float64
	AFitted      float64
	RMSResiduals *float64
	Period       float64
	Duration     float64
	Inc          float64
	U1           float64
	U2           float64
	PlotFile     string // artifact base name, empty for failed events
}

// CurveRecord is one row of the curves table: per-series event totals plus
// the shape parameters this run used.
type CurveRecord struct {
	File             string
	TimeMin          float64
	TimeMax          float64
	ExpectedTransits int
	FoundTransits    int
	DataType         string
	Period           float64
	Epoch            float64
	Duration         float64
	Rp               float64
	A                float64
	Inc              float64
	U1               float64
	U2               float64
}
