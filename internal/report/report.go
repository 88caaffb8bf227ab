// Package report persists reconciliation records as a CSV report and reads
// them back for the patch phase.
package report

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/ledgerline/costsync/internal/reconcile"
)

// Sentinel cell values for columns that carry no number.
const (
	cellNotApplicable = "N/A"
	cellError         = "Error"
)

var header = []string{"FileName", "ExpectedCost", "ActualCost", "Status", "Difference"}

// Write serializes records to path, one row per record in the order given.
// The file is written once per analysis run and never appended to.
func Write(path string, records []reconcile.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "report: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return eris.Wrap(err, "report: write header")
	}
	for _, rec := range records {
		if err := w.Write(row(rec)); err != nil {
			return eris.Wrapf(err, "report: write row for %s", rec.FileName)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "report: flush")
	}
	return f.Close()
}

func row(rec reconcile.Record) []string {
	// Expected cost prints 0 when extraction never found a literal; the
	// Status column keeps that case distinguishable from a true zero.
	expected := "0"
	if rec.Declared.Known {
		expected = strconv.Itoa(rec.Declared.Value)
	}

	actual := cellNotApplicable
	switch {
	case rec.Observed.Known:
		actual = strconv.Itoa(rec.Observed.Value)
	case rec.Status == reconcile.StatusQueryFailed:
		actual = cellError
	}

	difference := cellNotApplicable
	if rec.Status.HasDelta() {
		difference = strconv.Itoa(rec.Delta)
	}

	return []string{rec.FileName, expected, actual, string(rec.Status), difference}
}

// Read parses a report written by Write. Rows with a missing or extra
// column, an unknown status, or a cell that is neither a number nor the
// documented sentinel are rejected, never defaulted.
func Read(path string) ([]reconcile.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "report: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	rows, err := r.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "report: read rows")
	}
	if len(rows) == 0 {
		return nil, eris.New("report: empty file, missing header")
	}
	for i, name := range header {
		if rows[0][i] != name {
			return nil, eris.Errorf("report: unexpected header column %q, want %q", rows[0][i], name)
		}
	}

	records := make([]reconcile.Record, 0, len(rows)-1)
	for i, cells := range rows[1:] {
		rec, err := parseRow(cells)
		if err != nil {
			return nil, eris.Wrapf(err, "report: row %d", i+2)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(cells []string) (reconcile.Record, error) {
	var rec reconcile.Record
	rec.FileName = cells[0]

	status, err := reconcile.ParseStatus(cells[3])
	if err != nil {
		return rec, err
	}
	rec.Status = status

	expected, err := strconv.Atoi(cells[1])
	if err != nil {
		return rec, eris.Wrapf(err, "parse expected cost %q", cells[1])
	}
	// A 0 on an extraction-failure or processing-error row is the
	// absent-cost placeholder, not a declared value.
	absentZero := expected == 0 &&
		(status == reconcile.StatusQueryNotFound || status == reconcile.StatusProcessingError)
	if !absentZero {
		rec.Declared = reconcile.KnownCost(expected)
	}

	switch cells[2] {
	case cellNotApplicable, cellError:
		// Observed stays unknown; which sentinel was used is recoverable
		// from the status column.
	default:
		observed, err := strconv.Atoi(cells[2])
		if err != nil {
			return rec, eris.Errorf("actual cost %q is neither a number nor %s/%s", cells[2], cellNotApplicable, cellError)
		}
		rec.Observed = reconcile.KnownCost(observed)
	}

	if cells[4] == cellNotApplicable {
		if status.HasDelta() {
			return rec, eris.Errorf("status %s requires a numeric difference", status)
		}
		return rec, nil
	}
	delta, err := strconv.Atoi(cells[4])
	if err != nil {
		return rec, eris.Wrapf(err, "parse difference %q", cells[4])
	}
	rec.Delta = delta
	return rec, nil
}
