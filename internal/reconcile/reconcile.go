// Package reconcile compares declared query costs against the authoritative
// costs returned by the oracle and classifies the outcome per artifact.
package reconcile

import "github.com/rotisserie/eris"

// Status classifies one artifact's reconciliation outcome. The string values
// are the exact Status column literals in the report file.
type Status string

const (
	StatusMatch           Status = "Match"
	StatusUnderestimated  Status = "Underestimated"
	StatusOverestimated   Status = "Overestimated"
	StatusQueryNotFound   Status = "Query Not Found"
	StatusQueryFailed     Status = "Query Failed"
	StatusProcessingError Status = "Processing Error"
)

// ParseStatus maps a report Status cell back to a Status value.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusMatch, StatusUnderestimated, StatusOverestimated,
		StatusQueryNotFound, StatusQueryFailed, StatusProcessingError:
		return Status(s), nil
	}
	return "", eris.Errorf("reconcile: unknown status %q", s)
}

// Mismatch reports whether the status calls for a patch.
func (s Status) Mismatch() bool {
	return s == StatusUnderestimated || s == StatusOverestimated
}

// HasDelta reports whether the difference is defined for this status.
func (s Status) HasDelta() bool {
	return s == StatusMatch || s.Mismatch()
}

// Cost is an optional cost value. Known is false when the value could not be
// extracted (declared) or obtained (observed); the zero value is never used
// as a stand-in for absence.
type Cost struct {
	Value int
	Known bool
}

// KnownCost returns a present cost.
func KnownCost(v int) Cost {
	return Cost{Value: v, Known: true}
}

// Classify is the pure reconciliation function. Rule order: extraction
// failure (declared unknown) wins over query failure (observed unknown);
// with both present the sign of observed-declared decides. A positive delta
// means the artifact under-declares the real cost. Delta is meaningful only
// when the returned status has HasDelta.
func Classify(declared, observed Cost) (delta int, status Status) {
	switch {
	case !declared.Known:
		return 0, StatusQueryNotFound
	case !observed.Known:
		return 0, StatusQueryFailed
	}

	delta = observed.Value - declared.Value
	switch {
	case delta == 0:
		return delta, StatusMatch
	case delta > 0:
		return delta, StatusUnderestimated
	default:
		return delta, StatusOverestimated
	}
}

// Record is one report row: the reconciliation result for one artifact.
// Records are immutable once produced; Status is always derived from the
// costs via Classify, never set independently.
type Record struct {
	FileName string
	Declared Cost
	Observed Cost
	Delta    int
	Status   Status
}

// NewRecord builds a record by classifying the given costs.
func NewRecord(fileName string, declared, observed Cost) Record {
	delta, status := Classify(declared, observed)
	return Record{
		FileName: fileName,
		Declared: declared,
		Observed: observed,
		Delta:    delta,
		Status:   status,
	}
}

// ExtractionFailedRecord marks an artifact whose payload literal could not
// be located. The declared cost is still carried when its own matcher
// succeeded, since the two extraction failure modes are independent.
func ExtractionFailedRecord(fileName string, declared Cost) Record {
	return Record{FileName: fileName, Declared: declared, Status: StatusQueryNotFound}
}

// ProcessingErrorRecord marks an artifact that failed before reconciliation
// could run at all (unreadable file, unresolvable template, malformed
// payload). The declared cost is carried when extraction got that far.
func ProcessingErrorRecord(fileName string, declared Cost) Record {
	return Record{FileName: fileName, Declared: declared, Status: StatusProcessingError}
}
