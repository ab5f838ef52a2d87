// Package aggregate computes the summary statistics behind the dashboard
// charts. Every function is pure and reports a missing column as a
// *model.MissingFieldError rather than panicking.
package aggregate

import (
	"fmt"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// EmptyMessage is shown when no run matches the filters.
const EmptyMessage = "There are no drill runs during the specified time."

// Count returns the number of runs.
func Count(records []model.Record) int {
	return len(records)
}

// Message returns the human-readable row count.
func Message(n int) string {
	if n <= 0 {
		return EmptyMessage
	}
	return fmt.Sprintf("Currently showing %d drill run(s).", n)
}

// numericValues extracts f from every run that recorded it. It fails when f
// is not a numeric column or no run carries it.
func numericValues(records []model.Record, f model.Field) ([]float64, []string, error) {
	if !f.Known() {
		return nil, nil, &model.MissingFieldError{Field: f, Err: model.ErrUnknownField}
	}
	if !f.Numeric() {
		return nil, nil, &model.MissingFieldError{Field: f, Err: fmt.Errorf("%s is not numeric", f)}
	}
	values := make([]float64, 0, len(records))
	labels := make([]string, 0, len(records))
	for _, r := range records {
		if v, ok := r.Number(f); ok {
			values = append(values, v)
			labels = append(labels, r.AttributionLabel)
		}
	}
	if len(values) == 0 && len(records) > 0 {
		return nil, nil, &model.MissingFieldError{Field: f}
	}
	return values, labels, nil
}

// binCountOrDefault maps n into [1, model.MaxBinCount], with 0 and below
// meaning the default.
func binCountOrDefault(n int) int {
	switch {
	case n <= 0:
		return model.DefaultBinCount
	case n > model.MaxBinCount:
		return model.MaxBinCount
	}
	return n
}
