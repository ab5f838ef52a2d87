package model

import (
	"context"
	"time"
)

// RecordSource produces the raw drill-run table. Implementations coerce rows
// themselves; a row that fails coercion is reported through onSkip and dropped.
type RecordSource interface {
	Name() string
	ReadRecords(ctx context.Context, onSkip func(*FieldCoercionError)) ([]Record, error)
}

// RecordSink receives every successfully loaded table, replacing prior contents.
type RecordSink interface {
	ReplaceRuns(ctx context.Context, records []Record) error
}

// OptionSource supplies the current distinct values and ranges used to
// default unconstrained filters.
type OptionSource interface {
	DistinctValues(f Field) []string
	NumericRange(f Field) (min, max float64, ok bool)
	DateRange() (first, last time.Time, ok bool)
}

// SchemaQuerier provides schema introspection and arbitrary read-only queries.
type SchemaQuerier interface {
	ExecuteQuery(query string) ([]map[string]interface{}, error)
	GetSchemaDescription() string
	TableRowCounts() (map[string]int64, error)
}
