// Package filter turns raw dashboard selections into a resolved Spec and
// applies it to drill runs.
package filter

import (
	"fmt"
	"time"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// Range is an inclusive numeric interval.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether min <= v <= max.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// DateRange is an inclusive day interval.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether start <= d <= end.
func (r DateRange) Contains(d time.Time) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Spec is a resolved filter. A field absent from Categorical or Ranges, or a
// nil Dates, is unconstrained. An empty allowed set matches nothing.
type Spec struct {
	Categorical map[model.Field][]string `json:"categorical,omitempty"`
	Ranges      map[model.Field]Range    `json:"ranges,omitempty"`
	Dates       *DateRange               `json:"dates,omitempty"`
}

// Constrained reports whether the spec restricts anything.
func (s Spec) Constrained() bool {
	return len(s.Categorical) > 0 || len(s.Ranges) > 0 || s.Dates != nil
}

// RawInput is what the user selected. A missing key, an empty selection, or
// a nil date means "no selection".
type RawInput struct {
	Selections map[model.Field]string
	Ranges     map[model.Field]Range
	Start      *time.Time
	End        *time.Time
}

// Validate rejects fields that are not offered as filters.
func (in RawInput) Validate() error {
	for f := range in.Selections {
		if !isCategorical(f) {
			return &model.MissingFieldError{Field: f, Err: fmt.Errorf("%w: not a categorical filter", model.ErrUnknownField)}
		}
	}
	for f, r := range in.Ranges {
		if !isRange(f) {
			return &model.MissingFieldError{Field: f, Err: fmt.Errorf("%w: not a range filter", model.ErrUnknownField)}
		}
		if r.Min > r.Max {
			return fmt.Errorf("filter: %s range min %v exceeds max %v", f, r.Min, r.Max)
		}
	}
	return nil
}

// Resolve applies default-to-all once per filter field: an unselected
// categorical allows every value currently in src, an unselected range spans
// the current min and max, and a missing date is the first or last run date.
// Defaults are read from src on every call so they follow reloads.
func Resolve(in RawInput, src model.OptionSource) Spec {
	spec := Spec{
		Categorical: make(map[model.Field][]string, len(model.FilterCategoricals)),
		Ranges:      make(map[model.Field]Range, len(model.FilterRanges)),
	}

	for _, f := range model.FilterCategoricals {
		if v := in.Selections[f]; v != "" {
			spec.Categorical[f] = []string{v}
			continue
		}
		all := src.DistinctValues(f)
		values := make([]string, len(all))
		copy(values, all)
		spec.Categorical[f] = values
	}

	for _, f := range model.FilterRanges {
		if r, ok := in.Ranges[f]; ok {
			spec.Ranges[f] = r
			continue
		}
		if lo, hi, ok := src.NumericRange(f); ok {
			spec.Ranges[f] = Range{Min: lo, Max: hi}
		}
	}

	first, last, ok := src.DateRange()
	if in.Start != nil || in.End != nil || ok {
		d := DateRange{Start: first, End: last}
		if in.Start != nil {
			d.Start = *in.Start
		}
		if in.End != nil {
			d.End = *in.End
		}
		spec.Dates = &d
	}
	return spec
}

// Apply returns the records matching every constraint in spec, in input
// order. An unconstrained spec returns records unchanged.
func Apply(records []model.Record, spec Spec) []model.Record {
	if !spec.Constrained() {
		return records
	}

	allowed := make(map[model.Field]map[string]struct{}, len(spec.Categorical))
	for f, values := range spec.Categorical {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		allowed[f] = set
	}

	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if matches(r, spec, allowed) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r model.Record, spec Spec, allowed map[model.Field]map[string]struct{}) bool {
	if spec.Dates != nil && !spec.Dates.Contains(r.Date) {
		return false
	}
	for f, set := range allowed {
		v, ok := r.Text(f)
		if !ok {
			return false
		}
		if _, hit := set[v]; !hit {
			return false
		}
	}
	for f, rng := range spec.Ranges {
		v, ok := r.Number(f)
		if !ok || !rng.Contains(v) {
			return false
		}
	}
	return true
}

func isCategorical(f model.Field) bool {
	for _, c := range model.FilterCategoricals {
		if c == f {
			return true
		}
	}
	return false
}

func isRange(f model.Field) bool {
	for _, c := range model.FilterRanges {
		if c == f {
			return true
		}
	}
	return false
}
