package aggregate

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// DefaultCompareField is the comparison parameter used when none is chosen.
const DefaultCompareField = model.FieldSoilClass

// Box is the five-number summary of one category and label.
type Box struct {
	Category string  `json:"category"`
	Label    string  `json:"label"`
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Q1       float64 `json:"q1"`
	Median   float64 `json:"median"`
	Q3       float64 `json:"q3"`
	Max      float64 `json:"max"`
}

// ScatterPoint is one (field, target) pair. X is a float64 for numeric
// fields and a string otherwise.
type ScatterPoint struct {
	X     interface{} `json:"x"`
	Y     float64     `json:"y"`
	Label string      `json:"label"`
}

// Comparison relates a parameter to a numeric target across runs.
type Comparison struct {
	Field       model.Field    `json:"field"`
	Target      model.Field    `json:"target"`
	XTitle      string         `json:"x_title"`
	YTitle      string         `json:"y_title"`
	Grouped     bool           `json:"grouped"`
	Boxes       []Box          `json:"boxes,omitempty"`
	Points      []ScatterPoint `json:"points,omitempty"`
	Placeholder bool           `json:"placeholder"`
}

// GroupedComparison summarizes target against field. Enumerated fields get a
// box per category and label; any other field gets raw scatter pairs. An
// empty field means soil class and an empty target means average ROP.
func GroupedComparison(records []model.Record, field, target model.Field) (Comparison, error) {
	if field == "" {
		field = DefaultCompareField
	}
	if target == "" {
		target = model.FieldAverageROP
	}
	if !field.Known() {
		return Comparison{}, &model.MissingFieldError{Field: field, Err: model.ErrUnknownField}
	}
	if _, _, err := numericValues(nil, target); err != nil {
		return Comparison{}, err
	}

	c := Comparison{
		Field:   field,
		Target:  target,
		XTitle:  field.Title(),
		YTitle:  target.Title(),
		Grouped: field.Grouped(),
	}
	if len(records) == 0 {
		c.Placeholder = true
		return c, nil
	}

	if c.Grouped {
		bx, err := boxes(records, field, target)
		if err != nil {
			return Comparison{}, err
		}
		c.Boxes = bx
		return c, nil
	}

	numeric := field.Numeric()
	for _, r := range records {
		y, ok := r.Number(target)
		if !ok {
			continue
		}
		var x interface{}
		if numeric {
			v, ok := r.Number(field)
			if !ok {
				continue
			}
			x = v
		} else {
			v, ok := r.Text(field)
			if !ok {
				continue
			}
			x = v
		}
		c.Points = append(c.Points, ScatterPoint{X: x, Y: y, Label: r.AttributionLabel})
	}
	if len(c.Points) == 0 {
		return Comparison{}, &model.MissingFieldError{Field: field, Err: fmt.Errorf("no run carries both %s and %s", field, target)}
	}
	return c, nil
}

type boxKey struct {
	category string
	label    string
}

func boxes(records []model.Record, field, target model.Field) ([]Box, error) {
	groups := make(map[boxKey][]float64)
	for _, r := range records {
		cat, ok := r.Text(field)
		if !ok {
			continue
		}
		y, ok := r.Number(target)
		if !ok {
			continue
		}
		k := boxKey{category: cat, label: r.AttributionLabel}
		groups[k] = append(groups[k], y)
	}
	if len(groups) == 0 {
		return nil, &model.MissingFieldError{Field: field, Err: fmt.Errorf("no run carries both %s and %s", field, target)}
	}

	keys := make([]boxKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.category != b.category {
			return categoryLess(field, a.category, b.category)
		}
		return labelLess(a.label, b.label)
	})

	out := make([]Box, 0, len(keys))
	for _, k := range keys {
		ys := sortedCopy(groups[k])
		out = append(out, Box{
			Category: k.category,
			Label:    k.label,
			Count:    len(ys),
			Min:      ys[0],
			Q1:       quantile(ys, 0.25),
			Median:   quantile(ys, 0.5),
			Q3:       quantile(ys, 0.75),
			Max:      ys[len(ys)-1],
		})
	}
	return out, nil
}

func categoryLess(f model.Field, a, b string) bool {
	if f == model.FieldBitDiameter {
		x, errX := strconv.Atoi(a)
		y, errY := strconv.Atoi(b)
		if errX == nil && errY == nil {
			return x < y
		}
	}
	return a < b
}

// labelLess orders the logged-in label before "Other".
func labelLess(a, b string) bool {
	if a == model.OtherLabel || b == model.OtherLabel {
		return b == model.OtherLabel && a != model.OtherLabel
	}
	return a < b
}
