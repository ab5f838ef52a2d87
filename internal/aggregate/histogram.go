package aggregate

import (
	"math"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// Bin is one equal-width histogram interval. Every bin is [Start, End) except
// the last, which is closed.
type Bin struct {
	Start   float64        `json:"start"`
	End     float64        `json:"end"`
	Count   int            `json:"count"`
	ByLabel map[string]int `json:"by_label,omitempty"`
}

// Histogram is a count histogram over one numeric field.
type Histogram struct {
	Field       model.Field `json:"field"`
	Title       string      `json:"title"`
	Bins        []Bin       `json:"bins"`
	Total       int         `json:"total"`
	Placeholder bool        `json:"placeholder"`
}

// PlaceholderHistogram is the defined result for an empty row set.
func PlaceholderHistogram(f model.Field) Histogram {
	return Histogram{Field: f, Title: f.Title(), Bins: []Bin{}, Placeholder: true}
}

// BuildHistogram partitions [min, max] of f over records into binCount equal
// bins. binCount <= 0 uses the default of 10. When any run carries an
// attribution label, bins also count runs per label.
func BuildHistogram(records []model.Record, f model.Field, binCount int) (Histogram, error) {
	values, labels, err := numericValues(records, f)
	if err != nil {
		return Histogram{}, err
	}
	if len(values) == 0 {
		return PlaceholderHistogram(f), nil
	}
	return histogramOf(f, values, labels, binCountOrDefault(binCount)), nil
}

func histogramOf(f model.Field, values []float64, labels []string, n int) Histogram {
	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	labelled := false
	for _, l := range labels {
		if l != "" {
			labelled = true
			break
		}
	}

	h := Histogram{Field: f, Title: f.Title(), Total: len(values)}
	if hi == lo {
		n = 1
	}
	width := (hi - lo) / float64(n)
	h.Bins = make([]Bin, n)
	for i := range h.Bins {
		h.Bins[i].Start = lo + float64(i)*width
		h.Bins[i].End = lo + float64(i+1)*width
		if labelled {
			h.Bins[i].ByLabel = make(map[string]int)
		}
	}
	h.Bins[n-1].End = hi

	for i, v := range values {
		idx := n - 1
		if width > 0 {
			idx = int((v - lo) / width)
			if idx >= n {
				idx = n - 1
			}
		}
		h.Bins[idx].Count++
		if labelled {
			h.Bins[idx].ByLabel[labels[i]]++
		}
	}
	return h
}
