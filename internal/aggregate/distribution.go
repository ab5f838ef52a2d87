package aggregate

import (
	"math"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// AllDataCurve names the single curve drawn when nobody is logged in.
const AllDataCurve = "All Data"

// curvePoints is the KDE sampling resolution.
const curvePoints = 500

// maxDensityBins bounds the bars per curve; wide ROP spans widen the bars.
const maxDensityBins = 2000

// DensityBin is one probability-density histogram bar.
type DensityBin struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Density float64 `json:"density"`
}

// Point is one sample of a density curve.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Curve is one named group of a distribution plot.
type Curve struct {
	Name  string       `json:"name"`
	N     int          `json:"n"`
	Bins  []DensityBin `json:"bins"`
	Curve []Point      `json:"curve"`
}

// Distribution is a density plot of average ROP. When a density cannot be
// estimated, Degenerate is set and Fallback carries a plain histogram.
type Distribution struct {
	Field      model.Field `json:"field"`
	BinSize    float64     `json:"bin_size"`
	Curves     []Curve     `json:"curves"`
	Degenerate bool        `json:"degenerate"`
	Fallback   *Histogram  `json:"fallback,omitempty"`
}

type group struct {
	name   string
	values []float64
}

// ComparativeDistribution draws one density curve for runs labelled label
// and one for runs labelled "Other". If either group cannot support a density
// estimate, the result falls back to the plain histogram of fallback.
func ComparativeDistribution(records, fallback []model.Record, label string, binCount int) (Distribution, error) {
	values, labels, err := numericValues(records, model.FieldAverageROP)
	if err != nil {
		return Distribution{}, err
	}
	self := group{name: label}
	other := group{name: model.OtherLabel}
	for i, v := range values {
		switch labels[i] {
		case label:
			self.values = append(self.values, v)
		case model.OtherLabel:
			other.values = append(other.values, v)
		}
	}
	return distribution([]group{self, other}, fallback, binCount)
}

// Density draws the single "All Data" curve over records.
func Density(records, fallback []model.Record, binCount int) (Distribution, error) {
	values, _, err := numericValues(records, model.FieldAverageROP)
	if err != nil {
		return Distribution{}, err
	}
	return distribution([]group{{name: AllDataCurve, values: values}}, fallback, binCount)
}

func distribution(groups []group, fallback []model.Record, binCount int) (Distribution, error) {
	n := binCountOrDefault(binCount)
	d := Distribution{Field: model.FieldAverageROP, BinSize: 4 / float64(n)}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, g := range groups {
		if !estimable(g.values) {
			return degenerate(d, fallback, n)
		}
		for _, v := range g.values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}

	if span := hi - lo; span/d.BinSize > maxDensityBins {
		d.BinSize = span / maxDensityBins
	}

	grid := linspace(lo, hi, curvePoints)
	for _, g := range groups {
		c := Curve{Name: g.name, N: len(g.values), Bins: densityBins(g.values, d.BinSize)}
		ys := gaussianKDE(g.values, grid)
		c.Curve = make([]Point, len(grid))
		for i := range grid {
			c.Curve[i] = Point{X: grid[i], Y: ys[i]}
		}
		d.Curves = append(d.Curves, c)
	}
	return d, nil
}

// estimable reports whether a Gaussian KDE is defined for xs.
func estimable(xs []float64) bool {
	return len(xs) >= 2 && stddev(xs) > 0
}

func degenerate(d Distribution, fallback []model.Record, n int) (Distribution, error) {
	h, err := BuildHistogram(fallback, model.FieldAverageROP, n)
	if err != nil {
		return Distribution{}, err
	}
	d.Degenerate = true
	d.Fallback = &h
	d.Curves = []Curve{}
	return d, nil
}

// densityBins bins xs from its minimum in steps of size, normalized so the
// bar areas sum to one.
func densityBins(xs []float64, size float64) []DensityBin {
	lo, hi := xs[0], xs[0]
	for _, x := range xs {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	n := int(math.Floor((hi-lo)/size)) + 1
	counts := make([]int, n)
	for _, x := range xs {
		idx := int((x - lo) / size)
		if idx >= n {
			idx = n - 1
		}
		counts[idx]++
	}
	bins := make([]DensityBin, n)
	scale := 1 / (float64(len(xs)) * size)
	for i := range bins {
		bins[i] = DensityBin{
			Start:   lo + float64(i)*size,
			End:     lo + float64(i+1)*size,
			Density: float64(counts[i]) * scale,
		}
	}
	return bins
}
