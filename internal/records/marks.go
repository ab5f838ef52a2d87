package records

import (
	"math"
	"strconv"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// Mark is one labelled tick on a range slider.
type Mark struct {
	Value int    `json:"value"`
	Label string `json:"label"`
}

const depthMarkStep = 50

// Marks returns slider ticks for a range field over the current snapshot:
// integer inches for bit diameter, 50 ft steps from the decade-rounded
// minimum for drill depth, and unit steps for ROP. Other fields have none.
func (s *Store) Marks(f model.Field) []Mark {
	lo, hi, ok := s.NumericRange(f)
	if !ok {
		return nil
	}
	return marksFor(f, lo, hi)
}

func marksFor(f model.Field, lo, hi float64) []Mark {
	var marks []Mark
	switch f {
	case model.FieldBitDiameter:
		for i := int(lo); i < int(hi)+1; i++ {
			marks = append(marks, Mark{Value: i, Label: strconv.Itoa(i) + `"`})
		}
	case model.FieldDrillDepth:
		start := roundDecade(lo)
		stop := roundDecade(hi + 1)
		for i := start; i < stop; i += depthMarkStep {
			marks = append(marks, Mark{Value: i, Label: strconv.Itoa(i) + "'"})
		}
	case model.FieldAverageROP:
		start := int(math.RoundToEven(lo))
		stop := int(math.RoundToEven(hi)) + 1
		for i := start; i < stop; i++ {
			marks = append(marks, Mark{Value: i, Label: strconv.Itoa(i)})
		}
	}
	return marks
}

// roundDecade rounds to the nearest multiple of ten, halves to even.
func roundDecade(v float64) int {
	return int(math.RoundToEven(v/10)) * 10
}
