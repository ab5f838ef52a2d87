// Package source reads the raw drill-run table from CSV files and SQL tables
// and coerces each row into a model.Record.
package source

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// Column names as they appear in the drill-run export.
const (
	colJobID        = "job_id"
	colDate         = "date"
	colLat          = "lat"
	colLon          = "lon"
	colJobType      = "job_type"
	colMachineModel = "machine_model"
	colDrillType    = "drill_type"
	colBitDiam      = "bit_diam"
	colModClass     = "mod_class"
	colUSDAClass    = "usda_class"
	colAvgROP       = "avg_rop"
	colBoreFluid    = "bore_fluid"
	colDrillDepth   = "drill_depth"
	colWeather      = "weather"
)

// RequiredColumns must be present in every source.
var RequiredColumns = []string{
	colJobID, colDate, colLat, colLon, colJobType, colMachineModel, colDrillType,
	colBitDiam, colModClass, colAvgROP, colBoreFluid, colDrillDepth,
}

// OptionalColumns are read when present and left empty otherwise.
var OptionalColumns = []string{colUSDAClass, colWeather}

var dateLayouts = []string{
	model.DateLayout,
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
}

var (
	errShortJobID = errors.New("job id too short to carry company and operator pins")
	errNotFinite  = errors.New("not a finite number")
)

// normalizeHeader maps header spellings like "job-id" or " Job_ID " onto the
// canonical column names.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.ReplaceAll(h, "-", "_")
}

// missingColumns returns the required columns absent from present.
func missingColumns[V any](present map[string]V) []string {
	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := present[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// coercer turns one raw row into a Record.
type coercer struct {
	companies CompanyTable
}

// record coerces a row. get returns the raw cell for a column and whether the
// column exists.
func (c coercer) record(row int, get func(col string) (string, bool)) (model.Record, *model.FieldCoercionError) {
	var r model.Record
	fail := func(col, val string, err error) (model.Record, *model.FieldCoercionError) {
		return model.Record{}, &model.FieldCoercionError{Row: row, Column: col, Value: val, Err: err}
	}
	text := func(col string) string {
		v, _ := get(col)
		return strings.TrimSpace(v)
	}

	r.JobID = text(colJobID)
	if len(r.JobID) < 13 {
		return fail(colJobID, r.JobID, errShortJobID)
	}
	r.CompanyCode = r.JobID[:6]
	r.OperatorPin = r.JobID[7:13]
	r.Company = c.companies.Lookup(r.CompanyCode)

	raw := text(colDate)
	d, err := parseDate(raw)
	if err != nil {
		return fail(colDate, raw, err)
	}
	r.Date = d

	floats := []struct {
		col string
		dst *float64
	}{
		{colLat, &r.Latitude},
		{colLon, &r.Longitude},
		{colAvgROP, &r.AverageROP},
	}
	for _, f := range floats {
		raw := text(f.col)
		v, err := parseFloat(raw)
		if err != nil {
			return fail(f.col, raw, err)
		}
		*f.dst = v
	}

	ints := []struct {
		col string
		dst *int
	}{
		{colBitDiam, &r.BitDiameter},
		{colDrillDepth, &r.DrillDepth},
	}
	for _, f := range ints {
		raw := text(f.col)
		v, err := parseInt(raw)
		if err != nil {
			return fail(f.col, raw, err)
		}
		*f.dst = v
	}

	r.JobType = text(colJobType)
	r.MachineModel = text(colMachineModel)
	r.BitType = text(colDrillType)
	r.SoilClass = text(colModClass)
	r.BoreFluid = text(colBoreFluid)
	r.USDAClass = text(colUSDAClass)

	// Weather is optional; an unparseable reading is treated as not recorded.
	if raw := text(colWeather); raw != "" {
		if v, err := parseFloat(raw); err == nil {
			r.Weather = &v
		}
	}
	return r, nil
}

// parseFloat rejects NaN and the infinities, which ParseFloat accepts.
func parseFloat(raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

// parseInt accepts plain integers and integral floats such as "6.0".
func parseInt(raw string) (int, error) {
	if v, err := strconv.Atoi(raw); err == nil {
		return v, nil
	}
	f, err := parseFloat(raw)
	if err != nil {
		return 0, err
	}
	if math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("out of range: %v", f)
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int(f), nil
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
