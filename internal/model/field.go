package model

import "strings"

// Field names a drill-run column. The string value is the canonical API name.
type Field string

const (
	FieldDate         Field = "date"
	FieldLatitude     Field = "latitude"
	FieldLongitude    Field = "longitude"
	FieldJobType      Field = "job_type"
	FieldMachineModel Field = "machine_model"
	FieldBitType      Field = "bit_type"
	FieldBoreFluid    Field = "bore_fluid"
	FieldSoilClass    Field = "soil_class"
	FieldUSDAClass    Field = "usda_class"
	FieldBitDiameter  Field = "bit_diameter"
	FieldDrillDepth   Field = "drill_depth"
	FieldAverageROP   Field = "average_rop"
	FieldWeather      Field = "weather"
	FieldOperatorPin  Field = "operator_pin"
	FieldCompanyCode  Field = "company_code"
	FieldCompany      Field = "company"
)

// DateLayout is the wire format for run dates.
const DateLayout = "2006-01-02"

// FilterCategoricals are the fields offered as single-select filters.
var FilterCategoricals = []Field{
	FieldJobType,
	FieldMachineModel,
	FieldBitType,
	FieldBoreFluid,
	FieldSoilClass,
}

// FilterRanges are the fields offered as range sliders.
var FilterRanges = []Field{
	FieldBitDiameter,
	FieldDrillDepth,
	FieldAverageROP,
}

var knownFields = map[Field]bool{
	FieldDate: true, FieldLatitude: true, FieldLongitude: true,
	FieldJobType: true, FieldMachineModel: true, FieldBitType: true,
	FieldBoreFluid: true, FieldSoilClass: true, FieldUSDAClass: true,
	FieldBitDiameter: true, FieldDrillDepth: true, FieldAverageROP: true,
	FieldWeather: true, FieldOperatorPin: true, FieldCompanyCode: true,
	FieldCompany: true,
}

// groupedFields have a small enumerated domain and are compared as box plots.
var groupedFields = map[Field]bool{
	FieldJobType:      true,
	FieldMachineModel: true,
	FieldBitType:      true,
	FieldBitDiameter:  true,
	FieldBoreFluid:    true,
	FieldSoilClass:    true,
}

var numericFields = map[Field]bool{
	FieldLatitude:    true,
	FieldLongitude:   true,
	FieldBitDiameter: true,
	FieldDrillDepth:  true,
	FieldAverageROP:  true,
	FieldWeather:     true,
}

// Known reports whether f is a drill-run column.
func (f Field) Known() bool { return knownFields[f] }

// Numeric reports whether f holds a number.
func (f Field) Numeric() bool { return numericFields[f] }

// Grouped reports whether f is compared per category rather than as a scatter.
func (f Field) Grouped() bool { return groupedFields[f] }

// Title returns the axis title for f.
func (f Field) Title() string {
	switch f {
	case FieldSoilClass:
		return "Soil Type"
	case FieldAverageROP:
		return "Average ROP (ft/min)"
	case FieldBitDiameter:
		return "Bit Diameter (in)"
	case FieldDrillDepth:
		return "Drill Depth (ft)"
	case FieldUSDAClass:
		return "Soil Classification (USDA)"
	case FieldWeather:
		return "Temp (deg F)"
	}
	words := strings.Split(string(f), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
