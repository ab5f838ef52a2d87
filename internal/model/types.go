package model

import (
	"strconv"
	"time"
)

// Record represents a single drill run used across the system.
// It is the canonical type for loading, filtering, aggregation and export.
type Record struct {
	JobID        string
	Date         time.Time // day precision, UTC
	Latitude     float64
	Longitude    float64
	JobType      string
	MachineModel string
	BitType      string
	BoreFluid    string
	SoilClass    string // model soil classification
	USDAClass    string // empty = not recorded
	BitDiameter  int    // inches
	DrillDepth   int    // feet
	AverageROP   float64
	Weather      *float64 // deg F, nil = not recorded
	OperatorPin  string
	CompanyCode  string
	Company      string // resolved from CompanyCode, "Other" when unknown

	// Derived by attribution; zero values until an identity is resolved.
	AttributionLabel string
	EmphasisWeight   int
}

// Text returns the string form of a field. ok is false for unknown fields
// and for optional fields the run did not record.
func (r Record) Text(f Field) (string, bool) {
	switch f {
	case FieldDate:
		return r.Date.Format(DateLayout), true
	case FieldJobType:
		return r.JobType, true
	case FieldMachineModel:
		return r.MachineModel, true
	case FieldBitType:
		return r.BitType, true
	case FieldBoreFluid:
		return r.BoreFluid, true
	case FieldSoilClass:
		return r.SoilClass, true
	case FieldUSDAClass:
		return r.USDAClass, r.USDAClass != ""
	case FieldOperatorPin:
		return r.OperatorPin, true
	case FieldCompanyCode:
		return r.CompanyCode, true
	case FieldCompany:
		return r.Company, true
	case FieldBitDiameter:
		return strconv.Itoa(r.BitDiameter), true
	case FieldDrillDepth:
		return strconv.Itoa(r.DrillDepth), true
	}
	if v, ok := r.Number(f); ok {
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// Number returns the numeric value of a field.
func (r Record) Number(f Field) (float64, bool) {
	switch f {
	case FieldLatitude:
		return r.Latitude, true
	case FieldLongitude:
		return r.Longitude, true
	case FieldBitDiameter:
		return float64(r.BitDiameter), true
	case FieldDrillDepth:
		return float64(r.DrillDepth), true
	case FieldAverageROP:
		return r.AverageROP, true
	case FieldWeather:
		if r.Weather == nil {
			return 0, false
		}
		return *r.Weather, true
	}
	return 0, false
}

// AccountKind distinguishes operator logins from company admin logins.
type AccountKind string

const (
	AccountOperator AccountKind = "operator"
	AccountCompany  AccountKind = "company"
)

// Identity is the outcome of a successful authentication.
type Identity struct {
	Kind        AccountKind `json:"kind"`
	CompanyName string      `json:"company"`
	CompanyCode string      `json:"company_code"`
	OperatorPin string      `json:"operator_pin,omitempty"` // operator accounts only
}

// Label returns the attribution label for rows owned by this identity.
func (id Identity) Label() string {
	if id.Kind == AccountOperator {
		return id.OperatorPin
	}
	return id.CompanyName
}

// Company is one entry of the company lookup table.
type Company struct {
	Name string `yaml:"name" json:"name"`
	Code string `yaml:"code" json:"code"`
}

// DimensionCount represents grouped counts by a single dimension value
// (for example job type or soil class).
type DimensionCount struct {
	Value string
	Count int64
}
