// Package attribution labels each drill run as belonging to the logged-in
// identity or to everyone else.
package attribution

import "github.com/tinytelemetry/drillgis/internal/model"

// Emphasis weights. Owned runs draw larger on the map.
const (
	OwnWeight   = 2
	OtherWeight = 1
)

// Resolve returns a copy of records with AttributionLabel and EmphasisWeight
// set for id. The input slice is not modified.
//
// With no identity every run is labelled "" at weight 1. An operator owns the
// runs carrying their PIN; a company admin owns every run with their company
// code. All other runs are labelled "Other".
func Resolve(records []model.Record, id *model.Identity) []model.Record {
	out := make([]model.Record, len(records))
	copy(out, records)

	if id == nil {
		for i := range out {
			out[i].AttributionLabel = ""
			out[i].EmphasisWeight = OtherWeight
		}
		return out
	}

	label := id.Label()
	for i := range out {
		if owns(id, out[i]) {
			out[i].AttributionLabel = label
			out[i].EmphasisWeight = OwnWeight
		} else {
			out[i].AttributionLabel = model.OtherLabel
			out[i].EmphasisWeight = OtherWeight
		}
	}
	return out
}

func owns(id *model.Identity, r model.Record) bool {
	switch id.Kind {
	case model.AccountOperator:
		return r.OperatorPin == id.OperatorPin
	case model.AccountCompany:
		return r.CompanyCode == id.CompanyCode
	}
	return false
}

// Labels returns the distinct labels present for id, own label first.
func Labels(id *model.Identity) []string {
	if id == nil {
		return []string{""}
	}
	return []string{id.Label(), model.OtherLabel}
}
