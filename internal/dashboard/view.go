package dashboard

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"

	"github.com/tinytelemetry/drillgis/internal/filter"
	"github.com/tinytelemetry/drillgis/internal/model"
)

// DefaultHoverFields are shown when hovering a run on the map.
var DefaultHoverFields = []model.Field{
	model.FieldDate,
	model.FieldJobType,
	model.FieldMachineModel,
	model.FieldBitType,
	model.FieldBitDiameter,
	model.FieldUSDAClass,
	model.FieldSoilClass,
	model.FieldBoreFluid,
	model.FieldDrillDepth,
	model.FieldAverageROP,
}

// MapPoint is one run on the map.
type MapPoint struct {
	JobID  string            `json:"job_id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Label  string            `json:"label"`
	Weight int               `json:"weight"`
	Hover  map[string]string `json:"hover"`
}

// mapPoints builds map markers. Runs that did not record an optional hover
// field simply omit it; a field that is not a column fails the whole map.
func mapPoints(rows []model.Record, hover []model.Field) ([]MapPoint, error) {
	for _, f := range hover {
		if !f.Known() {
			return nil, &model.MissingFieldError{Field: f, Err: model.ErrUnknownField}
		}
	}
	points := make([]MapPoint, 0, len(rows))
	for _, r := range rows {
		p := MapPoint{
			JobID:  r.JobID,
			Lat:    r.Latitude,
			Lon:    r.Longitude,
			Label:  r.AttributionLabel,
			Weight: r.EmphasisWeight,
			Hover:  make(map[string]string, len(hover)),
		}
		for _, f := range hover {
			if v, ok := r.Text(f); ok {
				p.Hover[f.Title()] = v
			}
		}
		points = append(points, p)
	}
	return points, nil
}

type digestInput struct {
	Spec     filter.Spec `json:"spec"`
	Label    *string     `json:"label"`
	Bins     int         `json:"bins"`
	Mode     PlotMode    `json:"mode"`
	Compare  model.Field `json:"compare"`
	Snapshot string      `json:"snapshot"`
}

// viewDigest is the SHA-256 of the RFC 8785 canonical form of everything
// that determines the rendered view, excluding the export decision.
func viewDigest(spec filter.Spec, id *model.Identity, snapshot string, in Input, mode PlotMode) (string, error) {
	d := digestInput{Spec: spec, Bins: in.BinCount, Mode: mode, Compare: in.CompareField, Snapshot: snapshot}
	if d.Bins <= 0 {
		d.Bins = model.DefaultBinCount
	}
	if id != nil {
		label := id.Label()
		d.Label = &label
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("dashboard: encode view: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("dashboard: canonicalize view: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
