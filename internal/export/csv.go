package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// Filename is the suggested download name.
const Filename = model.DefaultExportName

// Columns is the export header. Attribution, company name and derived date
// bookkeeping are not exported.
var Columns = []string{
	"job_id",
	"date",
	"lat",
	"lon",
	"job_type",
	"machine_model",
	"drill_type",
	"bit_diam",
	"mod_class",
	"usda_class",
	"avg_rop",
	"bore_fluid",
	"drill_depth",
	"weather",
}

// EncodeCSV returns the header plus one row per record.
func EncodeCSV(records []model.Record) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV streams the export to w.
func WriteCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("export: write header: %w", err)
	}
	for i, r := range records {
		if err := cw.Write(row(r)); err != nil {
			return fmt.Errorf("export: write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("export: flush: %w", err)
	}
	return nil
}

func row(r model.Record) []string {
	weather := ""
	if r.Weather != nil {
		weather = formatFloat(*r.Weather)
	}
	return []string{
		r.JobID,
		r.Date.Format(model.DateLayout),
		formatFloat(r.Latitude),
		formatFloat(r.Longitude),
		r.JobType,
		r.MachineModel,
		r.BitType,
		strconv.Itoa(r.BitDiameter),
		r.SoilClass,
		r.USDAClass,
		formatFloat(r.AverageROP),
		r.BoreFluid,
		strconv.Itoa(r.DrillDepth),
		weather,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
