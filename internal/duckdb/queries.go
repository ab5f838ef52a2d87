package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// queryCtx returns a context with the store's configured query timeout.
func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// fieldColumns maps filterable fields onto staging table columns. Only names
// from this allowlist are ever interpolated into SQL.
var fieldColumns = map[model.Field]string{
	model.FieldDate:         "run_date",
	model.FieldLatitude:     "latitude",
	model.FieldLongitude:    "longitude",
	model.FieldJobType:      "job_type",
	model.FieldMachineModel: "machine_model",
	model.FieldBitType:      "bit_type",
	model.FieldBoreFluid:    "bore_fluid",
	model.FieldSoilClass:    "soil_class",
	model.FieldUSDAClass:    "usda_class",
	model.FieldBitDiameter:  "bit_diameter",
	model.FieldDrillDepth:   "drill_depth",
	model.FieldAverageROP:   "average_rop",
	model.FieldWeather:      "weather",
	model.FieldOperatorPin:  "operator_pin",
	model.FieldCompanyCode:  "company_code",
	model.FieldCompany:      "company",
}

func columnFor(f model.Field) (string, error) {
	col, ok := fieldColumns[f]
	if !ok {
		return "", &model.MissingFieldError{Field: f, Err: model.ErrUnknownField}
	}
	return col, nil
}

// TotalRunCount returns the number of staged drill runs.
func (s *Store) TotalRunCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM drill_runs`).Scan(&count)
	return count, err
}

// DistinctValues returns the sorted distinct non-null values of a field.
func (s *Store) DistinctValues(f model.Field) ([]string, error) {
	col, err := columnFor(f)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := fmt.Sprintf(`SELECT DISTINCT CAST(%[1]s AS VARCHAR) AS v FROM drill_runs WHERE %[1]s IS NOT NULL ORDER BY v`, col)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			log.Printf("duckdb scan error (DistinctValues): %v", err)
			continue
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// NumericRange returns the min and max of a numeric field. ok is false when
// the table holds no values for it.
func (s *Store) NumericRange(f model.Field) (lo, hi float64, ok bool, err error) {
	col, err := columnFor(f)
	if err != nil {
		return 0, 0, false, err
	}
	if f == model.FieldDate {
		return 0, 0, false, fmt.Errorf("field %q is not numeric", f)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var minV, maxV sql.NullFloat64
	query := fmt.Sprintf(`SELECT MIN(%[1]s)::DOUBLE, MAX(%[1]s)::DOUBLE FROM drill_runs`, col)
	if err := s.db.QueryRowContext(ctx, query).Scan(&minV, &maxV); err != nil {
		return 0, 0, false, err
	}
	if !minV.Valid || !maxV.Valid {
		return 0, 0, false, nil
	}
	return minV.Float64, maxV.Float64, true, nil
}

// CountsBy returns run counts grouped by a field, most frequent first.
func (s *Store) CountsBy(f model.Field, limit int) ([]model.DimensionCount, error) {
	col, err := columnFor(f)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	query := fmt.Sprintf(`
		SELECT COALESCE(CAST(%s AS VARCHAR), 'unknown') AS v, COUNT(*) AS count
		FROM drill_runs
		GROUP BY v
		ORDER BY count DESC, v ASC
		LIMIT ?`, col)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.DimensionCount
	for rows.Next() {
		var item model.DimensionCount
		if err := rows.Scan(&item.Value, &item.Count); err != nil {
			log.Printf("duckdb scan error (CountsBy): %v", err)
			continue
		}
		results = append(results, item)
	}
	return results, rows.Err()
}

// maxQueryRows caps the rows returned by ExecuteQuery.
const maxQueryRows = 1000

// ExecuteQuery runs an ad-hoc read query against the staging table. DATE
// values come back in the dashboard's date layout.
func (s *Store) ExecuteQuery(query string) ([]map[string]interface{}, error) {
	query = strings.TrimSpace(query)
	if err := checkReadOnly(query); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0)
	values := make([]interface{}, len(columns))
	dest := make([]interface{}, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}
	for rows.Next() && len(results) < maxQueryRows {
		if err := rows.Scan(dest...); err != nil {
			log.Printf("duckdb: scan query row: %v", err)
			continue
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if t, ok := values[i].(time.Time); ok {
				row[col] = t.Format(model.DateLayout)
				continue
			}
			row[col] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// GetSchemaDescription returns a human-readable schema description.
func (s *Store) GetSchemaDescription() string {
	return `Table 'drill_runs': id (BIGINT, load order), job_id (VARCHAR), run_date (DATE), ` +
		`latitude (DOUBLE), longitude (DOUBLE), job_type (VARCHAR), machine_model (VARCHAR), ` +
		`bit_type (VARCHAR), bore_fluid (VARCHAR), soil_class (VARCHAR), usda_class (VARCHAR), ` +
		`bit_diameter (INTEGER, in), drill_depth (INTEGER, ft), average_rop (DOUBLE, ft/min), ` +
		`weather (DOUBLE, deg F), operator_pin (VARCHAR), company_code (VARCHAR), company (VARCHAR).`
}

// TableRowCounts returns the row count for each known table using a hardcoded allowlist.
func (s *Store) TableRowCounts() (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	allowedTables := []string{"drill_runs"}
	counts := make(map[string]int64, len(allowedTables))

	for _, table := range allowedTables {
		var count int64
		// Table names are hardcoded constants, not user input.
		err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count)
		if err != nil {
			continue
		}
		counts[table] = count
	}
	return counts, nil
}
