package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"

	"github.com/tinytelemetry/drillgis/internal/model"
)

var errNonFinite = errors.New("not a finite number")

const runColumns = `job_id, run_date, latitude, longitude, job_type, machine_model, bit_type,
	bore_fluid, soil_class, usda_class, bit_diameter, drill_depth, average_rop, weather,
	operator_pin, company_code, company`

// ReplaceRuns swaps the staging table contents for records in a single
// transaction. Row ids follow slice order so ReadRecords returns the same order.
func (s *Store) ReplaceRuns(ctx context.Context, records []model.Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM drill_runs`); err != nil {
		return fmt.Errorf("clear drill_runs: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO drill_runs (id, `+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range records {
		var usda, weather any
		if r.USDAClass != "" {
			usda = r.USDAClass
		}
		if r.Weather != nil {
			weather = *r.Weather
		}
		if _, err := stmt.ExecContext(ctx,
			int64(i), r.JobID, r.Date, r.Latitude, r.Longitude,
			r.JobType, r.MachineModel, r.BitType, r.BoreFluid, r.SoilClass, usda,
			r.BitDiameter, r.DrillDepth, r.AverageROP, weather,
			r.OperatorPin, r.CompanyCode, r.Company,
		); err != nil {
			return fmt.Errorf("insert run %s: %w", r.JobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// ReadRecords returns every staged run in load order. It lets a persistent
// DuckDB file act as the record source on restart.
func (s *Store) ReadRecords(ctx context.Context, onSkip func(*model.FieldCoercionError)) ([]model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM drill_runs ORDER BY id`)
	if err != nil {
		return nil, &model.DataLoadError{Source: s.Name(), Err: err}
	}
	defer rows.Close()

	var results []model.Record
	row := 0
	for rows.Next() {
		row++
		var r model.Record
		var usda sql.NullString
		var weather sql.NullFloat64
		if err := rows.Scan(
			&r.JobID, &r.Date, &r.Latitude, &r.Longitude,
			&r.JobType, &r.MachineModel, &r.BitType, &r.BoreFluid, &r.SoilClass, &usda,
			&r.BitDiameter, &r.DrillDepth, &r.AverageROP, &weather,
			&r.OperatorPin, &r.CompanyCode, &r.Company,
		); err != nil {
			log.Printf("duckdb scan error (ReadRecords): %v", err)
			continue
		}
		if e := nonFinite(row, r); e != nil {
			if onSkip != nil {
				onSkip(e)
			}
			continue
		}
		r.Date = r.Date.UTC()
		r.USDAClass = usda.String
		if weather.Valid && finite(weather.Float64) {
			w := weather.Float64
			r.Weather = &w
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.DataLoadError{Source: s.Name(), Err: err}
	}
	return results, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// nonFinite reports the first required float column holding NaN or an
// infinity.
func nonFinite(row int, r model.Record) *model.FieldCoercionError {
	for _, c := range []struct {
		col string
		v   float64
	}{
		{"latitude", r.Latitude},
		{"longitude", r.Longitude},
		{"average_rop", r.AverageROP},
	} {
		if !finite(c.v) {
			return &model.FieldCoercionError{
				Row:    row,
				Column: c.col,
				Value:  strconv.FormatFloat(c.v, 'g', -1, 64),
				Err:    errNonFinite,
			}
		}
	}
	return nil
}
