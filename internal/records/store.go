// Package records holds the immutable in-memory drill-run table and the
// option sets (distinct values, ranges, slider marks) derived from it.
package records

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// Snapshot is one loaded table. It is never modified after publication.
type Snapshot struct {
	records  []model.Record
	distinct map[model.Field][]string
	ranges   map[model.Field][2]float64
	first    time.Time
	last     time.Time
	source   string
	skipped  int
	loadedAt time.Time
}

// Records returns the rows in load order. Callers must not modify them;
// attribution copies before writing derived fields.
func (s *Snapshot) Records() []model.Record { return s.records }

// Len returns the row count.
func (s *Snapshot) Len() int { return len(s.records) }

// Source names where the snapshot was loaded from.
func (s *Snapshot) Source() string { return s.source }

// Skipped is the number of rows dropped by coercion during the load.
func (s *Snapshot) Skipped() int { return s.skipped }

// LoadedAt is when the snapshot was published.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Store publishes snapshots atomically so concurrent readers always observe
// a complete table.
type Store struct {
	current atomic.Pointer[Snapshot]
	sink    model.RecordSink
}

// NewStore returns an empty store. sink may be nil.
func NewStore(sink model.RecordSink) *Store {
	s := &Store{sink: sink}
	s.current.Store(buildSnapshot(nil, "", 0))
	return s
}

// Load reads every row from src, mirrors the result into the sink, and swaps
// the new snapshot in. On error the previous snapshot stays published.
func (s *Store) Load(ctx context.Context, src model.RecordSource) (*Snapshot, error) {
	skipped := 0
	recs, err := src.ReadRecords(ctx, func(e *model.FieldCoercionError) {
		skipped++
		log.Printf("records: dropping row from %s: %v", src.Name(), e)
	})
	if err != nil {
		var loadErr *model.DataLoadError
		if errors.As(err, &loadErr) {
			return nil, err
		}
		return nil, &model.DataLoadError{Source: src.Name(), Err: err}
	}

	if s.sink != nil && any(s.sink) != any(src) {
		if err := s.sink.ReplaceRuns(ctx, recs); err != nil {
			return nil, fmt.Errorf("records: stage %d runs: %w", len(recs), err)
		}
	}

	snap := buildSnapshot(recs, src.Name(), skipped)
	s.current.Store(snap)
	if skipped > 0 {
		log.Printf("records: loaded %d runs from %s (%d rows dropped)", len(recs), src.Name(), skipped)
	} else {
		log.Printf("records: loaded %d runs from %s", len(recs), src.Name())
	}
	return snap, nil
}

// Snapshot returns the currently published table.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// DistinctValues returns the sorted distinct values of a field in the current
// snapshot. Optional fields omit runs that did not record them.
func (s *Store) DistinctValues(f model.Field) []string {
	return s.Snapshot().DistinctValues(f)
}

// NumericRange returns the current min and max of a numeric field.
func (s *Store) NumericRange(f model.Field) (lo, hi float64, ok bool) {
	return s.Snapshot().NumericRange(f)
}

// DateRange returns the first and last run dates in the current snapshot.
func (s *Store) DateRange() (first, last time.Time, ok bool) {
	return s.Snapshot().DateRange()
}

// DistinctValues returns the sorted distinct values of f in this snapshot.
func (s *Snapshot) DistinctValues(f model.Field) []string {
	return s.distinct[f]
}

// NumericRange returns the min and max of f in this snapshot.
func (s *Snapshot) NumericRange(f model.Field) (lo, hi float64, ok bool) {
	r, ok := s.ranges[f]
	return r[0], r[1], ok
}

// DateRange returns the first and last run dates in this snapshot.
func (s *Snapshot) DateRange() (first, last time.Time, ok bool) {
	if len(s.records) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return s.first, s.last, true
}

var distinctFields = []model.Field{
	model.FieldJobType,
	model.FieldMachineModel,
	model.FieldBitType,
	model.FieldBoreFluid,
	model.FieldSoilClass,
	model.FieldUSDAClass,
	model.FieldBitDiameter,
	model.FieldOperatorPin,
	model.FieldCompanyCode,
	model.FieldCompany,
}

var rangeFields = []model.Field{
	model.FieldLatitude,
	model.FieldLongitude,
	model.FieldBitDiameter,
	model.FieldDrillDepth,
	model.FieldAverageROP,
	model.FieldWeather,
}

func buildSnapshot(recs []model.Record, source string, skipped int) *Snapshot {
	snap := &Snapshot{
		records:  recs,
		distinct: make(map[model.Field][]string, len(distinctFields)),
		ranges:   make(map[model.Field][2]float64, len(rangeFields)),
		source:   source,
		skipped:  skipped,
		loadedAt: time.Now(),
	}

	for _, f := range distinctFields {
		seen := make(map[string]struct{})
		for _, r := range recs {
			if v, ok := r.Text(f); ok {
				seen[v] = struct{}{}
			}
		}
		values := make([]string, 0, len(seen))
		for v := range seen {
			values = append(values, v)
		}
		if f == model.FieldBitDiameter {
			sort.Slice(values, func(i, j int) bool {
				a, _ := strconv.Atoi(values[i])
				b, _ := strconv.Atoi(values[j])
				return a < b
			})
		} else {
			sort.Strings(values)
		}
		snap.distinct[f] = values
	}

	for _, f := range rangeFields {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, r := range recs {
			if v, ok := r.Number(f); ok {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
		}
		if lo <= hi {
			snap.ranges[f] = [2]float64{lo, hi}
		}
	}

	for i, r := range recs {
		if i == 0 || r.Date.Before(snap.first) {
			snap.first = r.Date
		}
		if i == 0 || r.Date.After(snap.last) {
			snap.last = r.Date
		}
	}
	return snap
}
