package records

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/drillgis/internal/model"
)

type fakeSource struct {
	name    string
	records []model.Record
	skips   []*model.FieldCoercionError
	err     error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) ReadRecords(_ context.Context, onSkip func(*model.FieldCoercionError)) ([]model.Record, error) {
	for _, s := range f.skips {
		onSkip(s)
	}
	return f.records, f.err
}

type fakeSink struct {
	got []model.Record
	err error
}

func (f *fakeSink) ReplaceRuns(_ context.Context, records []model.Record) error {
	f.got = records
	return f.err
}

func run(job string, d int, diam, depth int, rop float64, soil string) model.Record {
	return model.Record{
		JobID:       job,
		Date:        time.Date(2021, 5, d, 0, 0, 0, 0, time.UTC),
		JobType:     "drilling",
		SoilClass:   soil,
		BitDiameter: diam,
		DrillDepth:  depth,
		AverageROP:  rop,
	}
}

func TestStore_EmptyBeforeLoad(t *testing.T) {
	s := NewStore(nil)
	assert.Equal(t, 0, s.Snapshot().Len())
	assert.Empty(t, s.DistinctValues(model.FieldJobType))
	_, _, ok := s.NumericRange(model.FieldAverageROP)
	assert.False(t, ok)
	_, _, ok = s.DateRange()
	assert.False(t, ok)
	assert.Nil(t, s.Marks(model.FieldDrillDepth))
}

func TestStore_LoadPublishesSnapshot(t *testing.T) {
	sink := &fakeSink{}
	s := NewStore(sink)
	src := &fakeSource{
		name: "runs.csv",
		records: []model.Record{
			run("a", 3, 10, 40, 2.5, "clay"),
			run("b", 1, 4, 212, 0.75, "sandy"),
			run("c", 9, 6, 95, 4.4, "clay"),
		},
		skips: []*model.FieldCoercionError{{Row: 4, Column: "avg_rop", Value: "x"}},
	}

	snap, err := s.Load(context.Background(), src)
	require.NoError(t, err)
	assert.Same(t, snap, s.Snapshot())
	assert.Equal(t, 3, snap.Len())
	assert.Equal(t, 1, snap.Skipped())
	assert.Equal(t, "runs.csv", snap.Source())
	assert.Len(t, sink.got, 3)

	assert.Equal(t, []string{"clay", "sandy"}, s.DistinctValues(model.FieldSoilClass))
	assert.Equal(t, []string{"4", "6", "10"}, s.DistinctValues(model.FieldBitDiameter))

	lo, hi, ok := s.NumericRange(model.FieldAverageROP)
	require.True(t, ok)
	assert.Equal(t, 0.75, lo)
	assert.Equal(t, 4.4, hi)

	first, last, ok := s.DateRange()
	require.True(t, ok)
	assert.Equal(t, 1, first.Day())
	assert.Equal(t, 9, last.Day())

	// Load order is preserved; no sorting by date.
	assert.Equal(t, "a", snap.Records()[0].JobID)
}

func TestStore_LoadFailureKeepsPreviousSnapshot(t *testing.T) {
	s := NewStore(nil)
	good := &fakeSource{name: "good", records: []model.Record{run("a", 1, 4, 10, 1, "clay")}}
	_, err := s.Load(context.Background(), good)
	require.NoError(t, err)

	bad := &fakeSource{name: "bad", err: &model.DataLoadError{Source: "bad", Missing: []string{"avg_rop"}}}
	_, err = s.Load(context.Background(), bad)
	var loadErr *model.DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, []string{"avg_rop"}, loadErr.Missing)
	assert.Equal(t, "good", s.Snapshot().Source())
}

func TestStore_LoadWrapsPlainErrors(t *testing.T) {
	s := NewStore(nil)
	_, err := s.Load(context.Background(), &fakeSource{name: "pg", err: errors.New("connection refused")})
	var loadErr *model.DataLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, "pg", loadErr.Source)
}

func TestStore_SinkFailure(t *testing.T) {
	s := NewStore(&fakeSink{err: errors.New("disk full")})
	_, err := s.Load(context.Background(), &fakeSource{name: "x", records: []model.Record{run("a", 1, 4, 10, 1, "clay")}})
	require.Error(t, err)
	assert.Equal(t, 0, s.Snapshot().Len())
}

func TestStore_ConcurrentReadersSeeWholeSnapshots(t *testing.T) {
	s := NewStore(nil)
	small := &fakeSource{name: "small", records: []model.Record{run("a", 1, 4, 10, 1, "clay")}}
	large := &fakeSource{name: "large"}
	for i := 0; i < 50; i++ {
		large.records = append(large.records, run("b", 2, 6, 20, 2, "sandy"))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Snapshot()
				n := snap.Len()
				assert.Contains(t, []int{0, 1, 50}, n)
			}
		}()
	}
	for i := 0; i < 20; i++ {
		_, err := s.Load(context.Background(), small)
		require.NoError(t, err)
		_, err = s.Load(context.Background(), large)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestMarks(t *testing.T) {
	diam := marksFor(model.FieldBitDiameter, 4, 7)
	require.Len(t, diam, 4)
	assert.Equal(t, Mark{Value: 4, Label: `4"`}, diam[0])
	assert.Equal(t, Mark{Value: 7, Label: `7"`}, diam[3])

	depth := marksFor(model.FieldDrillDepth, 37, 212)
	require.NotEmpty(t, depth)
	assert.Equal(t, Mark{Value: 40, Label: "40'"}, depth[0])
	assert.Equal(t, []int{40, 90, 140, 190}, values(depth))

	rop := marksFor(model.FieldAverageROP, 0.75, 4.4)
	assert.Equal(t, []int{1, 2, 3, 4}, values(rop))

	assert.Nil(t, marksFor(model.FieldLatitude, 1, 2))
}

func values(marks []Mark) []int {
	out := make([]int, len(marks))
	for i, m := range marks {
		out[i] = m.Value
	}
	return out
}
