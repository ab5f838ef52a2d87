package dashboard

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytelemetry/drillgis/internal/aggregate"
	"github.com/tinytelemetry/drillgis/internal/auth"
	"github.com/tinytelemetry/drillgis/internal/filter"
	"github.com/tinytelemetry/drillgis/internal/model"
	"github.com/tinytelemetry/drillgis/internal/records"
)

type sliceSource []model.Record

func (s sliceSource) Name() string { return "test" }

func (s sliceSource) ReadRecords(context.Context, func(*model.FieldCoercionError)) ([]model.Record, error) {
	return s, nil
}

type countingAuth struct {
	inner *auth.Authenticator
	calls int
}

func (c *countingAuth) Authenticate(ctx context.Context, pin string) auth.Result {
	c.calls++
	return c.inner.Authenticate(ctx, pin)
}

func day(d int) time.Time { return time.Date(2021, 7, d, 0, 0, 0, 0, time.UTC) }

func fiveRuns() []model.Record {
	mk := func(job, pin string, d int, jobType string, rop float64, soil string) model.Record {
		return model.Record{
			JobID: job, Date: day(d), Latitude: 41 + float64(d)/10, Longitude: -93,
			JobType: jobType, MachineModel: "D24", BitType: "tri", BoreFluid: "bentonite",
			SoilClass: soil, BitDiameter: 6, DrillDepth: 100 + d*10, AverageROP: rop,
			CompanyCode: job[:6], OperatorPin: pin, Company: "Acme",
		}
	}
	return []model.Record{
		mk("100001-200001-01", "200001", 1, "drilling", 1.0, "clay"),
		mk("100001-200002-01", "200002", 2, "backream", 2.0, "sand"),
		mk("100001-200001-02", "200001", 3, "drilling", 3.0, "clay"),
		mk("100002-300001-01", "300001", 4, "backream", 4.0, "sand"),
		mk("100002-300002-01", "300002", 5, "drilling", 5.0, "loam"),
	}
}

func newTestEngine(t *testing.T) (*Engine, *countingAuth) {
	t.Helper()
	store := records.NewStore(nil)
	_, err := store.Load(context.Background(), sliceSource(fiveRuns()))
	require.NoError(t, err)

	dir, err := auth.NewStaticDirectory(auth.StaticFile{
		Companies: []model.Company{{Name: "Acme", Code: "100001"}, {Name: "Bore Co", Code: "100002"}},
		Accounts: []auth.StaticAccount{
			{Pin: "200001", Kind: "operator", CompanyCode: "100001"},
			{Pin: "900002", Kind: "company", CompanyCode: "100002"},
		},
	})
	require.NoError(t, err)
	a := &countingAuth{inner: auth.New(dir, time.Second)}
	return NewEngine(store, a, time.Minute), a
}

func intp(v int) *int { return &v }

func TestCycle_ScenarioA(t *testing.T) {
	e, _ := newTestEngine(t)
	start, end := day(1), day(31)
	out, err := e.Cycle(context.Background(), "", Input{Filter: filter.RawInput{Start: &start, End: &end}})
	require.NoError(t, err)

	assert.Equal(t, 5, out.Count)
	assert.Equal(t, "Currently showing 5 drill run(s).", out.Message)
	assert.Equal(t, PromptMessage, out.Account)
	assert.Nil(t, out.Identity)
	assert.Len(t, out.Points, 5)
	require.NotNil(t, out.Histogram)
	assert.Equal(t, 5, out.Histogram.Total)
	assert.Equal(t, model.FieldSoilClass, out.Comparison.Field)
	assert.Equal(t, "Soil Type", out.Comparison.XTitle)
	assert.NotEmpty(t, out.SessionID)
	assert.Len(t, out.ViewDigest, 64)
	assert.Nil(t, out.Export)
}

func TestCycle_ScenarioB(t *testing.T) {
	e, _ := newTestEngine(t)
	start := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)
	out, err := e.Cycle(context.Background(), "", Input{Filter: filter.RawInput{Start: &start, End: &end}})
	require.NoError(t, err)

	assert.Equal(t, 0, out.Count)
	assert.Equal(t, "There are no drill runs during the specified time.", out.Message)
	assert.Empty(t, out.Points)
	require.NotNil(t, out.Histogram)
	assert.True(t, out.Histogram.Placeholder)
}

func TestCycle_ScenarioB_Distribution(t *testing.T) {
	e, _ := newTestEngine(t)
	start := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2030, 2, 1, 0, 0, 0, 0, time.UTC)

	for _, pin := range []string{"", "200001"} {
		out, err := e.Cycle(context.Background(), "", Input{
			Filter:      filter.RawInput{Start: &start, End: &end},
			PlotMode:    PlotDistribution,
			Pin:         pin,
			LoginClicks: 1,
		})
		require.NoError(t, err)

		assert.Equal(t, 0, out.Count)
		assert.Equal(t, aggregate.EmptyMessage, out.Message)
		assert.Nil(t, out.Histogram)
		require.NotNil(t, out.Distribution)
		assert.True(t, out.Distribution.Degenerate)
		assert.Empty(t, out.Distribution.Curves)
		require.NotNil(t, out.Distribution.Fallback)
		assert.True(t, out.Distribution.Fallback.Placeholder)
		assert.Equal(t, 0, out.Distribution.Fallback.Total)
		assert.False(t, out.Comparison.Placeholder, "comparison still covers the whole store")
	}
}

func TestCycle_ScenarioC(t *testing.T) {
	e, _ := newTestEngine(t)
	out, err := e.Cycle(context.Background(), "", Input{Pin: "200001", LoginClicks: 1})
	require.NoError(t, err)

	assert.Equal(t, "Logged in to: Acme (Operator 200001)", out.Account)
	require.NotNil(t, out.Identity)
	assert.Equal(t, []string{"200001", model.OtherLabel}, out.Legend)

	own, other := 0, 0
	for _, p := range out.Points {
		switch p.Label {
		case "200001":
			own++
			assert.Equal(t, 2, p.Weight)
		case model.OtherLabel:
			other++
			assert.Equal(t, 1, p.Weight)
		default:
			t.Fatalf("unexpected label %q", p.Label)
		}
	}
	assert.Equal(t, 2, own)
	assert.Equal(t, 3, other)
}

func TestCycle_CompanyAdmin(t *testing.T) {
	e, _ := newTestEngine(t)
	out, err := e.Cycle(context.Background(), "", Input{Pin: "900002", LoginClicks: 3})
	require.NoError(t, err)
	assert.Equal(t, "Logged in to: Bore Co (Admin Account)", out.Account)

	labels := map[string]int{}
	for _, p := range out.Points {
		labels[p.Label]++
	}
	assert.Equal(t, map[string]int{"Bore Co": 2, model.OtherLabel: 3}, labels)
}

func TestCycle_LoginGate(t *testing.T) {
	e, a := newTestEngine(t)

	out, err := e.Cycle(context.Background(), "", Input{Pin: "200001", LoginClicks: 0})
	require.NoError(t, err)
	assert.Equal(t, PromptMessage, out.Account)
	assert.Equal(t, 0, a.calls)

	out, err = e.Cycle(context.Background(), "", Input{Pin: "", LoginClicks: 4})
	require.NoError(t, err)
	assert.Equal(t, PromptMessage, out.Account)

	out, err = e.Cycle(context.Background(), "", Input{Pin: "000000", LoginClicks: 1})
	require.NoError(t, err)
	assert.Equal(t, "Unable to authenticate PIN.", out.Account)
	assert.Nil(t, out.Identity)
	for _, p := range out.Points {
		assert.Equal(t, "", p.Label)
	}
}

func TestCycle_ReusesLoginWithinSession(t *testing.T) {
	e, a := newTestEngine(t)
	in := Input{Pin: "200001", LoginClicks: 1}

	out, err := e.Cycle(context.Background(), "", in)
	require.NoError(t, err)
	sid := out.SessionID

	_, err = e.Cycle(context.Background(), sid, in)
	require.NoError(t, err)
	assert.Equal(t, 1, a.calls)

	in.LoginClicks = 2
	_, err = e.Cycle(context.Background(), sid, in)
	require.NoError(t, err)
	assert.Equal(t, 2, a.calls)
}

func TestCycle_ExportTrigger(t *testing.T) {
	e, _ := newTestEngine(t)
	in := Input{
		Filter:       filter.RawInput{Selections: map[model.Field]string{model.FieldJobType: "drilling"}},
		ExportClicks: intp(1),
	}

	out, err := e.Cycle(context.Background(), "", Input{Filter: in.Filter})
	require.NoError(t, err)
	assert.Nil(t, out.Export)
	assert.Equal(t, "idle", out.ExportState)
	assert.Nil(t, out.LastExport)

	out, err = e.Cycle(context.Background(), out.SessionID, in)
	require.NoError(t, err)
	require.NotNil(t, out.Export)
	assert.Equal(t, "DrillGIS.csv", out.ExportName)
	assert.Equal(t, "armed", out.ExportState)
	require.NotNil(t, out.LastExport)
	assert.Equal(t, 1, *out.LastExport)
	rows, err := csv.NewReader(bytes.NewReader(out.Export)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	sid := out.SessionID
	out, err = e.Cycle(context.Background(), sid, in)
	require.NoError(t, err)
	assert.Nil(t, out.Export)

	// A filter change alone never exports.
	in.Filter = filter.RawInput{}
	out, err = e.Cycle(context.Background(), sid, in)
	require.NoError(t, err)
	assert.Nil(t, out.Export)

	in.ExportClicks = intp(2)
	out, err = e.Cycle(context.Background(), sid, in)
	require.NoError(t, err)
	assert.NotNil(t, out.Export)
	require.NotNil(t, out.LastExport)
	assert.Equal(t, 2, *out.LastExport)

	// Another session keeps its own counter.
	out, err = e.Cycle(context.Background(), "", in)
	require.NoError(t, err)
	assert.NotNil(t, out.Export)
}

func TestCycle_MissingFieldGivesEmptyView(t *testing.T) {
	e, _ := newTestEngine(t)
	e.HoverFields = append([]model.Field{}, DefaultHoverFields...)
	e.HoverFields = append(e.HoverFields, model.Field("torque"))

	out, err := e.Cycle(context.Background(), "", Input{ExportClicks: intp(1)})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	assert.Equal(t, "There are no drill runs during the specified time.", out.Message)
	assert.Empty(t, out.Points)
	assert.True(t, out.Histogram.Placeholder)
	assert.True(t, out.Comparison.Placeholder)

	rows, err := csv.NewReader(bytes.NewReader(out.Export)).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestCycle_UnknownCompareField(t *testing.T) {
	e, _ := newTestEngine(t)
	out, err := e.Cycle(context.Background(), "", Input{CompareField: "torque", PlotMode: PlotDistribution})
	require.NoError(t, err)
	assert.Equal(t, 0, out.Count)
	require.NotNil(t, out.Distribution)
	assert.True(t, out.Distribution.Degenerate)
}

func TestCycle_DistributionModes(t *testing.T) {
	e, _ := newTestEngine(t)

	out, err := e.Cycle(context.Background(), "", Input{PlotMode: PlotDistribution})
	require.NoError(t, err)
	require.NotNil(t, out.Distribution)
	require.Len(t, out.Distribution.Curves, 1)
	assert.Equal(t, "All Data", out.Distribution.Curves[0].Name)
	assert.Nil(t, out.Histogram)

	out, err = e.Cycle(context.Background(), "", Input{PlotMode: PlotDistribution, Pin: "900002", LoginClicks: 1})
	require.NoError(t, err)
	require.NotNil(t, out.Distribution)
	require.Len(t, out.Distribution.Curves, 2)
	assert.Equal(t, "Bore Co", out.Distribution.Curves[0].Name)
}

func TestCycle_ComparisonUsesFullSnapshot(t *testing.T) {
	e, _ := newTestEngine(t)
	out, err := e.Cycle(context.Background(), "", Input{
		Filter: filter.RawInput{Selections: map[model.Field]string{model.FieldSoilClass: "loam"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Count)

	total := 0
	for _, b := range out.Comparison.Boxes {
		total += b.Count
	}
	assert.Equal(t, 5, total)
}

func TestCycle_InvalidInput(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Cycle(context.Background(), "", Input{PlotMode: "pie"})
	assert.Error(t, err)

	for _, bins := range []int{-1, model.MaxBinCount + 1, 1 << 40} {
		_, err = e.Cycle(context.Background(), "", Input{BinCount: bins, PlotMode: PlotDistribution})
		assert.Error(t, err, "bin count %d", bins)
	}
	_, err = e.Cycle(context.Background(), "", Input{BinCount: model.MaxBinCount})
	assert.NoError(t, err)

	_, err = e.Cycle(context.Background(), "", Input{
		Filter: filter.RawInput{Selections: map[model.Field]string{model.FieldLatitude: "41"}},
	})
	var missing *model.MissingFieldError
	assert.ErrorAs(t, err, &missing)
}

func TestCycle_ViewDigest(t *testing.T) {
	e, _ := newTestEngine(t)
	a, err := e.Cycle(context.Background(), "", Input{})
	require.NoError(t, err)
	b, err := e.Cycle(context.Background(), "", Input{BinCount: model.DefaultBinCount})
	require.NoError(t, err)
	assert.Equal(t, a.ViewDigest, b.ViewDigest)

	c, err := e.Cycle(context.Background(), "", Input{BinCount: 20})
	require.NoError(t, err)
	assert.NotEqual(t, a.ViewDigest, c.ViewDigest)

	d, err := e.Cycle(context.Background(), "", Input{Pin: "200001", LoginClicks: 1})
	require.NoError(t, err)
	assert.NotEqual(t, a.ViewDigest, d.ViewDigest)
}

func TestSessions_Expire(t *testing.T) {
	s := NewSessions(time.Minute)
	now := time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	sess := s.acquire("")
	id := sess.id
	s.release(sess)
	assert.Equal(t, 1, s.Len())

	sess = s.acquire(id)
	assert.Equal(t, id, sess.id)
	s.release(sess)

	now = now.Add(2 * time.Minute)
	sess = s.acquire("not-a-uuid")
	assert.NotEqual(t, "not-a-uuid", sess.id)
	s.release(sess)
	assert.Equal(t, 1, s.Len())
}

func TestSessions_Sweep(t *testing.T) {
	s := NewSessions(time.Minute)
	now := time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		s.release(s.acquire(""))
	}
	assert.Equal(t, 0, s.Sweep())

	now = now.Add(90 * time.Second)
	assert.Equal(t, 3, s.Sweep())
	assert.Equal(t, 0, s.Len())
}
