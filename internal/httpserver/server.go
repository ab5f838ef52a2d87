package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/drillgis/internal/dashboard"
	"github.com/tinytelemetry/drillgis/internal/export"
	"github.com/tinytelemetry/drillgis/internal/filter"
	"github.com/tinytelemetry/drillgis/internal/model"
	"github.com/tinytelemetry/drillgis/internal/records"
)

// SessionHeader carries the dashboard session between requests.
const SessionHeader = "X-Session-ID"

// QueryStore is the narrow store contract required by the HTTP API.
type QueryStore interface {
	model.SchemaQuerier
	TotalRunCount() (int64, error)
	CountsBy(f model.Field, limit int) ([]model.DimensionCount, error)
	DistinctValues(f model.Field) ([]string, error)
	NumericRange(f model.Field) (lo, hi float64, ok bool, err error)
	DBPath() string
}

// ReloadFunc reloads the record store from its configured source.
type ReloadFunc func(ctx context.Context) (*records.Snapshot, error)

// Server provides an HTTP API for the DrillGIS dashboard.
type Server struct {
	addr      string
	store     QueryStore
	runs      *records.Store
	engine    *dashboard.Engine
	reload    ReloadFunc
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. reload may be nil.
func NewServer(addr string, store QueryStore, runs *records.Store, engine *dashboard.Engine, reload ReloadFunc) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:   addr,
		store:  store,
		runs:   runs,
		engine: engine,
		reload: reload,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Handler returns the gin engine with every route registered.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/options", s.handleOptions)
	r.POST("/api/view", s.handleView)
	r.GET("/api/export", s.handleExport)
	r.POST("/api/reload", s.handleReload)
	r.GET("/api/breakdown/:field", s.handleBreakdown)
	r.GET("/api/schema", s.handleSchema)
	r.POST("/api/query", s.handleQuery)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	staged, err := s.store.TotalRunCount()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	storage := s.store.DBPath()
	if storage == "" {
		storage = "memory"
	}

	snap := s.runs.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"storage":    storage,
		"uptime":     time.Since(s.startTime).String(),
		"run_count":  snap.Len(),
		"staged":     staged,
		"skipped":    snap.Skipped(),
		"source":     snap.Source(),
		"loaded_at":  snap.LoadedAt(),
		"sessions":   s.engine.Sessions().Len(),
		"bin_count":  model.DefaultBinCount,
		"plot_modes": []dashboard.PlotMode{dashboard.PlotHistogram, dashboard.PlotDistribution},
	})
}

type rangeOption struct {
	Min   float64        `json:"min"`
	Max   float64        `json:"max"`
	Marks []records.Mark `json:"marks"`
}

func (s *Server) handleOptions(c *gin.Context) {
	snap := s.runs.Snapshot()

	categorical := make(map[model.Field][]string, len(model.FilterCategoricals))
	for _, f := range model.FilterCategoricals {
		categorical[f] = snap.DistinctValues(f)
	}

	ranges := make(map[model.Field]rangeOption, len(model.FilterRanges))
	for _, f := range model.FilterRanges {
		lo, hi, ok := snap.NumericRange(f)
		if !ok {
			continue
		}
		ranges[f] = rangeOption{Min: lo, Max: hi, Marks: s.runs.Marks(f)}
	}

	resp := gin.H{
		"categorical":    categorical,
		"ranges":         ranges,
		"compare_fields": compareFields(),
	}
	if first, last, ok := snap.DateRange(); ok {
		resp["start_date"] = first.Format(model.DateLayout)
		resp["end_date"] = last.Format(model.DateLayout)
	}
	c.JSON(http.StatusOK, resp)
}

func compareFields() []gin.H {
	fields := []model.Field{
		model.FieldSoilClass, model.FieldJobType, model.FieldMachineModel,
		model.FieldBitType, model.FieldBitDiameter, model.FieldBoreFluid,
		model.FieldUSDAClass, model.FieldDrillDepth, model.FieldWeather, model.FieldDate,
	}
	out := make([]gin.H, len(fields))
	for i, f := range fields {
		out[i] = gin.H{"value": f, "label": f.Title()}
	}
	return out
}

type viewRequest struct {
	Filters      map[model.Field]string     `json:"filters"`
	Ranges       map[model.Field][2]float64 `json:"ranges"`
	StartDate    string                     `json:"start_date"`
	EndDate      string                     `json:"end_date"`
	BinCount     int                        `json:"bin_count"`
	Pin          string                     `json:"pin"`
	LoginClicks  int                        `json:"login_clicks"`
	ExportClicks *int                       `json:"export_clicks"`
	CompareField model.Field                `json:"compare_field"`
	PlotMode     dashboard.PlotMode         `json:"plot_mode"`
}

func (r viewRequest) rawInput() (filter.RawInput, error) {
	in := filter.RawInput{Selections: r.Filters}
	if len(r.Ranges) > 0 {
		in.Ranges = make(map[model.Field]filter.Range, len(r.Ranges))
		for f, pair := range r.Ranges {
			in.Ranges[f] = filter.Range{Min: pair[0], Max: pair[1]}
		}
	}
	var err error
	if in.Start, err = parseDate("start_date", r.StartDate); err != nil {
		return in, err
	}
	if in.End, err = parseDate("end_date", r.EndDate); err != nil {
		return in, err
	}
	return in, nil
}

func parseDate(name, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if len(raw) > len(model.DateLayout) {
		raw = raw[:len(model.DateLayout)]
	}
	t, err := time.Parse(model.DateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, raw)
	}
	return &t, nil
}

func (s *Server) handleView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	raw, err := req.rawInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := s.engine.Cycle(c.Request.Context(), c.GetHeader(SessionHeader), dashboard.Input{
		Filter:       raw,
		BinCount:     req.BinCount,
		Pin:          req.Pin,
		LoginClicks:  req.LoginClicks,
		ExportClicks: req.ExportClicks,
		CompareField: req.CompareField,
		PlotMode:     req.PlotMode,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Header(SessionHeader, out.SessionID)
	c.Header("ETag", strconv.Quote(out.ViewDigest))
	c.JSON(http.StatusOK, out)
}

// handleExport streams the CSV for a filter given as query parameters:
// one value per categorical field, "min,max" per range field, and
// start_date/end_date.
func (s *Server) handleExport(c *gin.Context) {
	raw := filter.RawInput{
		Selections: make(map[model.Field]string),
		Ranges:     make(map[model.Field]filter.Range),
	}
	for _, f := range model.FilterCategoricals {
		if v := c.Query(string(f)); v != "" {
			raw.Selections[f] = v
		}
	}
	for _, f := range model.FilterRanges {
		v := c.Query(string(f))
		if v == "" {
			continue
		}
		rng, err := parseRange(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s: %v", f, err)})
			return
		}
		raw.Ranges[f] = rng
	}
	var err error
	if raw.Start, err = parseDate("start_date", c.Query("start_date")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if raw.End, err = parseDate("end_date", c.Query("end_date")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := raw.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap := s.runs.Snapshot()
	rows := filter.Apply(snap.Records(), filter.Resolve(raw, snap))

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, rows); err != nil {
		c.Error(err)
	}
}

func parseRange(v string) (filter.Range, error) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return filter.Range{}, errors.New("want min,max")
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return filter.Range{}, err
	}
	hi, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return filter.Range{}, err
	}
	return filter.Range{Min: lo, Max: hi}, nil
}

func (s *Server) handleReload(c *gin.Context) {
	if s.reload == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "reload is not configured"})
		return
	}
	snap, err := s.reload(c.Request.Context())
	if err != nil {
		var loadErr *model.DataLoadError
		if errors.As(err, &loadErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   loadErr.Error(),
				"missing": loadErr.Missing,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source":    snap.Source(),
		"run_count": snap.Len(),
		"skipped":   snap.Skipped(),
		"loaded_at": snap.LoadedAt(),
	})
}

func (s *Server) handleBreakdown(c *gin.Context) {
	f := model.Field(c.Param("field"))
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	counts, err := s.store.CountsBy(f, limit)
	if err != nil {
		var missing *model.MissingFieldError
		if errors.As(err, &missing) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read breakdown"})
		return
	}
	distinct, err := s.store.DistinctValues(f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read distinct values"})
		return
	}

	resp := gin.H{
		"field":    f,
		"title":    f.Title(),
		"counts":   counts,
		"distinct": len(distinct),
	}
	if f.Numeric() {
		if lo, hi, ok, err := s.store.NumericRange(f); err == nil && ok {
			resp["min"] = lo
			resp["max"] = hi
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSchema(c *gin.Context) {
	description := s.store.GetSchemaDescription()

	tables, err := s.store.ExecuteQuery(
		"SELECT table_name, column_name, data_type FROM information_schema.columns WHERE table_schema = 'main' ORDER BY table_name, ordinal_position",
	)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read schema metadata"})
		return
	}

	schema := make(map[string][]map[string]string)
	for _, row := range tables {
		tableName := fmt.Sprintf("%v", row["table_name"])
		schema[tableName] = append(schema[tableName], map[string]string{
			"column": fmt.Sprintf("%v", row["column_name"]),
			"type":   fmt.Sprintf("%v", row["data_type"]),
		})
	}

	counts, err := s.store.TableRowCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read table row counts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"description": description,
		"tables":      schema,
		"row_counts":  counts,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	results, err := s.store.ExecuteQuery(req.SQL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var columns []string
	if len(results) > 0 {
		for col := range results[0] {
			columns = append(columns, col)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	})
}
