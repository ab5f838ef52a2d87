// Package dashboard runs one complete interaction cycle: authenticate,
// attribute, filter, aggregate and decide on export.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tinytelemetry/drillgis/internal/aggregate"
	"github.com/tinytelemetry/drillgis/internal/attribution"
	"github.com/tinytelemetry/drillgis/internal/auth"
	"github.com/tinytelemetry/drillgis/internal/export"
	"github.com/tinytelemetry/drillgis/internal/filter"
	"github.com/tinytelemetry/drillgis/internal/model"
	"github.com/tinytelemetry/drillgis/internal/records"
)

// PromptMessage is the account line shown before anyone logs in.
const PromptMessage = "Enter user PIN."

// PlotMode selects the ROP chart.
type PlotMode string

const (
	PlotHistogram    PlotMode = "histogram"
	PlotDistribution PlotMode = "distribution"
)

// Authenticator resolves a PIN.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) auth.Result
}

// Input is everything the presentation layer sends for one cycle.
type Input struct {
	Filter       filter.RawInput
	BinCount     int
	Pin          string
	LoginClicks  int
	ExportClicks *int
	CompareField model.Field
	PlotMode     PlotMode
}

// Output is everything the presentation layer renders for one cycle.
type Output struct {
	SessionID    string                  `json:"session_id"`
	Count        int                     `json:"count"`
	Message      string                  `json:"message"`
	Account      string                  `json:"account"`
	Identity     *model.Identity         `json:"identity,omitempty"`
	Legend       []string                `json:"legend"`
	Points       []MapPoint              `json:"points"`
	PlotMode     PlotMode                `json:"plot_mode"`
	Histogram    *aggregate.Histogram    `json:"histogram,omitempty"`
	Distribution *aggregate.Distribution `json:"distribution,omitempty"`
	Comparison   aggregate.Comparison    `json:"comparison"`
	Export       []byte                  `json:"export,omitempty"`
	ExportName   string                  `json:"export_name,omitempty"`
	ExportState  string                  `json:"export_state"`
	LastExport   *int                    `json:"last_export,omitempty"`
	Spec         filter.Spec             `json:"spec"`
	ViewDigest   string                  `json:"view_digest"`
}

// Engine is shared by all sessions. The record store is only read.
type Engine struct {
	store    *records.Store
	auth     Authenticator
	sessions *Sessions

	// HoverFields are attached to every map point.
	HoverFields []model.Field
}

// NewEngine creates an engine over store. auth may be nil, in which case
// nobody can log in.
func NewEngine(store *records.Store, a Authenticator, sessionTTL time.Duration) *Engine {
	return &Engine{
		store:       store,
		auth:        a,
		sessions:    NewSessions(sessionTTL),
		HoverFields: DefaultHoverFields,
	}
}

// Sessions exposes the session table.
func (e *Engine) Sessions() *Sessions { return e.sessions }

// Cycle recomputes the whole view for one session. Cycles for the same
// session are serialized; different sessions run concurrently. The only
// error is invalid input.
func (e *Engine) Cycle(ctx context.Context, sessionID string, in Input) (Output, error) {
	if err := in.Filter.Validate(); err != nil {
		return Output{}, err
	}
	if in.BinCount < 0 || in.BinCount > model.MaxBinCount {
		return Output{}, fmt.Errorf("dashboard: bin count %d outside 0..%d", in.BinCount, model.MaxBinCount)
	}
	mode := in.PlotMode
	switch mode {
	case "":
		mode = PlotHistogram
	case PlotHistogram, PlotDistribution:
	default:
		return Output{}, fmt.Errorf("dashboard: unknown plot mode %q", in.PlotMode)
	}

	sess := e.sessions.acquire(sessionID)
	defer e.sessions.release(sess)

	snap := e.store.Snapshot()
	out := Output{SessionID: sess.id, PlotMode: mode}

	res, attempted := e.login(ctx, sess, in)
	out.Account = accountLine(res, attempted)
	out.Identity = res.Identity
	out.Legend = attribution.Labels(res.Identity)

	all := attribution.Resolve(snap.Records(), res.Identity)
	out.Spec = filter.Resolve(in.Filter, snap)
	rows := filter.Apply(all, out.Spec)

	if err := e.aggregate(&out, rows, all, res.Identity, in, mode); err != nil {
		var missing *model.MissingFieldError
		if !errors.As(err, &missing) {
			return Output{}, err
		}
		log.Printf("dashboard: %v; showing empty result", err)
		rows = nil
		emptyView(&out, in, mode)
	}

	if sess.trigger.Step(in.ExportClicks) {
		data, err := export.EncodeCSV(rows)
		if err != nil {
			return Output{}, err
		}
		out.Export = data
		out.ExportName = export.Filename
	}
	state, last := sess.trigger.State()
	out.ExportState = state.String()
	if state == export.ArmedByClick {
		out.LastExport = &last
	}

	digest, err := viewDigest(out.Spec, res.Identity, snap.Source()+"@"+snap.LoadedAt().Format(time.RFC3339Nano), in, mode)
	if err != nil {
		return Output{}, err
	}
	out.ViewDigest = digest
	return out, nil
}

// login authenticates only when a PIN is present and the login button has
// been pressed at least once.
func (e *Engine) login(ctx context.Context, sess *session, in Input) (auth.Result, bool) {
	pin := strings.TrimSpace(in.Pin)
	if pin == "" || in.LoginClicks <= 0 || e.auth == nil {
		sess.login = nil
		return auth.Result{}, false
	}
	if c := sess.login; c != nil && c.pin == pin && c.clicks == in.LoginClicks {
		return c.result, true
	}
	res := e.auth.Authenticate(ctx, pin)
	if res.Outage {
		sess.login = nil
	} else {
		sess.login = &loginCache{pin: pin, clicks: in.LoginClicks, result: res}
	}
	return res, true
}

func accountLine(res auth.Result, attempted bool) string {
	switch {
	case res.Identity != nil && res.Identity.Kind == model.AccountOperator:
		return fmt.Sprintf("Logged in to: %s (Operator %s)", res.Identity.CompanyName, res.Identity.OperatorPin)
	case res.Identity != nil:
		return fmt.Sprintf("Logged in to: %s (Admin Account)", res.Identity.CompanyName)
	case attempted && res.Failure != nil:
		return res.Failure.Reason
	}
	return PromptMessage
}

func (e *Engine) aggregate(out *Output, rows, all []model.Record, id *model.Identity, in Input, mode PlotMode) error {
	out.Count = aggregate.Count(rows)
	out.Message = aggregate.Message(out.Count)

	points, err := mapPoints(rows, e.HoverFields)
	if err != nil {
		return err
	}
	out.Points = points

	switch {
	case len(rows) == 0:
		placeholderChart(out, mode)
	case mode == PlotDistribution:
		var d aggregate.Distribution
		if id != nil {
			d, err = aggregate.ComparativeDistribution(rows, all, id.Label(), in.BinCount)
		} else {
			d, err = aggregate.Density(rows, all, in.BinCount)
		}
		if err != nil {
			return err
		}
		out.Distribution = &d
	default:
		h, err := aggregate.BuildHistogram(rows, model.FieldAverageROP, in.BinCount)
		if err != nil {
			return err
		}
		out.Histogram = &h
	}

	cmp, err := aggregate.GroupedComparison(all, in.CompareField, model.FieldAverageROP)
	if err != nil {
		return err
	}
	out.Comparison = cmp
	return nil
}

// emptyView is the single place a MissingFieldError turns into the
// zero-row view.
func emptyView(out *Output, in Input, mode PlotMode) {
	out.Count = 0
	out.Message = aggregate.Message(0)
	out.Points = []MapPoint{}
	placeholderChart(out, mode)
	field := in.CompareField
	if field == "" {
		field = aggregate.DefaultCompareField
	}
	out.Comparison = aggregate.Comparison{
		Field:       field,
		Target:      model.FieldAverageROP,
		XTitle:      field.Title(),
		YTitle:      model.FieldAverageROP.Title(),
		Placeholder: true,
	}
}

// placeholderChart sets the blank ROP chart for mode.
func placeholderChart(out *Output, mode PlotMode) {
	out.Histogram = nil
	out.Distribution = nil
	if mode == PlotDistribution {
		h := aggregate.PlaceholderHistogram(model.FieldAverageROP)
		out.Distribution = &aggregate.Distribution{
			Field:      model.FieldAverageROP,
			Curves:     []aggregate.Curve{},
			Degenerate: true,
			Fallback:   &h,
		}
	} else {
		h := aggregate.PlaceholderHistogram(model.FieldAverageROP)
		out.Histogram = &h
	}
}
