// Package auth resolves a PIN to an operator or company identity through an
// external credential directory.
package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/tinytelemetry/drillgis/internal/model"
)

// Failure reasons shown to the user.
const (
	ReasonUnauthenticated = "Unable to authenticate PIN."
	ReasonRateLimited     = "Too many login attempts."
	ReasonUnavailable     = "Authentication service unavailable."
)

var (
	// ErrNotFound is returned by a Directory for an unknown PIN.
	ErrNotFound = errors.New("auth: pin not found")
	// ErrMalformed is returned by a Directory whose response cannot be read.
	ErrMalformed = errors.New("auth: malformed directory response")
	// ErrRateLimited is returned when the lookup budget is exhausted.
	ErrRateLimited = errors.New("auth: rate limited")
)

// DirectoryRecord is the raw account entry returned by a directory.
type DirectoryRecord struct {
	Company     string `json:"company" yaml:"company"`
	CompanyCode string `json:"company_pin" yaml:"company_code"`
	AccountKind string `json:"acc_type" yaml:"kind"`
	OperatorPin string `json:"operator_pin,omitempty" yaml:"pin"`
}

// Directory looks a credential up in an external identity store.
type Directory interface {
	Lookup(ctx context.Context, pin string) (DirectoryRecord, error)
}

// Result is the normalized outcome of one authentication attempt. Exactly one
// of Identity and Failure is set.
type Result struct {
	Identity *model.Identity
	Failure  *model.AuthFailure
	// Outage is true when the directory itself could not be reached.
	Outage bool
}

// OK reports whether the attempt produced an identity.
func (r Result) OK() bool { return r.Identity != nil }

// Authenticator normalizes directory lookups into Results.
type Authenticator struct {
	dir     Directory
	timeout time.Duration
}

// New creates an Authenticator. A non-positive timeout uses the default.
func New(dir Directory, timeout time.Duration) *Authenticator {
	if timeout <= 0 {
		timeout = model.DefaultAuthTimeout
	}
	return &Authenticator{dir: dir, timeout: timeout}
}

// Authenticate looks credential up under the configured timeout. It never
// returns an error: every problem becomes a Failure.
func (a *Authenticator) Authenticate(ctx context.Context, credential string) Result {
	pin := strings.TrimSpace(credential)
	if pin == "" {
		return failed(ReasonUnauthenticated, nil, false)
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rec, err := a.dir.Lookup(ctx, pin)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrMalformed):
		return failed(ReasonUnauthenticated, err, false)
	case errors.Is(err, ErrRateLimited):
		return failed(ReasonRateLimited, err, false)
	case errors.Is(err, context.DeadlineExceeded):
		log.Printf("auth: directory lookup timed out after %s", a.timeout)
		return failed(ReasonUnauthenticated, err, true)
	default:
		log.Printf("auth: directory unavailable: %v", err)
		return failed(ReasonUnavailable, err, true)
	}

	id, err := normalize(rec, pin)
	if err != nil {
		return failed(ReasonUnauthenticated, err, false)
	}
	return Result{Identity: id}
}

func failed(reason string, err error, outage bool) Result {
	return Result{Failure: &model.AuthFailure{Reason: reason, Err: err}, Outage: outage}
}

// normalize validates a directory record and converts it to an Identity.
func normalize(rec DirectoryRecord, pin string) (*model.Identity, error) {
	company := strings.TrimSpace(rec.Company)
	code := strings.TrimSpace(rec.CompanyCode)
	if company == "" || code == "" {
		return nil, ErrMalformed
	}

	switch model.AccountKind(strings.ToLower(strings.TrimSpace(rec.AccountKind))) {
	case model.AccountOperator:
		op := strings.TrimSpace(rec.OperatorPin)
		if op == "" {
			op = pin
		}
		return &model.Identity{
			Kind:        model.AccountOperator,
			CompanyName: company,
			CompanyCode: code,
			OperatorPin: op,
		}, nil
	case model.AccountCompany:
		return &model.Identity{
			Kind:        model.AccountCompany,
			CompanyName: company,
			CompanyCode: code,
		}, nil
	}
	return nil, ErrMalformed
}
