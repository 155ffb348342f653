package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrEthical07/clinicAuth/api"
	"github.com/MrEthical07/clinicAuth/session"
)

// ErrValidation marks a query rejected before any network call.
var ErrValidation = errors.New("identity query invalid")

// DefaultNotFoundStatuses are the login statuses read as "no such account".
var DefaultNotFoundStatuses = []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound}

// Outcome classifies a login probe.
type Outcome uint8

const (
	OutcomeError Outcome = iota
	OutcomeFound
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFound:
		return "found"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "error"
	}
}

// Query is the transient input of one resolution.
type Query struct {
	LookupKey string
	Role      session.Role
}

// Seed starts a verification challenge for a found account.
type Seed struct {
	SubjectRef string
	Channel    api.Channel
}

// Resolution is the result of [Resolver.Resolve].
type Resolution struct {
	Outcome Outcome
	Seed    Seed
	// Status is the HTTP status behind a NotFound or API error outcome.
	Status int
	Err    error
}

// Prober issues the role login call for a lookup key.
type Prober interface {
	Probe(ctx context.Context, role session.Role, lookupKey string, ch api.Channel) (api.PendingVerification, error)
}

// ProbeFunc adapts a function to [Prober].
type ProbeFunc func(ctx context.Context, role session.Role, lookupKey string, ch api.Channel) (api.PendingVerification, error)

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context, role session.Role, lookupKey string, ch api.Channel) (api.PendingVerification, error) {
	return f(ctx, role, lookupKey, ch)
}

// Resolver turns role login probes into found, not-found or error outcomes.
type Resolver struct {
	prober   Prober
	notFound map[int]struct{}
}

// New returns a Resolver. An empty notFoundStatuses uses
// DefaultNotFoundStatuses.
func New(prober Prober, notFoundStatuses []int) *Resolver {
	if len(notFoundStatuses) == 0 {
		notFoundStatuses = DefaultNotFoundStatuses
	}
	nf := make(map[int]struct{}, len(notFoundStatuses))
	for _, s := range notFoundStatuses {
		nf[s] = struct{}{}
	}
	return &Resolver{prober: prober, notFound: nf}
}

// Normalize trims the lookup key. Case is kept so later login calls send
// the same key the probe did.
func Normalize(q Query) Query {
	q.LookupKey = strings.TrimSpace(q.LookupKey)
	return q
}

// Resolve classifies q. It never panics on server errors; the outcome
// carries them.
func (r *Resolver) Resolve(ctx context.Context, q Query, ch api.Channel) Resolution {
	q = Normalize(q)
	if q.LookupKey == "" {
		return Resolution{Outcome: OutcomeError, Err: fmt.Errorf("%w: empty lookup key", ErrValidation)}
	}
	if !q.Role.Valid() {
		return Resolution{Outcome: OutcomeError, Err: fmt.Errorf("%w: unknown role %q", ErrValidation, q.Role)}
	}
	if !ch.Valid() {
		return Resolution{Outcome: OutcomeError, Err: fmt.Errorf("%w: unknown channel %q", ErrValidation, ch)}
	}

	pending, err := r.prober.Probe(ctx, q.Role, q.LookupKey, ch)
	if err == nil {
		return Resolution{
			Outcome: OutcomeFound,
			Seed:    Seed{SubjectRef: pending.SubjectRef, Channel: ch},
		}
	}

	status, isAPI := api.StatusOf(err)
	if isAPI {
		if _, nf := r.notFound[status]; nf {
			return Resolution{Outcome: OutcomeNotFound, Status: status}
		}
	}
	return Resolution{Outcome: OutcomeError, Status: status, Err: err}
}
