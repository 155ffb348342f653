package transport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/clinicAuth/session"
)

// SessionSource is the slice of the session store the transport needs.
type SessionSource interface {
	Get() (*session.Session, bool)
	Set(*session.Session)
}

// Observer receives request telemetry. Implementations must be cheap and
// must not block.
type Observer interface {
	ObserveRequest(req *http.Request, status int, d time.Duration, err error)
	ObserveUnauthorized(req *http.Request, hadSession bool)
}

// Option configures a [Transport].
type Option func(*Transport)

// WithBase sets the wrapped RoundTripper. Defaults to http.DefaultTransport.
func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		if base != nil {
			t.base = base
		}
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(t *Transport) {
		t.userAgent = ua
	}
}

// WithObserver installs a telemetry observer.
func WithObserver(o Observer) Option {
	return func(t *Transport) {
		t.observer = o
	}
}

// WithLogger sets the logger used for session invalidation events.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock overrides the clock used for latency measurement.
func WithClock(now func() time.Time) Option {
	return func(t *Transport) {
		if now != nil {
			t.now = now
		}
	}
}

// Transport injects credentials and enforces the global 401 logout rule.
type Transport struct {
	store     SessionSource
	base      http.RoundTripper
	userAgent string
	observer  Observer
	logger    *slog.Logger
	now       func() time.Time
}

// New returns a Transport reading and clearing sessions through store.
func New(store SessionSource, opts ...Option) *Transport {
	t := &Transport{
		store:  store,
		base:   http.DefaultTransport,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Client returns an *http.Client using t.
func (t *Transport) Client(timeout time.Duration) *http.Client {
	return &http.Client{Transport: t, Timeout: timeout}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.Header.Del("Authorization")

	sess, hadSession := t.store.Get()
	if hadSession {
		out.Header.Set("Authorization", "Bearer "+sess.AccessToken)
	}
	if t.userAgent != "" {
		out.Header.Set("User-Agent", t.userAgent)
	}

	start := t.now()
	resp, err := t.base.RoundTrip(out)
	elapsed := t.now().Sub(start)

	if err != nil {
		t.observe(out, 0, elapsed, err)
		return nil, err
	}
	t.observe(out, resp.StatusCode, elapsed, nil)

	if resp.StatusCode == http.StatusUnauthorized {
		t.store.Set(nil)
		t.logger.InfoContext(out.Context(), "session invalidated by unauthorized response",
			slog.String("path", out.URL.Path),
			slog.Bool("had_session", hadSession),
		)
		if t.observer != nil {
			t.observer.ObserveUnauthorized(out, hadSession)
		}
	}

	return resp, nil
}

func (t *Transport) observe(req *http.Request, status int, d time.Duration, err error) {
	if t.observer != nil {
		t.observer.ObserveRequest(req, status, d, err)
	}
}
