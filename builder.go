package clinicAuth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrEthical07/clinicAuth/api"
	internalaudit "github.com/MrEthical07/clinicAuth/internal/audit"
	"github.com/MrEthical07/clinicAuth/internal/resolver"
	"github.com/MrEthical07/clinicAuth/jwt"
	"github.com/MrEthical07/clinicAuth/session"
	"github.com/MrEthical07/clinicAuth/transport"
)

// Builder assembles a [Client]. A Builder can be used for exactly one Build.
type Builder struct {
	config Config

	persister     Persister
	baseTransport http.RoundTripper
	logger        *slog.Logger
	auditSink     AuditSink
	now           func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Config.API.BaseURL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithPersister sets the durable session storage. Without one the session
// lives in memory only and is lost on restart.
func (b *Builder) WithPersister(p Persister) *Builder {
	b.persister = p
	return b
}

// WithBaseTransport sets the RoundTripper wrapped by the auth transport.
// Defaults to http.DefaultTransport.
func (b *Builder) WithBaseTransport(rt http.RoundTripper) *Builder {
	b.baseTransport = rt
	return b
}

// WithLogger sets the structured logger. The default discards everything.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events are delivered when Config.Audit is
// enabled.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides time.Now for cooldowns, token expiry and audit
// timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles Config.Metrics.Enabled.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles Config.Metrics.EnableLatencyHistograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the session store, auth transport,
// API client and identity resolver, and restores any persisted session.
//
// Hydration is bounded by Config.Session.HydrateTimeout and never fails the
// build: an unreadable or expired record simply starts logged out.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- SESSION STORE --------
	storeOpts := []session.Option{
		session.WithLogger(logger.With(slog.String("component", "session"))),
		session.WithSaveTimeout(cfg.Session.SaveTimeout),
	}
	if cfg.Session.DiscardExpired {
		storeOpts = append(storeOpts, session.WithHydrateFilter(func(s *session.Session) bool {
			return !jwt.Expired(s.AccessToken, now())
		}))
	}
	store := session.NewStore(b.persister, storeOpts...)

	c := &Client{
		cfg:     cfg,
		store:   store,
		metrics: NewMetrics(cfg.Metrics),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Now:        now,
		}, b.auditSink),
		logger: logger,
		now:    now,
	}

	// -------- AUTH TRANSPORT --------
	tr := transport.New(store,
		transport.WithBase(b.baseTransport),
		transport.WithUserAgent(cfg.API.UserAgent),
		transport.WithObserver(requestObserver{client: c}),
		transport.WithLogger(logger.With(slog.String("component", "transport"))),
		transport.WithClock(now),
	)
	c.http = tr.Client(cfg.API.RequestTimeout)

	// -------- API CLIENT --------
	apiClient, err := api.NewClient(cfg.API.BaseURL, c.http,
		api.WithClinicCacheTTL(cfg.API.ClinicCacheTTL),
		api.WithRequestTimeout(cfg.API.RequestTimeout),
	)
	if err != nil {
		store.Close()
		c.audit.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	c.api = apiClient
	c.gateway = newGateway(apiClient, cfg.Verification.RejectStatuses)
	c.resolver = resolver.New(c.gateway, cfg.Resolver.NotFoundStatuses)

	// -------- HYDRATION --------
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Session.HydrateTimeout)
	restored := store.Hydrate(ctx)
	cancel()
	if restored {
		if sess, ok := store.Get(); ok {
			c.metricInc(MetricSessionRestored)
			c.emitAudit(context.Background(), auditEventSessionRestored, true, sess.Role, sess.SubjectID, "", nil, nil)
			logger.Info("session restored", slog.String("role", string(sess.Role)))
		}
	}

	b.built = true
	return c, nil
}
