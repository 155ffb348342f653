package clinicAuth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/clinicAuth/api"
	internalaudit "github.com/MrEthical07/clinicAuth/internal/audit"
	"github.com/MrEthical07/clinicAuth/internal/resolver"
	"github.com/MrEthical07/clinicAuth/jwt"
	"github.com/MrEthical07/clinicAuth/session"
)

// Client owns the session of one signed-in user and everything that reads or
// clears it: the auth transport, the API client and the verification flows.
//
// Client methods are safe for concurrent use after [Builder.Build].
type Client struct {
	cfg Config

	store    *session.Store
	http     *http.Client
	api      *api.Client
	gateway  *gateway
	resolver *resolver.Resolver

	metrics *Metrics
	audit   *internalaudit.Dispatcher
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	actingAs Role

	closed atomic.Bool
}

// Session returns a copy of the current session, or false when logged out.
func (c *Client) Session() (*Session, bool) {
	return c.store.Get()
}

// Authenticated reports whether a session is present.
func (c *Client) Authenticated() bool {
	_, ok := c.store.Get()
	return ok
}

// Logout clears the session. It is a no-op when nobody is logged in. No
// request is sent to the server.
func (c *Client) Logout(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientNotReady
	}

	sess, ok := c.store.Get()
	c.store.Set(nil)
	c.SetActingAs("")
	if !ok {
		return nil
	}

	c.metricInc(MetricLogout)
	c.emitAudit(ctx, auditEventLogout, true, sess.Role, sess.SubjectID, "", nil, nil)
	c.logger.InfoContext(ctx, "logged out", slog.String("role", string(sess.Role)))
	return nil
}

// UpdateProfile shallow-merges p into the current session and persists it.
func (c *Client) UpdateProfile(ctx context.Context, p SessionPatch) error {
	if c.closed.Load() {
		return ErrClientNotReady
	}
	if !c.store.Update(p) {
		return ErrNotAuthenticated
	}

	sess, _ := c.store.Get()
	c.emitAudit(ctx, auditEventProfileUpdated, true, sess.Role, sess.SubjectID, "", nil, nil)
	return nil
}

// Subscribe registers fn for every session change. fn receives nil on logout,
// including a logout forced by a 401 response. The returned function removes
// the subscription.
func (c *Client) Subscribe(fn func(*Session)) func() {
	return c.store.Subscribe(fn)
}

// SetActingAs selects which area a provider is using. RolePatient routes a
// provider to the patient area; empty or RoleProvider restores the default.
func (c *Client) SetActingAs(role Role) error {
	switch role {
	case "", RolePatient, RoleProvider:
	default:
		return fmt.Errorf("%w: cannot act as %q", ErrValidation, role)
	}

	c.mu.Lock()
	c.actingAs = role
	c.mu.Unlock()
	return nil
}

// Destination routes the current session. It is DestinationNone when logged
// out.
func (c *Client) Destination() Destination {
	sess, ok := c.store.Get()
	if !ok {
		return DestinationNone
	}

	c.mu.RLock()
	actingAs := c.actingAs
	c.mu.RUnlock()

	return Route(sess.Role, actingAs)
}

// TokenExpiry returns the exp claim of the current access token. It is false
// when logged out or when the token is opaque.
func (c *Client) TokenExpiry() (time.Time, bool) {
	sess, ok := c.store.Get()
	if !ok {
		return time.Time{}, false
	}
	claims, err := jwt.Inspect(sess.AccessToken)
	if err != nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt()
}

// Clinics returns the clinic directory for registration step 1. Results are
// cached for Config.API.ClinicCacheTTL.
func (c *Client) Clinics(ctx context.Context) ([]Clinic, error) {
	if c.closed.Load() {
		return nil, ErrClientNotReady
	}
	return c.api.GetAllClinics(ctx)
}

// HTTPClient returns an *http.Client that attaches the current access token
// to every request and logs out on any 401 response. Use it for every other
// call to the clinic backend.
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

// API returns the underlying endpoint client.
func (c *Client) API() *api.Client {
	return c.api
}

// Flush waits until every session change made so far has been persisted and
// returns the error of the most recent write.
func (c *Client) Flush(ctx context.Context) error {
	return c.store.Flush(ctx)
}

// Close persists pending session writes, stops background work and drains
// the audit dispatcher. The client cannot start new verifications afterwards.
func (c *Client) Close() error {
	if c == nil || c.closed.Swap(true) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Session.SaveTimeout)
	err := c.store.Flush(ctx)
	cancel()

	c.store.Close()
	c.audit.Close()
	return err
}
