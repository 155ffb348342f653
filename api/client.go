package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	maxResponseBytes      = 1 << 20
	defaultClinicCacheTTL = 10 * time.Minute
	clinicCacheKey        = "all"
	defaultRequestTimeout = 15 * time.Second
)

// Client calls the clinic authentication endpoints.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	timeout time.Duration
	clinics *expirable.LRU[string, []Clinic]
}

// Option configures a [Client].
type Option func(*clientOptions)

type clientOptions struct {
	clinicTTL time.Duration
	timeout   time.Duration
}

// WithClinicCacheTTL sets how long the clinic directory is cached. Zero
// disables caching.
func WithClinicCacheTTL(ttl time.Duration) Option {
	return func(o *clientOptions) {
		o.clinicTTL = ttl
	}
}

// WithRequestTimeout bounds a single call when ctx has no earlier deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewClient returns a Client for baseURL. httpClient must not be nil; its
// transport is where credentials are attached.
func NewClient(baseURL string, httpClient *http.Client, opts ...Option) (*Client, error) {
	if httpClient == nil {
		return nil, errors.New("api: http client is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base url must be http or https, got %q", baseURL)
	}

	o := clientOptions{clinicTTL: defaultClinicCacheTTL, timeout: defaultRequestTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Client{baseURL: u, http: httpClient, timeout: o.timeout}
	if o.clinicTTL > 0 {
		c.clinics = expirable.NewLRU[string, []Clinic](1, nil, o.clinicTTL)
	}
	return c, nil
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// PatientLogin requests a code for the patient owning healthCard.
func (c *Client) PatientLogin(ctx context.Context, healthCard string, ch Channel) (PendingVerification, error) {
	return c.pending(ctx, "patient-login", PathPatientLogin, patientLoginRequest{
		HealthCardNumber: healthCard,
		OTPChannel:       ch,
	})
}

// PatientRegister creates a pending patient account; the server sends the
// first code on success.
func (c *Client) PatientRegister(ctx context.Context, reg PatientRegistration) (PendingVerification, error) {
	return c.pending(ctx, "patient-register", PathPatientRegister, reg)
}

// VerifyPatient exchanges a patient code for a profile and access token.
func (c *Client) VerifyPatient(ctx context.Context, uid, code string, ch Channel) (VerifiedProfile, error) {
	return c.verify(ctx, "verify-patient", PathVerifyPatient+url.PathEscape(uid), patientVerifyRequest{
		AccessCode: code,
		OTPChannel: ch,
	})
}

// ProviderLogin requests a code for the provider username.
func (c *Client) ProviderLogin(ctx context.Context, username string, ch Channel) (PendingVerification, error) {
	return c.pending(ctx, "provider-login", PathProviderLogin, usernameLoginRequest{Username: username, OTPChannel: ch})
}

// VerifyProvider exchanges a provider code for a profile and access token.
func (c *Client) VerifyProvider(ctx context.Context, id, code string, ch Channel) (VerifiedProfile, error) {
	return c.verify(ctx, "verify-provider", PathVerifyProvider, staffVerifyRequest{ID: id, AccessCode: code, OTPChannel: ch})
}

// AdminRegister creates a pending admin account.
func (c *Client) AdminRegister(ctx context.Context, reg AdminRegistration) (PendingVerification, error) {
	return c.pending(ctx, "admin-register", PathAdminRegister, reg)
}

// AdminLogin requests a code for the admin username.
func (c *Client) AdminLogin(ctx context.Context, username string, ch Channel) (PendingVerification, error) {
	return c.pending(ctx, "admin-login", PathAdminLogin, usernameLoginRequest{Username: username, OTPChannel: ch})
}

// VerifyAdmin exchanges an admin code for a profile and access token.
func (c *Client) VerifyAdmin(ctx context.Context, id, code string, ch Channel) (VerifiedProfile, error) {
	return c.verify(ctx, "verify-admin", PathVerifyAdmin, staffVerifyRequest{ID: id, AccessCode: code, OTPChannel: ch})
}

// GetAllClinics lists clinics. Results are cached for the configured TTL.
func (c *Client) GetAllClinics(ctx context.Context) ([]Clinic, error) {
	if c.clinics != nil {
		if cached, ok := c.clinics.Get(clinicCacheKey); ok {
			return append([]Clinic(nil), cached...), nil
		}
	}

	data, err := c.do(ctx, "get-all-clinics", http.MethodGet, PathClinics, nil)
	if err != nil {
		return nil, err
	}
	var clinics []Clinic
	if err := json.Unmarshal(data, &clinics); err != nil {
		return nil, errors.Join(ErrMalformedResponse, err)
	}

	if c.clinics != nil {
		c.clinics.Add(clinicCacheKey, clinics)
	}
	return append([]Clinic(nil), clinics...), nil
}

// InvalidateClinics drops the cached clinic directory.
func (c *Client) InvalidateClinics() {
	if c.clinics != nil {
		c.clinics.Purge()
	}
}

func (c *Client) pending(ctx context.Context, op, path string, body any) (PendingVerification, error) {
	data, err := c.do(ctx, op, http.MethodPost, path, body)
	if err != nil {
		return PendingVerification{}, err
	}
	return decodePending(data)
}

func (c *Client) verify(ctx context.Context, op, path string, body any) (VerifiedProfile, error) {
	data, err := c.do(ctx, op, http.MethodPost, path, body)
	if err != nil {
		return VerifiedProfile{}, err
	}
	return decodeProfile(data)
}

// do issues one request and returns the "data" member of a 2xx envelope.
func (c *Client) do(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("api %s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("api %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("api %s: read response: %w", op, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Op: op, Status: resp.StatusCode}
		if decodeErr == nil {
			apiErr.Message = env.Message
			if apiErr.Message == "" {
				apiErr.Message = env.Error
			}
		}
		return nil, apiErr
	}
	if decodeErr != nil {
		return nil, errors.Join(ErrMalformedResponse, decodeErr)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	return env.Data, nil
}
