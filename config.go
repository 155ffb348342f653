package clinicAuth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/clinicAuth/api"
)

// Config holds every tunable of a [Client]. Start from [DefaultConfig] and
// override the fields you need; [Builder.Build] validates the result.
type Config struct {
	API          APIConfig
	Session      SessionConfig
	OTP          OTPConfig
	Resolver     ResolverConfig
	Verification VerificationConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig describes how the clinic backend is reached.
type APIConfig struct {
	// BaseURL is the absolute root of the clinic API, e.g. https://api.example.org.
	BaseURL string
	// UserAgent is sent on every request when non-empty.
	UserAgent string
	// RequestTimeout bounds one API call.
	RequestTimeout time.Duration
	// ClinicCacheTTL is how long the clinic directory is cached. Zero disables caching.
	ClinicCacheTTL time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session persistence.
type SessionConfig struct {
	// StorageName is the fixed key of the persisted session record.
	StorageName string
	// HydrateTimeout bounds the single read of the persisted record during Build.
	HydrateTimeout time.Duration
	// SaveTimeout bounds each background write of the session record.
	SaveTimeout time.Duration
	// DiscardExpired drops a persisted session whose access token is a JWT
	// with an exp claim in the past.
	DiscardExpired bool
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig controls code delivery and entry.
type OTPConfig struct {
	// ResendWindow is the minimum time between two dispatches of a challenge.
	ResendWindow time.Duration
	// Tick is the granularity of the remaining-cooldown countdown.
	Tick time.Duration
	// CodeDigits is the exact length of a submitted code.
	CodeDigits int
	// DefaultChannel is preselected before the user picks one.
	DefaultChannel api.Channel
}

/*
====================================
RESOLVER CONFIG
====================================
*/

// ResolverConfig controls identity lookup classification.
type ResolverConfig struct {
	// NotFoundStatuses are the login statuses that mean "no such account" and
	// open the registration branch. Any other failure is retryable.
	NotFoundStatuses []int
}

/*
====================================
VERIFICATION CONFIG
====================================
*/

// VerificationConfig controls how verify responses are classified.
type VerificationConfig struct {
	// RejectStatuses are verify statuses that mean the code was invalid or
	// expired. They clear the entered code; other failures keep it.
	RejectStatuses []int
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters and the request latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultStorageName is the storage key used when SessionConfig.StorageName is empty.
const DefaultStorageName = "clinic-auth-session"

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			UserAgent:      "clinicAuth/1",
			RequestTimeout: 15 * time.Second,
			ClinicCacheTTL: 10 * time.Minute,
		},
		Session: SessionConfig{
			StorageName:    DefaultStorageName,
			HydrateTimeout: 3 * time.Second,
			SaveTimeout:    5 * time.Second,
			DiscardExpired: true,
		},
		OTP: OTPConfig{
			ResendWindow:   60 * time.Second,
			Tick:           time.Second,
			CodeDigits:     6,
			DefaultChannel: api.ChannelSMS,
		},
		Resolver: ResolverConfig{
			NotFoundStatuses: []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
		},
		Verification: VerificationConfig{
			RejectStatuses: []int{
				http.StatusBadRequest,
				http.StatusUnauthorized,
				http.StatusForbidden,
				http.StatusNotFound,
				http.StatusGone,
				http.StatusUnprocessableEntity,
			},
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

// DefaultConfig returns the baseline configuration. BaseURL is left empty and
// must be set before Build.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Resolver.NotFoundStatuses = cloneInts(cfg.Resolver.NotFoundStatuses)
	out.Verification.RejectStatuses = cloneInts(cfg.Verification.RejectStatuses)
	return out
}

func cloneInts(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first configuration problem found, or nil.
func (c *Config) Validate() error {
	// API
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API BaseURL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("API BaseURL must be an absolute http(s) URL")
	}
	if c.API.RequestTimeout <= 0 {
		return errors.New("API RequestTimeout must be > 0")
	}
	if c.API.ClinicCacheTTL < 0 {
		return errors.New("API ClinicCacheTTL must be >= 0")
	}

	// Session
	if strings.TrimSpace(c.Session.StorageName) == "" {
		return errors.New("Session StorageName is required")
	}
	if strings.ContainsAny(c.Session.StorageName, `/\`) {
		return errors.New("Session StorageName must not contain path separators")
	}
	if c.Session.HydrateTimeout <= 0 {
		return errors.New("Session HydrateTimeout must be > 0")
	}
	if c.Session.SaveTimeout <= 0 {
		return errors.New("Session SaveTimeout must be > 0")
	}

	// OTP
	if c.OTP.ResendWindow <= 0 {
		return errors.New("OTP ResendWindow must be > 0")
	}
	if c.OTP.Tick <= 0 || c.OTP.Tick > c.OTP.ResendWindow {
		return errors.New("OTP Tick must be > 0 and <= ResendWindow")
	}
	if c.OTP.CodeDigits < 4 || c.OTP.CodeDigits > 10 {
		return errors.New("OTP CodeDigits must be between 4 and 10")
	}
	if !c.OTP.DefaultChannel.Valid() {
		return errors.New("OTP DefaultChannel must be sms or email")
	}

	// Resolver / Verification
	if err := validateStatuses(c.Resolver.NotFoundStatuses); err != nil {
		return errors.New("Resolver NotFoundStatuses " + err.Error())
	}
	if err := validateStatuses(c.Verification.RejectStatuses); err != nil {
		return errors.New("Verification RejectStatuses " + err.Error())
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

func validateStatuses(statuses []int) error {
	if len(statuses) == 0 {
		return errors.New("must not be empty")
	}
	for _, s := range statuses {
		if s < 400 || s > 499 {
			return errors.New("must only contain 4xx statuses")
		}
	}
	return nil
}
