package clinicAuth

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.API.BaseURL = "https://api.clinic.test"
	return cfg
}

func TestDefaultConfigNeedsOnlyBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without BaseURL to be rejected")
	}

	cfg = validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	if cfg.OTP.ResendWindow != 60*time.Second || cfg.OTP.Tick != time.Second || cfg.OTP.CodeDigits != 6 {
		t.Fatalf("unexpected OTP defaults: %+v", cfg.OTP)
	}
	if cfg.Session.StorageName != DefaultStorageName {
		t.Fatalf("unexpected storage name %q", cfg.Session.StorageName)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative base url", func(c *Config) { c.API.BaseURL = "/api" }, "BaseURL"},
		{"ftp base url", func(c *Config) { c.API.BaseURL = "ftp://clinic.test" }, "BaseURL"},
		{"zero request timeout", func(c *Config) { c.API.RequestTimeout = 0 }, "RequestTimeout"},
		{"negative clinic ttl", func(c *Config) { c.API.ClinicCacheTTL = -time.Second }, "ClinicCacheTTL"},
		{"empty storage name", func(c *Config) { c.Session.StorageName = " " }, "StorageName"},
		{"storage name with slash", func(c *Config) { c.Session.StorageName = "../x" }, "StorageName"},
		{"zero hydrate timeout", func(c *Config) { c.Session.HydrateTimeout = 0 }, "HydrateTimeout"},
		{"zero resend window", func(c *Config) { c.OTP.ResendWindow = 0 }, "ResendWindow"},
		{"tick above window", func(c *Config) { c.OTP.Tick = 2 * c.OTP.ResendWindow }, "Tick"},
		{"short codes", func(c *Config) { c.OTP.CodeDigits = 3 }, "CodeDigits"},
		{"unknown channel", func(c *Config) { c.OTP.DefaultChannel = "pigeon" }, "DefaultChannel"},
		{"empty not found statuses", func(c *Config) { c.Resolver.NotFoundStatuses = nil }, "NotFoundStatuses"},
		{"5xx reject status", func(c *Config) { c.Verification.RejectStatuses = []int{http.StatusBadGateway} }, "RejectStatuses"},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }, "BufferSize"},
		{"latency without metrics", func(c *Config) { c.Metrics.EnableLatencyHistograms = true }, "EnableLatencyHistograms"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestCloneConfigCopiesSlices(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)
	clone.Resolver.NotFoundStatuses[0] = http.StatusTeapot
	clone.Verification.RejectStatuses[0] = http.StatusTeapot

	if cfg.Resolver.NotFoundStatuses[0] == http.StatusTeapot || cfg.Verification.RejectStatuses[0] == http.StatusTeapot {
		t.Fatal("cloneConfig must not share status slices")
	}
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	_, err := New().Build()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithBaseURL("http://127.0.0.1:1")
	client, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer client.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}
