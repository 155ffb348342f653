package internaldefs

import (
	"math"

	clinicAuth "github.com/MrEthical07/clinicAuth"
)

// CounterDef names one clinicAuth counter for exporters.
type CounterDef struct {
	ID   clinicAuth.MetricID
	Name string
	Help string
}

// HistogramDef names one clinicAuth histogram for exporters.
type HistogramDef struct {
	ID   clinicAuth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in stable order.
var CounterDefs = []CounterDef{
	{ID: clinicAuth.MetricIdentityFound, Name: "clinicauth_identity_found_total", Help: "Identity lookups that found an account."},
	{ID: clinicAuth.MetricIdentityNotFound, Name: "clinicauth_identity_not_found_total", Help: "Identity lookups that found no account."},
	{ID: clinicAuth.MetricIdentityError, Name: "clinicauth_identity_error_total", Help: "Identity lookups that failed."},
	{ID: clinicAuth.MetricRegistrationSubmitted, Name: "clinicauth_registration_submitted_total", Help: "Registrations accepted by the server."},
	{ID: clinicAuth.MetricRegistrationFailed, Name: "clinicauth_registration_failed_total", Help: "Registrations that failed."},
	{ID: clinicAuth.MetricCodeDispatched, Name: "clinicauth_code_dispatched_total", Help: "One-time codes sent."},
	{ID: clinicAuth.MetricCodeDispatchFailed, Name: "clinicauth_code_dispatch_failed_total", Help: "One-time code sends that failed."},
	{ID: clinicAuth.MetricResendBlocked, Name: "clinicauth_resend_blocked_total", Help: "Resends refused by the cooldown window."},
	{ID: clinicAuth.MetricVerifySuccess, Name: "clinicauth_verify_success_total", Help: "Codes accepted by the server."},
	{ID: clinicAuth.MetricVerifyRejected, Name: "clinicauth_verify_rejected_total", Help: "Codes rejected by the server."},
	{ID: clinicAuth.MetricVerifyError, Name: "clinicauth_verify_error_total", Help: "Code checks that failed for non-rejection reasons."},
	{ID: clinicAuth.MetricSessionCreated, Name: "clinicauth_session_created_total", Help: "Sessions established by verification."},
	{ID: clinicAuth.MetricSessionRestored, Name: "clinicauth_session_restored_total", Help: "Sessions restored from storage."},
	{ID: clinicAuth.MetricSessionInvalidated, Name: "clinicauth_session_invalidated_total", Help: "Sessions cleared after an unauthorized response."},
	{ID: clinicAuth.MetricLogout, Name: "clinicauth_logout_total", Help: "Explicit logouts."},
	{ID: clinicAuth.MetricFlowCancelled, Name: "clinicauth_flow_cancelled_total", Help: "Verification flows cancelled."},
	{ID: clinicAuth.MetricStaleResponse, Name: "clinicauth_stale_response_total", Help: "Responses discarded because the flow moved on."},
	{ID: clinicAuth.MetricRequestTotal, Name: "clinicauth_request_total", Help: "HTTP requests sent to the clinic API."},
	{ID: clinicAuth.MetricRequestFailure, Name: "clinicauth_request_failure_total", Help: "HTTP requests that failed or returned 5xx."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: clinicAuth.MetricRequestLatency, Name: "clinicauth_request_latency_seconds", Help: "Clinic API request latency."},
}

// HistogramBounds are the bucket upper bounds as exposition labels.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramUpperBounds are HistogramBounds as numbers.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, math.Inf(1)}

// HistogramBoundSuffix are HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size bucket array, zero-filling
// missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
