package clinicAuth

import (
	"io"
	"log/slog"

	"github.com/MrEthical07/clinicAuth/api"
	internalaudit "github.com/MrEthical07/clinicAuth/internal/audit"
	"github.com/MrEthical07/clinicAuth/internal/flows"
	internalmetrics "github.com/MrEthical07/clinicAuth/internal/metrics"
	"github.com/MrEthical07/clinicAuth/session"
)

// Role is the clinic area an identity belongs to.
type Role = session.Role

const (
	RolePatient  = session.RolePatient
	RoleProvider = session.RoleProvider
	RoleAdmin    = session.RoleAdmin
)

// Session is the authenticated identity held by a [Client].
type Session = session.Session

// SessionPatch is a shallow partial update applied by [Client.UpdateProfile].
type SessionPatch = session.Patch

// Persister is the durable storage behind the session store. See the session
// package for file, redis, sqlite and in-memory implementations.
type Persister = session.Persister

// Channel is an OTP delivery channel.
type Channel = api.Channel

const (
	ChannelSMS   = api.ChannelSMS
	ChannelEmail = api.ChannelEmail
)

// Clinic is an entry of the clinic directory used by registration step 1.
type Clinic = api.Clinic

// VerificationState is a state of a [Verification].
type VerificationState = flows.State

const (
	StateIdle            = flows.StateIdle
	StateIdentityEntered = flows.StateIdentityEntered
	StateBranchFound     = flows.StateBranchFound
	StateBranchNotFound  = flows.StateBranchNotFound
	StateRegistering     = flows.StateRegistering
	StateChannelChosen   = flows.StateChannelChosen
	StateCodeDispatched  = flows.StateCodeDispatched
	StateVerifying       = flows.StateVerifying
	StateAuthenticated   = flows.StateAuthenticated
	StateCancelled       = flows.StateCancelled
)

// Challenge is the in-flight OTP exchange of a [Verification].
type Challenge = flows.Challenge

// VerificationSnapshot is a consistent read of a [Verification].
type VerificationSnapshot = flows.Snapshot

// AuditEvent is a structured audit record emitted by the client.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the client's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink discards all audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink delivers audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes audit events as JSON lines.
type JSONWriterSink = internalaudit.JSONWriterSink

// LogSink writes audit events through a slog.Logger.
type LogSink = internalaudit.LogSink

// NewChannelSink creates a [ChannelSink] with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] writing to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewLogSink creates a [LogSink]. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	return internalaudit.NewLogSink(logger)
}

// MetricID identifies a counter or histogram.
type MetricID = internalmetrics.MetricID

const (
	MetricIdentityFound         = internalmetrics.MetricIdentityFound
	MetricIdentityNotFound      = internalmetrics.MetricIdentityNotFound
	MetricIdentityError         = internalmetrics.MetricIdentityError
	MetricRegistrationSubmitted = internalmetrics.MetricRegistrationSubmitted
	MetricRegistrationFailed    = internalmetrics.MetricRegistrationFailed
	MetricCodeDispatched        = internalmetrics.MetricCodeDispatched
	MetricCodeDispatchFailed    = internalmetrics.MetricCodeDispatchFailed
	MetricResendBlocked         = internalmetrics.MetricResendBlocked
	MetricVerifySuccess         = internalmetrics.MetricVerifySuccess
	MetricVerifyRejected        = internalmetrics.MetricVerifyRejected
	MetricVerifyError           = internalmetrics.MetricVerifyError
	MetricSessionCreated        = internalmetrics.MetricSessionCreated
	MetricSessionRestored       = internalmetrics.MetricSessionRestored
	MetricSessionInvalidated    = internalmetrics.MetricSessionInvalidated
	MetricLogout                = internalmetrics.MetricLogout
	MetricFlowCancelled         = internalmetrics.MetricFlowCancelled
	MetricStaleResponse         = internalmetrics.MetricStaleResponse
	MetricRequestTotal          = internalmetrics.MetricRequestTotal
	MetricRequestFailure        = internalmetrics.MetricRequestFailure
	MetricRequestLatency        = internalmetrics.MetricRequestLatency

	metricIDCount = internalmetrics.MetricIDCount
)

// Metrics holds atomic counters and the optional request latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance. When Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:                 cfg.Enabled,
		EnableLatencyHistograms: cfg.EnableLatencyHistograms,
	})
}
