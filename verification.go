package clinicAuth

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/clinicAuth/internal/flows"
	"github.com/MrEthical07/clinicAuth/internal/otp"
)

// Registration is a completed sign-up form accepted by
// [Verification.SubmitRegistration]. *RegistrationDraft serves patients and
// *AdminRegistrationDraft serves admins.
type Registration = flows.Registration

// Verification drives one OTP login or registration for a single role, from
// identity lookup to an authenticated session.
//
// Operations are strictly sequential. While a call is waiting for the server,
// every other operation except Cancel and the read accessors fails with
// [ErrBusy]. A response that arrives after Cancel or after a newer dispatch is
// discarded and the late call returns [ErrStale].
//
// A Verification holds exactly one challenge; start a new one with
// [Client.Begin] after it reaches a terminal state.
type Verification struct {
	machine *flows.Machine
}

// Begin starts a verification for role.
func (c *Client) Begin(role Role) (*Verification, error) {
	if c == nil || c.closed.Load() {
		return nil, ErrClientNotReady
	}

	m, err := flows.NewMachine(c.machineDeps(role))
	if err != nil {
		return nil, err
	}
	return &Verification{machine: m}, nil
}

func (c *Client) machineDeps(role Role) flows.MachineDeps {
	cfg := c.cfg.OTP
	return flows.MachineDeps{
		Role:           role,
		DefaultChannel: cfg.DefaultChannel,
		CodeDigits:     cfg.CodeDigits,

		Resolve:    c.resolver.Resolve,
		Login:      c.gateway.login,
		Register:   c.gateway.registerFor(role),
		Verify:     c.gateway.verify,
		SetSession: c.store.Set,
		IsRejected: c.gateway.isRejected,

		NewNegotiator: func() *otp.Negotiator {
			return otp.New(otp.Config{Window: cfg.ResendWindow, Tick: cfg.Tick, Now: c.now})
		},
		NewID: uuid.NewString,
		Now:   c.now,

		MetricInc: func(id int) { c.metricInc(MetricID(id)) },
		EmitAudit: func(ctx context.Context, event string, success bool, subjectID, challengeID string, err error, metadata func() map[string]string) {
			c.emitAudit(ctx, event, success, role, subjectID, challengeID, err, metadata)
		},

		Metrics: flows.MachineMetrics{
			IdentityFound:         int(MetricIdentityFound),
			IdentityNotFound:      int(MetricIdentityNotFound),
			IdentityError:         int(MetricIdentityError),
			RegistrationSubmitted: int(MetricRegistrationSubmitted),
			RegistrationFailed:    int(MetricRegistrationFailed),
			CodeDispatched:        int(MetricCodeDispatched),
			CodeDispatchFailed:    int(MetricCodeDispatchFailed),
			ResendBlocked:         int(MetricResendBlocked),
			VerifySuccess:         int(MetricVerifySuccess),
			VerifyRejected:        int(MetricVerifyRejected),
			VerifyError:           int(MetricVerifyError),
			SessionCreated:        int(MetricSessionCreated),
			FlowCancelled:         int(MetricFlowCancelled),
			StaleResponse:         int(MetricStaleResponse),
		},
		Events: flows.MachineEvents{
			IdentityResolved:      auditEventIdentityResolved,
			RegistrationSubmitted: auditEventRegistrationSubmitted,
			CodeDispatched:        auditEventCodeDispatched,
			CodeVerified:          auditEventCodeVerified,
			CodeRejected:          auditEventCodeRejected,
			FlowCancelled:         auditEventFlowCancelled,
		},
		Errors: flows.MachineErrors{
			NotReady:                ErrClientNotReady,
			Validation:              ErrValidation,
			InvalidTransition:       ErrInvalidTransition,
			Busy:                    ErrBusy,
			Stale:                   ErrStale,
			Cooldown:                ErrCooldown,
			CodeRejected:            ErrCodeRejected,
			RegistrationUnsupported: ErrRegistrationUnsupported,
		},
	}
}

// Role returns the role being verified.
func (v *Verification) Role() Role {
	return v.machine.Role()
}

// SubmitIdentity looks up a health-card number (patients) or username
// (providers, admins) by asking the server to send a code on ch. An empty ch
// uses the configured default channel.
//
// A found account moves to StateBranchFound with the code already sent, so
// the resend cooldown starts here and resubmitting returns [ErrCooldown]
// until it elapses. A missing account moves to StateBranchNotFound. Any
// other failure is returned, the state is unchanged and the step may be
// retried.
func (v *Verification) SubmitIdentity(ctx context.Context, lookupKey string, ch Channel) error {
	return v.machine.SubmitIdentity(ctx, lookupKey, ch)
}

// BeginRegistration opens the registration branch after a lookup that found
// no account. Providers cannot self-register and get
// [ErrRegistrationUnsupported].
func (v *Verification) BeginRegistration() error {
	return v.machine.BeginRegistration()
}

// SubmitRegistration validates and submits a completed draft. The server sends
// the first code on success, so the verification lands in
// StateCodeDispatched with the resend cooldown running.
func (v *Verification) SubmitRegistration(ctx context.Context, reg Registration) error {
	return v.machine.SubmitRegistration(ctx, reg)
}

// ChooseChannel selects the delivery channel for the next dispatch.
func (v *Verification) ChooseChannel(ch Channel) error {
	return v.machine.ChooseChannel(ch)
}

// Dispatch requests a code on the chosen channel. It is also the resend
// operation: during the cooldown it returns [ErrCooldown] without contacting
// the server. Right after a found identity, dispatching on the channel the
// lookup used accepts the code already sent.
func (v *Verification) Dispatch(ctx context.Context) error {
	return v.machine.Dispatch(ctx)
}

// SubmitCode verifies the code the user received. On success the session is
// written once and the verification ends in StateAuthenticated. A rejected
// code returns [ErrCodeRejected] and clears the entered code; other failures
// keep it for a retry.
func (v *Verification) SubmitCode(ctx context.Context, code string) error {
	return v.machine.SubmitCode(ctx, code)
}

// Cancel abandons the verification. Nothing is sent to the server.
func (v *Verification) Cancel(ctx context.Context) error {
	return v.machine.Cancel(ctx)
}

// State returns the current verification state.
func (v *Verification) State() VerificationState {
	return v.machine.State()
}

// Pending reports whether a call is waiting for the server. Callers should
// disable the corresponding action while it is true.
func (v *Verification) Pending() bool {
	return v.machine.Pending()
}

// CanResend reports whether Dispatch would reach the server now.
func (v *Verification) CanResend() bool {
	return v.machine.CanResend()
}

// Remaining returns the time left before a resend is allowed, rounded up to
// the configured tick.
func (v *Verification) Remaining() time.Duration {
	return v.machine.Snapshot().Remaining
}

// Snapshot returns a copy of the observable verification state.
func (v *Verification) Snapshot() VerificationSnapshot {
	return v.machine.Snapshot()
}

var _ Registration = (*RegistrationDraft)(nil)
var _ Registration = (*AdminRegistrationDraft)(nil)
