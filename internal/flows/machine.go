package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/MrEthical07/clinicAuth/api"
	"github.com/MrEthical07/clinicAuth/internal/otp"
	"github.com/MrEthical07/clinicAuth/internal/resolver"
	"github.com/MrEthical07/clinicAuth/session"
)

// Machine is the verification controller for one role and one challenge.
//
// Operations are strictly sequential: while a network call is outstanding
// every operation except Cancel and the read accessors fails with
// Errors.Busy. Network calls run without the lock held; an epoch taken
// before each call is compared afterwards so a response that arrives after
// Cancel or a newer dispatch is dropped with Errors.Stale.
type Machine struct {
	deps MachineDeps

	mu           sync.Mutex
	state        State
	lookupKey    string
	channel      api.Channel
	subjectRef   string
	challenge    *Challenge
	negotiator   *otp.Negotiator
	pending      bool
	epoch        uint64
	lastRejected bool
}

// NewMachine returns a Machine in StateIdle.
func NewMachine(deps MachineDeps) (*Machine, error) {
	normalizeMachineDeps(&deps)
	if deps.Resolve == nil || deps.Login == nil || deps.Verify == nil || deps.SetSession == nil {
		return nil, deps.Errors.NotReady
	}
	if !deps.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", deps.Errors.Validation, deps.Role)
	}
	return &Machine{
		deps:    deps,
		state:   StateIdle,
		channel: deps.DefaultChannel,
	}, nil
}

// Role returns the role this machine authenticates.
func (m *Machine) Role() session.Role {
	return m.deps.Role
}

// SubmitIdentity resolves lookupKey. ch selects the channel for the probe;
// empty uses the current channel.
//
// Found moves to BranchFound, NotFound to BranchNotFound. An error restores
// the previous state and keeps the lookup key so the step can be retried.
//
// The probe is the role's login call, so a found account has already been
// sent a code: the cooldown starts here. Resubmitting from BranchFound fails
// with Errors.Cooldown until the window elapses.
func (m *Machine) SubmitIdentity(ctx context.Context, lookupKey string, ch api.Channel) error {
	m.mu.Lock()
	if err := m.beginLocked(StateIdle, StateBranchNotFound, StateBranchFound); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state == StateBranchFound && m.negotiator != nil && !m.negotiator.CanResend() {
		remaining := m.negotiator.Remaining()
		m.mu.Unlock()
		m.deps.MetricInc(m.deps.Metrics.ResendBlocked)
		return fmt.Errorf("%w: %s remaining", m.deps.Errors.Cooldown, remaining)
	}
	key := strings.TrimSpace(lookupKey)
	if key == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: lookup key is required", m.deps.Errors.Validation)
	}
	if ch == "" {
		ch = m.channel
	}
	if !ch.Valid() {
		m.mu.Unlock()
		return fmt.Errorf("%w: unknown channel %q", m.deps.Errors.Validation, ch)
	}

	prior := m.state
	m.state = StateIdentityEntered
	m.lookupKey = key
	m.channel = ch
	epoch := m.suspendLocked()
	m.mu.Unlock()

	res := m.deps.Resolve(ctx, resolver.Query{LookupKey: key, Role: m.deps.Role}, ch)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.resumeLocked(epoch); err != nil {
		return err
	}

	switch res.Outcome {
	case resolver.OutcomeFound:
		m.state = StateBranchFound
		m.subjectRef = res.Seed.SubjectRef
		m.channel = res.Seed.Channel
		m.resetNegotiatorLocked()
		m.negotiator.MarkDispatched(res.Seed.SubjectRef)
		m.openChallengeLocked(res.Seed.SubjectRef, res.Seed.Channel, false)
		m.deps.MetricInc(m.deps.Metrics.IdentityFound)
		m.deps.EmitAudit(ctx, m.deps.Events.IdentityResolved, true, res.Seed.SubjectRef, "", nil, func() map[string]string {
			return map[string]string{"outcome": res.Outcome.String(), "channel": string(ch)}
		})
		return nil
	case resolver.OutcomeNotFound:
		m.state = StateBranchNotFound
		m.subjectRef = ""
		if m.negotiator != nil {
			m.negotiator.Close()
			m.negotiator = nil
		}
		m.deps.MetricInc(m.deps.Metrics.IdentityNotFound)
		m.deps.EmitAudit(ctx, m.deps.Events.IdentityResolved, true, "", "", nil, func() map[string]string {
			return map[string]string{"outcome": res.Outcome.String(), "status": fmt.Sprint(res.Status)}
		})
		return nil
	default:
		m.state = prior
		m.deps.MetricInc(m.deps.Metrics.IdentityError)
		err := res.Err
		if errors.Is(err, resolver.ErrValidation) {
			err = fmt.Errorf("%w: %w", m.deps.Errors.Validation, err)
		}
		m.deps.EmitAudit(ctx, m.deps.Events.IdentityResolved, false, "", "", err, func() map[string]string {
			return map[string]string{"outcome": res.Outcome.String()}
		})
		return err
	}
}

// BeginRegistration opens the registration branch after a not-found lookup.
func (m *Machine) BeginRegistration() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginLocked(StateBranchNotFound); err != nil {
		return err
	}
	if m.deps.Register == nil {
		return m.deps.Errors.RegistrationUnsupported
	}
	m.state = StateRegistering
	return nil
}

// SubmitRegistration validates and submits reg. The server sends the first
// code on success, so the machine lands directly in CodeDispatched with the
// cooldown running. Validation and server errors keep StateRegistering.
func (m *Machine) SubmitRegistration(ctx context.Context, reg Registration) error {
	m.mu.Lock()
	if err := m.beginLocked(StateRegistering); err != nil {
		m.mu.Unlock()
		return err
	}
	if reg == nil {
		m.mu.Unlock()
		return fmt.Errorf("%w: registration is required", m.deps.Errors.Validation)
	}
	if err := reg.Validate(); err != nil {
		m.mu.Unlock()
		if errors.Is(err, m.deps.Errors.Validation) {
			return err
		}
		return fmt.Errorf("%w: %w", m.deps.Errors.Validation, err)
	}
	ch := reg.Channel()
	if !ch.Valid() {
		m.mu.Unlock()
		return fmt.Errorf("%w: unknown channel %q", m.deps.Errors.Validation, ch)
	}
	epoch := m.suspendLocked()
	m.mu.Unlock()

	ack, err := m.deps.Register(ctx, reg)

	m.mu.Lock()
	defer m.mu.Unlock()
	if staleErr := m.resumeLocked(epoch); staleErr != nil {
		return staleErr
	}
	if err != nil {
		m.deps.MetricInc(m.deps.Metrics.RegistrationFailed)
		m.deps.EmitAudit(ctx, m.deps.Events.RegistrationSubmitted, false, "", "", err, nil)
		return err
	}

	m.lookupKey = strings.TrimSpace(reg.LookupKey())
	m.subjectRef = ack.SubjectRef
	m.channel = ch
	m.resetNegotiatorLocked()
	m.state = StateChannelChosen
	m.negotiator.MarkDispatched(ack.SubjectRef)
	m.openChallengeLocked(ack.SubjectRef, ch, true)
	m.state = StateCodeDispatched

	m.deps.MetricInc(m.deps.Metrics.RegistrationSubmitted)
	m.deps.MetricInc(m.deps.Metrics.CodeDispatched)
	challengeID := m.challenge.ID
	m.deps.EmitAudit(ctx, m.deps.Events.RegistrationSubmitted, true, ack.SubjectRef, challengeID, nil, func() map[string]string {
		return map[string]string{"channel": string(ch)}
	})
	return nil
}

// ChooseChannel selects the delivery channel. From CodeDispatched the state
// is kept and the choice applies to the next resend.
func (m *Machine) ChooseChannel(ch api.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.beginLocked(StateBranchFound, StateChannelChosen, StateCodeDispatched); err != nil {
		return err
	}
	if err := m.negotiator.SelectChannel(ch); err != nil {
		return fmt.Errorf("%w: %w", m.deps.Errors.Validation, err)
	}
	m.channel = ch
	if m.state != StateCodeDispatched {
		m.state = StateChannelChosen
	}
	return nil
}

// Dispatch asks the server to send a code on the chosen channel. During the
// cooldown it fails with Errors.Cooldown without any network call, except
// that within the window the code sent by the identity probe is accepted
// as the dispatch when the chosen channel matches it. A successful dispatch
// replaces the challenge; a failed one keeps the state and any earlier
// challenge.
func (m *Machine) Dispatch(ctx context.Context) error {
	m.mu.Lock()
	if err := m.beginLocked(StateChannelChosen, StateCodeDispatched); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.state == StateChannelChosen && m.challenge != nil && m.challenge.Channel == m.channel && !m.negotiator.CanResend() {
		defer m.mu.Unlock()
		m.state = StateCodeDispatched
		m.lastRejected = false
		m.deps.MetricInc(m.deps.Metrics.CodeDispatched)
		challengeID, ref := m.challenge.ID, m.challenge.SubjectRef
		ch := m.channel
		m.deps.EmitAudit(ctx, m.deps.Events.CodeDispatched, true, ref, challengeID, nil, func() map[string]string {
			return map[string]string{"channel": string(ch), "source": "identity_lookup"}
		})
		return nil
	}
	if !m.negotiator.CanResend() {
		remaining := m.negotiator.Remaining()
		m.mu.Unlock()
		m.deps.MetricInc(m.deps.Metrics.ResendBlocked)
		return fmt.Errorf("%w: %s remaining", m.deps.Errors.Cooldown, remaining)
	}
	role, key, ch, ref := m.deps.Role, m.lookupKey, m.channel, m.subjectRef
	negotiator := m.negotiator
	epoch := m.suspendLocked()
	m.mu.Unlock()

	var ack api.PendingVerification
	err := negotiator.Dispatch(ctx, ref, func(ctx context.Context, ch api.Channel) error {
		var sendErr error
		ack, sendErr = m.deps.Login(ctx, role, key, ch)
		return sendErr
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	if staleErr := m.resumeLocked(epoch); staleErr != nil {
		return staleErr
	}
	switch {
	case errors.Is(err, otp.ErrCooldown), errors.Is(err, otp.ErrInFlight):
		m.deps.MetricInc(m.deps.Metrics.ResendBlocked)
		return fmt.Errorf("%w: %w", m.deps.Errors.Cooldown, err)
	case errors.Is(err, otp.ErrClosed):
		return m.deps.Errors.Stale
	case err != nil:
		m.deps.MetricInc(m.deps.Metrics.CodeDispatchFailed)
		m.deps.EmitAudit(ctx, m.deps.Events.CodeDispatched, false, m.subjectRef, "", err, func() map[string]string {
			return map[string]string{"channel": string(ch)}
		})
		return err
	}

	if ack.SubjectRef != "" {
		m.subjectRef = ack.SubjectRef
	}
	m.openChallengeLocked(m.subjectRef, ch, false)
	m.state = StateCodeDispatched
	m.lastRejected = false

	m.deps.MetricInc(m.deps.Metrics.CodeDispatched)
	challengeID := m.challenge.ID
	m.deps.EmitAudit(ctx, m.deps.Events.CodeDispatched, true, m.subjectRef, challengeID, nil, func() map[string]string {
		return map[string]string{"channel": string(ch)}
	})
	return nil
}

// SubmitCode verifies code against the current challenge.
//
// Success writes the session exactly once and ends in Authenticated. A
// rejected code returns to CodeDispatched with the code cleared and the
// cooldown untouched. Any other failure returns to CodeDispatched with the
// code kept.
func (m *Machine) SubmitCode(ctx context.Context, code string) error {
	m.mu.Lock()
	if err := m.beginLocked(StateCodeDispatched); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.challenge == nil || m.challenge.DispatchedAt.IsZero() {
		m.mu.Unlock()
		return fmt.Errorf("%w: no code has been dispatched", m.deps.Errors.InvalidTransition)
	}
	code = strings.TrimSpace(code)
	if !validCode(code, m.deps.CodeDigits) {
		m.mu.Unlock()
		return fmt.Errorf("%w: code must be %d digits", m.deps.Errors.Validation, m.deps.CodeDigits)
	}

	m.challenge.Code = code
	m.state = StateVerifying
	ref, ch, challengeID := m.challenge.SubjectRef, m.challenge.Channel, m.challenge.ID
	epoch := m.suspendLocked()
	m.mu.Unlock()

	profile, err := m.deps.Verify(ctx, m.deps.Role, ref, code, ch)

	m.mu.Lock()
	if staleErr := m.resumeLocked(epoch); staleErr != nil {
		m.mu.Unlock()
		return staleErr
	}

	if err != nil {
		m.state = StateCodeDispatched
		if m.deps.IsRejected(err) {
			m.challenge.Code = ""
			m.lastRejected = true
			m.mu.Unlock()
			m.deps.MetricInc(m.deps.Metrics.VerifyRejected)
			m.deps.EmitAudit(ctx, m.deps.Events.CodeRejected, false, ref, challengeID, err, nil)
			return fmt.Errorf("%w: %w", m.deps.Errors.CodeRejected, err)
		}
		m.mu.Unlock()
		m.deps.MetricInc(m.deps.Metrics.VerifyError)
		m.deps.EmitAudit(ctx, m.deps.Events.CodeVerified, false, ref, challengeID, err, nil)
		return err
	}

	sess := sessionFromProfile(m.deps.Role, ref, profile)
	m.state = StateAuthenticated
	m.challenge = nil
	m.lastRejected = false
	m.negotiator.Close()
	m.mu.Unlock()

	m.deps.SetSession(sess)
	m.deps.MetricInc(m.deps.Metrics.VerifySuccess)
	m.deps.MetricInc(m.deps.Metrics.SessionCreated)
	m.deps.EmitAudit(ctx, m.deps.Events.CodeVerified, true, sess.SubjectID, challengeID, nil, func() map[string]string {
		return map[string]string{"channel": string(ch)}
	})
	return nil
}

// Cancel abandons the flow from any non-terminal state. The challenge is
// discarded, the cooldown torn down, and any outstanding response will be
// dropped. Nothing is sent to the server.
func (m *Machine) Cancel(ctx context.Context) error {
	m.mu.Lock()
	if m.state.Terminal() {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot cancel from %s", m.deps.Errors.InvalidTransition, state)
	}
	from := m.state
	m.epoch++
	m.state = StateCancelled
	challengeID := ""
	if m.challenge != nil {
		challengeID = m.challenge.ID
	}
	m.challenge = nil
	if m.negotiator != nil {
		m.negotiator.Close()
	}
	m.mu.Unlock()

	m.deps.MetricInc(m.deps.Metrics.FlowCancelled)
	m.deps.EmitAudit(ctx, m.deps.Events.FlowCancelled, true, "", challengeID, nil, func() map[string]string {
		return map[string]string{"from": from.String()}
	})
	return nil
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending reports whether a network call is outstanding.
func (m *Machine) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

// CanResend reports whether Dispatch would reach the network now.
func (m *Machine) CanResend() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.pending && m.negotiator != nil && m.negotiator.CanResend()
}

// Snapshot returns a copy of the observable state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		State:        m.state,
		LookupKey:    m.lookupKey,
		Channel:      m.channel,
		Pending:      m.pending,
		LastRejected: m.lastRejected,
	}
	if m.challenge != nil {
		c := *m.challenge
		snap.Challenge = &c
	}
	if m.negotiator != nil && !m.state.Terminal() {
		snap.CanResend = !m.pending && m.negotiator.CanResend()
		snap.Remaining = m.negotiator.Remaining()
	}
	return snap
}

// beginLocked checks that no call is outstanding and that the machine is in
// one of allowed.
func (m *Machine) beginLocked(allowed ...State) error {
	if m.pending {
		return m.deps.Errors.Busy
	}
	for _, s := range allowed {
		if m.state == s {
			return nil
		}
	}
	return fmt.Errorf("%w: not allowed from %s", m.deps.Errors.InvalidTransition, m.state)
}

func (m *Machine) suspendLocked() uint64 {
	m.pending = true
	return m.epoch
}

func (m *Machine) resumeLocked(epoch uint64) error {
	m.pending = false
	if m.epoch != epoch || m.state == StateCancelled {
		m.deps.MetricInc(m.deps.Metrics.StaleResponse)
		return m.deps.Errors.Stale
	}
	return nil
}

func (m *Machine) resetNegotiatorLocked() {
	if m.negotiator != nil {
		m.negotiator.Close()
	}
	m.negotiator = m.deps.NewNegotiator()
	_ = m.negotiator.SelectChannel(m.channel)
	m.challenge = nil
	m.lastRejected = false
}

// openChallengeLocked replaces the challenge; a new dispatch invalidates the
// previous one.
func (m *Machine) openChallengeLocked(subjectRef string, ch api.Channel, fromRegistration bool) {
	m.epoch++
	dispatchedAt, _ := m.negotiator.DispatchedAt()
	m.challenge = &Challenge{
		ID:               m.deps.NewID(),
		SubjectRef:       subjectRef,
		Channel:          ch,
		DispatchedAt:     dispatchedAt,
		FromRegistration: fromRegistration,
	}
}

func validCode(code string, digits int) bool {
	if len(code) != digits {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func sessionFromProfile(role session.Role, ref string, p api.VerifiedProfile) *session.Session {
	subject := p.ID
	if subject == "" {
		subject = ref
	}
	contact := p.Email
	if contact == "" {
		contact = p.Phone
	}
	return &session.Session{
		Role:         role,
		SubjectID:    subject,
		DisplayName:  p.DisplayName,
		Contact:      contact,
		AccessToken:  p.AccessToken,
		IssuedFields: p.Fields,
	}
}
