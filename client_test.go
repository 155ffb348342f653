package clinicAuth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/clinicAuth/internal/fakeapi"
	"github.com/MrEthical07/clinicAuth/jwt"
	"github.com/MrEthical07/clinicAuth/session"
)

var testSecret = []byte("clinic-auth-test-secret-0123456789")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	events []AuditEvent
}

func (s *recordingSink) Emit(_ context.Context, ev AuditEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.EventType)
	}
	return out
}

type testEnv struct {
	client    *Client
	api       *fakeapi.Server
	persister *session.MemoryPersister
	audit     *recordingSink
	clock     *testClock
	signer    *jwt.Signer
}

func newTestSigner(t *testing.T, now func() time.Time) *jwt.Signer {
	t.Helper()
	signer, err := jwt.NewSigner(jwt.Config{Secret: testSecret, Issuer: "clinic-test", TTL: time.Hour, Now: now})
	if err != nil {
		t.Fatalf("NewSigner failed: %v", err)
	}
	return signer
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()

	env := &testEnv{
		persister: session.NewMemoryPersister(),
		audit:     &recordingSink{},
		clock:     newTestClock(),
	}
	env.signer = newTestSigner(t, nil)

	srv, err := fakeapi.New(fakeapi.Config{Signer: env.signer})
	if err != nil {
		t.Fatalf("fakeapi.New failed: %v", err)
	}
	env.api = srv
	hs := httptest.NewServer(srv)
	t.Cleanup(hs.Close)

	cfg := DefaultConfig()
	cfg.API.BaseURL = hs.URL
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	cfg.Audit.Enabled = true
	cfg.Audit.DropIfFull = false
	// Tokens are issued against the wall clock while flows run on the test clock.
	cfg.Session.DiscardExpired = false
	for _, m := range mutate {
		m(&cfg)
	}

	env.client = env.build(t, cfg)
	return env
}

func (e *testEnv) build(t *testing.T, cfg Config) *Client {
	t.Helper()
	client, err := New().
		WithConfig(cfg).
		WithPersister(e.persister).
		WithAuditSink(e.audit).
		WithClock(e.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func (e *testEnv) loginPatient(t *testing.T, healthCard string) {
	t.Helper()
	ctx := context.Background()

	v, err := e.client.Begin(RolePatient)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := v.SubmitIdentity(ctx, healthCard, ChannelSMS); err != nil {
		t.Fatalf("SubmitIdentity failed: %v", err)
	}
	if err := v.ChooseChannel(ChannelSMS); err != nil {
		t.Fatalf("ChooseChannel failed: %v", err)
	}
	if err := v.Dispatch(ctx); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := v.SubmitCode(ctx, "123456"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
}

func TestPatientLoginEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddPatient(fakeapi.Patient{
		ID: "p-7", HealthCardNumber: "HC12345", ClinicID: "c-1",
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org", Phone: "+15551234567",
	})
	ctx := context.Background()

	v, err := env.client.Begin(RolePatient)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := v.SubmitIdentity(ctx, "  HC12345 ", ChannelEmail); err != nil {
		t.Fatalf("SubmitIdentity failed: %v", err)
	}
	if v.State() != StateBranchFound {
		t.Fatalf("expected branch_found, got %s", v.State())
	}
	if err := v.ChooseChannel(ChannelEmail); err != nil {
		t.Fatalf("ChooseChannel failed: %v", err)
	}
	if err := v.Dispatch(ctx); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if v.State() != StateCodeDispatched {
		t.Fatalf("expected code_dispatched, got %s", v.State())
	}
	if env.client.Authenticated() {
		t.Fatal("session must not exist before the code is verified")
	}
	if err := v.SubmitCode(ctx, "123456"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	if v.State() != StateAuthenticated {
		t.Fatalf("expected authenticated, got %s", v.State())
	}

	sess, ok := env.client.Session()
	if !ok {
		t.Fatal("expected session after verification")
	}
	if sess.Role != RolePatient || sess.SubjectID != "p-7" {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.DisplayName != "Ada Lovelace" || sess.Contact != "ada@example.org" {
		t.Fatalf("unexpected profile fields: %+v", sess)
	}
	if _, leaked := sess.IssuedFields["accessToken"]; leaked {
		t.Fatal("access token must not be duplicated into issued fields")
	}
	if env.client.Destination() != DestinationPatientHome {
		t.Fatalf("expected patient home, got %q", env.client.Destination())
	}
	if _, ok := env.client.TokenExpiry(); !ok {
		t.Fatal("expected JWT expiry to be readable")
	}

	sent := env.api.Sent()
	if last := sent[len(sent)-1]; last.Channel != "email" {
		t.Fatalf("expected the dispatch on email, got %q", last.Channel)
	}

	if err := env.client.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	data, err := env.persister.Load(ctx)
	if err != nil {
		t.Fatalf("persisted record missing: %v", err)
	}
	persisted, err := session.Decode(data)
	if err != nil || persisted == nil || persisted.SubjectID != "p-7" {
		t.Fatalf("unexpected persisted record %q: %v", data, err)
	}

	resp, err := env.client.HTTPClient().Get(env.client.API().BaseURL() + "/me")
	if err != nil {
		t.Fatalf("GET /me failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected bearer-authorized request to succeed, got %d", resp.StatusCode)
	}

	snap := env.client.MetricsSnapshot()
	if snap.Counters[MetricVerifySuccess] != 1 || snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("unexpected counters: %+v", snap.Counters)
	}
	if snap.Counters[MetricRequestTotal] == 0 {
		t.Fatal("expected requests to be counted")
	}
}

func TestRegistrationBranchEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	v, err := env.client.Begin(RolePatient)
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := v.SubmitIdentity(ctx, "HC00000", ""); err != nil {
		t.Fatalf("SubmitIdentity failed: %v", err)
	}
	if v.State() != StateBranchNotFound {
		t.Fatalf("expected branch_not_found, got %s", v.State())
	}
	if err := v.BeginRegistration(); err != nil {
		t.Fatalf("BeginRegistration failed: %v", err)
	}

	draft := completeDraft(t, "HC00000")
	if err := v.SubmitRegistration(ctx, draft); err != nil {
		t.Fatalf("SubmitRegistration failed: %v", err)
	}
	if v.State() != StateCodeDispatched {
		t.Fatalf("expected code_dispatched, got %s", v.State())
	}
	if env.client.Authenticated() {
		t.Fatal("registration must not create a session")
	}
	if v.CanResend() {
		t.Fatal("registration counts as the first dispatch")
	}
	if ch := v.Snapshot().Challenge; ch == nil || !ch.FromRegistration || ch.Channel != ChannelEmail {
		t.Fatalf("unexpected challenge: %+v", ch)
	}

	if err := v.SubmitCode(ctx, "123456"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	sess, ok := env.client.Session()
	if !ok || sess.Role != RolePatient {
		t.Fatalf("expected patient session, got %+v", sess)
	}
}

func TestWrongCodeIsRejectedAndCleared(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddPatient(fakeapi.Patient{HealthCardNumber: "HC1", FirstName: "A", LastName: "B"})
	ctx := context.Background()

	v, _ := env.client.Begin(RolePatient)
	if err := v.SubmitIdentity(ctx, "HC1", ""); err != nil {
		t.Fatalf("SubmitIdentity failed: %v", err)
	}
	_ = v.ChooseChannel(ChannelSMS)
	if err := v.Dispatch(ctx); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	err := v.SubmitCode(ctx, "000000")
	if !errors.Is(err, ErrCodeRejected) {
		t.Fatalf("expected ErrCodeRejected, got %v", err)
	}
	snap := v.Snapshot()
	if snap.State != StateCodeDispatched || !snap.LastRejected {
		t.Fatalf("unexpected snapshot after rejection: %+v", snap)
	}
	if snap.Challenge == nil || snap.Challenge.Code != "" {
		t.Fatalf("expected rejected code to be cleared, got %+v", snap.Challenge)
	}
	if env.client.Authenticated() {
		t.Fatal("rejected code must not create a session")
	}

	if err := v.SubmitCode(ctx, "123456"); err != nil {
		t.Fatalf("retry with the right code failed: %v", err)
	}
}

func TestServerFaultKeepsEnteredCode(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddPatient(fakeapi.Patient{ID: "p-1", HealthCardNumber: "HC1"})
	ctx := context.Background()

	v, _ := env.client.Begin(RolePatient)
	_ = v.SubmitIdentity(ctx, "HC1", "")
	_ = v.ChooseChannel(ChannelSMS)
	if err := v.Dispatch(ctx); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	env.api.FailNext("/auth/access_code_verification_patient/p-1", http.StatusServiceUnavailable)
	err := v.SubmitCode(ctx, "123456")
	if err == nil || errors.Is(err, ErrCodeRejected) {
		t.Fatalf("expected a retryable server error, got %v", err)
	}
	snap := v.Snapshot()
	if snap.State != StateCodeDispatched || snap.Challenge == nil || snap.Challenge.Code != "123456" {
		t.Fatalf("expected entered code to be kept, got %+v", snap)
	}
	if err := v.SubmitCode(ctx, snap.Challenge.Code); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestResendCooldown(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddProvider(fakeapi.Staff{ID: "d-1", Username: "drwho", FirstName: "John", LastName: "Smith"})
	ctx := context.Background()

	v, _ := env.client.Begin(RoleProvider)
	if err := v.SubmitIdentity(ctx, "DrWho", ChannelSMS); err != nil {
		t.Fatalf("SubmitIdentity failed: %v", err)
	}
	if err := v.ChooseChannel(ChannelSMS); err != nil {
		t.Fatalf("ChooseChannel failed: %v", err)
	}
	if err := v.Dispatch(ctx); err != nil {
		t.Fatalf("first Dispatch failed: %v", err)
	}
	calls := env.api.Calls("/auth/provider-login")

	if err := v.Dispatch(ctx); !errors.Is(err, ErrCooldown) {
		t.Fatalf("expected ErrCooldown, got %v", err)
	}
	if got := env.api.Calls("/auth/provider-login"); got != calls {
		t.Fatalf("cooldown must not reach the server: %d calls, want %d", got, calls)
	}
	if rem := v.Remaining(); rem != 60*time.Second {
		t.Fatalf("expected 60s remaining, got %s", rem)
	}

	env.clock.Advance(59500 * time.Millisecond)
	if rem := v.Remaining(); rem != time.Second {
		t.Fatalf("expected remaining to round up to 1s, got %s", rem)
	}
	env.clock.Advance(500 * time.Millisecond)
	if !v.CanResend() {
		t.Fatal("expected resend to be allowed after the window")
	}
	if err := v.Dispatch(ctx); err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	if got := env.client.MetricsSnapshot().Counters[MetricResendBlocked]; got != 1 {
		t.Fatalf("expected 1 blocked resend, got %d", got)
	}
}

func TestIdentityLookupCountsAsFirstDispatch(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddPatient(fakeapi.Patient{ID: "p-5", HealthCardNumber: "HC12345"})
	ctx := context.Background()

	v, _ := env.client.Begin(RolePatient)
	if err := v.SubmitIdentity(ctx, "HC12345", ChannelSMS); err != nil {
		t.Fatalf("SubmitIdentity failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if err := v.SubmitIdentity(ctx, "HC12345", ChannelSMS); !errors.Is(err, ErrCooldown) {
			t.Fatalf("expected ErrCooldown on resubmit, got %v", err)
		}
	}
	if err := v.ChooseChannel(ChannelSMS); err != nil {
		t.Fatalf("ChooseChannel failed: %v", err)
	}
	if err := v.Dispatch(ctx); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if got := env.api.Calls("/auth/patient-login"); got != 1 {
		t.Fatalf("expected the lookup to be the only code send, got %d login calls", got)
	}
	if len(env.api.Sent()) != 1 {
		t.Fatalf("expected one code sent, got %d", len(env.api.Sent()))
	}
	if err := v.SubmitCode(ctx, "123456"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
}

func TestUnauthorizedResponseLogsOut(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddPatient(fakeapi.Patient{HealthCardNumber: "HC1"})
	env.loginPatient(t, "HC1")

	var seen []*Session
	var mu sync.Mutex
	unsubscribe := env.client.Subscribe(func(s *Session) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer unsubscribe()

	env.api.FailNext("/me", http.StatusUnauthorized)
	resp, err := env.client.HTTPClient().Get(env.client.API().BaseURL() + "/me")
	if err != nil {
		t.Fatalf("GET /me failed: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected the 401 to reach the caller, got %d", resp.StatusCode)
	}
	if env.client.Authenticated() {
		t.Fatal("expected 401 to clear the session")
	}
	if env.client.Destination() != DestinationNone {
		t.Fatal("expected no destination after logout")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != nil {
		t.Fatalf("expected one nil notification, got %v", seen)
	}
	if got := env.client.MetricsSnapshot().Counters[MetricSessionInvalidated]; got != 1 {
		t.Fatalf("expected 1 invalidation, got %d", got)
	}
}

func TestHydrationRestoresPersistedSession(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.signer.Issue("a-3", "admin")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	data, _ := session.Encode(&Session{Role: RoleAdmin, SubjectID: "a-3", AccessToken: token})

	p := session.NewMemoryPersister()
	_ = p.Save(context.Background(), data)
	env.persister = p

	cfg := env.client.cfg
	cfg.Session.DiscardExpired = true
	env.clock = &testClock{now: time.Now()}
	client := env.build(t, cfg)

	sess, ok := client.Session()
	if !ok || sess.SubjectID != "a-3" {
		t.Fatalf("expected restored admin session, got %+v", sess)
	}
	if client.Destination() != DestinationAdminDashboard {
		t.Fatalf("expected admin dashboard, got %q", client.Destination())
	}
	if got := client.MetricsSnapshot().Counters[MetricSessionRestored]; got != 1 {
		t.Fatalf("expected 1 restored session, got %d", got)
	}
}

func TestHydrationDiscardsExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	past := time.Now().Add(-3 * time.Hour)
	stale := newTestSigner(t, func() time.Time { return past })
	token, _ := stale.Issue("p-1", "patient")
	data, _ := session.Encode(&Session{Role: RolePatient, SubjectID: "p-1", AccessToken: token})

	p := session.NewMemoryPersister()
	_ = p.Save(context.Background(), data)
	env.persister = p

	cfg := env.client.cfg
	cfg.Session.DiscardExpired = true
	env.clock = &testClock{now: time.Now()}
	client := env.build(t, cfg)

	if client.Authenticated() {
		t.Fatal("expired session must not be restored")
	}
}

func TestHydrationIgnoresCorruptRecord(t *testing.T) {
	env := newTestEnv(t)
	p := session.NewMemoryPersister()
	_ = p.Save(context.Background(), []byte("{not json"))
	env.persister = p

	client := env.build(t, env.client.cfg)
	if client.Authenticated() {
		t.Fatal("corrupt record must start logged out")
	}
}

func TestProviderRegistrationUnsupported(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	v, _ := env.client.Begin(RoleProvider)
	if err := v.SubmitIdentity(ctx, "nobody", ""); err != nil {
		t.Fatalf("SubmitIdentity failed: %v", err)
	}
	if v.State() != StateBranchNotFound {
		t.Fatalf("expected branch_not_found, got %s", v.State())
	}
	if err := v.BeginRegistration(); !errors.Is(err, ErrRegistrationUnsupported) {
		t.Fatalf("expected ErrRegistrationUnsupported, got %v", err)
	}
}

func TestAdminRegistrationEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	v, _ := env.client.Begin(RoleAdmin)
	if err := v.SubmitIdentity(ctx, "NewAdmin", ""); err != nil {
		t.Fatalf("SubmitIdentity failed: %v", err)
	}
	if err := v.BeginRegistration(); err != nil {
		t.Fatalf("BeginRegistration failed: %v", err)
	}

	err := v.SubmitRegistration(ctx, &RegistrationDraft{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for an incomplete draft, got %v", err)
	}

	draft := &AdminRegistrationDraft{
		Username: "NewAdmin", FirstName: "Grace", LastName: "Hopper",
		Email: "grace@example.org", Phone: "555-010-0199", OTPChannel: ChannelSMS,
	}
	if err := v.SubmitRegistration(ctx, draft); err != nil {
		t.Fatalf("SubmitRegistration failed: %v", err)
	}
	if err := v.SubmitCode(ctx, "123456"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}
	sess, ok := env.client.Session()
	if !ok || sess.Role != RoleAdmin || sess.DisplayName != "Grace Hopper" {
		t.Fatalf("unexpected admin session: %+v", sess)
	}
}

func TestProviderActingAsPatient(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddProvider(fakeapi.Staff{Username: "drhouse", FirstName: "Greg", LastName: "House", Email: "house@example.org"})
	ctx := context.Background()

	v, _ := env.client.Begin(RoleProvider)
	_ = v.SubmitIdentity(ctx, "drhouse", "")
	_ = v.ChooseChannel(ChannelSMS)
	_ = v.Dispatch(ctx)
	if err := v.SubmitCode(ctx, "123456"); err != nil {
		t.Fatalf("SubmitCode failed: %v", err)
	}

	if got := env.client.Destination(); got != DestinationProviderDashboard {
		t.Fatalf("expected provider dashboard, got %q", got)
	}
	if err := env.client.SetActingAs(RolePatient); err != nil {
		t.Fatalf("SetActingAs failed: %v", err)
	}
	if got := env.client.Destination(); got != DestinationPatientHome {
		t.Fatalf("expected patient home, got %q", got)
	}
	if err := env.client.SetActingAs(RoleAdmin); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	if err := env.client.Logout(ctx); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if env.client.Authenticated() || env.client.Destination() != DestinationNone {
		t.Fatal("expected logged out")
	}
	if got := env.client.MetricsSnapshot().Counters[MetricLogout]; got != 1 {
		t.Fatalf("expected 1 logout, got %d", got)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	name := "Dr. Ada"
	if err := env.client.UpdateProfile(ctx, SessionPatch{DisplayName: &name}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}

	env.api.AddPatient(fakeapi.Patient{HealthCardNumber: "HC9", FirstName: "Ada", LastName: "L"})
	env.loginPatient(t, "HC9")

	if err := env.client.UpdateProfile(ctx, SessionPatch{DisplayName: &name, IssuedFields: map[string]any{"pronouns": "she/her"}}); err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	sess, _ := env.client.Session()
	if sess.DisplayName != name || sess.IssuedFields["pronouns"] != "she/her" {
		t.Fatalf("unexpected session after update: %+v", sess)
	}
	if sess.IssuedFields["firstName"] != "Ada" {
		t.Fatal("update must keep existing issued fields")
	}
}

func TestClinicsAreCached(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddClinic(fakeapi.Clinic{ID: "c-1", Name: "Downtown"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		clinics, err := env.client.Clinics(ctx)
		if err != nil {
			t.Fatalf("Clinics failed: %v", err)
		}
		if len(clinics) != 1 || clinics[0].Name != "Downtown" {
			t.Fatalf("unexpected clinics: %+v", clinics)
		}
	}
	if got := env.api.Calls("/clinics/get-all-clinics"); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}
}

func TestAuditTrailForLogin(t *testing.T) {
	env := newTestEnv(t)
	env.api.AddPatient(fakeapi.Patient{HealthCardNumber: "HC1"})
	env.loginPatient(t, "HC1")

	if err := env.client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	want := []string{auditEventIdentityResolved, auditEventCodeDispatched, auditEventCodeVerified}
	got := env.audit.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	env.audit.mu.Lock()
	defer env.audit.mu.Unlock()
	for _, ev := range env.audit.events {
		if ev.Role != string(RolePatient) {
			t.Fatalf("expected patient role on %q, got %q", ev.EventType, ev.Role)
		}
		for _, v := range ev.Metadata {
			if v == "123456" {
				t.Fatal("OTP code leaked into audit metadata")
			}
		}
	}
}

func TestClosedClientRejectsNewWork(t *testing.T) {
	env := newTestEnv(t)
	if err := env.client.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := env.client.Close(); err != nil {
		t.Fatalf("second Close must be a no-op, got %v", err)
	}
	if _, err := env.client.Begin(RolePatient); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
	if err := env.client.Logout(context.Background()); !errors.Is(err, ErrClientNotReady) {
		t.Fatalf("expected ErrClientNotReady, got %v", err)
	}
}

func completeDraft(t *testing.T, healthCard string) *RegistrationDraft {
	t.Helper()
	d := NewRegistrationDraft(healthCard)
	if err := d.SetIdentity(PatientIdentity{HealthCardNumber: healthCard, ClinicID: "c-1"}); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}
	if err := d.SetDetails(PatientDetails{FirstName: "Mary", LastName: "Seacole", DateOfBirth: "1990-04-12", Sex: "F"}); err != nil {
		t.Fatalf("SetDetails failed: %v", err)
	}
	if err := d.SetContact(PatientContact{Email: "mary@example.org", Phone: "(555) 123-4567", Channel: ChannelEmail}); err != nil {
		t.Fatalf("SetContact failed: %v", err)
	}
	return d
}
