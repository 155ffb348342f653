// Package clinicAuth is the client-side authentication core for a clinic
// application serving patients, providers and clinic admins.
//
// A [Client] owns the persisted session, the authenticated HTTP client and the
// one-time-code verification flows. Callers obtain one through [Builder.Build]
// and start a login or sign-up with [Client.Begin]; the returned
// [Verification] drives identity lookup, optional registration, code dispatch
// and code entry until a session is established.
//
// Client methods are safe to call from multiple goroutines. A Verification
// serializes its own transitions and rejects overlapping submissions with
// [ErrBusy].
//
// # Architecture boundaries
//
// clinicAuth is the public surface. It exposes [Client], [Builder], [Config],
// registration drafts and value types (Session, VerificationSnapshot,
// MetricsSnapshot). Flow orchestration, identity resolution, resend cooldowns,
// audit dispatch and counters live under internal/ and are never exported.
// Wire calls live in the api package; request decoration and 401 handling in
// transport; persistence in session.
//
// # What this package must NOT do
//
//   - Log, audit or persist one-time codes.
//   - Perform I/O before Build (Builder methods only record options).
//   - Import any sub-package that re-imports clinicAuth (no import cycles).
package clinicAuth
