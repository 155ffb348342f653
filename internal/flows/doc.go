// Package flows contains the per-role verification state machine.
//
// A [Machine] sequences identity lookup, optional registration, channel
// choice, code dispatch, and code verification for one role. It accepts a
// typed dependency struct and performs all I/O through it, so every
// transition is unit-testable with stub dependencies.
//
// # Architecture boundaries
//
// The machine coordinates the identity resolver, the OTP negotiator, the
// REST gateway, the session writer, audit, and metrics. It owns only its
// own state and its negotiator; the session store stays with the client.
//
// # What this package must NOT do
//
//   - Import clinicAuth (to avoid import cycles).
//   - Write the session anywhere except through MachineDeps.SetSession.
//   - Apply a network result after Cancel or after a newer dispatch.
package flows
