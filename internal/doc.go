// Package internal groups helpers that are private to clinicAuth.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - fakeapi: in-process clinic backend used by tests and the CLI mock mode
//   - flows: the verification state machine behind every login and sign-up
//   - metrics: lock-free counters and request latency histograms
//   - otp: resend window negotiation
//   - resolver: identity lookup with not-found classification
//
// # What this package must NOT do
//
//   - Export types that appear in the public clinicAuth API.
//   - Be imported by any package outside the clinicAuth module.
package internal
