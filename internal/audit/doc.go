// Package audit implements async event dispatching for authentication flow
// milestones.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, slog, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full semantics.
//   - [Event]: structured audit record with timestamp, type, role, subject, challenge, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that belongs to the Client and the verification machine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import clinicAuth or any sibling internal package.
//   - Record OTP codes or access tokens.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
