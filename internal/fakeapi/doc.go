// Package fakeapi is an in-process stand-in for the clinic REST service.
//
// It implements the authentication endpoints and the clinic directory with
// deterministic one-time codes so the client library, its tests, and the
// clinicauth CLI (--mock) can run without a real backend. Codes are never
// delivered anywhere; they are recorded and exposed through [Server.Sent].
package fakeapi
