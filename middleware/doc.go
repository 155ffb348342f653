// Package middleware provides the HTTP guard used by servers that accept
// clinicAuth access tokens.
//
// [Guard] reads the Authorization header, verifies the bearer token and
// stores the claims in the request context for [ClaimsFromContext]. An
// optional role list narrows which roles may pass.
//
// # What this package must NOT do
//
//   - Issue tokens (the Verifier owns signing keys).
//   - Make decisions beyond pass, 401 or 403.
package middleware
