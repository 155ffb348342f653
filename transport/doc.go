// Package transport is the HTTP boundary of the clinic client.
//
// [Transport] is an http.RoundTripper that attaches the current session's
// bearer token to every outgoing request and clears the session when any
// response comes back 401.
//
// # Architecture boundaries
//
// The Authorization header is set here and nowhere else. The 401 logout rule
// lives here and nowhere else. Screens and flows only see the response.
//
// # What this package must NOT do
//
//   - Retry a request, including after a 401.
//   - Rewrite or wrap network errors.
//   - Mutate the caller's *http.Request.
package transport
