// Package jwt inspects and issues clinic access tokens.
//
// The client never holds a verification key: [Inspect] reads claims without
// checking the signature and is used only for local decisions such as
// discarding an expired persisted session. [Signer] issues and verifies
// HS256 tokens for the in-process fake clinic API.
//
// # Architecture boundaries
//
// This package depends only on github.com/golang-jwt/jwt/v5. It must not
// import the session store or the transport.
//
// # What this package must NOT do
//
//   - Treat an inspected token as authenticated.
//   - Refresh or mint tokens on behalf of the client.
package jwt
