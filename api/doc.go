// Package api is the typed REST client for the clinic authentication
// endpoints.
//
// Every call goes through the caller-supplied *http.Client, whose transport
// is expected to be the clinicAuth auth transport. This package never sets
// the Authorization header itself and never reacts to 401; it only reports
// non-2xx statuses as [*Error].
//
// # What this package must NOT do
//
//   - Touch the session store.
//   - Retry requests.
package api
