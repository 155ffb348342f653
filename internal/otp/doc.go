// Package otp tracks the delivery channel and resend cooldown of one
// verification challenge.
//
// The cooldown is a timestamp plus a window evaluated on read; the package
// starts no goroutines and no timers, so dropping a Negotiator leaks nothing.
//
// # What this package must NOT do
//
//   - Call the network itself. The send function is supplied by the caller.
//   - Enforce attempt limits; the server owns those.
package otp
