// Package resolver decides from a single lookup key whether an identity
// should continue to code verification or to registration.
//
// There is no dedicated existence endpoint: the role's login call is the
// probe. A success means the account exists and the server has already
// sent a code. Configured access-denied statuses mean the account does not
// exist. Everything else is an error the caller may retry.
package resolver
