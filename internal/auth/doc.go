// Package auth verifies bearer tokens issued by the external Identity
// Provider and propagates the authenticated caller's user id through request
// contexts.
//
// The gateway never issues production tokens itself; it shares an HS256
// secret with the Identity Provider and trusts the token's "sub" claim as
// the caller's user id. Authentication and account management live entirely
// in the provider.
package auth
