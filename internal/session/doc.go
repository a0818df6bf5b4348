// ABOUTME: Package doc for the session package
// ABOUTME: Documents the client-side session controller and its guarantees

// Package session implements the client side of a live conversation: a
// controller that loads the authenticated identity, pulls the history
// snapshot, joins the conversation's room over WebSocket, and merges the
// live stream into a single ordered view.
//
// The controller guarantees the view never shows a message twice: every
// message id entering the view passes through a seen-id cache, covering
// the overlap between the history snapshot and the live stream as well as
// redeliveries after a reconnect. Optimistic local sends appear
// immediately as pending entries and are confirmed when the gateway
// echoes the broadcast carrying the same correlation id.
//
// On a dropped connection the controller redials a bounded number of
// times, re-fetching the history snapshot after each successful redial so
// messages persisted while it was offline are recovered.
package session
