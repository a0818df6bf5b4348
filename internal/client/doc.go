// ABOUTME: Package doc for the client package
// ABOUTME: Documents the REST client used by terminal chat sessions

// Package client provides the HTTP side of a chat session: it fetches
// the caller's identity from the identity provider and pulls ordered
// conversation snapshots from the gateway's history endpoint.
//
// Live message delivery happens over the WebSocket transport managed by
// the session package; this package only covers the request/response
// surface.
package client
