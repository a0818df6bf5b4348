// Package gateway maintains live WebSocket channels to connected clients,
// groups channels into per-conversation rooms, and broadcasts newly
// persisted messages to every channel in a room.
//
// # Channels and rooms
//
// A Channel is one client's bidirectional connection, with its identity
// fixed by the bearer token presented at open. The Hub groups channels into
// rooms keyed by conversation id; rooms are independent of each other and a
// channel may belong to several.
//
// # Ordering
//
// Within a room, persist-then-broadcast sequences run under a per-room
// dispatch lock, so every member observes broadcasts in the order messages
// were durably recorded. No ordering holds across rooms. Storage writes for
// one room never block dispatch for another.
//
// # Delivery
//
// Delivery is non-blocking: each channel has a buffered outbound queue, a
// slow consumer drops frames, and a closed channel never receives one.
// Disconnected channels get no buffered replay; a reconnecting client
// re-fetches history to catch up.
package gateway
