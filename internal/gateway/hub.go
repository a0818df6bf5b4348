// ABOUTME: In-memory room registry for fanning broadcasts out to live channels
// ABOUTME: Rooms are keyed by conversation id and fully independent of each other

package gateway

import (
	"log/slog"
	"sync"
)

// room holds the channels currently subscribed to one conversation.
//
// dispatchMu serializes persist-then-broadcast sequences so every member
// observes broadcasts in the order messages were durably recorded. It is a
// separate lock from mu so membership changes never wait on a storage write.
type room struct {
	dispatchMu sync.Mutex

	mu      sync.Mutex
	members map[string]*Channel // channel id -> channel
}

// Hub groups live channels into rooms and broadcasts persisted messages to
// every channel joined to a room. The hub never persists anything itself.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room // conversation id -> room
	logger *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]*room),
		logger: logger.With("component", "hub"),
	}
}

// getOrCreateRoom returns the room for a conversation, creating it if needed.
func (h *Hub) getOrCreateRoom(conversationID string) *room {
	h.mu.RLock()
	r, ok := h.rooms[conversationID]
	h.mu.RUnlock()
	if ok {
		return r
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok = h.rooms[conversationID]; ok {
		return r
	}
	r = &room{members: make(map[string]*Channel)}
	h.rooms[conversationID] = r
	return r
}

// reap deletes a room if it has no members. Lock order is hub then room.
func (h *Hub) reap(conversationID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[conversationID]
	if !ok {
		return
	}

	r.mu.Lock()
	empty := len(r.members) == 0
	r.mu.Unlock()

	if empty {
		delete(h.rooms, conversationID)
	}
}

// Join subscribes a channel to a conversation's room. Joining a room the
// channel is already in has no further effect.
func (h *Hub) Join(conversationID string, ch *Channel) {
	r := h.getOrCreateRoom(conversationID)

	r.mu.Lock()
	_, already := r.members[ch.ID]
	r.members[ch.ID] = ch
	r.mu.Unlock()

	if !already {
		h.logger.Debug("channel joined room",
			"conversation_id", conversationID,
			"channel_id", ch.ID,
			"user_id", ch.UserID)
	}
}

// Leave unsubscribes a channel from a conversation's room.
func (h *Hub) Leave(conversationID string, ch *Channel) {
	h.mu.RLock()
	r, ok := h.rooms[conversationID]
	h.mu.RUnlock()
	if !ok {
		return
	}

	r.mu.Lock()
	delete(r.members, ch.ID)
	r.mu.Unlock()

	h.reap(conversationID)

	h.logger.Debug("channel left room",
		"conversation_id", conversationID,
		"channel_id", ch.ID)
}

// Disconnect removes a channel from every room it had joined. Idempotent:
// disconnecting an unknown channel is a no-op.
func (h *Hub) Disconnect(ch *Channel) {
	h.mu.RLock()
	memberships := make([]string, 0, len(h.rooms))
	for convID, r := range h.rooms {
		r.mu.Lock()
		_, ok := r.members[ch.ID]
		if ok {
			delete(r.members, ch.ID)
		}
		r.mu.Unlock()
		if ok {
			memberships = append(memberships, convID)
		}
	}
	h.mu.RUnlock()

	for _, convID := range memberships {
		h.reap(convID)
	}

	if len(memberships) > 0 {
		h.logger.Debug("channel disconnected",
			"channel_id", ch.ID,
			"rooms", len(memberships))
	}
}

// RoomSize returns the number of channels currently joined to a conversation.
func (h *Hub) RoomSize(conversationID string) int {
	h.mu.RLock()
	r, ok := h.rooms[conversationID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// Dispatch runs fn under the room's dispatch lock. Callers compose
// persistence and broadcast inside fn, so within one room those sequences
// are serialized and broadcast order matches durable record order. Storage
// writes for one room never block dispatch for another.
func (h *Hub) Dispatch(conversationID string, fn func()) {
	r := h.getOrCreateRoom(conversationID)

	r.dispatchMu.Lock()
	fn()
	r.dispatchMu.Unlock()

	h.reap(conversationID)
}

// Broadcast delivers a payload to every channel joined to a conversation,
// including the originating sender's channel. The membership set is copied
// under lock, then delivery is non-blocking per channel: slow consumers drop
// the frame, closed channels never receive one. Returns the number of
// channels the payload was queued for.
func (h *Hub) Broadcast(conversationID string, payload []byte) int {
	h.mu.RLock()
	r, ok := h.rooms[conversationID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}

	r.mu.Lock()
	targets := make([]*Channel, 0, len(r.members))
	for _, ch := range r.members {
		targets = append(targets, ch)
	}
	r.mu.Unlock()

	delivered := 0
	for _, ch := range targets {
		if ch.deliver(payload) {
			delivered++
		}
	}
	return delivered
}
