// ABOUTME: Gateway service coordinates live channels, persistence, and fan-out
// ABOUTME: Persists each sent message before broadcasting it to the room

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/serviceconnect/chat-gateway/internal/store"
)

// MessageStore defines the store operations the gateway needs
type MessageStore interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	CreateMessage(ctx context.Context, msg *store.Message) error
}

// Service handles channel events: room joins and message sends. All
// persistence goes through the store; the service itself holds no message
// state.
type Service struct {
	store  MessageStore
	hub    *Hub
	logger *slog.Logger
}

// NewService creates a gateway service. Pass nil logger for default.
func NewService(s MessageStore, hub *Hub, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  s,
		hub:    hub,
		logger: logger.With("component", "gateway"),
	}
}

// HandleJoin subscribes a channel to a conversation's room after verifying
// the channel's user is a participant of that conversation.
func (s *Service) HandleJoin(ctx context.Context, ch *Channel, conversationID string) {
	if conversationID == "" {
		ch.Enqueue(NewErrorEvent(ErrCodeValidation, "conversationId required"))
		return
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		ch.Enqueue(NewErrorEvent(ErrCodeNotFound, "unknown conversation"))
		return
	}
	if err != nil {
		s.logger.Error("loading conversation for join", "error", err, "conversation_id", conversationID)
		ch.Enqueue(NewErrorEvent(ErrCodeInternal, "failed to join conversation"))
		return
	}

	if !conv.HasParticipant(ch.UserID) {
		s.logger.Warn("rejected join from non-participant",
			"conversation_id", conversationID,
			"user_id", ch.UserID)
		ch.Enqueue(NewErrorEvent(ErrCodeForbidden, "not a conversation participant"))
		return
	}

	s.hub.Join(conversationID, ch)
}

// HandleLeave unsubscribes a channel from a conversation's room.
func (s *Service) HandleLeave(ch *Channel, conversationID string) {
	if conversationID == "" {
		ch.Enqueue(NewErrorEvent(ErrCodeValidation, "conversationId required"))
		return
	}
	s.hub.Leave(conversationID, ch)
}

// HandleSend persists an outgoing message and broadcasts it to every channel
// in the conversation's room, the sender included. Persist and broadcast run
// under the room's dispatch lock, so members observe broadcasts in the order
// messages were durably recorded. A message that fails to persist is never
// broadcast; the failure is reported to the sending channel only.
func (s *Service) HandleSend(ctx context.Context, ch *Channel, ev SendMessageEvent) {
	if strings.TrimSpace(ev.Content) == "" {
		ch.Enqueue(NewErrorEvent(ErrCodeValidation, "content required"))
		return
	}
	if ev.ConversationID == "" {
		ch.Enqueue(NewErrorEvent(ErrCodeValidation, "conversationId required"))
		return
	}

	// The channel's authenticated identity is authoritative; a spoofed
	// senderId is rejected rather than silently rewritten.
	senderID := ev.SenderID
	if senderID == "" {
		senderID = ch.UserID
	}
	if senderID != ch.UserID {
		s.logger.Warn("rejected send with mismatched sender",
			"claimed_sender", ev.SenderID,
			"user_id", ch.UserID)
		ch.Enqueue(NewErrorEvent(ErrCodeForbidden, "senderId does not match channel identity"))
		return
	}

	s.hub.Dispatch(ev.ConversationID, func() {
		msg := &store.Message{
			ID:             uuid.New().String(),
			ConversationID: ev.ConversationID,
			SenderID:       senderID,
			Content:        ev.Content,
			CreatedAt:      time.Now().UTC(),
		}

		if err := s.store.CreateMessage(ctx, msg); err != nil {
			switch {
			case errors.Is(err, store.ErrValidation):
				ch.Enqueue(NewErrorEvent(ErrCodeValidation, "invalid message"))
			case errors.Is(err, store.ErrNotFound):
				ch.Enqueue(NewErrorEvent(ErrCodeNotFound, "unknown conversation"))
			default:
				s.logger.Error("persisting message", "error", err, "conversation_id", ev.ConversationID)
				ch.Enqueue(NewErrorEvent(ErrCodeInternal, "failed to send message"))
			}
			return
		}

		out := ReceiveMessageEvent{
			Type:           EventTypeReceive,
			MessageID:      msg.ID,
			Content:        msg.Content,
			SenderID:       msg.SenderID,
			ConversationID: msg.ConversationID,
			CreatedAt:      msg.CreatedAt,
			CorrelationID:  ev.CorrelationID,
		}

		payload, err := json.Marshal(out)
		if err != nil {
			s.logger.Error("marshaling broadcast", "error", err)
			return
		}

		delivered := s.hub.Broadcast(ev.ConversationID, payload)
		s.logger.Debug("broadcast message",
			"message_id", msg.ID,
			"conversation_id", msg.ConversationID,
			"delivered", delivered)
	})
}
