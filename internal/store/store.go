// ABOUTME: Store interface and data types for chat-gateway persistence
// ABOUTME: Defines Conversation, Message structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrValidation is returned when a write is missing a required field
var ErrValidation = errors.New("validation failed")

// Conversation links a service user with a provider. Either participant may
// be absent while the conversation is being set up, but never both.
type Conversation struct {
	ID         string
	Title      string
	UserID     *string
	ProviderID *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasParticipant reports whether id is the conversation's user or provider.
func (c *Conversation) HasParticipant(id string) bool {
	if c.UserID != nil && *c.UserID == id {
		return true
	}
	if c.ProviderID != nil && *c.ProviderID == id {
		return true
	}
	return false
}

// Message is a single entry in a conversation's append-only log.
// Messages are immutable once created.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	Content        string
	CreatedAt      time.Time
}

// Store defines the interface for conversation and message persistence
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	UpdateConversationTitle(ctx context.Context, id, title string) error

	// Messages (append-only)
	CreateMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// Close releases any resources held by the store
	Close() error
}
