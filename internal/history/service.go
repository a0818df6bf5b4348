// ABOUTME: History service reads ordered conversation snapshots from the store
// ABOUTME: Enforces that only conversation participants may read the log

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/serviceconnect/chat-gateway/internal/store"
)

// ErrNotParticipant is returned when the caller is not a participant of the
// conversation they are trying to read.
var ErrNotParticipant = errors.New("caller is not a conversation participant")

// SnapshotStore defines the store operations the history service needs
type SnapshotStore interface {
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
}

// Service reads ordered message snapshots for conversations
type Service struct {
	store  SnapshotStore
	logger *slog.Logger
}

// New creates a history service. Pass nil logger for default.
func New(s SnapshotStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  s,
		logger: logger.With("component", "history"),
	}
}

// Snapshot returns the full ordered message log of a conversation.
// Returns store.ErrNotFound if the conversation does not exist and
// ErrNotParticipant if callerID is neither the conversation's user nor its
// provider. Ordering is creation time ascending, ties broken by id.
func (s *Service) Snapshot(ctx context.Context, conversationID, callerID string) ([]*store.Message, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	if !conv.HasParticipant(callerID) {
		s.logger.Warn("rejected history read from non-participant",
			"conversation_id", conversationID,
			"caller_id", callerID)
		return nil, ErrNotParticipant
	}

	msgs, err := s.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}

	return msgs, nil
}
