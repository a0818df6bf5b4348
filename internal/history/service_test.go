// ABOUTME: Tests for the history service
// ABOUTME: Covers participant authorization, not-found, and snapshot ordering

package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serviceconnect/chat-gateway/internal/store"
)

func strPtr(s string) *string { return &s }

func seedConversation(t *testing.T) *store.MockStore {
	t.Helper()

	m := store.NewMockStore()
	ctx := context.Background()

	require.NoError(t, m.CreateConversation(ctx, &store.Conversation{
		ID:         "conv-1",
		UserID:     strPtr("user-1"),
		ProviderID: strPtr("provider-2"),
	}))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, m.CreateMessage(ctx, &store.Message{
		ID: "msg-1", ConversationID: "conv-1", SenderID: "user-1", Content: "hi", CreatedAt: base,
	}))
	require.NoError(t, m.CreateMessage(ctx, &store.Message{
		ID: "msg-2", ConversationID: "conv-1", SenderID: "provider-2", Content: "hey", CreatedAt: base.Add(time.Second),
	}))

	return m
}

func TestSnapshot_ParticipantGetsOrderedMessages(t *testing.T) {
	svc := New(seedConversation(t), nil)

	msgs, err := svc.Snapshot(context.Background(), "conv-1", "user-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg-1", msgs[0].ID)
	assert.Equal(t, "msg-2", msgs[1].ID)
}

func TestSnapshot_ProviderSideIsAlsoParticipant(t *testing.T) {
	svc := New(seedConversation(t), nil)

	msgs, err := svc.Snapshot(context.Background(), "conv-1", "provider-2")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestSnapshot_UnknownConversation(t *testing.T) {
	svc := New(seedConversation(t), nil)

	_, err := svc.Snapshot(context.Background(), "missing", "user-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSnapshot_NonParticipantRejected(t *testing.T) {
	svc := New(seedConversation(t), nil)

	_, err := svc.Snapshot(context.Background(), "conv-1", "stranger-9")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestSnapshot_EmptyConversation(t *testing.T) {
	m := store.NewMockStore()
	require.NoError(t, m.CreateConversation(context.Background(), &store.Conversation{
		ID:     "conv-empty",
		UserID: strPtr("user-1"),
	}))

	svc := New(m, nil)
	msgs, err := svc.Snapshot(context.Background(), "conv-empty", "user-1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
