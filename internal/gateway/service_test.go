// ABOUTME: Tests for the gateway Service send/join handling
// ABOUTME: Covers validation, authorization, persist-before-broadcast, ordering

package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serviceconnect/chat-gateway/internal/store"
)

// recordingStore is a MessageStore that remembers the exact order in which
// messages were durably recorded.
type recordingStore struct {
	mu            sync.Mutex
	conversations map[string]*store.Conversation
	recorded      []*store.Message
	failNext      error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{conversations: make(map[string]*store.Conversation)}
}

func (r *recordingStore) addConversation(conv *store.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[conv.ID] = conv
}

func (r *recordingStore) GetConversation(ctx context.Context, id string) (*store.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conv, ok := r.conversations[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *conv
	return &c, nil
}

func (r *recordingStore) CreateMessage(ctx context.Context, msg *store.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	if _, ok := r.conversations[msg.ConversationID]; !ok {
		return store.ErrNotFound
	}
	m := *msg
	r.recorded = append(r.recorded, &m)
	return nil
}

func (r *recordingStore) recordedIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, len(r.recorded))
	for i, m := range r.recorded {
		ids[i] = m.ID
	}
	return ids
}

func strPtr(s string) *string { return &s }

func newTestService(t *testing.T) (*Service, *Hub, *recordingStore) {
	t.Helper()

	rs := newRecordingStore()
	rs.addConversation(&store.Conversation{
		ID:         "conv-1",
		UserID:     strPtr("user-1"),
		ProviderID: strPtr("user-2"),
	})

	hub := NewHub(nil)
	return NewService(rs, hub, nil), hub, rs
}

func decodeFrames(t *testing.T, frames [][]byte) []ReceiveMessageEvent {
	t.Helper()

	var events []ReceiveMessageEvent
	for _, f := range frames {
		var base BaseEvent
		require.NoError(t, json.Unmarshal(f, &base))
		if base.Type != EventTypeReceive {
			continue
		}
		var ev ReceiveMessageEvent
		require.NoError(t, json.Unmarshal(f, &ev))
		events = append(events, ev)
	}
	return events
}

func errorCodes(t *testing.T, frames [][]byte) []string {
	t.Helper()

	var codes []string
	for _, f := range frames {
		var ev ErrorEvent
		require.NoError(t, json.Unmarshal(f, &ev))
		if ev.Type == EventTypeError {
			codes = append(codes, ev.Code)
		}
	}
	return codes
}

func TestHandleSend_BroadcastsToAllMembersIncludingSender(t *testing.T) {
	svc, hub, rs := newTestService(t)
	sender := newTestChannel("ch-2", "user-2")
	receiver := newTestChannel("ch-1", "user-1")
	hub.Join("conv-1", sender)
	hub.Join("conv-1", receiver)

	svc.HandleSend(context.Background(), sender, SendMessageEvent{
		Type:           EventTypeSend,
		Content:        "yo",
		SenderID:       "user-2",
		ConversationID: "conv-1",
	})

	require.Len(t, rs.recordedIDs(), 1)

	got := decodeFrames(t, drainFrames(receiver))
	require.Len(t, got, 1, "receiver gets the broadcast exactly once")
	assert.Equal(t, "yo", got[0].Content)
	assert.Equal(t, "user-2", got[0].SenderID)
	assert.Equal(t, "conv-1", got[0].ConversationID)
	assert.False(t, got[0].CreatedAt.IsZero())

	echo := decodeFrames(t, drainFrames(sender))
	require.Len(t, echo, 1, "sender receives its own broadcast")
	assert.Equal(t, got[0].MessageID, echo[0].MessageID)
}

func TestHandleSend_CorrelationIDEchoedOnBroadcast(t *testing.T) {
	svc, hub, _ := newTestService(t)
	sender := newTestChannel("ch-2", "user-2")
	hub.Join("conv-1", sender)

	svc.HandleSend(context.Background(), sender, SendMessageEvent{
		Type:           EventTypeSend,
		Content:        "hello",
		SenderID:       "user-2",
		ConversationID: "conv-1",
		CorrelationID:  "corr-42",
	})

	echo := decodeFrames(t, drainFrames(sender))
	require.Len(t, echo, 1)
	assert.Equal(t, "corr-42", echo[0].CorrelationID)
}

func TestHandleSend_EmptyContentRejected(t *testing.T) {
	svc, hub, rs := newTestService(t)
	sender := newTestChannel("ch-2", "user-2")
	other := newTestChannel("ch-1", "user-1")
	hub.Join("conv-1", sender)
	hub.Join("conv-1", other)

	for _, content := range []string{"", "   ", "\t\n"} {
		svc.HandleSend(context.Background(), sender, SendMessageEvent{
			Type:           EventTypeSend,
			Content:        content,
			SenderID:       "user-2",
			ConversationID: "conv-1",
		})
	}

	assert.Empty(t, rs.recordedIDs(), "nothing persisted")
	assert.Empty(t, drainFrames(other), "nothing broadcast")
	assert.Equal(t, []string{ErrCodeValidation, ErrCodeValidation, ErrCodeValidation},
		errorCodes(t, drainFrames(sender)))
}

func TestHandleSend_MissingConversationIDRejected(t *testing.T) {
	svc, _, rs := newTestService(t)
	sender := newTestChannel("ch-2", "user-2")

	svc.HandleSend(context.Background(), sender, SendMessageEvent{
		Type:     EventTypeSend,
		Content:  "hi",
		SenderID: "user-2",
	})

	assert.Empty(t, rs.recordedIDs())
	assert.Equal(t, []string{ErrCodeValidation}, errorCodes(t, drainFrames(sender)))
}

func TestHandleSend_SpoofedSenderRejected(t *testing.T) {
	svc, hub, rs := newTestService(t)
	sender := newTestChannel("ch-2", "user-2")
	hub.Join("conv-1", sender)

	svc.HandleSend(context.Background(), sender, SendMessageEvent{
		Type:           EventTypeSend,
		Content:        "hi",
		SenderID:       "user-1", // not the channel's identity
		ConversationID: "conv-1",
	})

	assert.Empty(t, rs.recordedIDs())
	assert.Equal(t, []string{ErrCodeForbidden}, errorCodes(t, drainFrames(sender)))
}

func TestHandleSend_EmptySenderDefaultsToChannelIdentity(t *testing.T) {
	svc, hub, rs := newTestService(t)
	sender := newTestChannel("ch-2", "user-2")
	hub.Join("conv-1", sender)

	svc.HandleSend(context.Background(), sender, SendMessageEvent{
		Type:           EventTypeSend,
		Content:        "hi",
		ConversationID: "conv-1",
	})

	require.Len(t, rs.recorded, 1)
	assert.Equal(t, "user-2", rs.recorded[0].SenderID)
}

func TestHandleSend_UnknownConversation(t *testing.T) {
	svc, _, _ := newTestService(t)
	sender := newTestChannel("ch-2", "user-2")

	svc.HandleSend(context.Background(), sender, SendMessageEvent{
		Type:           EventTypeSend,
		Content:        "hi",
		SenderID:       "user-2",
		ConversationID: "conv-missing",
	})

	assert.Equal(t, []string{ErrCodeNotFound}, errorCodes(t, drainFrames(sender)))
}

func TestHandleSend_FailedPersistIsNeverBroadcast(t *testing.T) {
	svc, hub, rs := newTestService(t)
	sender := newTestChannel("ch-2", "user-2")
	other := newTestChannel("ch-1", "user-1")
	hub.Join("conv-1", sender)
	hub.Join("conv-1", other)

	rs.mu.Lock()
	rs.failNext = assert.AnError
	rs.mu.Unlock()

	svc.HandleSend(context.Background(), sender, SendMessageEvent{
		Type:           EventTypeSend,
		Content:        "doomed",
		SenderID:       "user-2",
		ConversationID: "conv-1",
	})

	assert.Empty(t, drainFrames(other), "failed create must not be broadcast")
	assert.Equal(t, []string{ErrCodeInternal}, errorCodes(t, drainFrames(sender)))
}

func TestHandleSend_BroadcastOrderMatchesRecordOrder(t *testing.T) {
	svc, hub, rs := newTestService(t)
	a := newTestChannel("ch-1", "user-1")
	b := newTestChannel("ch-2", "user-2")
	a.send = make(chan []byte, 256)
	b.send = make(chan []byte, 256)
	hub.Join("conv-1", a)
	hub.Join("conv-1", b)

	const perSender = 25
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < perSender; i++ {
			svc.HandleSend(context.Background(), a, SendMessageEvent{
				Type: EventTypeSend, Content: "from a", SenderID: "user-1", ConversationID: "conv-1",
			})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < perSender; i++ {
			svc.HandleSend(context.Background(), b, SendMessageEvent{
				Type: EventTypeSend, Content: "from b", SenderID: "user-2", ConversationID: "conv-1",
			})
		}
	}()
	wg.Wait()

	recorded := rs.recordedIDs()
	require.Len(t, recorded, 2*perSender)

	for name, ch := range map[string]*Channel{"a": a, "b": b} {
		events := decodeFrames(t, drainFrames(ch))
		require.Len(t, events, 2*perSender, "channel %s", name)
		for i, ev := range events {
			assert.Equal(t, recorded[i], ev.MessageID,
				"channel %s observed broadcast %d out of record order", name, i)
		}
	}
}

func TestHandleJoin_NonParticipantRejected(t *testing.T) {
	svc, hub, _ := newTestService(t)
	stranger := newTestChannel("ch-9", "stranger")

	svc.HandleJoin(context.Background(), stranger, "conv-1")

	assert.Equal(t, 0, hub.RoomSize("conv-1"))
	assert.Equal(t, []string{ErrCodeForbidden}, errorCodes(t, drainFrames(stranger)))
}

func TestHandleJoin_UnknownConversation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ch := newTestChannel("ch-1", "user-1")

	svc.HandleJoin(context.Background(), ch, "conv-missing")

	assert.Equal(t, []string{ErrCodeNotFound}, errorCodes(t, drainFrames(ch)))
}

func TestHandleJoin_ParticipantJoins(t *testing.T) {
	svc, hub, _ := newTestService(t)
	ch := newTestChannel("ch-1", "user-1")

	svc.HandleJoin(context.Background(), ch, "conv-1")

	assert.Equal(t, 1, hub.RoomSize("conv-1"))
	assert.Empty(t, drainFrames(ch))
}

func TestHandleLeave(t *testing.T) {
	svc, hub, _ := newTestService(t)
	ch := newTestChannel("ch-1", "user-1")

	svc.HandleJoin(context.Background(), ch, "conv-1")
	svc.HandleLeave(ch, "conv-1")

	assert.Equal(t, 0, hub.RoomSize("conv-1"))
}
