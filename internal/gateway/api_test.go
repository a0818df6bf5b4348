// ABOUTME: Tests for the gateway HTTP API
// ABOUTME: Covers the history endpoint's auth, status codes, and payload shape

package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serviceconnect/chat-gateway/internal/auth"
	"github.com/serviceconnect/chat-gateway/internal/history"
	"github.com/serviceconnect/chat-gateway/internal/store"
)

func newTestAPI(t *testing.T) (http.Handler, *auth.JWTVerifier) {
	t.Helper()

	ms := store.NewMockStore()
	require.NoError(t, ms.CreateConversation(context.Background(), &store.Conversation{
		ID:         "conv-1",
		UserID:     strPtr("user-1"),
		ProviderID: strPtr("user-2"),
	}))
	require.NoError(t, ms.CreateMessage(context.Background(), &store.Message{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       "user-1",
		Content:        "hello there",
		CreatedAt:      time.Now().UTC(),
	}))
	require.NoError(t, ms.CreateMessage(context.Background(), &store.Message{
		ID:             "msg-2",
		ConversationID: "conv-1",
		SenderID:       "user-2",
		Content:        "hi back",
		CreatedAt:      time.Now().UTC().Add(time.Second),
	}))

	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	api := NewAPI(history.New(ms, nil), verifier, nil, nil)
	return api.Routes(), verifier
}

func bearerFor(t *testing.T, verifier *auth.JWTVerifier, userID string) string {
	t.Helper()
	token, err := verifier.Generate(userID, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestAPI_Health(t *testing.T) {
	routes, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAPI_ListMessages(t *testing.T) {
	routes, verifier := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/conv-1", nil)
	req.Header.Set("Authorization", bearerFor(t, verifier, "user-1"))
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var msgs []MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &msgs))
	require.Len(t, msgs, 2)
	assert.Equal(t, "msg-1", msgs[0].MessageID)
	assert.Equal(t, "user-1", msgs[0].SenderID)
	assert.Equal(t, "hello there", msgs[0].Content)
	assert.Equal(t, "msg-2", msgs[1].MessageID)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
}

func TestAPI_ListMessagesMissingToken(t *testing.T) {
	routes, _ := newTestAPI(t)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/messages/conv-1", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_ListMessagesBadToken(t *testing.T) {
	routes, _ := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/conv-1", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_ListMessagesNonParticipant(t *testing.T) {
	routes, verifier := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/conv-1", nil)
	req.Header.Set("Authorization", bearerFor(t, verifier, "stranger"))
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAPI_ListMessagesUnknownConversation(t *testing.T) {
	routes, verifier := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/conv-missing", nil)
	req.Header.Set("Authorization", bearerFor(t, verifier, "user-1"))
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_ListMessagesMissingID(t *testing.T) {
	routes, verifier := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/api/messages/", nil)
	req.Header.Set("Authorization", bearerFor(t, verifier, "user-1"))
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ListMessagesMethodNotAllowed(t *testing.T) {
	routes, verifier := newTestAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/messages/conv-1", nil)
	req.Header.Set("Authorization", bearerFor(t, verifier, "user-1"))
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
