// ABOUTME: HTTP API for history reads plus route wiring for the gateway server
// ABOUTME: Exposes GET /api/messages/{conversationID}, /ws, and /health

package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/serviceconnect/chat-gateway/internal/auth"
	"github.com/serviceconnect/chat-gateway/internal/history"
	"github.com/serviceconnect/chat-gateway/internal/store"
)

// MessageResponse is one entry in the JSON response for GET /api/messages/{id}.
// MessageID lets clients de-duplicate the snapshot against live deliveries.
type MessageResponse struct {
	MessageID string    `json:"messageId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// errorResponse is the JSON error body for API failures.
type errorResponse struct {
	Error string `json:"error"`
}

// API serves the gateway's HTTP surface
type API struct {
	history  *history.Service
	verifier auth.TokenVerifier
	ws       *WSHandler
	logger   *slog.Logger
}

// NewAPI creates the HTTP API. Pass nil logger for default.
func NewAPI(hist *history.Service, verifier auth.TokenVerifier, ws *WSHandler, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		history:  hist,
		verifier: verifier,
		ws:       ws,
		logger:   logger.With("component", "api"),
	}
}

// Routes builds the gateway's HTTP handler
func (a *API) Routes() http.Handler {
	mux := http.NewServeMux()

	authMiddleware := auth.HTTPMiddleware(a.verifier)

	mux.HandleFunc("/health", a.handleHealth)
	mux.Handle("/api/messages/", authMiddleware(http.HandlerFunc(a.handleListMessages)))
	mux.Handle("/ws", a.ws)

	return mux
}

// handleHealth reports liveness
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleListMessages returns a conversation's ordered message snapshot.
// The caller must be a participant of the conversation.
func (a *API) handleListMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	conversationID := strings.TrimPrefix(r.URL.Path, "/api/messages/")
	if conversationID == "" || strings.Contains(conversationID, "/") {
		writeError(w, http.StatusBadRequest, "conversation id required")
		return
	}

	callerID := auth.CallerFromContext(r.Context())

	msgs, err := a.history.Snapshot(r.Context(), conversationID, callerID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "conversation not found")
		case errors.Is(err, history.ErrNotParticipant):
			writeError(w, http.StatusForbidden, "not a conversation participant")
		default:
			a.logger.Error("fetching history", "error", err, "conversation_id", conversationID)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	resp := make([]MessageResponse, len(msgs))
	for i, m := range msgs {
		resp[i] = MessageResponse{
			MessageID: m.ID,
			SenderID:  m.SenderID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// writeError writes a JSON error response with the given status
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg})
}
