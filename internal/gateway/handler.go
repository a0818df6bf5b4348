// ABOUTME: WebSocket endpoint that upgrades connections into live channels
// ABOUTME: Authenticates the bearer token before upgrade and dispatches inbound events

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/serviceconnect/chat-gateway/internal/auth"
	"github.com/serviceconnect/chat-gateway/internal/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSHandler upgrades HTTP requests into live channels
type WSHandler struct {
	service  *Service
	hub      *Hub
	verifier auth.TokenVerifier
	cfg      config.GatewayConfig
	logger   *slog.Logger
}

// NewWSHandler creates a WebSocket handler. Pass nil logger for default.
func NewWSHandler(service *Service, hub *Hub, verifier auth.TokenVerifier, cfg config.GatewayConfig, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		service:  service,
		hub:      hub,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger.With("component", "ws"),
	}
}

// ServeHTTP authenticates the caller, upgrades the connection, and starts
// the channel's pumps. The identity resolved from the token is fixed for
// the channel's lifetime.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, errMsg := auth.TokenFromRequest(r)
	if errMsg != "" {
		http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
		return
	}

	userID, err := h.verifier.Verify(token)
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("upgrade failed", "error", err)
		return
	}

	ch := NewChannel(uuid.New().String(), userID, h.hub, conn, h.cfg, h.logger)
	h.logger.Info("channel opened", "channel_id", ch.ID, "user_id", userID)

	go ch.WritePump()
	go ch.ReadPump(h.handleEvent)
}

// handleEvent decodes one inbound frame and routes it by type tag.
func (h *WSHandler) handleEvent(ch *Channel, message []byte) {
	var base BaseEvent
	if err := json.Unmarshal(message, &base); err != nil {
		ch.Enqueue(NewErrorEvent(ErrCodeBadRequest, "invalid event format"))
		return
	}

	// The upgrade request's context dies with the handler; channel events
	// outlive it.
	ctx := context.Background()

	switch base.Type {
	case EventTypeJoin:
		var ev JoinEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			ch.Enqueue(NewErrorEvent(ErrCodeBadRequest, "invalid join event"))
			return
		}
		h.service.HandleJoin(ctx, ch, ev.ConversationID)

	case EventTypeLeave:
		var ev LeaveEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			ch.Enqueue(NewErrorEvent(ErrCodeBadRequest, "invalid leave event"))
			return
		}
		h.service.HandleLeave(ch, ev.ConversationID)

	case EventTypeSend:
		var ev SendMessageEvent
		if err := json.Unmarshal(message, &ev); err != nil {
			ch.Enqueue(NewErrorEvent(ErrCodeBadRequest, "invalid sendMessage event"))
			return
		}
		h.service.HandleSend(ctx, ch, ev)

	default:
		ch.Enqueue(NewErrorEvent(ErrCodeBadRequest, "unknown event type"))
	}
}
