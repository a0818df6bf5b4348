// ABOUTME: Wire protocol events exchanged over a live channel
// ABOUTME: JSON envelopes tagged by type, mirrored by the session controller

package gateway

import "time"

// Event type tags carried in the JSON "type" field
const (
	EventTypeJoin    = "join"
	EventTypeLeave   = "leave"
	EventTypeSend    = "sendMessage"
	EventTypeReceive = "receiveMessage"
	EventTypeError   = "error"
)

// Error codes carried in ErrorEvent.Code
const (
	ErrCodeBadRequest = "bad_request"
	ErrCodeValidation = "validation"
	ErrCodeNotFound   = "not_found"
	ErrCodeForbidden  = "forbidden"
	ErrCodeInternal   = "internal"
)

// BaseEvent is used to sniff the type tag before full decoding
type BaseEvent struct {
	Type string `json:"type"`
}

// JoinEvent subscribes the channel to a conversation's room (client -> server)
type JoinEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

// LeaveEvent unsubscribes the channel from a conversation's room (client -> server)
type LeaveEvent struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
}

// SendMessageEvent carries an outgoing message (client -> server).
// CorrelationID is a client-generated id echoed back on the broadcast so the
// sender can reconcile its optimistic entry.
type SendMessageEvent struct {
	Type           string `json:"type"`
	Content        string `json:"content"`
	SenderID       string `json:"senderId"`
	ConversationID string `json:"conversationId"`
	CorrelationID  string `json:"correlationId,omitempty"`
}

// ReceiveMessageEvent carries a persisted message to room members
// (server -> client). Every member receives it, the sender included.
type ReceiveMessageEvent struct {
	Type           string    `json:"type"`
	MessageID      string    `json:"messageId"`
	Content        string    `json:"content"`
	SenderID       string    `json:"senderId"`
	ConversationID string    `json:"conversationId"`
	CreatedAt      time.Time `json:"createdAt"`
	CorrelationID  string    `json:"correlationId,omitempty"`
}

// ErrorEvent reports a failure to the channel that caused it (server -> client)
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewErrorEvent builds an error event with the given code and message
func NewErrorEvent(code, message string) ErrorEvent {
	return ErrorEvent{Type: EventTypeError, Code: code, Message: message}
}
