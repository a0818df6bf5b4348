// ABOUTME: Session controller driving a live chat session end to end
// ABOUTME: Loads identity and history, joins the room, and reconciles the live stream

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serviceconnect/chat-gateway/internal/client"
	"github.com/serviceconnect/chat-gateway/internal/dedupe"
	"github.com/serviceconnect/chat-gateway/internal/gateway"
)

// State is a session lifecycle phase.
type State string

const (
	StateInit            State = "init"
	StateLoadingIdentity State = "loading_identity"
	StateLoadingHistory  State = "loading_history"
	StateConnecting      State = "connecting"
	StateLive            State = "live"
	StateReconnecting    State = "reconnecting"
	StateClosed          State = "closed"
)

// ErrNotLive is returned by Send when the session has no live connection.
var ErrNotLive = errors.New("session is not live")

// ErrEmptyMessage is returned by Send for empty or whitespace-only content.
var ErrEmptyMessage = errors.New("message content is empty")

// NotificationType tags notifications delivered to the session's consumer.
type NotificationType int

const (
	// NoteStateChanged reports a lifecycle transition; State is set.
	NoteStateChanged NotificationType = iota
	// NoteViewChanged reports that View() has new or updated entries.
	NoteViewChanged
	// NoteError reports a server error event or a transport failure; Err is set.
	NoteError
)

// Notification is a single event for the session's consumer.
type Notification struct {
	Type  NotificationType
	State State
	Err   error
}

const notifyBuffer = 64

// Options configures a session controller.
type Options struct {
	API            *client.Client
	Dialer         Dialer
	GatewayWSURL   string
	ConversationID string

	// ReconnectAttempts and ReconnectDelay control the redial policy after
	// a dropped connection. Defaults: 5 attempts, 1 second apart.
	ReconnectAttempts int
	ReconnectDelay    time.Duration

	// DedupeTTL and DedupeMaxSize bound the seen-message cache.
	// Defaults: 10 minutes, 4096 entries.
	DedupeTTL     time.Duration
	DedupeMaxSize int

	Logger *slog.Logger
}

// Controller owns one user's live view of one conversation. It loads the
// authenticated identity, pulls the history snapshot, joins the room over
// the live transport, and keeps the view consistent across reconnects.
type Controller struct {
	api            *client.Client
	dialer         Dialer
	wsURL          string
	conversationID string

	reconnectAttempts int
	reconnectDelay    time.Duration

	logger *slog.Logger
	dedupe *dedupe.Cache

	mu       sync.Mutex
	state    State
	identity *client.Identity
	entries  []Entry
	pending  []Entry
	conn     Conn
	runCtx   context.Context

	notifications chan Notification
	done          chan struct{}
	closeOnce     sync.Once
}

// New creates a session controller. Start must be called before Send.
func New(opts Options) (*Controller, error) {
	if opts.API == nil {
		return nil, fmt.Errorf("api client required")
	}
	if opts.Dialer == nil {
		return nil, fmt.Errorf("dialer required")
	}
	if opts.ConversationID == "" {
		return nil, fmt.Errorf("conversation id required")
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 5
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = 10 * time.Minute
	}
	if opts.DedupeMaxSize <= 0 {
		opts.DedupeMaxSize = 4096
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		api:               opts.API,
		dialer:            opts.Dialer,
		wsURL:             opts.GatewayWSURL,
		conversationID:    opts.ConversationID,
		reconnectAttempts: opts.ReconnectAttempts,
		reconnectDelay:    opts.ReconnectDelay,
		logger:            logger.With("component", "session"),
		dedupe:            dedupe.New(opts.DedupeTTL, opts.DedupeMaxSize),
		state:             StateInit,
		notifications:     make(chan Notification, notifyBuffer),
		done:              make(chan struct{}),
	}, nil
}

// Notifications returns the channel of session notifications. The channel
// is never closed; select on Done to detect termination.
func (c *Controller) Notifications() <-chan Notification {
	return c.notifications
}

// Done is closed when the session terminates.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the authenticated user, or nil before Start completes.
func (c *Controller) Identity() *client.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Start brings the session to the live state: identity, history snapshot,
// then the live connection. It returns once live; subsequent traffic is
// delivered through Notifications.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	c.runCtx = ctx
	c.mu.Unlock()

	c.setState(StateLoadingIdentity)
	identity, err := c.api.Me(ctx)
	if err != nil {
		c.Close()
		return fmt.Errorf("loading identity: %w", err)
	}
	c.mu.Lock()
	c.identity = identity
	c.mu.Unlock()

	c.setState(StateLoadingHistory)
	if err := c.loadHistory(ctx); err != nil {
		c.Close()
		return fmt.Errorf("loading history: %w", err)
	}

	c.setState(StateConnecting)
	conn, err := c.connect(ctx)
	if err != nil {
		c.Close()
		return fmt.Errorf("connecting: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.setState(StateLive)
	go c.readLoop(conn)
	return nil
}

// Send transmits a message and records an optimistic pending entry. The
// entry is confirmed when the gateway echoes the broadcast back with the
// same correlation id.
func (c *Controller) Send(text string) error {
	// Empty content never reaches the wire; the gateway would reject it
	// anyway, but a local check keeps the view free of doomed pending
	// entries.
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.state != StateLive {
		c.mu.Unlock()
		return ErrNotLive
	}
	conn := c.conn
	self := c.identity.ID

	corr := uuid.New().String()
	c.pending = append(c.pending, Entry{
		CorrelationID: corr,
		SenderID:      self,
		Side:          SideRight,
		Text:          text,
		Timestamp:     time.Now(),
		Pending:       true,
	})
	c.mu.Unlock()

	err := conn.WriteJSON(gateway.SendMessageEvent{
		Type:           gateway.EventTypeSend,
		Content:        text,
		SenderID:       self,
		ConversationID: c.conversationID,
		CorrelationID:  corr,
	})
	if err != nil {
		c.dropPending(corr)
		return fmt.Errorf("sending message: %w", err)
	}

	c.notify(Notification{Type: NoteViewChanged})
	return nil
}

// View returns the ordered display entries: the confirmed log followed by
// any still-pending optimistic sends. The returned slice is a copy.
func (c *Controller) View() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, 0, len(c.entries)+len(c.pending))
	out = append(out, c.entries...)
	out = append(out, c.pending...)
	return out
}

// Close terminates the session. Safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			conn.Close()
		}
		c.dedupe.Close()
		close(c.done)
	})
}

// loadHistory replaces the confirmed log with the server snapshot and
// marks every snapshot message as seen.
func (c *Controller) loadHistory(ctx context.Context) error {
	msgs, err := c.api.History(ctx, c.conversationID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	self := ""
	if c.identity != nil {
		self = c.identity.ID
	}

	c.entries = c.entries[:0]
	for _, m := range msgs {
		c.dedupe.Mark(m.MessageID)
		c.entries = append(c.entries, c.entryForLocked(m.MessageID, m.SenderID, m.Content, m.CreatedAt, self))
	}
	return nil
}

func (c *Controller) entryForLocked(messageID, senderID, content string, createdAt time.Time, self string) Entry {
	side := SideLeft
	if senderID == self {
		side = SideRight
	}
	return Entry{
		MessageID: messageID,
		SenderID:  senderID,
		Side:      side,
		Text:      content,
		Timestamp: createdAt,
	}
}

func (c *Controller) connect(ctx context.Context) (Conn, error) {
	conn, err := c.dialer.Dial(ctx, c.wsURL, c.api.Token())
	if err != nil {
		return nil, err
	}
	err = conn.WriteJSON(gateway.JoinEvent{
		Type:           gateway.EventTypeJoin,
		ConversationID: c.conversationID,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("joining conversation: %w", err)
	}
	return conn, nil
}

func (c *Controller) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("live connection lost", "error", err)
			c.reconnect()
			return
		}
		c.handleFrame(data)
	}
}

func (c *Controller) handleFrame(data []byte) {
	var base gateway.BaseEvent
	if err := json.Unmarshal(data, &base); err != nil {
		c.logger.Warn("discarding malformed frame", "error", err)
		return
	}

	switch base.Type {
	case gateway.EventTypeReceive:
		var ev gateway.ReceiveMessageEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("discarding malformed receiveMessage", "error", err)
			return
		}
		c.handleReceive(ev)
	case gateway.EventTypeError:
		var ev gateway.ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return
		}
		c.notify(Notification{
			Type: NoteError,
			Err:  fmt.Errorf("gateway error %s: %s", ev.Code, ev.Message),
		})
	default:
		c.logger.Debug("ignoring unknown event type", "type", base.Type)
	}
}

func (c *Controller) handleReceive(ev gateway.ReceiveMessageEvent) {
	if ev.ConversationID != c.conversationID {
		return
	}
	if c.dedupe.Seen(ev.MessageID) {
		return
	}

	c.mu.Lock()
	self := ""
	if c.identity != nil {
		self = c.identity.ID
	}

	entry := c.entryForLocked(ev.MessageID, ev.SenderID, ev.Content, ev.CreatedAt, self)

	// A broadcast carrying our correlation id confirms the matching
	// optimistic entry rather than adding a new one.
	if ev.CorrelationID != "" {
		for i, p := range c.pending {
			if p.CorrelationID == ev.CorrelationID {
				c.pending = append(c.pending[:i], c.pending[i+1:]...)
				break
			}
		}
	}
	c.entries = append(c.entries, entry)
	c.mu.Unlock()

	c.notify(Notification{Type: NoteViewChanged})
}

// reconnect redials the gateway a bounded number of times, then resyncs
// the log from the history snapshot so messages missed while offline are
// recovered. Exhausting all attempts terminates the session.
func (c *Controller) reconnect() {
	c.setState(StateReconnecting)
	c.notify(Notification{Type: NoteError, Err: errors.New("connection lost, reconnecting")})

	c.mu.Lock()
	ctx := c.runCtx
	c.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	for attempt := 1; attempt <= c.reconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			c.Close()
			return
		case <-time.After(c.reconnectDelay):
		}

		conn, err := c.connect(ctx)
		if err != nil {
			c.logger.Warn("reconnect attempt failed",
				"attempt", attempt,
				"max_attempts", c.reconnectAttempts,
				"error", err)
			continue
		}

		if err := c.resync(ctx); err != nil {
			c.logger.Warn("history resync failed", "error", err)
			conn.Close()
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()

		c.setState(StateLive)
		c.notify(Notification{Type: NoteViewChanged})
		go c.readLoop(conn)
		return
	}

	c.logger.Error("reconnect attempts exhausted", "attempts", c.reconnectAttempts)
	c.notify(Notification{Type: NoteError, Err: errors.New("reconnect attempts exhausted")})
	c.Close()
}

// pendingMatchWindow bounds how far a pending entry's local send time may
// sit from a history message's server timestamp and still count as the
// same message during resync.
const pendingMatchWindow = 2 * time.Minute

// resync pulls the history snapshot and appends every message not already
// seen. Optimistic sends that made it to the server before the drop are
// matched by sender, content, and timestamp proximity so they are not
// shown twice. Pending entries are scanned oldest first: the server
// persisted same-content sends in send order, so the snapshot pairs back
// up in the same order.
func (c *Controller) resync(ctx context.Context) error {
	msgs, err := c.api.History(ctx, c.conversationID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	self := ""
	if c.identity != nil {
		self = c.identity.ID
	}

	for _, m := range msgs {
		if c.dedupe.Seen(m.MessageID) {
			continue
		}
		if m.SenderID == self {
			for i, p := range c.pending {
				if p.Text == m.Content && absDuration(m.CreatedAt.Sub(p.Timestamp)) <= pendingMatchWindow {
					c.pending = append(c.pending[:i], c.pending[i+1:]...)
					break
				}
			}
		}
		c.entries = append(c.entries, c.entryForLocked(m.MessageID, m.SenderID, m.Content, m.CreatedAt, self))
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func (c *Controller) dropPending(correlationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p.CorrelationID == correlationID {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return
		}
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()

	c.notify(Notification{Type: NoteStateChanged, State: s})
}

// notify delivers without blocking; a consumer that stops draining loses
// notifications rather than wedging the read loop.
func (c *Controller) notify(n Notification) {
	select {
	case c.notifications <- n:
	case <-c.done:
	default:
	}
}
