// ABOUTME: Display model for a chat session
// ABOUTME: Maps persisted and optimistic messages to left/right view entries

package session

import "time"

// Side indicates which side of the conversation view an entry renders on.
// Messages authored by the session's own user render on the right.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// Entry is one message in the session's view. Pending entries are
// optimistic local sends not yet confirmed by the gateway; they carry an
// empty MessageID until the broadcast echo arrives.
type Entry struct {
	MessageID     string
	CorrelationID string
	SenderID      string
	Side          Side
	Text          string
	Timestamp     time.Time
	Pending       bool
}
