package relay

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies a wire event using a custom enum type for type safety
type EventType string

const (
	// Client -> relay and relay -> client chat events
	EventPrivateMessage EventType = "private-message"
	EventGroupMessage   EventType = "group-message"

	// Client -> relay room subscription events
	EventJoinGroup  EventType = "join-group"
	EventLeaveGroup EventType = "leave-group"

	// Relay -> client notifications
	EventOnlineUsers     EventType = "online-users"
	EventUserJoinedGroup EventType = "user-joined-group"
	EventUserLeftGroup   EventType = "user-left-group"
)

func (t EventType) String() string {
	return string(t)
}

// IsClientEvent reports whether the event may legally originate from a client.
func (t EventType) IsClientEvent() bool {
	switch t {
	case EventPrivateMessage, EventGroupMessage, EventJoinGroup, EventLeaveGroup:
		return true
	default:
		return false
	}
}

// Frame is the wire unit exchanged over a connection: an event name plus its
// raw payload. Inbound payloads stay raw until the hub knows the event type.
type Frame struct {
	Event   EventType       `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// MessageKind distinguishes the two envelope classes the relay routes.
type MessageKind string

const (
	KindPrivate MessageKind = "private"
	KindGroup   MessageKind = "group"
)

// Envelope is the in-flight chat message payload. The relay delivers it
// unmodified except for SenderID, which is always overwritten with the
// handshake-authenticated identity. Metadata is opaque and passed through
// untouched.
type Envelope struct {
	SenderID    string         `json:"senderId"`
	RecipientID string         `json:"recipientId,omitempty"`
	GroupID     string         `json:"groupId,omitempty"`
	Content     string         `json:"content"`
	Timestamp   int64          `json:"timestamp"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// ValidatePrivate checks the fields a private message must carry.
func (e *Envelope) ValidatePrivate() error {
	if e.RecipientID == "" {
		return fmt.Errorf("private message: recipientId is required")
	}
	if e.Content == "" {
		return fmt.Errorf("private message: content is required")
	}
	return nil
}

// ValidateGroup checks the fields a group message must carry.
func (e *Envelope) ValidateGroup() error {
	if e.GroupID == "" {
		return fmt.Errorf("group message: groupId is required")
	}
	if e.Content == "" {
		return fmt.Errorf("group message: content is required")
	}
	return nil
}

// stamp fills in senderID from the handshake identity and a server-side
// timestamp when the client supplied none.
func (e *Envelope) stamp(senderID string) {
	e.SenderID = senderID
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
}

// GroupEvent is the payload of join-group / leave-group requests and of the
// user-joined-group / user-left-group notifications. The UserID on inbound
// requests is ignored; the handshake identity is authoritative.
type GroupEvent struct {
	GroupID string `json:"groupId"`
	UserID  string `json:"userId"`
}

func (g *GroupEvent) Validate() error {
	if g.GroupID == "" {
		return fmt.Errorf("group event: groupId is required")
	}
	return nil
}

// encodeFrame marshals an outbound frame ready for the wire.
func encodeFrame(event EventType, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event, err)
	}
	return json.Marshal(&Frame{Event: event, Payload: raw})
}
