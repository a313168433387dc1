package domain

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusActive  SessionStatus = "ACTIVE"
	SessionStatusExpired SessionStatus = "EXPIRED"
	SessionStatusClosed  SessionStatus = "CLOSED"
)

// Writable reports whether messages may still be appended.
// EXPIRED and CLOSED are both terminal for writes.
func (s SessionStatus) Writable() bool {
	return s == SessionStatusActive
}

// MessageType represents the type of a message. The set is closed.
type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
	MessageTypeTool      MessageType = "tool"
	MessageTypeSystem    MessageType = "system"
)

// Order is the traversal direction for message range reads.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)
