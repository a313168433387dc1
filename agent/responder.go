// Package agent provides the responder boundary: the external capability
// that produces reply messages for a session.
package agent

import (
	"context"
	"encoding/json"

	"github.com/xiaot623/threads/domain"
)

// Reply is one message produced by the responder. Type is one of the
// domain message types; the core appends it back to the session log.
type Reply struct {
	Type       string          `json:"type"`
	Content    string          `json:"content"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
}

// EmitFunc receives replies as the responder produces them. Returning an
// error stops the stream.
type EmitFunc func(Reply) error

// Responder produces zero or more reply messages for a session. The call
// is made asynchronously by the service; its failures are isolated from
// the user message that triggered it.
type Responder interface {
	Respond(ctx context.Context, sessionID string, conversation []domain.Message, emit EmitFunc) error
}
