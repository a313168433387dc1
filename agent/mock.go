package agent

import (
	"context"
	"fmt"

	"github.com/xiaot623/threads/domain"
)

// MockResponder is a stand-in responder used when no endpoint is
// configured. It echoes the last user message as an assistant reply so
// the end-to-end flow works without an external agent.
type MockResponder struct{}

// NewMockResponder creates a new mock responder.
func NewMockResponder() *MockResponder {
	return &MockResponder{}
}

var _ Responder = (*MockResponder)(nil)

// Respond emits a single canned assistant reply.
func (m *MockResponder) Respond(ctx context.Context, sessionID string, conversation []domain.Message, emit EmitFunc) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	var lastUser string
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Type == domain.MessageTypeUser {
			lastUser = conversation[i].Content
			break
		}
	}

	content := "[MOCK] This is a mock reply."
	if lastUser != "" {
		content = fmt.Sprintf("[MOCK] Received your message: %q. This is a mock reply.", truncate(lastUser, 100))
	}

	return emit(Reply{Type: string(domain.MessageTypeAssistant), Content: content})
}

// truncate truncates a string to the given length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
