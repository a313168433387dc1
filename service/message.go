package service

import (
	"context"
	"log"

	"github.com/xiaot623/threads/agent"
	"github.com/xiaot623/threads/domain"
)

// SendMessage appends a user message and fires the responder without
// waiting for it. The call returns as soon as the append has committed;
// replies arrive later as assistant/tool appends.
func (s *Service) SendMessage(ctx context.Context, credentialID, sessionID, content string) error {
	// Validation happens before any mutation.
	if err := s.validateMessage(ctx, domain.MessageTypeUser, content, ""); err != nil {
		return err
	}

	session, err := s.GetThread(ctx, credentialID, sessionID)
	if err != nil {
		return err
	}
	if !session.Status.Writable() {
		return domain.ErrSessionNotActive
	}

	if _, err := s.append(ctx, sessionID, &domain.Message{
		Type:    domain.MessageTypeUser,
		Content: content,
	}); err != nil {
		return err
	}

	if session.MessageCount == 0 {
		go s.deriveTopic(sessionID, content)
	}
	go s.respond(sessionID)
	return nil
}

// ListMessages returns one page of the session's log. EXPIRED and CLOSED
// sessions stay readable.
func (s *Service) ListMessages(ctx context.Context, credentialID, sessionID string, q domain.RangeQuery) ([]domain.Message, error) {
	if _, err := s.GetThread(ctx, credentialID, sessionID); err != nil {
		return nil, err
	}
	return s.store.RangeMessages(ctx, sessionID, q)
}

// append validates, persists and fans out one message. Every append
// independently bumps the session counters inside the store.
func (s *Service) append(ctx context.Context, sessionID string, msg *domain.Message) (*domain.Message, error) {
	if err := s.validateMessage(ctx, msg.Type, msg.Content, msg.ToolCallID); err != nil {
		return nil, err
	}
	stored, err := s.store.AppendMessage(ctx, sessionID, msg)
	if err != nil {
		return nil, err
	}
	if s.hub != nil {
		s.hub.Broadcast(sessionID, stored)
	}
	return stored, nil
}

// loadConversation pages through the whole log oldest-first. The
// responder always gets every message, including the one that
// triggered the call, no matter how long the session has run.
func (s *Service) loadConversation(ctx context.Context, sessionID string) ([]domain.Message, error) {
	var conversation []domain.Message
	var after int64
	for {
		page, err := s.store.RangeMessages(ctx, sessionID, domain.RangeQuery{
			Limit: domain.MaxRangeLimit,
			Order: domain.OrderAsc,
			After: after,
		})
		if err != nil {
			return nil, err
		}
		conversation = append(conversation, page...)
		// Short page marks the end of the log.
		if len(page) < domain.MaxRangeLimit {
			return conversation, nil
		}
		after = page[len(page)-1].ID
	}
}

// respond invokes the agent responder for a session and appends its
// replies. Runs detached from the originating request: responder
// failures are logged, never surfaced to the sendMessage caller, and
// never roll back the committed user message.
func (s *Service) respond(sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ResponderTimeout)
	defer cancel()

	conversation, err := s.loadConversation(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR: failed to load conversation for %s: %v", sessionID, err)
		return
	}

	err = s.responder.Respond(ctx, sessionID, conversation, func(reply agent.Reply) error {
		_, err := s.append(ctx, sessionID, &domain.Message{
			Type:       domain.MessageType(reply.Type),
			Content:    reply.Content,
			ToolCallID: reply.ToolCallID,
			Metadata:   reply.Metadata,
		})
		return err
	})
	if err != nil {
		log.Printf("WARN: responder failed for %s: %v", sessionID, err)
	}
}
