package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/threads/domain"
)

const maxTopicLength = 64

// CreateThread creates a session for the credential, optionally seeding
// it with a first user message. The active-session ceiling is enforced
// here; window limits are enforced before the request reaches the
// service.
func (s *Service) CreateThread(ctx context.Context, credentialID, initialMessage string) (*domain.Session, error) {
	// Validation happens before any mutation, including the slot claim.
	if initialMessage != "" {
		if err := s.validateMessage(ctx, domain.MessageTypeUser, initialMessage, ""); err != nil {
			return nil, err
		}
	}

	slot := s.limiter.AcquireSession(credentialID)
	if !slot.Allowed {
		return nil, &domain.RateLimitedError{
			Limit:     slot.Limit,
			Remaining: slot.Remaining,
			ResetAt:   slot.ResetAt,
		}
	}

	session := &domain.Session{
		ID:           "sess_" + uuid.New().String(),
		CredentialID: credentialID,
		Status:       domain.SessionStatusActive,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		s.limiter.ReleaseSession(credentialID)
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if initialMessage != "" {
		msg, err := s.append(ctx, session.ID, &domain.Message{
			Type:    domain.MessageTypeUser,
			Content: initialMessage,
		})
		if err != nil {
			// The session committed but its seed did not; close it so a
			// retrying caller does not pile up orphan ACTIVE sessions
			// holding slots.
			if closed, cerr := s.store.CloseSession(ctx, session.ID); cerr != nil {
				log.Printf("WARN: failed to close session %s after rejected seed: %v", session.ID, cerr)
			} else if closed {
				s.limiter.ReleaseSession(credentialID)
			}
			return nil, err
		}
		session.MessageCount = 1
		session.LastMessageAt = &msg.CreatedAt
		go s.deriveTopic(session.ID, initialMessage)
		go s.respond(session.ID)
	}

	return session, nil
}

// GetThread returns the session, applying lazy expiry. Sessions of other
// credentials are reported as not found.
func (s *Service) GetThread(ctx context.Context, credentialID, sessionID string) (*domain.Session, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.CredentialID != credentialID {
		return nil, domain.ErrNotFound
	}
	return session, nil
}

// CloseThread forces the session CLOSED. Idempotent; the session slot is
// released only by the call that applied the transition.
func (s *Service) CloseThread(ctx context.Context, credentialID, sessionID string) error {
	if _, err := s.GetThread(ctx, credentialID, sessionID); err != nil {
		return err
	}
	closed, err := s.store.CloseSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if closed {
		s.limiter.ReleaseSession(credentialID)
		log.Printf("Session closed: %s", sessionID)
	}
	return nil
}

// deriveTopic assigns a short label from the first user message. Runs
// asynchronously; only the first write wins.
func (s *Service) deriveTopic(sessionID, content string) {
	topic := strings.TrimSpace(content)
	if len([]rune(topic)) > maxTopicLength {
		runes := []rune(topic)[:maxTopicLength]
		topic = string(runes)
		if i := strings.LastIndexByte(topic, ' '); i > 0 {
			topic = topic[:i]
		}
	}
	if topic == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.SetTopic(ctx, sessionID, topic); err != nil {
		log.Printf("WARN: failed to set topic for %s: %v", sessionID, err)
	}
}
