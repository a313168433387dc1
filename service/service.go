// Package service orchestrates the thread store: validation, session
// lifecycle, message appends, responder invocation and the expiry sweep.
package service

import (
	"context"
	"log"
	"time"

	"github.com/xiaot623/threads/agent"
	"github.com/xiaot623/threads/config"
	"github.com/xiaot623/threads/domain"
	"github.com/xiaot623/threads/hub"
	"github.com/xiaot623/threads/policy"
	"github.com/xiaot623/threads/ratelimit"
	"github.com/xiaot623/threads/store"
)

// Service coordinates the store, rate limiter, admission policy,
// responder and message fanout.
type Service struct {
	store     store.Store
	limiter   *ratelimit.Limiter
	policy    *policy.Engine
	responder agent.Responder
	hub       *hub.Hub
	cfg       *config.Config
}

// New creates the service and wires the store's expiry hook to the rate
// limiter, so a session slot is returned exactly once per
// ACTIVE -> EXPIRED transition.
func New(st store.Store, limiter *ratelimit.Limiter, policyEngine *policy.Engine, responder agent.Responder, h *hub.Hub, cfg *config.Config) *Service {
	s := &Service{
		store:     st,
		limiter:   limiter,
		policy:    policyEngine,
		responder: responder,
		hub:       h,
		cfg:       cfg,
	}
	st.OnExpire(func(session *domain.Session) {
		limiter.ReleaseSession(session.CredentialID)
		log.Printf("Session expired: %s", session.ID)
	})
	return s
}

// Limiter exposes the shared limiter for the HTTP rate-limit middleware.
func (s *Service) Limiter() *ratelimit.Limiter {
	return s.limiter
}

// StartSweeper runs the background expiry sweep until ctx is cancelled.
// Lazy checks on the access paths catch whatever the sweep has not
// reached yet.
func (s *Service) StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.store.ExpireIdle(ctx)
				if err != nil {
					log.Printf("ERROR: expiry sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("Expiry sweep transitioned %d sessions", n)
				}
			}
		}
	}()
}

// validateMessage runs the admission policy. A reject decision becomes a
// ValidationError; evaluation failures are internal errors.
func (s *Service) validateMessage(ctx context.Context, msgType domain.MessageType, content, toolCallID string) error {
	decision, reason, err := s.policy.Evaluate(ctx, policy.Input{
		Type:          string(msgType),
		ContentLength: len([]rune(content)),
		ToolCallID:    toolCallID,
	})
	if err != nil {
		return err
	}
	if decision != policy.DecisionAllow {
		return &domain.ValidationError{Reason: reason}
	}
	return nil
}
