package domain

import "time"

// CreateThreadRequest is the body of POST /thread.
type CreateThreadRequest struct {
	Message string `json:"message,omitempty"`
}

// CreateThreadResponse is returned with 201 on thread creation.
type CreateThreadResponse struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// PostMessageRequest is the body of POST /thread/:id/messages.
type PostMessageRequest struct {
	Message string `json:"message"`
}

// SuccessResponse acknowledges a write that has no payload.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	ResetAt int64  `json:"resetAt,omitempty"`
}
