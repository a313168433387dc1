package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/threads/domain"
	"github.com/xiaot623/threads/ratelimit"
)

// writeError maps a domain error to its stable status/code pair.
func writeError(c echo.Context, err error) error {
	var ve *domain.ValidationError
	var rl *domain.RateLimitedError

	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{
			Error:   "validation_error",
			Message: ve.Reason,
		})
	case errors.As(err, &rl):
		// The denial may come from the session ceiling rather than the
		// window the middleware checked; the headers follow the denial.
		setRateLimitHeaders(c, ratelimit.Decision{
			Limit:     rl.Limit,
			Remaining: rl.Remaining,
			ResetAt:   rl.ResetAt,
		})
		return c.JSON(http.StatusTooManyRequests, domain.ErrorResponse{
			Error:   "rate_limited",
			Message: "rate limit exceeded",
			ResetAt: rl.ResetAt.Unix(),
		})
	case errors.Is(err, domain.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, domain.ErrorResponse{
			Error:   "unauthorized",
			Message: "missing or invalid api key",
		})
	case errors.Is(err, domain.ErrNotFound):
		return c.JSON(http.StatusNotFound, domain.ErrorResponse{
			Error:   "not_found",
			Message: "session not found",
		})
	case errors.Is(err, domain.ErrSessionNotActive):
		return c.JSON(http.StatusConflict, domain.ErrorResponse{
			Error:   "session_not_active",
			Message: "session is expired or closed",
		})
	default:
		log.Printf("ERROR: internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, domain.ErrorResponse{
			Error: "internal",
		})
	}
}
