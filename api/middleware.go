package api

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/threads/auth"
	"github.com/xiaot623/threads/domain"
	"github.com/xiaot623/threads/ratelimit"
)

// HeaderAPIKey carries the caller's api key.
const HeaderAPIKey = "api-key"

// Rate-limit response headers, attached to every authenticated response.
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRateLimitReset     = "X-RateLimit-Reset"
)

const contextCredentialID = "credential_id"

// APIKey validates the api-key header and stores the resolved credential
// id in the request context.
func APIKey(validator auth.Validator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			credentialID, err := validator.Validate(c.Request().Header.Get(HeaderAPIKey))
			if err != nil {
				return writeError(c, err)
			}
			c.Set(contextCredentialID, credentialID)
			return next(c)
		}
	}
}

// RateLimit gates every request through the shared limiter and attaches
// the X-RateLimit headers, success or failure.
func RateLimit(limiter *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			decision := limiter.Allow(credentialID(c))
			setRateLimitHeaders(c, decision)
			if !decision.Allowed {
				return writeError(c, &domain.RateLimitedError{
					Limit:     decision.Limit,
					Remaining: decision.Remaining,
					ResetAt:   decision.ResetAt,
				})
			}
			return next(c)
		}
	}
}

func credentialID(c echo.Context) string {
	id, _ := c.Get(contextCredentialID).(string)
	return id
}

func setRateLimitHeaders(c echo.Context, d ratelimit.Decision) {
	h := c.Response().Header()
	h.Set(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
	h.Set(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
	h.Set(HeaderRateLimitReset, strconv.FormatInt(d.ResetAt.Unix(), 10))
}
