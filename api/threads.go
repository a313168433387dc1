package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/threads/domain"
)

// CreateThread creates a new thread, optionally seeded with a first
// user message.
// POST /thread
func (h *Handler) CreateThread(c echo.Context) error {
	var req domain.CreateThreadRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.Validationf("invalid request body"))
	}

	session, err := h.svc.CreateThread(c.Request().Context(), credentialID(c), req.Message)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusCreated, domain.CreateThreadResponse{
		ID:        session.ID,
		CreatedAt: session.CreatedAt,
	})
}

// GetThread returns the thread's session record.
// GET /thread/:id
func (h *Handler) GetThread(c echo.Context) error {
	session, err := h.svc.GetThread(c.Request().Context(), credentialID(c), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, session)
}

// PostMessage appends a user message. Returns as soon as the append has
// committed; the reply arrives asynchronously.
// POST /thread/:id/messages
func (h *Handler) PostMessage(c echo.Context) error {
	var req domain.PostMessageRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, domain.Validationf("invalid request body"))
	}

	if err := h.svc.SendMessage(c.Request().Context(), credentialID(c), c.Param("id"), req.Message); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, domain.SuccessResponse{Success: true})
}

// ListMessages returns one page of the thread's log, oldest first by
// default. End of pagination shows as a short page, not a sentinel.
// GET /thread/:id/messages?limit&order&after&before
func (h *Handler) ListMessages(c echo.Context) error {
	q, err := parseRangeQuery(c)
	if err != nil {
		return writeError(c, err)
	}

	messages, err := h.svc.ListMessages(c.Request().Context(), credentialID(c), c.Param("id"), q)
	if err != nil {
		return writeError(c, err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return c.JSON(http.StatusOK, messages)
}

// CloseThread forces the thread CLOSED. Idempotent.
// POST /thread/:id/close
func (h *Handler) CloseThread(c echo.Context) error {
	if err := h.svc.CloseThread(c.Request().Context(), credentialID(c), c.Param("id")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, domain.SuccessResponse{Success: true})
}

// parseRangeQuery reads limit/order/after/before. Defaults apply only
// when a parameter is absent: an explicit limit=0 is rejected.
func parseRangeQuery(c echo.Context) (domain.RangeQuery, error) {
	q := domain.RangeQuery{
		Limit: domain.DefaultRangeLimit,
		Order: domain.OrderAsc,
	}

	if l := c.QueryParam("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			return q, domain.Validationf("limit must be an integer")
		}
		q.Limit = v
	}
	if o := c.QueryParam("order"); o != "" {
		q.Order = domain.Order(o)
	}
	if a := c.QueryParam("after"); a != "" {
		v, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return q, domain.Validationf("after must be a message id")
		}
		q.After = v
	}
	if b := c.QueryParam("before"); b != "" {
		v, err := strconv.ParseInt(b, 10, 64)
		if err != nil {
			return q, domain.Validationf("before must be a message id")
		}
		q.Before = v
	}

	return q, nil
}
