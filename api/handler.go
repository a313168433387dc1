// Package api provides the HTTP surface of the thread service.
package api

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/threads/auth"
	"github.com/xiaot623/threads/hub"
	"github.com/xiaot623/threads/service"
)

// Handler handles HTTP requests.
type Handler struct {
	svc       *service.Service
	validator auth.Validator
	hub       *hub.Hub
	upgrader  websocket.Upgrader
}

// NewHandler creates a new handler.
func NewHandler(svc *service.Service, validator auth.Validator, h *hub.Hub) *Handler {
	return &Handler{
		svc:       svc,
		validator: validator,
		hub:       h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers routes with the echo server. Every /thread
// route sits behind api-key auth and the rate limiter; /health does not.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("", APIKey(h.validator), RateLimit(h.svc.Limiter()))
	g.POST("/thread", h.CreateThread)
	g.GET("/thread/:id", h.GetThread)
	g.POST("/thread/:id/messages", h.PostMessage)
	g.GET("/thread/:id/messages", h.ListMessages)
	g.POST("/thread/:id/close", h.CloseThread)
	g.GET("/thread/:id/ws", h.ThreadWS)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
