// Package api provides the widget-facing HTTP handlers.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grupomeraki/leadchat/capture"
	"github.com/grupomeraki/leadchat/hub"
	"github.com/grupomeraki/leadchat/session"
)

// Handler handles HTTP requests.
type Handler struct {
	manager   *session.Manager
	submitter *capture.Submitter
	ws        *hub.Server
}

// NewHandler creates a new handler.
func NewHandler(manager *session.Manager, submitter *capture.Submitter, ws *hub.Server) *Handler {
	return &Handler{
		manager:   manager,
		submitter: submitter,
		ws:        ws,
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Widget API
	e.GET("/v1/widget/sessions/:session_id", h.GetSession)
	e.POST("/v1/widget/sessions/:session_id/messages", h.SendMessage)
	e.POST("/v1/widget/sessions/:session_id/cancel", h.CancelStream)
	e.POST("/v1/widget/sessions/:session_id/reset", h.ResetSession)
	e.POST("/v1/widget/sessions/:session_id/capture", h.SubmitCapture)

	// Live view
	if h.ws != nil {
		e.GET("/ws/widget/:session_id", h.ws.HandleWebSocket)
	}

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
