package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grupomeraki/leadchat/session"
)

// GetSession returns the session snapshot, rehydrating it on first access.
// GET /v1/widget/sessions/:session_id
func (h *Handler) GetSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	ctrl, err := h.manager.Get(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR: failed to load session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load session"})
	}

	return c.JSON(http.StatusOK, ctrl.Snapshot())
}

// SendMessage appends a user message and streams the assistant reply back as
// SSE frames carrying the visible text so far. The final frame carries the
// resulting mode.
// POST /v1/widget/sessions/:session_id/messages
func (h *Handler) SendMessage(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	var req struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ctrl, err := h.manager.Get(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR: failed to load session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load session"})
	}

	resp := c.Response()
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
	}

	started := false
	ensureStream := func() {
		if started {
			return
		}
		started = true
		resp.Header().Set(echo.HeaderContentType, "text/event-stream")
		resp.Header().Set("Cache-Control", "no-cache")
		resp.Header().Set("Connection", "keep-alive")
		resp.WriteHeader(http.StatusOK)
	}
	writeFrame := func(v interface{}) {
		data, err := json.Marshal(v)
		if err != nil {
			return
		}
		fmt.Fprintf(resp.Writer, "data: %s\n\n", data)
		flusher.Flush()
	}

	err = ctrl.Send(ctx, req.Content, func(visible string) {
		ensureStream()
		writeFrame(map[string]string{"content": visible})
	})
	switch {
	case errors.Is(err, session.ErrEmptyMessage):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "content is required"})
	case errors.Is(err, session.ErrStreamInFlight):
		return c.JSON(http.StatusConflict, map[string]string{"error": "a reply is already being generated"})
	case errors.Is(err, session.ErrConversationClosed):
		return c.JSON(http.StatusConflict, map[string]string{"error": "conversation already handed off"})
	case err != nil:
		log.Printf("ERROR: send failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to send message"})
	}

	snap := ctrl.Snapshot()
	content := ""
	if last := snap.LastMessage(); last != nil {
		content = last.Content
	}
	ensureStream()
	writeFrame(map[string]interface{}{
		"content": content,
		"mode":    snap.Mode,
		"done":    true,
	})
	fmt.Fprintf(resp.Writer, "data: [DONE]\n\n")
	flusher.Flush()
	return nil
}

// CancelStream stops the in-flight stream, keeping partial content.
// POST /v1/widget/sessions/:session_id/cancel
func (h *Handler) CancelStream(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	ctrl, err := h.manager.Get(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR: failed to load session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load session"})
	}

	return c.JSON(http.StatusOK, ctrl.Cancel())
}

// ResetSession starts a new conversation.
// POST /v1/widget/sessions/:session_id/reset
func (h *Handler) ResetSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	ctrl, err := h.manager.Reset(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR: failed to reset session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to reset session"})
	}

	return c.JSON(http.StatusOK, ctrl.Snapshot())
}
