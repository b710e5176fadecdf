package api

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/grupomeraki/leadchat/capture"
	"github.com/grupomeraki/leadchat/session"
)

// SubmitCapture converts a capture_offered session into a CRM lead and a
// hand-off link.
// POST /v1/widget/sessions/:session_id/capture
func (h *Handler) SubmitCapture(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	var req capture.Request
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	ctrl, err := h.manager.Get(ctx, sessionID)
	if err != nil {
		log.Printf("ERROR: failed to load session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load session"})
	}

	snap, rec, err := h.submitter.Submit(ctx, ctrl, req)

	var vErr *capture.ValidationError
	switch {
	case errors.As(err, &vErr):
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": vErr.Message,
			"field": vErr.Field,
		})
	case errors.Is(err, session.ErrCaptureNotOffered), errors.Is(err, session.ErrCaptureInFlight):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "failed to register contact"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"lead_id":      rec.LeadID,
		"handoff_link": snap.HandoffLink,
		"mode":         snap.Mode,
	})
}
