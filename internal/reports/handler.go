package reports

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/attention/pkg/response"
)

// Handler exposes the report service over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a reports HTTP handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Health responds with a plaintext liveness confirmation.
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "Attention Tracking Service Running")
}

// AttentionReport returns the aggregate report, optionally filtered by the
// session_id query parameter.
func (h *Handler) AttentionReport(c *gin.Context) {
	report := h.svc.Aggregate(c.Query("session_id"))
	c.JSON(http.StatusOK, report)
}

// SessionReport returns the detail report for one session, or a 404 envelope
// when the session does not exist.
func (h *Handler) SessionReport(c *gin.Context) {
	report, ok := h.svc.Session(c.Param("session_id"))
	if !ok {
		response.NotFound(c, "Session not found")
		return
	}
	c.JSON(http.StatusOK, report)
}

type resetRequest struct {
	SessionID string `json:"session_id"`
}

// ResetAttention clears attention data for the session named in the optional
// JSON body, or everything when the body is absent. A body that fails to
// parse is an error and leaves the store untouched.
func (h *Handler) ResetAttention(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Internal(c, "Invalid JSON body: "+err.Error())
		return
	}

	msg := h.svc.Reset(req.SessionID)
	h.logger.Info("attention reset", zap.String("message", msg))
	c.JSON(http.StatusOK, gin.H{"success": true, "message": msg})
}

// Stats returns current service statistics.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "stats": h.svc.Stats()})
}
