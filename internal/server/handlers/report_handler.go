package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/invoice-ledger/internal/domain/models"
)

// TokenSource obtains a DingTalk access token.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Auditor runs the ledger audit on demand.
type Auditor interface {
	RunLedgerAudit(ctx context.Context) (models.AuditReport, error)
}

// AuditHistory returns stored audit runs.
type AuditHistory interface {
	LatestAuditReport(ctx context.Context) (models.AuditReport, bool, error)
}

// AdminHandler serves operational endpoints.
type AdminHandler struct {
	tokens  TokenSource
	auditor Auditor
	history AuditHistory
	logger  *zap.Logger
}

// NewAdminHandler builds the handler. tokens and history may be nil when
// the backing service is not configured.
func NewAdminHandler(tokens TokenSource, auditor Auditor, history AuditHistory, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{tokens: tokens, auditor: auditor, history: history, logger: logger}
}

// Health reports liveness.
func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TokenCheck verifies that DingTalk credentials still yield a token.
func (h *AdminHandler) TokenCheck(c *gin.Context) {
	if h.tokens == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "dingtalk client not configured"})
		return
	}

	if _, err := h.tokens.AccessToken(c.Request.Context()); err != nil {
		h.logger.Warn("token check failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RunAudit triggers a ledger audit and returns its report.
func (h *AdminHandler) RunAudit(c *gin.Context) {
	report, err := h.auditor.RunLedgerAudit(c.Request.Context())
	if err != nil {
		h.logger.Error("ledger audit failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"success": false, "error": "ledger audit failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "clean": report.Clean(), "report": report})
}

// LatestAudit returns the most recent stored audit.
func (h *AdminHandler) LatestAudit(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "audit history not configured"})
		return
	}

	report, ok, err := h.history.LatestAuditReport(c.Request.Context())
	if err != nil {
		h.logger.Error("failed loading audit history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load audit history"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no audit has run yet"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "clean": report.Clean(), "report": report})
}
