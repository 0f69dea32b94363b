package integrity

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes sweep controls and findings.
type Handler struct {
	sweeper  *Sweeper
	findings FindingRepository
	logger   *zap.Logger
}

func NewHandler(sweeper *Sweeper, findings FindingRepository, logger *zap.Logger) *Handler {
	return &Handler{sweeper: sweeper, findings: findings, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	ig := rg.Group("/integrity")
	{
		ig.POST("/sweep", h.TriggerSweep)
		ig.GET("/findings", h.ListFindings)
	}
}

func (h *Handler) TriggerSweep(c *gin.Context) {
	summary, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		if errors.Is(err, ErrSweepInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Integrity sweep failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "integrity sweep failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *Handler) ListFindings(c *gin.Context) {
	findings, err := h.findings.List(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to list integrity findings", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to list findings"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"findings": findings, "count": len(findings)})
}
