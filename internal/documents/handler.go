package documents

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for document signing operations
type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(service Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	docs := rg.Group("/documents")
	{
		docs.POST("", h.Upload)
		docs.POST("/:id/sign", h.Sign)
		docs.GET("/:id/audit", h.GetAudit)
		docs.GET("/:id/download", h.Download)
		docs.GET("/:id/certificate", h.Certificate)
	}

	audit := rg.Group("/audit")
	{
		audit.GET("/records", h.ListAudit)
		audit.GET("/export", h.Export)
	}
}

func (h *Handler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	result, err := h.service.UploadDocument(c.Request.Context(), UploadRequest{
		FileName: file.Filename,
		Size:     file.Size,
		Content:  f,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

func (h *Handler) Sign(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.SignDocument(c.Request.Context(), id, req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetAudit(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	rec, err := h.service.GetAudit(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Download(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	variant := DocumentVariant(c.DefaultQuery("variant", string(VariantOriginal)))

	reader, err := h.service.OpenDocument(c.Request.Context(), id, variant)
	if err != nil {
		h.respondError(c, err)
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, -1, "application/pdf", reader, nil)
}

func (h *Handler) Certificate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	cert, err := h.service.BuildCertificate(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "certificate_"+id.String()+".pdf"))
	c.Data(http.StatusOK, "application/pdf", cert)
}

func (h *Handler) ListAudit(c *gin.Context) {
	recs, err := h.service.ListAudit(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"records": recs, "count": len(recs)})
}

func (h *Handler) Export(c *gin.Context) {
	format := ExportFormat(c.DefaultQuery("format", string(ExportFormatExcel)))

	data, contentType, err := h.service.ExportAuditTrail(c.Request.Context(), format)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "audit_trail."+string(format)))
	c.Data(http.StatusOK, contentType, data)
}

// respondError translates service errors into HTTP responses. Caller
// mistakes keep their message; upstream failures are logged and replaced
// with a generic body.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
	case errors.Is(err, ErrAlreadySigned):
		c.JSON(http.StatusConflict, gin.H{"error": "document already signed"})
	default:
		h.logger.Error("Document operation failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "document pipeline failed"})
	}
}
