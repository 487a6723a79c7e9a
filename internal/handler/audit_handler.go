package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigab-api/internal/models"
	appErrors "github.com/noah-isme/sigab-api/pkg/errors"
	"github.com/noah-isme/sigab-api/pkg/response"
)

type auditService interface {
	List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, error)
}

// AuditHandler exposes the audit trail listing endpoint.
type AuditHandler struct {
	service auditService
}

// NewAuditHandler constructs the handler.
func NewAuditHandler(service auditService) *AuditHandler {
	return &AuditHandler{service: service}
}

// List godoc
// @Summary List audit log entries
// @Tags Audit
// @Produce json
// @Param action query string false "Action filter"
// @Param resource query string false "Resource filter"
// @Param resource_id query string false "Resource ID filter"
// @Param user_id query string false "User filter"
// @Success 200 {object} response.Envelope
// @Router /audit-logs [get]
func (h *AuditHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "audit service not configured"))
		return
	}
	filter := models.AuditFilter{
		Action:     strings.ToUpper(strings.TrimSpace(c.Query("action"))),
		Resource:   strings.TrimSpace(c.Query("resource")),
		ResourceID: strings.TrimSpace(c.Query("resource_id")),
		UserID:     strings.TrimSpace(c.Query("user_id")),
		Limit:      intQuery(c, "limit"),
		Offset:     intQuery(c, "offset"),
	}
	logs, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}
