package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigab-api/internal/models"
	"github.com/noah-isme/sigab-api/internal/workflow"
	appErrors "github.com/noah-isme/sigab-api/pkg/errors"
	"github.com/noah-isme/sigab-api/pkg/response"
)

// WorkflowHandler exposes the read-only workflow catalog endpoints.
type WorkflowHandler struct {
	catalog *workflow.Catalog
}

// NewWorkflowHandler constructs the handler.
func NewWorkflowHandler(catalog *workflow.Catalog) *WorkflowHandler {
	return &WorkflowHandler{catalog: catalog}
}

// List godoc
// @Summary List configured disposal workflows
// @Tags Workflows
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workflows [get]
func (h *WorkflowHandler) List(c *gin.Context) {
	if h.catalog == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "workflow catalog not configured"))
		return
	}
	response.JSON(c, http.StatusOK, h.catalog.Definitions(), nil)
}

// Get godoc
// @Summary Get the workflow definition for a disposal reason
// @Tags Workflows
// @Produce json
// @Param reason path string true "Disposal reason"
// @Success 200 {object} response.Envelope
// @Router /workflows/{reason} [get]
func (h *WorkflowHandler) Get(c *gin.Context) {
	if h.catalog == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "workflow catalog not configured"))
		return
	}
	reason := models.DisposalReason(strings.ToUpper(strings.TrimSpace(c.Param("reason"))))
	response.JSON(c, http.StatusOK, h.catalog.Resolve(reason), nil)
}
