package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigab-api/internal/dto"
	"github.com/noah-isme/sigab-api/internal/middleware"
	"github.com/noah-isme/sigab-api/internal/models"
	"github.com/noah-isme/sigab-api/internal/service"
	appErrors "github.com/noah-isme/sigab-api/pkg/errors"
	"github.com/noah-isme/sigab-api/pkg/response"
)

type assetService interface {
	Create(ctx context.Context, req dto.CreateAssetRequest) (*models.Asset, error)
	Get(ctx context.Context, id string) (*models.Asset, error)
	List(ctx context.Context, query dto.AssetQuery) (*service.AssetListResult, error)
	AssignCustody(ctx context.Context, assetID string, req dto.AssignCustodyRequest) (*models.CustodyRecord, error)
	CustodyHistory(ctx context.Context, assetID string) ([]models.CustodyRecord, error)
}

// AssetHandler exposes the asset registry REST endpoints.
type AssetHandler struct {
	service assetService
}

// NewAssetHandler constructs the handler.
func NewAssetHandler(service assetService) *AssetHandler {
	return &AssetHandler{service: service}
}

// Create godoc
// @Summary Register a new asset
// @Tags Assets
// @Accept json
// @Produce json
// @Param payload body dto.CreateAssetRequest true "Asset payload"
// @Success 201 {object} response.Envelope
// @Router /assets [post]
func (h *AssetHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "asset service not configured"))
		return
	}
	var req dto.CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid asset payload"))
		return
	}
	asset, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, asset, nil)
}

// List godoc
// @Summary List assets
// @Tags Assets
// @Produce json
// @Param status query string false "Status filter"
// @Param search query string false "Name or code search"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /assets [get]
func (h *AssetHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "asset service not configured"))
		return
	}
	query := dto.AssetQuery{
		Status:   strings.TrimSpace(c.Query("status")),
		Search:   strings.TrimSpace(c.Query("search")),
		Page:     intQuery(c, "page"),
		PageSize: intQuery(c, "pageSize"),
	}
	result, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.CacheHit)
	response.JSON(c, http.StatusOK, result.Assets, &result.Pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get asset detail
// @Tags Assets
// @Produce json
// @Param id path string true "Asset ID"
// @Success 200 {object} response.Envelope
// @Router /assets/{id} [get]
func (h *AssetHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "asset service not configured"))
		return
	}
	asset, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, asset, nil)
}

// AssignCustody godoc
// @Summary Assign asset custody to a holder
// @Tags Assets
// @Accept json
// @Produce json
// @Param id path string true "Asset ID"
// @Param payload body dto.AssignCustodyRequest true "Custody payload"
// @Success 201 {object} response.Envelope
// @Router /assets/{id}/custody [post]
func (h *AssetHandler) AssignCustody(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "asset service not configured"))
		return
	}
	var req dto.AssignCustodyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid custody payload"))
		return
	}
	record, err := h.service.AssignCustody(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, record, nil)
}

// CustodyHistory godoc
// @Summary Get the custody history of an asset
// @Tags Assets
// @Produce json
// @Param id path string true "Asset ID"
// @Success 200 {object} response.Envelope
// @Router /assets/{id}/custody [get]
func (h *AssetHandler) CustodyHistory(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "asset service not configured"))
		return
	}
	records, err := h.service.CustodyHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, nil)
}
