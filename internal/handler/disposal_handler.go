package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigab-api/internal/dto"
	"github.com/noah-isme/sigab-api/internal/models"
	"github.com/noah-isme/sigab-api/internal/service"
	appErrors "github.com/noah-isme/sigab-api/pkg/errors"
	"github.com/noah-isme/sigab-api/pkg/response"
)

type disposalService interface {
	CreateCase(ctx context.Context, req dto.CreateDisposalRequest, upload *service.DocumentUpload, actorID string) (*models.DisposalCase, error)
	RequestTransition(ctx context.Context, caseID, targetStage, actorID string) (*models.DisposalCase, error)
	AttachDocument(ctx context.Context, caseID string, req dto.AttachDocumentRequest, upload *service.DocumentUpload, actorID string) (*models.CaseDocument, error)
	RegisterDisposition(ctx context.Context, caseID string, req dto.RegisterDispositionRequest, actorID string) (*models.FinalDisposition, error)
	Get(ctx context.Context, caseID string) (*dto.CaseDetail, error)
	List(ctx context.Context, query dto.DisposalQuery) ([]models.DisposalCase, error)
	DocumentDownloadURL(ctx context.Context, caseID, docID string) (string, error)
	OpenDocument(ctx context.Context, caseID, docID, token string) (*service.DocumentDownload, error)
}

type caseAuditService interface {
	CaseTrail(ctx context.Context, caseID string, limit, offset int) ([]models.AuditLog, error)
}

// DisposalHandler exposes the disposal workflow REST endpoints.
type DisposalHandler struct {
	service disposalService
	audits  caseAuditService
}

// NewDisposalHandler constructs the handler.
func NewDisposalHandler(service disposalService, audits caseAuditService) *DisposalHandler {
	return &DisposalHandler{service: service, audits: audits}
}

// Create godoc
// @Summary Open a disposal case for an asset
// @Tags Disposals
// @Accept multipart/form-data
// @Produce json
// @Param asset_id formData string true "Asset ID"
// @Param reason formData string true "Disposal reason"
// @Param justification formData string true "Justification"
// @Param file formData file true "Founding document"
// @Success 201 {object} response.Envelope
// @Router /disposals [post]
func (h *DisposalHandler) Create(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "disposal service not configured"))
		return
	}
	var req dto.CreateDisposalRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid disposal payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	upload, closeUpload, err := uploadFromForm(c, appErrors.ErrMissingInitialDocument)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeUpload()

	dc, err := h.service.CreateCase(c.Request.Context(), req, upload, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, dc, nil)
}

// List godoc
// @Summary List disposal cases
// @Tags Disposals
// @Produce json
// @Param asset_id query string false "Asset filter"
// @Param reason query string false "Reason filter"
// @Param stage query string false "Stage filter"
// @Success 200 {object} response.Envelope
// @Router /disposals [get]
func (h *DisposalHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "disposal service not configured"))
		return
	}
	query := dto.DisposalQuery{
		AssetID: strings.TrimSpace(c.Query("asset_id")),
		Reason:  strings.TrimSpace(c.Query("reason")),
		Stage:   strings.TrimSpace(c.Query("stage")),
		Limit:   intQuery(c, "limit"),
		Offset:  intQuery(c, "offset"),
	}
	cases, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cases, nil)
}

// Get godoc
// @Summary Get a disposal case with its ledger and next legal action
// @Tags Disposals
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /disposals/{id} [get]
func (h *DisposalHandler) Get(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "disposal service not configured"))
		return
	}
	detail, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Transition godoc
// @Summary Move a disposal case to the target stage
// @Tags Disposals
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.TransitionRequest true "Target stage"
// @Success 200 {object} response.Envelope
// @Router /disposals/{id}/transition [post]
func (h *DisposalHandler) Transition(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "disposal service not configured"))
		return
	}
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid transition payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	dc, err := h.service.RequestTransition(c.Request.Context(), c.Param("id"), req.TargetStage, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dc, nil)
}

// AttachDocument godoc
// @Summary Attach a document to a disposal case
// @Tags Disposals
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Case ID"
// @Param document_type formData string true "Document type"
// @Param file formData file true "Document"
// @Success 201 {object} response.Envelope
// @Router /disposals/{id}/documents [post]
func (h *DisposalHandler) AttachDocument(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "disposal service not configured"))
		return
	}
	var req dto.AttachDocumentRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid document payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	upload, closeUpload, err := uploadFromForm(c, nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer closeUpload()

	doc, err := h.service.AttachDocument(c.Request.Context(), c.Param("id"), req, upload, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, doc, nil)
}

// DocumentDownloadURL godoc
// @Summary Get a signed download token for a ledger document
// @Tags Disposals
// @Produce json
// @Param id path string true "Case ID"
// @Param docId path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /disposals/{id}/documents/{docId}/download-url [get]
func (h *DisposalHandler) DocumentDownloadURL(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "disposal service not configured"))
		return
	}
	token, err := h.service.DocumentDownloadURL(c.Request.Context(), c.Param("id"), c.Param("docId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{
		"download_url": fmt.Sprintf("%s/documents/%s/download?token=%s", c.Param("id"), c.Param("docId"), token),
		"token":        token,
	}, nil)
}

// DownloadDocument godoc
// @Summary Download a ledger document via signed token
// @Tags Disposals
// @Produce octet-stream
// @Param id path string true "Case ID"
// @Param docId path string true "Document ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Router /disposals/{id}/documents/{docId}/download [get]
func (h *DisposalHandler) DownloadDocument(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "disposal service not configured"))
		return
	}
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	result, err := h.service.OpenDocument(c.Request.Context(), c.Param("id"), c.Param("docId"), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, result.SizeBytes, result.MimeType, result.File, nil)
}

// RegisterDisposition godoc
// @Summary Record the final disposition for a disposal case
// @Tags Disposals
// @Accept json
// @Produce json
// @Param id path string true "Case ID"
// @Param payload body dto.RegisterDispositionRequest true "Disposition details"
// @Success 201 {object} response.Envelope
// @Router /disposals/{id}/disposition [post]
func (h *DisposalHandler) RegisterDisposition(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "disposal service not configured"))
		return
	}
	var req dto.RegisterDispositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid disposition payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	fd, err := h.service.RegisterDisposition(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, fd, nil)
}

// Audit godoc
// @Summary Get the audit trail of a disposal case
// @Tags Disposals
// @Produce json
// @Param id path string true "Case ID"
// @Success 200 {object} response.Envelope
// @Router /disposals/{id}/audit [get]
func (h *DisposalHandler) Audit(c *gin.Context) {
	if h.audits == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "audit service not configured"))
		return
	}
	logs, err := h.audits.CaseTrail(c.Request.Context(), c.Param("id"), intQuery(c, "limit"), intQuery(c, "offset"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, logs, nil)
}

func uploadFromForm(c *gin.Context, missing *appErrors.Error) (*service.DocumentUpload, func(), error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		if missing == nil {
			missing = appErrors.Clone(appErrors.ErrValidation, "file is required")
		}
		return nil, func() {}, missing
	}
	src, err := fileHeader.Open()
	if err != nil {
		return nil, func() {}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	upload := &service.DocumentUpload{
		Filename: fileHeader.Filename,
		Size:     fileHeader.Size,
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  src,
	}
	return upload, func() { src.Close() }, nil //nolint:errcheck
}

func intQuery(c *gin.Context, key string) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0
	}
	return value
}
