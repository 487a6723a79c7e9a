package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigab-api/internal/dto"
	"github.com/noah-isme/sigab-api/internal/middleware"
	"github.com/noah-isme/sigab-api/internal/models"
	"github.com/noah-isme/sigab-api/internal/service"
	appErrors "github.com/noah-isme/sigab-api/pkg/errors"
)

type fakeDisposalSrv struct {
	createResp     *models.DisposalCase
	createErr      error
	lastCreate     dto.CreateDisposalRequest
	lastUpload     *service.DocumentUpload
	transitionResp *models.DisposalCase
	transitionErr  error
	lastTarget     string
	detail         *dto.CaseDetail
}

func (f *fakeDisposalSrv) CreateCase(_ context.Context, req dto.CreateDisposalRequest, upload *service.DocumentUpload, _ string) (*models.DisposalCase, error) {
	f.lastCreate = req
	f.lastUpload = upload
	return f.createResp, f.createErr
}

func (f *fakeDisposalSrv) RequestTransition(_ context.Context, _, targetStage, _ string) (*models.DisposalCase, error) {
	f.lastTarget = targetStage
	return f.transitionResp, f.transitionErr
}

func (f *fakeDisposalSrv) AttachDocument(context.Context, string, dto.AttachDocumentRequest, *service.DocumentUpload, string) (*models.CaseDocument, error) {
	return &models.CaseDocument{ID: "doc-1"}, nil
}

func (f *fakeDisposalSrv) RegisterDisposition(context.Context, string, dto.RegisterDispositionRequest, string) (*models.FinalDisposition, error) {
	return &models.FinalDisposition{ID: "fd-1"}, nil
}

func (f *fakeDisposalSrv) Get(context.Context, string) (*dto.CaseDetail, error) {
	if f.detail == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "disposal case not found")
	}
	return f.detail, nil
}

func (f *fakeDisposalSrv) List(context.Context, dto.DisposalQuery) ([]models.DisposalCase, error) {
	return nil, nil
}

func (f *fakeDisposalSrv) DocumentDownloadURL(context.Context, string, string) (string, error) {
	return "signed-token", nil
}

func (f *fakeDisposalSrv) OpenDocument(context.Context, string, string, string) (*service.DocumentDownload, error) {
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
}

type fakeCaseAudit struct {
	logs []models.AuditLog
	err  error
}

func (f *fakeCaseAudit) CaseTrail(context.Context, string, int, int) ([]models.AuditLog, error) {
	return f.logs, f.err
}

type disposalEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error *appErrors.Error       `json:"error"`
}

func multipartRequest(t *testing.T, target string, fields map[string]string, filename string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.4"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestDisposalHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDisposalHandler(&fakeDisposalSrv{}, &fakeCaseAudit{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = multipartRequest(t, "/disposals", map[string]string{
		"asset_id":      "asset-1",
		"reason":        "ROBO",
		"justification": "Equipo sustraído",
	}, "denuncia.pdf")

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDisposalHandlerCreateSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDisposalSrv{createResp: &models.DisposalCase{ID: "case-1", CurrentStage: "Solicitud Registrada"}}
	handler := NewDisposalHandler(srv, &fakeCaseAudit{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = multipartRequest(t, "/disposals", map[string]string{
		"asset_id":      "asset-1",
		"reason":        "ROBO",
		"justification": "Equipo sustraído",
	}, "denuncia.pdf")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleBienes})

	handler.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "asset-1", srv.lastCreate.AssetID)
	assert.Equal(t, "ROBO", srv.lastCreate.Reason)
	if assert.NotNil(t, srv.lastUpload) {
		assert.Equal(t, "denuncia.pdf", srv.lastUpload.Filename)
	}
}

func TestDisposalHandlerCreateMissingFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDisposalHandler(&fakeDisposalSrv{}, &fakeCaseAudit{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = multipartRequest(t, "/disposals", map[string]string{
		"asset_id":      "asset-1",
		"reason":        "ROBO",
		"justification": "Equipo sustraído",
	}, "")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleBienes})

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope disposalEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrMissingInitialDocument.Code, envelope.Error.Code)
}

func TestDisposalHandlerTransitionMapsErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := &fakeDisposalSrv{transitionErr: appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move to \"Finalizado\"")}
	handler := NewDisposalHandler(srv, &fakeCaseAudit{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	payload, _ := json.Marshal(dto.TransitionRequest{TargetStage: "Finalizado"})
	c.Request = httptest.NewRequest(http.MethodPost, "/disposals/case-1/transition", bytes.NewReader(payload))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleBienes})

	handler.Transition(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Finalizado", srv.lastTarget)
}

func TestDisposalHandlerDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewDisposalHandler(&fakeDisposalSrv{}, &fakeCaseAudit{})

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/disposals/case-1/documents/doc-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "case-1"}, {Key: "docId", Value: "doc-1"}}

	handler.DownloadDocument(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDisposalHandlerAudit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	audits := &fakeCaseAudit{logs: []models.AuditLog{{Action: "CASE_CREATE", Resource: "disposal_case"}}}
	handler := NewDisposalHandler(&fakeDisposalSrv{}, audits)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/disposals/case-1/audit", nil)
	c.Params = gin.Params{{Key: "id", Value: "case-1"}}

	handler.Audit(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CASE_CREATE")
}
