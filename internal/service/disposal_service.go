package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sigab-api/internal/dto"
	"github.com/noah-isme/sigab-api/internal/models"
	"github.com/noah-isme/sigab-api/internal/repository"
	"github.com/noah-isme/sigab-api/internal/workflow"
	appErrors "github.com/noah-isme/sigab-api/pkg/errors"
)

type disposalStore interface {
	GetCase(ctx context.Context, id string) (*models.DisposalCase, error)
	FindOpenCaseByAsset(ctx context.Context, assetID string, closedStages []string) (*models.DisposalCase, error)
	List(ctx context.Context, filter models.DisposalFilter) ([]models.DisposalCase, error)
	ListDocuments(ctx context.Context, caseID string) ([]models.CaseDocument, error)
	GetDocument(ctx context.Context, caseID, docID string) (*models.CaseDocument, error)
	GetDisposition(ctx context.Context, caseID string) (*models.FinalDisposition, error)
	BlobIDs(ctx context.Context) ([]string, error)
	CreateCase(ctx context.Context, params repository.CreateCaseParams) error
	AttachDocument(ctx context.Context, caseID string, doc *models.CaseDocument, audit *models.AuditLog) error
	Transition(ctx context.Context, params repository.TransitionParams) error
	RegisterDisposition(ctx context.Context, fd *models.FinalDisposition, audit *models.AuditLog) error
}

type disposalAssetReader interface {
	GetByID(ctx context.Context, id string) (*models.Asset, error)
}

type disposalCustodyReader interface {
	GetActiveByAssetID(ctx context.Context, assetID string) (*models.CustodyRecord, error)
}

type disposalBlobStorage interface {
	SaveStream(r io.Reader, ext string) (string, error)
	Open(blobID string) (*os.File, error)
	Delete(blobID string) error
	ListOlderThan(age time.Duration) ([]string, error)
}

type workflowResolver interface {
	Resolve(reason models.DisposalReason) workflow.Definition
}

type downloadSigner interface {
	Generate(docID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (docID, relPath string, expiresAt time.Time, err error)
}

// DocumentUpload carries upload metadata and the content stream.
type DocumentUpload struct {
	Filename string
	Size     int64
	MimeType string
	Content  io.Reader
}

// DocumentDownload bundles a blob stream with ledger metadata.
type DocumentDownload struct {
	File      *os.File
	Filename  string
	MimeType  string
	SizeBytes int64
}

// DisposalServiceConfig holds upload validation parameters.
type DisposalServiceConfig struct {
	MaxFileSize  int64
	AllowedMIMEs []string
	SweepMinAge  time.Duration
}

// DisposalService is the workflow engine driving assets through the disposal
// process. All stage decisions come from the injected catalog; all writes go
// through single repository transactions.
type DisposalService struct {
	repo     disposalStore
	assets   disposalAssetReader
	custody  disposalCustodyReader
	blobs    disposalBlobStorage
	catalog  workflowResolver
	signer   downloadSigner
	logger   *zap.Logger
	validate *validator.Validate
	cfg      DisposalServiceConfig
	mimeSet  map[string]struct{}
}

// NewDisposalService constructs the engine.
func NewDisposalService(repo disposalStore, assets disposalAssetReader, custody disposalCustodyReader, blobs disposalBlobStorage, catalog workflowResolver, signer downloadSigner, logger *zap.Logger, cfg DisposalServiceConfig) *DisposalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 * 1024 * 1024
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = []string{"application/pdf", "image/jpeg", "image/png"}
	}
	if cfg.SweepMinAge <= 0 {
		cfg.SweepMinAge = 24 * time.Hour
	}
	mimeSet := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, mt := range cfg.AllowedMIMEs {
		mimeSet[strings.ToLower(mt)] = struct{}{}
	}
	return &DisposalService{
		repo:     repo,
		assets:   assets,
		custody:  custody,
		blobs:    blobs,
		catalog:  catalog,
		signer:   signer,
		logger:   logger,
		validate: validator.New(),
		cfg:      cfg,
		mimeSet:  mimeSet,
	}
}

// CreateCase opens a disposal case for an asset. The founding document is
// mandatory and its blob is persisted before the recording transaction, so
// the ledger never references a blob that failed to store.
func (s *DisposalService) CreateCase(ctx context.Context, req dto.CreateDisposalRequest, upload *DocumentUpload, actorID string) (*models.DisposalCase, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "asset_id, reason and justification are required")
	}
	if upload == nil || upload.Content == nil {
		return nil, appErrors.ErrMissingInitialDocument
	}
	if err := s.checkUpload(upload); err != nil {
		return nil, err
	}

	reason := models.DisposalReason(strings.ToUpper(strings.TrimSpace(req.Reason)))
	def := s.catalog.Resolve(reason)

	asset, err := s.assets.GetByID(ctx, req.AssetID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
	}
	switch asset.Status {
	case models.AssetStatusActive:
	case models.AssetStatusInDisposal:
		return nil, appErrors.ErrAssetAlreadyInDisposal
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "asset is already disposed")
	}
	if _, err := s.repo.FindOpenCaseByAsset(ctx, asset.ID, s.closedStages(def)); err == nil {
		return nil, appErrors.ErrAssetAlreadyInDisposal
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open cases")
	}

	cust, err := s.custody.GetActiveByAssetID(ctx, asset.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "asset has no active custody record")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load custody record")
	}

	blobID, err := s.blobs.SaveStream(upload.Content, fileExt(upload.Filename))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store initial document")
	}

	dc := &models.DisposalCase{
		AssetID:                 asset.ID,
		Reason:                  reason,
		CurrentStage:            string(def.Initial()),
		Justification:           req.Justification,
		RequesterName:           cust.HolderName,
		RequesterSupervisorName: cust.SupervisorName,
		SubmittedBy:             actorID,
	}
	doc := &models.CaseDocument{
		DocumentType: string(workflow.DocRequest),
		FileName:     upload.Filename,
		MimeType:     upload.MimeType,
		SizeBytes:    upload.Size,
		BlobID:       blobID,
		UploadedBy:   actorID,
	}
	payload, _ := json.Marshal(map[string]string{"reason": string(reason), "stage": dc.CurrentStage, "asset_id": asset.ID})
	err = s.repo.CreateCase(ctx, repository.CreateCaseParams{
		Case:     dc,
		Document: doc,
		Audit: &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionCaseCreate,
			Resource:   "disposal_case",
			ResourceID: &dc.ID,
			NewValues:  payload,
			IPAddress:  "system",
			UserAgent:  "disposal-engine",
		},
	})
	if err != nil {
		s.discardBlob(blobID)
		if errors.Is(err, repository.ErrAssetUnavailable) {
			return nil, appErrors.ErrAssetAlreadyInDisposal
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create disposal case")
	}
	s.logger.Info("disposal case opened",
		zap.String("case_id", dc.ID),
		zap.String("asset_id", asset.ID),
		zap.String("reason", string(reason)))
	return dc, nil
}

// RequestTransition moves a case to the target stage after checking the
// catalog rule and the document ledger. Rejection is reachable from any
// non-terminal stage with no document gate; the terminal stage additionally
// disposes the linked asset within the same transaction.
func (s *DisposalService) RequestTransition(ctx context.Context, caseID, targetStage, actorID string) (*models.DisposalCase, error) {
	dc, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disposal case")
	}

	def := s.catalog.Resolve(dc.Reason)
	current := workflow.Stage(dc.CurrentStage)
	target := workflow.Stage(strings.TrimSpace(targetStage))

	if current == def.Terminal || current == workflow.StageRejected {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "disposal case is already closed")
	}

	params := repository.TransitionParams{
		CaseID:    dc.ID,
		FromStage: dc.CurrentStage,
		ToStage:   string(target),
		Actor:     actorID,
	}
	if target == workflow.StageRejected {
		// Rejection is unconditional: no rule lookup, no document gate.
		// The asset's soft lock is released so it can be managed again.
		params.ActionLabel = "Rechazar solicitud"
		params.ReleaseAssetID = dc.AssetID
	} else {
		rule, ok := def.RuleFor(current)
		if !ok || rule.Next != target {
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
				fmt.Sprintf("cannot move case from %q to %q", dc.CurrentStage, targetStage))
		}
		params.RequiredDocument = string(rule.RequiredDocument)
		params.ActionLabel = rule.ActionLabel
		if target == def.Terminal {
			params.DisposeAssetID = dc.AssetID
		}
	}

	if err := s.repo.Transition(ctx, params); err != nil {
		var missing *repository.MissingDocumentError
		switch {
		case errors.As(err, &missing):
			return nil, appErrors.Clone(appErrors.ErrMissingRequiredDocument,
				fmt.Sprintf("required document %q not attached to case", missing.DocumentType))
		case errors.Is(err, repository.ErrStageConflict):
			// A concurrent transition already moved the case.
			return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "case stage changed, re-read the case and retry")
		case errors.Is(err, repository.ErrAssetUnavailable):
			return nil, appErrors.Clone(appErrors.ErrConflict, "asset is not in disposal status, case left unchanged")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
		}
	}

	dc.CurrentStage = string(target)
	s.logger.Info("disposal case transitioned",
		zap.String("case_id", dc.ID),
		zap.String("from", params.FromStage),
		zap.String("to", params.ToStage))
	return dc, nil
}

// AttachDocument appends a document to the case's ledger. The blob is stored
// before the ledger transaction commits.
func (s *DisposalService) AttachDocument(ctx context.Context, caseID string, req dto.AttachDocumentRequest, upload *DocumentUpload, actorID string) (*models.CaseDocument, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document_type is required")
	}
	if upload == nil || upload.Content == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "document file is required")
	}
	if err := s.checkUpload(upload); err != nil {
		return nil, err
	}

	dc, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disposal case")
	}
	def := s.catalog.Resolve(dc.Reason)
	current := workflow.Stage(dc.CurrentStage)
	if current == def.Terminal || current == workflow.StageRejected {
		return nil, appErrors.Clone(appErrors.ErrConflict, "disposal case is already closed")
	}
	docType := workflow.DocumentType(strings.TrimSpace(req.DocumentType))
	if !def.Declares(docType) {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("document type %q is not part of the %q workflow", docType, dc.Reason))
	}

	blobID, err := s.blobs.SaveStream(upload.Content, fileExt(upload.Filename))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	doc := &models.CaseDocument{
		DocumentType: string(docType),
		FileName:     upload.Filename,
		MimeType:     upload.MimeType,
		SizeBytes:    upload.Size,
		BlobID:       blobID,
		UploadedBy:   actorID,
	}
	payload, _ := json.Marshal(map[string]string{"document_type": string(docType), "blob_id": blobID})
	audit := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionDocumentAttach,
		Resource:   "disposal_case",
		ResourceID: &dc.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "disposal-engine",
	}
	if err := s.repo.AttachDocument(ctx, dc.ID, doc, audit); err != nil {
		s.discardBlob(blobID)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}
	return doc, nil
}

// RegisterDisposition records the case's final disposition paperwork. It is
// allowed exactly once per case and does not alter the case's stage.
func (s *DisposalService) RegisterDisposition(ctx context.Context, caseID string, req dto.RegisterDispositionRequest, actorID string) (*models.FinalDisposition, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type and disposed_on are required")
	}

	dc, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disposal case")
	}

	dispType := models.DispositionType(strings.ToUpper(strings.TrimSpace(req.Type)))
	switch dispType {
	case models.DispositionSale:
		if req.SaleValue == nil || *req.SaleValue <= 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "sale_value must be positive for sale dispositions")
		}
	case models.DispositionDonation:
		if req.Donee == nil || strings.TrimSpace(*req.Donee) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "donee is required for donation dispositions")
		}
	case models.DispositionDestruction, models.DispositionOther:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported disposition type")
	}

	fd := &models.FinalDisposition{
		CaseID:       dc.ID,
		Type:         dispType,
		DisposedOn:   req.DisposedOn,
		SaleValue:    req.SaleValue,
		Donee:        req.Donee,
		Notes:        req.Notes,
		RegisteredBy: actorID,
	}
	payload, _ := json.Marshal(map[string]string{"type": string(dispType)})
	audit := &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionDispositionRegister,
		Resource:   "disposal_case",
		ResourceID: &dc.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "disposal-engine",
	}
	if err := s.repo.RegisterDisposition(ctx, fd, audit); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrDispositionAlreadyRegistered
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register disposition")
	}
	return fd, nil
}

// Get returns the case together with its ledger, disposition and the next
// legal action according to the catalog.
func (s *DisposalService) Get(ctx context.Context, caseID string) (*dto.CaseDetail, error) {
	dc, err := s.repo.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disposal case")
	}
	docs, err := s.repo.ListDocuments(ctx, dc.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load case documents")
	}
	detail := &dto.CaseDetail{Case: *dc, Documents: docs}

	fd, err := s.repo.GetDisposition(ctx, dc.ID)
	if err == nil {
		detail.Disposition = fd
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load disposition")
	}

	def := s.catalog.Resolve(dc.Reason)
	for _, stage := range def.Stages {
		detail.Timeline = append(detail.Timeline, string(stage))
	}
	current := workflow.Stage(dc.CurrentStage)
	if current != def.Terminal && current != workflow.StageRejected {
		if rule, ok := def.RuleFor(current); ok {
			detail.NextAction = &dto.NextAction{
				TargetStage:      string(rule.Next),
				RequiredDocument: string(rule.RequiredDocument),
				ActionLabel:      rule.ActionLabel,
			}
		}
	}
	return detail, nil
}

// List returns cases matching the query.
func (s *DisposalService) List(ctx context.Context, query dto.DisposalQuery) ([]models.DisposalCase, error) {
	filter := models.DisposalFilter{
		AssetID: strings.TrimSpace(query.AssetID),
		Reason:  models.DisposalReason(strings.ToUpper(strings.TrimSpace(query.Reason))),
		Stage:   strings.TrimSpace(query.Stage),
		Limit:   query.Limit,
		Offset:  query.Offset,
	}
	if query.Reason == "" {
		filter.Reason = ""
	}
	cases, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list disposal cases")
	}
	return cases, nil
}

// DocumentDownloadURL issues a short-lived signed token for the document.
func (s *DisposalService) DocumentDownloadURL(ctx context.Context, caseID, docID string) (string, error) {
	doc, err := s.repo.GetDocument(ctx, caseID, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.ErrNotFound
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	token, _, err := s.signer.Generate(doc.ID, doc.BlobID)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download token")
	}
	return token, nil
}

// OpenDocument validates the signed token and streams the document's blob.
func (s *DisposalService) OpenDocument(ctx context.Context, caseID, docID, token string) (*DocumentDownload, error) {
	doc, err := s.repo.GetDocument(ctx, caseID, docID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	signedDocID, signedPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	if signedDocID != doc.ID || signedPath != doc.BlobID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match document")
	}
	file, err := s.blobs.Open(doc.BlobID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored document")
	}
	return &DocumentDownload{
		File:      file,
		Filename:  doc.FileName,
		MimeType:  doc.MimeType,
		SizeBytes: doc.SizeBytes,
	}, nil
}

// SweepOrphanBlobs removes stored blobs that are old enough to be settled yet
// unreferenced by the ledger. A blob is written before its recording
// transaction commits, so a failed commit can strand one.
func (s *DisposalService) SweepOrphanBlobs(ctx context.Context) (int, error) {
	candidates, err := s.blobs.ListOlderThan(s.cfg.SweepMinAge)
	if err != nil {
		return 0, fmt.Errorf("list sweep candidates: %w", err)
	}
	if len(candidates) == 0 {
		return 0, nil
	}
	referenced, err := s.repo.BlobIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list referenced blobs: %w", err)
	}
	inUse := make(map[string]struct{}, len(referenced))
	for _, id := range referenced {
		inUse[id] = struct{}{}
	}
	removed := 0
	for _, id := range candidates {
		if _, ok := inUse[id]; ok {
			continue
		}
		if err := s.blobs.Delete(id); err != nil {
			s.logger.Warn("failed to remove orphan blob", zap.String("blob_id", id), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("orphan blobs removed", zap.Int("count", removed))
	}
	return removed, nil
}

func (s *DisposalService) closedStages(def workflow.Definition) []string {
	return []string{string(def.Terminal), string(workflow.StageRejected)}
}

func (s *DisposalService) checkUpload(upload *DocumentUpload) error {
	if s.cfg.MaxFileSize > 0 && upload.Size > s.cfg.MaxFileSize {
		return appErrors.Clone(appErrors.ErrValidation, "document exceeds maximum allowed size")
	}
	if _, ok := s.mimeSet[strings.ToLower(upload.MimeType)]; !ok {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported document type %q", upload.MimeType))
	}
	return nil
}

func (s *DisposalService) discardBlob(blobID string) {
	if err := s.blobs.Delete(blobID); err != nil {
		s.logger.Warn("failed to discard blob after aborted write", zap.String("blob_id", blobID), zap.Error(err))
	}
}

func fileExt(filename string) string {
	return strings.TrimPrefix(filepath.Ext(filename), ".")
}
