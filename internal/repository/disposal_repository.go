package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigab-api/internal/models"
)

// ErrStageConflict signals that the case's stage changed between the caller's
// read and the guarded update, i.e. a concurrent transition won.
var ErrStageConflict = errors.New("disposal case stage changed concurrently")

// ErrAssetUnavailable signals that the asset's status guard did not match
// during a case-creation transaction.
var ErrAssetUnavailable = errors.New("asset is not available for disposal")

// MissingDocumentError reports a document gate that failed inside a
// transition transaction.
type MissingDocumentError struct {
	DocumentType string
}

func (e *MissingDocumentError) Error() string {
	return fmt.Sprintf("required document %q not attached", e.DocumentType)
}

// DisposalRepository persists disposal cases, their document ledger and final
// dispositions. All mutating operations run in single transactions so a case
// row, its children, the owning asset and the audit trail move together.
type DisposalRepository struct {
	db *sqlx.DB
}

// NewDisposalRepository constructs the repository.
func NewDisposalRepository(db *sqlx.DB) *DisposalRepository {
	return &DisposalRepository{db: db}
}

const caseColumns = `id, asset_id, reason, current_stage, justification, requester_name,
       requester_supervisor_name, submitted_by, created_at, updated_at`

// GetCase fetches a disposal case by identifier.
func (r *DisposalRepository) GetCase(ctx context.Context, id string) (*models.DisposalCase, error) {
	query := `SELECT ` + caseColumns + ` FROM disposal_cases WHERE id = $1`
	var dc models.DisposalCase
	if err := r.db.GetContext(ctx, &dc, query, id); err != nil {
		return nil, err
	}
	return &dc, nil
}

// FindOpenCaseByAsset returns the asset's open case, if any. Stages listed in
// closedStages (terminal and rejected) do not count as open.
func (r *DisposalRepository) FindOpenCaseByAsset(ctx context.Context, assetID string, closedStages []string) (*models.DisposalCase, error) {
	builder := strings.Builder{}
	builder.WriteString(`SELECT ` + caseColumns + ` FROM disposal_cases WHERE asset_id = $1`)
	args := []interface{}{assetID}
	for _, stage := range closedStages {
		args = append(args, stage)
		builder.WriteString(fmt.Sprintf(" AND current_stage <> $%d", len(args)))
	}
	builder.WriteString(" LIMIT 1")

	var dc models.DisposalCase
	if err := r.db.GetContext(ctx, &dc, builder.String(), args...); err != nil {
		return nil, err
	}
	return &dc, nil
}

// List returns cases matching the filter, newest first.
func (r *DisposalRepository) List(ctx context.Context, filter models.DisposalFilter) ([]models.DisposalCase, error) {
	builder := strings.Builder{}
	args := make([]interface{}, 0, 3)
	builder.WriteString(`SELECT ` + caseColumns + ` FROM disposal_cases`)

	conditions := make([]string, 0, 3)
	if filter.AssetID != "" {
		args = append(args, filter.AssetID)
		conditions = append(conditions, fmt.Sprintf("asset_id = $%d", len(args)))
	}
	if filter.Reason != "" {
		args = append(args, filter.Reason)
		conditions = append(conditions, fmt.Sprintf("reason = $%d", len(args)))
	}
	if filter.Stage != "" {
		args = append(args, filter.Stage)
		conditions = append(conditions, fmt.Sprintf("current_stage = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE ")
		builder.WriteString(strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY created_at DESC")

	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	builder.WriteString(fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset))

	var cases []models.DisposalCase
	if err := r.db.SelectContext(ctx, &cases, builder.String(), args...); err != nil {
		return nil, fmt.Errorf("list disposal cases: %w", err)
	}
	return cases, nil
}

// ListDocuments returns the case's document ledger, oldest first.
func (r *DisposalRepository) ListDocuments(ctx context.Context, caseID string) ([]models.CaseDocument, error) {
	const query = `SELECT id, case_id, document_type, file_name, mime_type, size_bytes, blob_id, uploaded_by, uploaded_at
	FROM disposal_documents WHERE case_id = $1 ORDER BY uploaded_at ASC`
	var docs []models.CaseDocument
	if err := r.db.SelectContext(ctx, &docs, query, caseID); err != nil {
		return nil, fmt.Errorf("list case documents: %w", err)
	}
	return docs, nil
}

// GetDocument fetches a single ledger entry scoped to its case.
func (r *DisposalRepository) GetDocument(ctx context.Context, caseID, docID string) (*models.CaseDocument, error) {
	const query = `SELECT id, case_id, document_type, file_name, mime_type, size_bytes, blob_id, uploaded_by, uploaded_at
	FROM disposal_documents WHERE id = $1 AND case_id = $2`
	var doc models.CaseDocument
	if err := r.db.GetContext(ctx, &doc, query, docID, caseID); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDisposition returns the case's final disposition if registered.
func (r *DisposalRepository) GetDisposition(ctx context.Context, caseID string) (*models.FinalDisposition, error) {
	const query = `SELECT id, case_id, type, disposed_on, sale_value, donee, notes, registered_by, created_at
	FROM final_dispositions WHERE case_id = $1`
	var fd models.FinalDisposition
	if err := r.db.GetContext(ctx, &fd, query, caseID); err != nil {
		return nil, err
	}
	return &fd, nil
}

// BlobIDs returns every blob id referenced by the document ledger. Used by
// the orphan sweep.
func (r *DisposalRepository) BlobIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT blob_id FROM disposal_documents`); err != nil {
		return nil, fmt.Errorf("list ledger blob ids: %w", err)
	}
	return ids, nil
}

// CreateCaseParams groups everything written when a disposal case opens.
type CreateCaseParams struct {
	Case     *models.DisposalCase
	Document *models.CaseDocument
	Audit    *models.AuditLog
}

// CreateCase opens a disposal case in one transaction: inserts the case and
// its founding document, soft-locks the asset (status guard on ACTIVE) and
// appends the audit entry.
func (r *DisposalRepository) CreateCase(ctx context.Context, params CreateCaseParams) error {
	dc := params.Case
	if dc.ID == "" {
		dc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if dc.CreatedAt.IsZero() {
		dc.CreatedAt = now
	}
	dc.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	const insertCase = `INSERT INTO disposal_cases
	(id, asset_id, reason, current_stage, justification, requester_name, requester_supervisor_name, submitted_by, created_at, updated_at)
	VALUES (:id, :asset_id, :reason, :current_stage, :justification, :requester_name, :requester_supervisor_name, :submitted_by, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertCase, dc); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert disposal case: %w", err)
	}

	if err := insertDocumentTx(ctx, tx, dc.ID, params.Document); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE assets SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
		models.AssetStatusInDisposal, now, dc.AssetID, models.AssetStatusActive)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("lock asset for disposal: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("check asset lock rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback() //nolint:errcheck
		return ErrAssetUnavailable
	}

	if err := insertAuditLogTx(ctx, tx, params.Audit); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit disposal case: %w", err)
	}
	return nil
}

// AttachDocument appends a ledger entry and its audit record atomically.
func (r *DisposalRepository) AttachDocument(ctx context.Context, caseID string, doc *models.CaseDocument, audit *models.AuditLog) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := insertDocumentTx(ctx, tx, caseID, doc); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := insertAuditLogTx(ctx, tx, audit); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit document attach: %w", err)
	}
	return nil
}

// TransitionParams groups everything written when a case changes stage.
type TransitionParams struct {
	CaseID           string
	FromStage        string
	ToStage          string
	RequiredDocument string // when set, a ledger row of this type must exist
	DisposeAssetID   string // when set, mark this asset DISPOSED
	ReleaseAssetID   string // when set, return this asset to ACTIVE (rejection)
	ActionLabel      string
	Actor            string
}

// Transition applies a stage change in one transaction. The document gate is
// evaluated inside the same transaction as the guarded stage update, so a
// ledger row cannot disappear between the check and the commit. A zero-row
// guarded update means a concurrent transition already moved the case and
// surfaces as ErrStageConflict.
func (r *DisposalRepository) Transition(ctx context.Context, params TransitionParams) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	if params.RequiredDocument != "" {
		var exists bool
		err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM disposal_documents WHERE case_id = $1 AND document_type = $2)`,
			params.CaseID, params.RequiredDocument)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("check required document: %w", err)
		}
		if !exists {
			tx.Rollback() //nolint:errcheck
			return &MissingDocumentError{DocumentType: params.RequiredDocument}
		}
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE disposal_cases SET current_stage = $1, updated_at = $2 WHERE id = $3 AND current_stage = $4`,
		params.ToStage, now, params.CaseID, params.FromStage)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update case stage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("check stage update rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback() //nolint:errcheck
		return ErrStageConflict
	}

	if params.DisposeAssetID != "" {
		disposed, err := tx.ExecContext(ctx,
			`UPDATE assets SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			models.AssetStatusDisposed, now, params.DisposeAssetID, models.AssetStatusInDisposal)
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("dispose asset: %w", err)
		}
		disposedRows, err := disposed.RowsAffected()
		if err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("check asset disposal rows: %w", err)
		}
		if disposedRows == 0 {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("dispose asset %s: %w", params.DisposeAssetID, ErrAssetUnavailable)
		}
	}
	if params.ReleaseAssetID != "" {
		if _, err := tx.ExecContext(ctx,
			`UPDATE assets SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`,
			models.AssetStatusActive, now, params.ReleaseAssetID, models.AssetStatusInDisposal); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("release asset: %w", err)
		}
	}

	transitionPayload, _ := json.Marshal(map[string]string{"stage": params.ToStage, "action": params.ActionLabel})
	previousPayload, _ := json.Marshal(map[string]string{"stage": params.FromStage})
	caseID := params.CaseID
	actor := params.Actor
	if err := insertAuditLogTx(ctx, tx, &models.AuditLog{
		UserID:     &actor,
		Action:     models.AuditActionCaseTransition,
		Resource:   "disposal_case",
		ResourceID: &caseID,
		OldValues:  previousPayload,
		NewValues:  transitionPayload,
		IPAddress:  "system",
		UserAgent:  "disposal-engine",
	}); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if params.DisposeAssetID != "" {
		assetID := params.DisposeAssetID
		disposedPayload, _ := json.Marshal(map[string]string{"status": string(models.AssetStatusDisposed), "case_id": caseID})
		if err := insertAuditLogTx(ctx, tx, &models.AuditLog{
			UserID:     &actor,
			Action:     models.AuditActionAssetDisposed,
			Resource:   "asset",
			ResourceID: &assetID,
			NewValues:  disposedPayload,
			IPAddress:  "system",
			UserAgent:  "disposal-engine",
		}); err != nil {
			tx.Rollback() //nolint:errcheck
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transition: %w", err)
	}
	return nil
}

// RegisterDisposition inserts the case's final disposition together with its
// audit entry. The unique constraint on case_id makes the operation
// first-writer-wins; later attempts see sql.ErrNoRows.
func (r *DisposalRepository) RegisterDisposition(ctx context.Context, fd *models.FinalDisposition, audit *models.AuditLog) error {
	if fd.ID == "" {
		fd.ID = uuid.NewString()
	}
	if fd.CreatedAt.IsZero() {
		fd.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO final_dispositions (id, case_id, type, disposed_on, sale_value, donee, notes, registered_by, created_at)
	VALUES (:id, :case_id, :type, :disposed_on, :sale_value, :donee, :notes, :registered_by, :created_at)
	ON CONFLICT (case_id) DO NOTHING`
	result, err := tx.NamedExecContext(ctx, query, fd)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert final disposition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("check disposition rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}
	if err := insertAuditLogTx(ctx, tx, audit); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit disposition: %w", err)
	}
	return nil
}

func insertDocumentTx(ctx context.Context, tx *sqlx.Tx, caseID string, doc *models.CaseDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.CaseID = caseID
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO disposal_documents (id, case_id, document_type, file_name, mime_type, size_bytes, blob_id, uploaded_by, uploaded_at)
	VALUES (:id, :case_id, :document_type, :file_name, :mime_type, :size_bytes, :blob_id, :uploaded_by, :uploaded_at)`
	if _, err := tx.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("insert case document: %w", err)
	}
	return nil
}
