package dto

import (
	"time"

	"github.com/noah-isme/sigab-api/internal/models"
)

// CreateDisposalRequest carries the metadata part of a disposal request. The
// founding document travels alongside as a multipart file.
type CreateDisposalRequest struct {
	AssetID       string `form:"asset_id" json:"asset_id" validate:"required"`
	Reason        string `form:"reason" json:"reason" validate:"required"`
	Justification string `form:"justification" json:"justification" validate:"required"`
}

// TransitionRequest asks the engine to move a case to the target stage.
type TransitionRequest struct {
	TargetStage string `json:"target_stage" validate:"required"`
}

// AttachDocumentRequest carries the metadata part of a document upload.
type AttachDocumentRequest struct {
	DocumentType string `form:"document_type" json:"document_type" validate:"required"`
}

// RegisterDispositionRequest records the physical outcome of a disposal.
type RegisterDispositionRequest struct {
	Type       string    `json:"type" validate:"required"`
	DisposedOn time.Time `json:"disposed_on" validate:"required"`
	SaleValue  *float64  `json:"sale_value,omitempty"`
	Donee      *string   `json:"donee,omitempty"`
	Notes      *string   `json:"notes,omitempty"`
}

// DisposalQuery filters case listings.
type DisposalQuery struct {
	AssetID string
	Reason  string
	Stage   string
	Limit   int
	Offset  int
}

// NextAction describes the single legal move out of a case's current stage.
type NextAction struct {
	TargetStage      string `json:"target_stage"`
	RequiredDocument string `json:"required_document,omitempty"`
	ActionLabel      string `json:"action_label"`
}

// CaseDetail aggregates a case with its ledger and disposition for reads.
type CaseDetail struct {
	Case        models.DisposalCase      `json:"case"`
	Documents   []models.CaseDocument    `json:"documents"`
	Disposition *models.FinalDisposition `json:"disposition,omitempty"`
	NextAction  *NextAction              `json:"next_action,omitempty"`
	Timeline    []string                 `json:"timeline"`
}
