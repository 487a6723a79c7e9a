package models

import "time"

// DisposalReason classifies why an asset is being retired. The value is fixed
// when the case is created and never changes afterwards.
type DisposalReason string

const (
	ReasonObsolescence  DisposalReason = "OBSOLESCENCIA"
	ReasonUnserviceable DisposalReason = "INSERVIBILIDAD"
	ReasonTheft         DisposalReason = "ROBO"
	ReasonLoss          DisposalReason = "PERDIDA"
	ReasonDisaster      DisposalReason = "SINIESTRO"
	ReasonSale          DisposalReason = "VENTA"
	ReasonOther         DisposalReason = "OTRO"
)

// Known reports whether the reason is one of the configured domain values.
func (r DisposalReason) Known() bool {
	switch r {
	case ReasonObsolescence, ReasonUnserviceable, ReasonTheft, ReasonLoss, ReasonDisaster, ReasonSale, ReasonOther:
		return true
	}
	return false
}

// DisposalCase tracks one asset's journey through the disposal workflow.
// Cases are never deleted; closed cases remain as historical record.
type DisposalCase struct {
	ID                      string         `db:"id" json:"id"`
	AssetID                 string         `db:"asset_id" json:"asset_id"`
	Reason                  DisposalReason `db:"reason" json:"reason"`
	CurrentStage            string         `db:"current_stage" json:"current_stage"`
	Justification           string         `db:"justification" json:"justification"`
	RequesterName           string         `db:"requester_name" json:"requester_name"`
	RequesterSupervisorName string         `db:"requester_supervisor_name" json:"requester_supervisor_name"`
	SubmittedBy             string         `db:"submitted_by" json:"submitted_by"`
	CreatedAt               time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time      `db:"updated_at" json:"updated_at"`
}

// CaseDocument is one entry of a case's document ledger. The ledger is
// append-only; the workflow engine consults it but never mutates it.
type CaseDocument struct {
	ID           string    `db:"id" json:"id"`
	CaseID       string    `db:"case_id" json:"case_id"`
	DocumentType string    `db:"document_type" json:"document_type"`
	FileName     string    `db:"file_name" json:"file_name"`
	MimeType     string    `db:"mime_type" json:"mime_type"`
	SizeBytes    int64     `db:"size_bytes" json:"size_bytes"`
	BlobID       string    `db:"blob_id" json:"blob_id"`
	UploadedBy   string    `db:"uploaded_by" json:"uploaded_by"`
	UploadedAt   time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// DispositionType categorises the physical outcome of a disposal.
type DispositionType string

const (
	DispositionSale        DispositionType = "VENTA"
	DispositionDonation    DispositionType = "DONACION"
	DispositionDestruction DispositionType = "DESTRUCCION"
	DispositionOther       DispositionType = "OTRO"
)

// FinalDisposition records the disposition paperwork for a case. At most one
// exists per case; it is independent of the case's stage.
type FinalDisposition struct {
	ID           string          `db:"id" json:"id"`
	CaseID       string          `db:"case_id" json:"case_id"`
	Type         DispositionType `db:"type" json:"type"`
	DisposedOn   time.Time       `db:"disposed_on" json:"disposed_on"`
	SaleValue    *float64        `db:"sale_value" json:"sale_value,omitempty"`
	Donee        *string         `db:"donee" json:"donee,omitempty"`
	Notes        *string         `db:"notes" json:"notes,omitempty"`
	RegisteredBy string          `db:"registered_by" json:"registered_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// DisposalFilter constrains disposal case listing queries.
type DisposalFilter struct {
	AssetID string
	Reason  DisposalReason
	Stage   string
	Limit   int
	Offset  int
}
