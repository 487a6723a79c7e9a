package workflow

import (
	"fmt"

	"github.com/noah-isme/sigab-api/internal/models"
)

// Stage names one step of a disposal workflow.
type Stage string

// DocumentType names a document class recorded in a case's ledger.
type DocumentType string

// Stages shared across workflow definitions. StageRejected is reachable from
// any non-terminal stage and therefore never appears in a definition's stage
// list or transition table.
const (
	StageRequested  Stage = "Solicitud Registrada"
	StageTechReview Stage = "Revisión Técnica"
	StageValuation  Stage = "Tasación"
	StageCommittee  Stage = "Pendiente de Comité"
	StageFinalized  Stage = "Finalizado"
	StageRejected   Stage = "Rechazado"
)

// Document types referenced by the built-in definitions.
const (
	DocRequest         DocumentType = "Solicitud de Baja"
	DocTechnicalReport DocumentType = "Informe Técnico"
	DocConditionReport DocumentType = "Informe de Estado"
	DocPoliceReport    DocumentType = "Denuncia de Robo"
	DocAffidavit       DocumentType = "Declaración Jurada"
	DocDisasterReport  DocumentType = "Informe de Siniestro"
	DocAppraisalReport DocumentType = "Informe de Tasación"
	DocSaleRecord      DocumentType = "Acta de Venta"
	DocCommitteeRuling DocumentType = "Resolución de Comité"
)

// Rule describes the single legal transition out of a stage.
type Rule struct {
	Next             Stage        `json:"next"`
	RequiredDocument DocumentType `json:"required_document,omitempty"`
	ActionLabel      string       `json:"action_label"`
}

// Definition is the complete workflow configuration for one disposal reason.
// The stage list is the informational timeline; Transitions is authoritative
// for what moves are legal.
type Definition struct {
	Reason            models.DisposalReason   `json:"reason"`
	Stages            []Stage                 `json:"stages"`
	RequiredDocuments map[DocumentType]string `json:"required_documents"`
	Transitions       map[Stage]Rule          `json:"transitions"`
	Terminal          Stage                   `json:"terminal"`
}

// Initial returns the entry stage of the workflow.
func (d Definition) Initial() Stage {
	if len(d.Stages) == 0 {
		return ""
	}
	return d.Stages[0]
}

// RuleFor returns the outgoing rule for the given stage, if any.
func (d Definition) RuleFor(stage Stage) (Rule, bool) {
	rule, ok := d.Transitions[stage]
	return rule, ok
}

// Declares reports whether the document type belongs to this workflow.
func (d Definition) Declares(docType DocumentType) bool {
	_, ok := d.RequiredDocuments[docType]
	return ok
}

// validate checks the definition's referential integrity: every transition
// must connect stages from the timeline, every gating document must be
// declared, and the terminal and rejected stages must have no outgoing rule.
func (d Definition) validate() error {
	if len(d.Stages) == 0 {
		return fmt.Errorf("workflow %q: no stages defined", d.Reason)
	}
	known := make(map[Stage]struct{}, len(d.Stages))
	for _, stage := range d.Stages {
		if stage == StageRejected {
			return fmt.Errorf("workflow %q: %q must not appear in the stage list", d.Reason, StageRejected)
		}
		if _, dup := known[stage]; dup {
			return fmt.Errorf("workflow %q: duplicate stage %q", d.Reason, stage)
		}
		known[stage] = struct{}{}
	}
	if _, ok := known[d.Terminal]; !ok {
		return fmt.Errorf("workflow %q: terminal stage %q not in stage list", d.Reason, d.Terminal)
	}
	for from, rule := range d.Transitions {
		if from == d.Terminal || from == StageRejected {
			return fmt.Errorf("workflow %q: stage %q must not have outgoing transitions", d.Reason, from)
		}
		if _, ok := known[from]; !ok {
			return fmt.Errorf("workflow %q: transition from unknown stage %q", d.Reason, from)
		}
		if _, ok := known[rule.Next]; !ok {
			return fmt.Errorf("workflow %q: transition %q -> unknown stage %q", d.Reason, from, rule.Next)
		}
		if rule.RequiredDocument != "" && !d.Declares(rule.RequiredDocument) {
			return fmt.Errorf("workflow %q: transition %q requires undeclared document %q", d.Reason, from, rule.RequiredDocument)
		}
	}
	return nil
}
