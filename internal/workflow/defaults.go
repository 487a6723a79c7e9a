package workflow

import "github.com/noah-isme/sigab-api/internal/models"

// Default builds the catalog with the institution's standard disposal
// workflows. Each reason gets its own stage chain and document gates; reasons
// without an entry (including OTRO) resolve to the generic flow.
func Default() (*Catalog, error) {
	return NewCatalog(builtinDefinitions(), genericDefinition())
}

func builtinDefinitions() []Definition {
	return []Definition{
		{
			Reason: models.ReasonObsolescence,
			Stages: []Stage{StageRequested, StageTechReview, StageCommittee, StageFinalized},
			RequiredDocuments: map[DocumentType]string{
				DocRequest:         "Solicitud de baja firmada por el custodio del bien",
				DocTechnicalReport: "Informe técnico que sustenta la obsolescencia",
				DocCommitteeRuling: "Resolución del comité de bajas",
			},
			Transitions: map[Stage]Rule{
				StageRequested:  {Next: StageTechReview, RequiredDocument: DocRequest, ActionLabel: "Enviar a revisión técnica"},
				StageTechReview: {Next: StageCommittee, RequiredDocument: DocTechnicalReport, ActionLabel: "Elevar al comité"},
				StageCommittee:  {Next: StageFinalized, RequiredDocument: DocCommitteeRuling, ActionLabel: "Ejecutar baja"},
			},
			Terminal: StageFinalized,
		},
		{
			Reason: models.ReasonUnserviceable,
			Stages: []Stage{StageRequested, StageTechReview, StageCommittee, StageFinalized},
			RequiredDocuments: map[DocumentType]string{
				DocRequest:         "Solicitud de baja firmada por el custodio del bien",
				DocConditionReport: "Informe de estado que acredita la inservibilidad",
				DocCommitteeRuling: "Resolución del comité de bajas",
			},
			Transitions: map[Stage]Rule{
				StageRequested:  {Next: StageTechReview, RequiredDocument: DocRequest, ActionLabel: "Enviar a revisión técnica"},
				StageTechReview: {Next: StageCommittee, RequiredDocument: DocConditionReport, ActionLabel: "Elevar al comité"},
				StageCommittee:  {Next: StageFinalized, RequiredDocument: DocCommitteeRuling, ActionLabel: "Ejecutar baja"},
			},
			Terminal: StageFinalized,
		},
		{
			Reason: models.ReasonTheft,
			Stages: []Stage{StageRequested, StageCommittee, StageFinalized},
			RequiredDocuments: map[DocumentType]string{
				DocRequest:         "Solicitud de baja firmada por el custodio del bien",
				DocPoliceReport:    "Denuncia policial por el robo del bien",
				DocCommitteeRuling: "Resolución del comité de bajas",
			},
			Transitions: map[Stage]Rule{
				StageRequested: {Next: StageCommittee, RequiredDocument: DocPoliceReport, ActionLabel: "Elevar al comité"},
				StageCommittee: {Next: StageFinalized, RequiredDocument: DocCommitteeRuling, ActionLabel: "Ejecutar baja"},
			},
			Terminal: StageFinalized,
		},
		{
			Reason: models.ReasonLoss,
			Stages: []Stage{StageRequested, StageCommittee, StageFinalized},
			RequiredDocuments: map[DocumentType]string{
				DocRequest:         "Solicitud de baja firmada por el custodio del bien",
				DocAffidavit:       "Declaración jurada del custodio sobre la pérdida",
				DocCommitteeRuling: "Resolución del comité de bajas",
			},
			Transitions: map[Stage]Rule{
				StageRequested: {Next: StageCommittee, RequiredDocument: DocAffidavit, ActionLabel: "Elevar al comité"},
				StageCommittee: {Next: StageFinalized, RequiredDocument: DocCommitteeRuling, ActionLabel: "Ejecutar baja"},
			},
			Terminal: StageFinalized,
		},
		{
			Reason: models.ReasonDisaster,
			Stages: []Stage{StageRequested, StageTechReview, StageCommittee, StageFinalized},
			RequiredDocuments: map[DocumentType]string{
				DocRequest:         "Solicitud de baja firmada por el custodio del bien",
				DocDisasterReport:  "Informe del siniestro emitido por la autoridad competente",
				DocCommitteeRuling: "Resolución del comité de bajas",
			},
			Transitions: map[Stage]Rule{
				StageRequested:  {Next: StageTechReview, RequiredDocument: DocDisasterReport, ActionLabel: "Enviar a revisión técnica"},
				StageTechReview: {Next: StageCommittee, RequiredDocument: DocDisasterReport, ActionLabel: "Elevar al comité"},
				StageCommittee:  {Next: StageFinalized, RequiredDocument: DocCommitteeRuling, ActionLabel: "Ejecutar baja"},
			},
			Terminal: StageFinalized,
		},
		{
			Reason: models.ReasonSale,
			Stages: []Stage{StageRequested, StageValuation, StageCommittee, StageFinalized},
			RequiredDocuments: map[DocumentType]string{
				DocRequest:         "Solicitud de baja firmada por el custodio del bien",
				DocAppraisalReport: "Informe de tasación del bien",
				DocSaleRecord:      "Acta de venta suscrita por las partes",
			},
			Transitions: map[Stage]Rule{
				StageRequested: {Next: StageValuation, RequiredDocument: DocRequest, ActionLabel: "Enviar a tasación"},
				StageValuation: {Next: StageCommittee, RequiredDocument: DocAppraisalReport, ActionLabel: "Elevar al comité"},
				StageCommittee: {Next: StageFinalized, RequiredDocument: DocSaleRecord, ActionLabel: "Ejecutar baja"},
			},
			Terminal: StageFinalized,
		},
	}
}

// genericDefinition is the fallback flow applied to reasons with no dedicated
// entry. It mirrors the obsolescence chain with generic documents.
func genericDefinition() Definition {
	return Definition{
		Reason: models.ReasonOther,
		Stages: []Stage{StageRequested, StageTechReview, StageCommittee, StageFinalized},
		RequiredDocuments: map[DocumentType]string{
			DocRequest:         "Solicitud de baja firmada por el custodio del bien",
			DocTechnicalReport: "Informe técnico que sustenta la baja",
			DocCommitteeRuling: "Resolución del comité de bajas",
		},
		Transitions: map[Stage]Rule{
			StageRequested:  {Next: StageTechReview, RequiredDocument: DocRequest, ActionLabel: "Enviar a revisión técnica"},
			StageTechReview: {Next: StageCommittee, RequiredDocument: DocTechnicalReport, ActionLabel: "Elevar al comité"},
			StageCommittee:  {Next: StageFinalized, RequiredDocument: DocCommitteeRuling, ActionLabel: "Ejecutar baja"},
		},
		Terminal: StageFinalized,
	}
}
