package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigab-api/internal/models"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)
	require.NotEmpty(t, catalog.Definitions())

	for _, def := range catalog.Definitions() {
		require.Equal(t, StageRequested, def.Initial())
		require.Equal(t, StageFinalized, def.Terminal)

		// Every definition must chain from the initial stage to the terminal.
		stage := def.Initial()
		seen := map[Stage]bool{stage: true}
		for stage != def.Terminal {
			rule, ok := def.RuleFor(stage)
			require.True(t, ok, "workflow %s: no rule out of %s", def.Reason, stage)
			require.False(t, seen[rule.Next], "workflow %s: cycle at %s", def.Reason, rule.Next)
			seen[rule.Next] = true
			stage = rule.Next
		}
	}
}

func TestResolveKnownReason(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	def := catalog.Resolve(models.ReasonTheft)
	require.Equal(t, models.ReasonTheft, def.Reason)

	rule, ok := def.RuleFor(StageRequested)
	require.True(t, ok)
	require.Equal(t, StageCommittee, rule.Next)
	require.Equal(t, DocPoliceReport, rule.RequiredDocument)
}

func TestResolveUnknownReasonFallsBack(t *testing.T) {
	catalog, err := Default()
	require.NoError(t, err)

	def := catalog.Resolve(models.DisposalReason("REORGANIZACION"))
	require.Equal(t, catalog.Fallback().Reason, def.Reason)
	require.Equal(t, StageRequested, def.Initial())

	// OTRO has no dedicated entry either.
	require.Equal(t, catalog.Fallback().Reason, catalog.Resolve(models.ReasonOther).Reason)
}

func TestNewCatalogRejectsUnknownNextStage(t *testing.T) {
	bad := Definition{
		Reason: models.ReasonTheft,
		Stages: []Stage{StageRequested, StageFinalized},
		RequiredDocuments: map[DocumentType]string{
			DocRequest: "solicitud",
		},
		Transitions: map[Stage]Rule{
			StageRequested: {Next: StageCommittee, ActionLabel: "elevar"},
		},
		Terminal: StageFinalized,
	}
	_, err := NewCatalog([]Definition{bad}, genericDefinition())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown stage")
}

func TestNewCatalogRejectsUndeclaredDocument(t *testing.T) {
	bad := Definition{
		Reason: models.ReasonLoss,
		Stages: []Stage{StageRequested, StageFinalized},
		RequiredDocuments: map[DocumentType]string{
			DocRequest: "solicitud",
		},
		Transitions: map[Stage]Rule{
			StageRequested: {Next: StageFinalized, RequiredDocument: DocAffidavit, ActionLabel: "ejecutar"},
		},
		Terminal: StageFinalized,
	}
	_, err := NewCatalog([]Definition{bad}, genericDefinition())
	require.Error(t, err)
	require.Contains(t, err.Error(), "undeclared document")
}

func TestNewCatalogRejectsRuleOutOfTerminal(t *testing.T) {
	bad := Definition{
		Reason: models.ReasonSale,
		Stages: []Stage{StageRequested, StageFinalized},
		RequiredDocuments: map[DocumentType]string{
			DocRequest: "solicitud",
		},
		Transitions: map[Stage]Rule{
			StageRequested: {Next: StageFinalized, ActionLabel: "ejecutar"},
			StageFinalized: {Next: StageRequested, ActionLabel: "reabrir"},
		},
		Terminal: StageFinalized,
	}
	_, err := NewCatalog([]Definition{bad}, genericDefinition())
	require.Error(t, err)
}

func TestNewCatalogRejectsRejectedInStageList(t *testing.T) {
	bad := genericDefinition()
	bad.Stages = append(bad.Stages, StageRejected)
	_, err := NewCatalog(nil, bad)
	require.Error(t, err)
}
