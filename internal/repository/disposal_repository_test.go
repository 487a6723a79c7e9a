package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigab-api/internal/models"
)

func newDisposalRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func caseRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "asset_id", "reason", "current_stage", "justification", "requester_name",
		"requester_supervisor_name", "submitted_by", "created_at", "updated_at"})
}

func TestDisposalRepositoryGetCase(t *testing.T) {
	db, mock, cleanup := newDisposalRepoMock(t)
	defer cleanup()

	repo := NewDisposalRepository(db)
	rows := caseRows().
		AddRow("case-1", "asset-1", "ROBO", "Solicitud Registrada", "robo en oficina", "Juan Pérez",
			"María López", "user-1", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, asset_id, reason, current_stage")).
		WithArgs("case-1").
		WillReturnRows(rows)

	found, err := repo.GetCase(context.Background(), "case-1")
	require.NoError(t, err)
	require.Equal(t, "asset-1", found.AssetID)
	require.Equal(t, models.ReasonTheft, found.Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisposalRepositoryCreateCase(t *testing.T) {
	db, mock, cleanup := newDisposalRepoMock(t)
	defer cleanup()

	repo := NewDisposalRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO disposal_cases")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO disposal_documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assets SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	actor := "user-1"
	err := repo.CreateCase(context.Background(), CreateCaseParams{
		Case: &models.DisposalCase{
			AssetID:                 "asset-1",
			Reason:                  models.ReasonTheft,
			CurrentStage:            "Solicitud Registrada",
			Justification:           "robo en oficina",
			RequesterName:           "Juan Pérez",
			RequesterSupervisorName: "María López",
			SubmittedBy:             actor,
		},
		Document: &models.CaseDocument{
			DocumentType: "Solicitud de Baja",
			FileName:     "solicitud.pdf",
			MimeType:     "application/pdf",
			SizeBytes:    1024,
			BlobID:       "blob-1",
			UploadedBy:   actor,
		},
		Audit: &models.AuditLog{UserID: &actor, Action: models.AuditActionCaseCreate, Resource: "disposal_case"},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisposalRepositoryCreateCaseAssetUnavailable(t *testing.T) {
	db, mock, cleanup := newDisposalRepoMock(t)
	defer cleanup()

	repo := NewDisposalRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO disposal_cases")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO disposal_documents")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assets SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	actor := "user-1"
	err := repo.CreateCase(context.Background(), CreateCaseParams{
		Case:     &models.DisposalCase{AssetID: "asset-1", Reason: models.ReasonLoss, CurrentStage: "Solicitud Registrada", SubmittedBy: actor},
		Document: &models.CaseDocument{DocumentType: "Solicitud de Baja", BlobID: "blob-1", UploadedBy: actor},
		Audit:    &models.AuditLog{UserID: &actor, Action: models.AuditActionCaseCreate, Resource: "disposal_case"},
	})
	require.ErrorIs(t, err, ErrAssetUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisposalRepositoryTransition(t *testing.T) {
	db, mock, cleanup := newDisposalRepoMock(t)
	defer cleanup()

	repo := NewDisposalRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("case-1", "Denuncia de Robo").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE disposal_cases SET current_stage")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), TransitionParams{
		CaseID:           "case-1",
		FromStage:        "Solicitud Registrada",
		ToStage:          "Pendiente de Comité",
		RequiredDocument: "Denuncia de Robo",
		ActionLabel:      "Elevar al comité",
		Actor:            "user-1",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisposalRepositoryTransitionMissingDocument(t *testing.T) {
	db, mock, cleanup := newDisposalRepoMock(t)
	defer cleanup()

	repo := NewDisposalRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("case-1", "Denuncia de Robo").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), TransitionParams{
		CaseID:           "case-1",
		FromStage:        "Solicitud Registrada",
		ToStage:          "Pendiente de Comité",
		RequiredDocument: "Denuncia de Robo",
		Actor:            "user-1",
	})
	var missing *MissingDocumentError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, "Denuncia de Robo", missing.DocumentType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisposalRepositoryTransitionStageConflict(t *testing.T) {
	db, mock, cleanup := newDisposalRepoMock(t)
	defer cleanup()

	repo := NewDisposalRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE disposal_cases SET current_stage")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), TransitionParams{
		CaseID:    "case-1",
		FromStage: "Solicitud Registrada",
		ToStage:   "Rechazado",
		Actor:     "user-1",
	})
	require.ErrorIs(t, err, ErrStageConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisposalRepositoryTransitionTerminalDisposesAsset(t *testing.T) {
	db, mock, cleanup := newDisposalRepoMock(t)
	defer cleanup()

	repo := NewDisposalRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("case-1", "Resolución de Comité").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE disposal_cases SET current_stage")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assets SET status")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.Transition(context.Background(), TransitionParams{
		CaseID:           "case-1",
		FromStage:        "Pendiente de Comité",
		ToStage:          "Finalizado",
		RequiredDocument: "Resolución de Comité",
		DisposeAssetID:   "asset-1",
		ActionLabel:      "Ejecutar baja",
		Actor:            "user-1",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisposalRepositoryTransitionRollsBackWhenAssetNotDisposable(t *testing.T) {
	db, mock, cleanup := newDisposalRepoMock(t)
	defer cleanup()

	repo := NewDisposalRepository(db)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("case-1", "Resolución de Comité").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE disposal_cases SET current_stage")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE assets SET status")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Transition(context.Background(), TransitionParams{
		CaseID:           "case-1",
		FromStage:        "Pendiente de Comité",
		ToStage:          "Finalizado",
		RequiredDocument: "Resolución de Comité",
		DisposeAssetID:   "asset-1",
		ActionLabel:      "Ejecutar baja",
		Actor:            "user-1",
	})
	require.ErrorIs(t, err, ErrAssetUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDisposalRepositoryRegisterDispositionConflict(t *testing.T) {
	db, mock, cleanup := newDisposalRepoMock(t)
	defer cleanup()

	repo := NewDisposalRepository(db)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO final_dispositions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	actor := "user-1"
	err := repo.RegisterDisposition(context.Background(), &models.FinalDisposition{
		CaseID:       "case-1",
		Type:         models.DispositionDonation,
		DisposedOn:   time.Now(),
		RegisteredBy: actor,
	}, &models.AuditLog{UserID: &actor, Action: models.AuditActionDispositionRegister, Resource: "disposal_case"})
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}
