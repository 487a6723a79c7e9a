package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigab-api/internal/models"
)

// CustodyRepository persists asset custody records.
type CustodyRepository struct {
	db *sqlx.DB
}

// NewCustodyRepository constructs the repository.
func NewCustodyRepository(db *sqlx.DB) *CustodyRepository {
	return &CustodyRepository{db: db}
}

// GetActiveByAssetID returns the asset's current custody record.
func (r *CustodyRepository) GetActiveByAssetID(ctx context.Context, assetID string) (*models.CustodyRecord, error) {
	const query = `SELECT id, asset_id, holder_name, supervisor_name, assigned_at, released_at
	FROM custody_records WHERE asset_id = $1 AND released_at IS NULL`
	var record models.CustodyRecord
	if err := r.db.GetContext(ctx, &record, query, assetID); err != nil {
		return nil, err
	}
	return &record, nil
}

// Assign closes the asset's previous custody record (if any) and opens a new
// one in a single transaction.
func (r *CustodyRepository) Assign(ctx context.Context, record *models.CustodyRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.AssignedAt.IsZero() {
		record.AssignedAt = now
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE custody_records SET released_at = $1 WHERE asset_id = $2 AND released_at IS NULL`,
		now, record.AssetID); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("release previous custody: %w", err)
	}
	const insert = `INSERT INTO custody_records (id, asset_id, holder_name, supervisor_name, assigned_at, released_at)
	VALUES (:id, :asset_id, :holder_name, :supervisor_name, :assigned_at, :released_at)`
	if _, err := tx.NamedExecContext(ctx, insert, record); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert custody record: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit custody assignment: %w", err)
	}
	return nil
}

// History returns every custody record for an asset, newest first.
func (r *CustodyRepository) History(ctx context.Context, assetID string) ([]models.CustodyRecord, error) {
	const query = `SELECT id, asset_id, holder_name, supervisor_name, assigned_at, released_at
	FROM custody_records WHERE asset_id = $1 ORDER BY assigned_at DESC`
	var records []models.CustodyRecord
	if err := r.db.SelectContext(ctx, &records, query, assetID); err != nil {
		return nil, fmt.Errorf("list custody history: %w", err)
	}
	return records, nil
}
