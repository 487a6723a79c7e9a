package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigab-api/internal/models"
)

// AssetRepository persists registered assets. Status changes tied to the
// disposal workflow go through DisposalRepository transactions instead.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository constructs the repository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

const assetColumns = `id, code, name, description, value, location, status, created_at, updated_at`

// Create inserts a new asset row.
func (r *AssetRepository) Create(ctx context.Context, asset *models.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	if asset.Status == "" {
		asset.Status = models.AssetStatusActive
	}
	now := time.Now().UTC()
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = now
	}
	asset.UpdatedAt = now
	const query = `INSERT INTO assets (id, code, name, description, value, location, status, created_at, updated_at)
	VALUES (:id, :code, :name, :description, :value, :location, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, asset); err != nil {
		return fmt.Errorf("create asset: %w", err)
	}
	return nil
}

// GetByID fetches an asset by identifier.
func (r *AssetRepository) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE id = $1`
	var asset models.Asset
	if err := r.db.GetContext(ctx, &asset, query, id); err != nil {
		return nil, err
	}
	return &asset, nil
}

// List returns assets matching the filter together with a total count.
func (r *AssetRepository) List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, int, error) {
	conditions := make([]string, 0, 2)
	args := make([]interface{}, 0, 2)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args), len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM assets"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count assets: %w", err)
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	query := `SELECT ` + assetColumns + ` FROM assets` + where +
		fmt.Sprintf(" ORDER BY code ASC LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

	var assets []models.Asset
	if err := r.db.SelectContext(ctx, &assets, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list assets: %w", err)
	}
	return assets, total, nil
}
