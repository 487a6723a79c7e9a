package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sigab-api/internal/dto"
	"github.com/noah-isme/sigab-api/internal/models"
	appErrors "github.com/noah-isme/sigab-api/pkg/errors"
)

type assetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetByID(ctx context.Context, id string) (*models.Asset, error)
	List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, int, error)
}

type custodyRepository interface {
	GetActiveByAssetID(ctx context.Context, assetID string) (*models.CustodyRecord, error)
	Assign(ctx context.Context, record *models.CustodyRecord) error
	History(ctx context.Context, assetID string) ([]models.CustodyRecord, error)
}

// AssetListResult bundles a page of assets with pagination metadata.
type AssetListResult struct {
	Assets     []models.Asset    `json:"assets"`
	Pagination models.Pagination `json:"pagination"`
	CacheHit   bool              `json:"-"`
}

// AssetService manages the asset registry and custody assignments. Listing
// results are cached; any write invalidates the asset cache namespace.
type AssetService struct {
	repo     assetRepository
	custody  custodyRepository
	cache    *CacheService
	cacheTTL time.Duration
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAssetService constructs the service.
func NewAssetService(repo assetRepository, custody custodyRepository, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *AssetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &AssetService{
		repo:     repo,
		custody:  custody,
		cache:    cache,
		cacheTTL: cacheTTL,
		validate: validator.New(),
		logger:   logger,
	}
}

// Create registers a new asset in ACTIVE state.
func (s *AssetService) Create(ctx context.Context, req dto.CreateAssetRequest) (*models.Asset, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "code and name are required")
	}
	asset := &models.Asset{
		Code:        strings.TrimSpace(req.Code),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Value:       req.Value,
		Location:    req.Location,
		Status:      models.AssetStatusActive,
	}
	if err := s.repo.Create(ctx, asset); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create asset")
	}
	s.invalidateListings(ctx)
	return asset, nil
}

// Get returns an asset by identifier.
func (s *AssetService) Get(ctx context.Context, id string) (*models.Asset, error) {
	asset, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "asset not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load asset")
	}
	return asset, nil
}

// List returns a page of assets, served from cache when possible.
func (s *AssetService) List(ctx context.Context, query dto.AssetQuery) (*AssetListResult, error) {
	filter := models.AssetFilter{
		Search:   strings.TrimSpace(query.Search),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if status := strings.ToUpper(strings.TrimSpace(query.Status)); status != "" {
		st := models.AssetStatus(status)
		filter.Status = &st
	}

	cacheKey := s.listingCacheKey(filter)
	var cached AssetListResult
	if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
		cached.CacheHit = true
		return &cached, nil
	}

	assets, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assets")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}
	result := &AssetListResult{
		Assets:     assets,
		Pagination: models.Pagination{Page: page, PageSize: pageSize, TotalCount: total},
	}
	if err := s.cache.Set(ctx, cacheKey, result, s.cacheTTL); err != nil {
		s.logger.Warn("failed to cache asset listing", zap.Error(err))
	}
	return result, nil
}

// AssignCustody hands the asset to a new holder and returns the new record.
func (s *AssetService) AssignCustody(ctx context.Context, assetID string, req dto.AssignCustodyRequest) (*models.CustodyRecord, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "holder_name and supervisor_name are required")
	}
	asset, err := s.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Status == models.AssetStatusDisposed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "disposed assets cannot receive custody")
	}
	record := &models.CustodyRecord{
		AssetID:        asset.ID,
		HolderName:     strings.TrimSpace(req.HolderName),
		SupervisorName: strings.TrimSpace(req.SupervisorName),
	}
	if err := s.custody.Assign(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to assign custody")
	}
	return record, nil
}

// CustodyHistory returns every custody record for an asset, newest first.
func (s *AssetService) CustodyHistory(ctx context.Context, assetID string) ([]models.CustodyRecord, error) {
	if _, err := s.Get(ctx, assetID); err != nil {
		return nil, err
	}
	records, err := s.custody.History(ctx, assetID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load custody history")
	}
	return records, nil
}

func (s *AssetService) listingCacheKey(filter models.AssetFilter) string {
	status := ""
	if filter.Status != nil {
		status = string(*filter.Status)
	}
	return fmt.Sprintf("assets:list:%s:%s:%d:%d", status, strings.ToLower(filter.Search), filter.Page, filter.PageSize)
}

func (s *AssetService) invalidateListings(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "assets:list:*"); err != nil {
		s.logger.Warn("failed to invalidate asset listings", zap.Error(err))
	}
}
