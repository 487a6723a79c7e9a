package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigab-api/internal/dto"
	"github.com/noah-isme/sigab-api/internal/models"
	appErrors "github.com/noah-isme/sigab-api/pkg/errors"
)

type stubAssetRepo struct {
	created   *models.Asset
	getByID   func(ctx context.Context, id string) (*models.Asset, error)
	listCalls int
	assets    []models.Asset
	total     int
}

func (s *stubAssetRepo) Create(ctx context.Context, asset *models.Asset) error {
	asset.ID = "asset-new"
	s.created = asset
	return nil
}

func (s *stubAssetRepo) GetByID(ctx context.Context, id string) (*models.Asset, error) {
	return s.getByID(ctx, id)
}

func (s *stubAssetRepo) List(ctx context.Context, filter models.AssetFilter) ([]models.Asset, int, error) {
	s.listCalls++
	return s.assets, s.total, nil
}

type stubCustodyRepo struct {
	assigned *models.CustodyRecord
	history  []models.CustodyRecord
}

func (s *stubCustodyRepo) GetActiveByAssetID(ctx context.Context, assetID string) (*models.CustodyRecord, error) {
	return &models.CustodyRecord{AssetID: assetID}, nil
}

func (s *stubCustodyRepo) Assign(ctx context.Context, record *models.CustodyRecord) error {
	record.ID = "custody-new"
	s.assigned = record
	return nil
}

func (s *stubCustodyRepo) History(ctx context.Context, assetID string) ([]models.CustodyRecord, error) {
	return s.history, nil
}

// memoryCache is an in-process CacheRepository used to exercise the caching
// path without Redis.
type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	return nil
}

func newTestAssetService(repo *stubAssetRepo, custody *stubCustodyRepo) (*AssetService, *memoryCache) {
	cache := newMemoryCache()
	cacheSvc := NewCacheService(cache, nil, time.Minute, nil, true)
	return NewAssetService(repo, custody, cacheSvc, time.Minute, nil), cache
}

func TestAssetServiceListCachesResults(t *testing.T) {
	repo := &stubAssetRepo{assets: []models.Asset{{ID: "asset-1", Code: "EQ-001", Name: "Laptop", Status: models.AssetStatusActive}}, total: 1}
	svc, _ := newTestAssetService(repo, &stubCustodyRepo{})

	first, err := svc.List(context.Background(), dto.AssetQuery{})
	require.NoError(t, err)
	second, err := svc.List(context.Background(), dto.AssetQuery{})
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, first.Pagination.TotalCount, second.Pagination.TotalCount)
	assert.Len(t, second.Assets, 1)
}

func TestAssetServiceCreateInvalidatesCache(t *testing.T) {
	repo := &stubAssetRepo{assets: []models.Asset{}, total: 0}
	svc, _ := newTestAssetService(repo, &stubCustodyRepo{})

	_, err := svc.List(context.Background(), dto.AssetQuery{})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), dto.CreateAssetRequest{Code: "EQ-002", Name: "Proyector"})
	require.NoError(t, err)

	_, err = svc.List(context.Background(), dto.AssetQuery{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestAssetServiceAssignCustodyDisposedAsset(t *testing.T) {
	repo := &stubAssetRepo{getByID: func(ctx context.Context, id string) (*models.Asset, error) {
		return &models.Asset{ID: id, Status: models.AssetStatusDisposed}, nil
	}}
	svc, _ := newTestAssetService(repo, &stubCustodyRepo{})

	_, err := svc.AssignCustody(context.Background(), "asset-1", dto.AssignCustodyRequest{
		HolderName: "Juan Pérez", SupervisorName: "María López",
	})

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestAssetServiceAssignCustodyHappyPath(t *testing.T) {
	repo := &stubAssetRepo{getByID: func(ctx context.Context, id string) (*models.Asset, error) {
		return &models.Asset{ID: id, Status: models.AssetStatusActive}, nil
	}}
	custody := &stubCustodyRepo{}
	svc, _ := newTestAssetService(repo, custody)

	record, err := svc.AssignCustody(context.Background(), "asset-1", dto.AssignCustodyRequest{
		HolderName: "Juan Pérez", SupervisorName: "María López",
	})
	require.NoError(t, err)
	assert.Equal(t, "custody-new", record.ID)
	assert.Equal(t, "Juan Pérez", custody.assigned.HolderName)
}
