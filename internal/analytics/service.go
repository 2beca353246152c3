// Package analytics serves the read-only blockchain analytics endpoints that
// sit behind admission control. Data is held in memory and refreshed by
// pipelines outside this service; the handlers here only query it.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"chaingate/internal/models"
)

// ErrNotFound is returned when a queried asset or corridor is not tracked.
var ErrNotFound = errors.New("not found")

// ServiceInterface defines the analytics query operations.
type ServiceInterface interface {
	// ListAssets returns every tracked asset ordered by symbol.
	ListAssets(ctx context.Context) ([]*models.AssetResponse, error)

	// GetVerification returns the verification score for an asset.
	GetVerification(ctx context.Context, assetID string) (*models.VerificationResponse, error)

	// GetCorridorActivity summarizes transfer activity for a corridor,
	// identified as "<source>-<destination>" network pair.
	GetCorridorActivity(ctx context.Context, corridor string) (*models.CorridorActivityResponse, error)
}

// Service is the in-memory analytics store.
type Service struct {
	mu            sync.RWMutex
	assets        map[string]*models.AssetResponse
	verifications map[string]*models.VerificationResponse
	corridors     map[string]*models.CorridorActivityResponse
}

// Ensure Service implements ServiceInterface
var _ ServiceInterface = (*Service)(nil)

// NewService creates an analytics service seeded with a representative
// dataset so the API is queryable out of the box.
func NewService() *Service {
	s := &Service{
		assets:        make(map[string]*models.AssetResponse),
		verifications: make(map[string]*models.VerificationResponse),
		corridors:     make(map[string]*models.CorridorActivityResponse),
	}
	s.seed()
	return s
}

// ListAssets returns every tracked asset ordered by symbol.
func (s *Service) ListAssets(ctx context.Context) ([]*models.AssetResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assets := make([]*models.AssetResponse, 0, len(s.assets))
	for _, asset := range s.assets {
		copied := *asset
		assets = append(assets, &copied)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].Symbol < assets[j].Symbol
	})
	return assets, nil
}

// GetVerification returns the verification score for an asset.
func (s *Service) GetVerification(ctx context.Context, assetID string) (*models.VerificationResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.verifications[assetID]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	copied := *v
	return &copied, nil
}

// GetCorridorActivity summarizes transfer activity for a corridor.
func (s *Service) GetCorridorActivity(ctx context.Context, corridor string) (*models.CorridorActivityResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.corridors[corridor]
	if !ok {
		return nil, fmt.Errorf("corridor %s: %w", corridor, ErrNotFound)
	}
	copied := *c
	return &copied, nil
}

// UpsertAsset replaces or inserts a tracked asset. Exposed for data refresh
// pipelines and tests.
func (s *Service) UpsertAsset(asset *models.AssetResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *asset
	s.assets[asset.AssetID] = &copied
}

func (s *Service) seed() {
	now := time.Now().UTC()
	windowStart := now.Add(-24 * time.Hour)

	for _, asset := range []*models.AssetResponse{
		{AssetID: "usdc-eth", Symbol: "USDC", Network: "ethereum", Issuer: "circle", Supply: 2.41e10, UpdatedAt: now},
		{AssetID: "usdt-tron", Symbol: "USDT", Network: "tron", Issuer: "tether", Supply: 6.03e10, UpdatedAt: now},
		{AssetID: "dai-eth", Symbol: "DAI", Network: "ethereum", Supply: 5.3e9, UpdatedAt: now},
	} {
		s.assets[asset.AssetID] = asset
	}

	for _, v := range []*models.VerificationResponse{
		{AssetID: "usdc-eth", Score: 0.97, Factors: []string{"attested_reserves", "audited_issuer"}, ComputedAt: now},
		{AssetID: "usdt-tron", Score: 0.82, Factors: []string{"attested_reserves"}, ComputedAt: now},
		{AssetID: "dai-eth", Score: 0.91, Factors: []string{"onchain_collateral"}, ComputedAt: now},
	} {
		s.verifications[v.AssetID] = v
	}

	for _, c := range []*models.CorridorActivityResponse{
		{Corridor: "ethereum-tron", TransferCount: 18234, Volume: 4.1e8, WindowStart: windowStart, WindowEnd: now},
		{Corridor: "ethereum-polygon", TransferCount: 9412, Volume: 1.2e8, WindowStart: windowStart, WindowEnd: now},
	} {
		s.corridors[c.Corridor] = c
	}
}
