package load

import (
	"context"
	"fmt"
	"sort"

	"github.com/loadengine/backend/internal/domain/load"
	"go.uber.org/zap"
)

// CatalogService resolves SKUs against the load catalog
type CatalogService struct {
	repo   load.CatalogRepository
	logger *zap.Logger
}

// NewCatalogService creates a new CatalogService
func NewCatalogService(repo load.CatalogRepository, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repo: repo, logger: logger}
}

// Resolve returns the best catalog item for keyword on telco. Candidates are
// ordered by SKU type, then by best wholesale discount descending.
func (s *CatalogService) Resolve(ctx context.Context, telco load.Telco, keyword string) (*load.CatalogItem, error) {
	items, err := s.repo.ListByTelco(ctx, telco)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}

	matches := make([]load.CatalogItem, 0, len(items))
	for _, item := range items {
		if item.Matches(telco, keyword) {
			matches = append(matches, item)
		}
	}
	if len(matches) == 0 {
		s.logger.Debug("No catalog item matches",
			zap.String("telco", telco.String()),
			zap.String("keyword", keyword))
		return nil, load.ErrCatalogItemNotFound
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Type != matches[j].Type {
			return matches[i].Type < matches[j].Type
		}
		return matches[i].BestDiscount().GreaterThan(matches[j].BestDiscount())
	})
	return &matches[0], nil
}
