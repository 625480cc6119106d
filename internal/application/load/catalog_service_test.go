package load

import (
	"context"
	"errors"
	"testing"

	"github.com/loadengine/backend/internal/domain/load"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCatalogService_Resolve(t *testing.T) {
	ctx := context.Background()

	credits := load.CatalogItem{Code: "credits", Telco: load.TelcoGlobe, Type: load.SkuTypeCredits, Keywords: []string{"50"}, Offers: offers("A", 9.0)}
	ranged := load.CatalogItem{Code: "ranged", Telco: load.TelcoGlobe, Type: load.SkuTypeRanged, Denomination: load.Denomination{Min: 10, Max: 100}, Offers: offers("A", 2.0)}
	bundleLow := load.CatalogItem{Code: "bundle-low", Telco: load.TelcoGlobe, Type: load.SkuTypeBundle, Keywords: []string{"50"}, Offers: offers("A", 1.0)}
	bundleHigh := load.CatalogItem{Code: "bundle-high", Telco: load.TelcoGlobe, Type: load.SkuTypeBundle, Keywords: []string{"50"}, Offers: offers("A", 1.0, "B", 6.0)}

	t.Run("orders by type then discount", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		repo.On("ListByTelco", ctx, load.TelcoGlobe).Return([]load.CatalogItem{credits, ranged, bundleLow, bundleHigh}, nil)

		item, err := NewCatalogService(repo, nil).Resolve(ctx, load.TelcoGlobe, "50")
		require.NoError(t, err)
		assert.Equal(t, "bundle-high", item.Code)
	})

	t.Run("ranged match when no keyword matches", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		repo.On("ListByTelco", ctx, load.TelcoNone).Return([]load.CatalogItem{credits, ranged, bundleLow}, nil)

		item, err := NewCatalogService(repo, nil).Resolve(ctx, load.TelcoNone, "75")
		require.NoError(t, err)
		assert.Equal(t, "ranged", item.Code)
	})

	t.Run("no match", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		repo.On("ListByTelco", ctx, load.TelcoNone).Return([]load.CatalogItem{credits}, nil)

		_, err := NewCatalogService(repo, nil).Resolve(ctx, load.TelcoNone, "promo9")
		assert.ErrorIs(t, err, load.ErrCatalogItemNotFound)
	})

	t.Run("repository failure", func(t *testing.T) {
		repo := new(MockCatalogRepository)
		repo.On("ListByTelco", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))

		_, err := NewCatalogService(repo, nil).Resolve(ctx, load.TelcoNone, "50")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, load.ErrCatalogItemNotFound)
	})
}
