package load

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCatalogItem_Validate(t *testing.T) {
	t.Run("unique providers", func(t *testing.T) {
		item := CatalogItem{Type: SkuTypeBundle, Offers: []Offer{
			{ProviderName: ProviderDTOne}, {ProviderName: ProviderGlobeLabs},
		}}
		assert.NoError(t, item.Validate())
	})

	t.Run("duplicate provider", func(t *testing.T) {
		item := CatalogItem{Type: SkuTypeBundle, Offers: []Offer{
			{ProviderName: ProviderDTOne}, {ProviderName: "dtone"},
		}}
		assert.ErrorIs(t, item.Validate(), ErrDuplicateOffer)
	})

	t.Run("ranged needs denomination", func(t *testing.T) {
		item := CatalogItem{Type: SkuTypeRanged, Denomination: Denomination{Min: 100, Max: 10}}
		assert.ErrorIs(t, item.Validate(), ErrInvalidDenomination)
	})

	t.Run("unknown type", func(t *testing.T) {
		assert.ErrorIs(t, CatalogItem{}.Validate(), ErrInvalidRequest)
	})
}

func TestCatalogItem_Matches(t *testing.T) {
	bundle := CatalogItem{Type: SkuTypeBundle, Telco: TelcoGlobe, Keywords: []string{"GOSURF50", "promo1"}}
	ranged := CatalogItem{Type: SkuTypeRanged, Telco: TelcoSmart, Denomination: Denomination{Min: 10, Max: 1000}}

	tests := []struct {
		name    string
		item    CatalogItem
		telco   Telco
		keyword string
		want    bool
	}{
		{"bundle keyword", bundle, TelcoGlobe, "gosurf50", true},
		{"bundle any telco", bundle, TelcoNone, "PROMO1", true},
		{"bundle wrong telco", bundle, TelcoSmart, "promo1", false},
		{"bundle unknown keyword", bundle, TelcoGlobe, "promo2", false},
		{"ranged inside", ranged, TelcoSmart, "150", true},
		{"ranged at bound", ranged, TelcoSmart, "1000", true},
		{"ranged outside", ranged, TelcoSmart, "1001", false},
		{"ranged not a number", ranged, TelcoSmart, "promo1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Matches(tt.telco, tt.keyword))
		})
	}
}

func TestCatalogItem_OfferForAndBestDiscount(t *testing.T) {
	item := CatalogItem{Offers: []Offer{
		{ProviderName: ProviderDTOne, ProductCode: "1234", WholesaleDiscount: decimal.NewFromFloat(3.5)},
		{ProviderName: ProviderGlobeLabs, ProductCode: "LOAD50", WholesaleDiscount: decimal.NewFromInt(7)},
	}}

	offer, ok := item.OfferFor("globelabs")
	assert.True(t, ok)
	assert.Equal(t, "LOAD50", offer.ProductCode)

	_, ok = item.OfferFor("Other")
	assert.False(t, ok)

	assert.True(t, decimal.NewFromInt(7).Equal(item.BestDiscount()))
}

func TestParseTelco(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Telco
		ok    bool
	}{
		{"exact", "Globe", TelcoGlobe, true},
		{"lowercase", "smart", TelcoSmart, true},
		{"carrier metadata name", "Sun Cellular", TelcoSun, true},
		{"dito", "DITO Telecommunity", TelcoDITO, true},
		{"empty", "", TelcoNone, false},
		{"unknown", "Verizon", TelcoNone, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTelco(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
