package load

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SkuType classifies how a catalog item is sold. The numeric value doubles
// as the lookup priority (lower sorts first).
type SkuType int

const (
	SkuTypeBundle  SkuType = 2
	SkuTypeRanged  SkuType = 5
	SkuTypeCredits SkuType = 10
)

// IsValid checks if the type is a valid SkuType
func (t SkuType) IsValid() bool {
	switch t {
	case SkuTypeBundle, SkuTypeRanged, SkuTypeCredits:
		return true
	}
	return false
}

// String returns the string representation of SkuType
func (t SkuType) String() string {
	switch t {
	case SkuTypeBundle:
		return "BUNDLE"
	case SkuTypeRanged:
		return "RANGED"
	case SkuTypeCredits:
		return "CREDITS"
	}
	return fmt.Sprintf("SkuType(%d)", int(t))
}

// ParseSkuType parses a SkuType from its name, case-insensitively
func ParseSkuType(name string) (SkuType, bool) {
	for _, t := range []SkuType{SkuTypeBundle, SkuTypeRanged, SkuTypeCredits} {
		if strings.EqualFold(name, t.String()) {
			return t, true
		}
	}
	return 0, false
}

// Telco identifies a mobile carrier. TelcoNone means "any carrier".
type Telco int

const (
	TelcoNone   Telco = 0
	TelcoGlobe  Telco = 1
	TelcoSmart  Telco = 2
	TelcoSun    Telco = 3
	TelcoDITO   Telco = 4
	TelcoCignal Telco = 200
)

var telcoNames = map[Telco]string{
	TelcoGlobe:  "Globe",
	TelcoSmart:  "Smart",
	TelcoSun:    "Sun",
	TelcoDITO:   "DITO",
	TelcoCignal: "Cignal",
}

// IsValid checks if the telco is a known carrier
func (t Telco) IsValid() bool {
	_, ok := telcoNames[t]
	return ok
}

// String returns the carrier name
func (t Telco) String() string {
	if name, ok := telcoNames[t]; ok {
		return name
	}
	return ""
}

// ParseTelco resolves a carrier name. Carrier names reported by number
// metadata may carry a suffix (for example "Globe Telecom"), so a name that
// starts with a known carrier also matches.
func ParseTelco(name string) (Telco, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return TelcoNone, false
	}
	for t, tn := range telcoNames {
		ln := strings.ToLower(tn)
		if n == ln || strings.HasPrefix(n, ln+" ") {
			return t, true
		}
	}
	return TelcoNone, false
}

// Denomination is the inclusive amount range a ranged SKU accepts
type Denomination struct {
	Min int
	Max int
}

// Contains reports whether amount lies within the range
func (d Denomination) Contains(amount int) bool {
	return amount >= d.Min && amount <= d.Max
}

// Offer is one provider's terms for a catalog item
type Offer struct {
	ProviderName      string
	ProductCode       string
	WholesaleDiscount decimal.Decimal
	Priority          int
}

// CatalogItem is a sellable load SKU with the offers competing providers make for it
type CatalogItem struct {
	ID           uuid.UUID
	Code         string
	Description  string
	Type         SkuType
	Telco        Telco
	Denomination Denomination
	Keywords     []string
	Offers       []Offer
}

// Validate checks the item's structural invariants
func (c CatalogItem) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("%w: unknown sku type %d", ErrInvalidRequest, int(c.Type))
	}
	if c.Type == SkuTypeRanged && (c.Denomination.Min <= 0 || c.Denomination.Min > c.Denomination.Max) {
		return fmt.Errorf("%w: %d-%d", ErrInvalidDenomination, c.Denomination.Min, c.Denomination.Max)
	}
	seen := make(map[string]struct{}, len(c.Offers))
	for _, o := range c.Offers {
		key := strings.ToLower(o.ProviderName)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateOffer, o.ProviderName)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// OfferFor returns the offer made by the named provider
func (c CatalogItem) OfferFor(provider string) (Offer, bool) {
	for _, o := range c.Offers {
		if strings.EqualFold(o.ProviderName, provider) {
			return o, true
		}
	}
	return Offer{}, false
}

// BestDiscount returns the highest wholesale discount across the offers
func (c CatalogItem) BestDiscount() decimal.Decimal {
	best := decimal.Zero
	for i, o := range c.Offers {
		if i == 0 || o.WholesaleDiscount.GreaterThan(best) {
			best = o.WholesaleDiscount
		}
	}
	return best
}

// Matches reports whether the item answers a lookup for keyword on telco.
// Bundles and credits match by keyword; ranged items match when the keyword
// is an amount inside their denomination.
func (c CatalogItem) Matches(telco Telco, keyword string) bool {
	if telco != TelcoNone && c.Telco != telco {
		return false
	}
	kw := strings.TrimSpace(keyword)
	switch c.Type {
	case SkuTypeBundle, SkuTypeCredits:
		for _, k := range c.Keywords {
			if strings.EqualFold(k, kw) {
				return true
			}
		}
		return false
	case SkuTypeRanged:
		amount, err := strconv.Atoi(kw)
		if err != nil {
			return false
		}
		return c.Denomination.Contains(amount)
	}
	return false
}
