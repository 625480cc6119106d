package load

import (
	"sort"

	"github.com/loadengine/backend/internal/domain/load"
)

// Selector picks the provider adapter for a catalog item.
//
// Offers are ranked by wholesale discount, highest first, keeping catalog
// order for equal discounts. The registered adapter whose provider ranks
// first wins; adapters sharing a rank are ordered by priority (lower wins).
type Selector struct {
	adapters []load.ProviderAdapter
}

// NewSelector creates a selector over a fixed set of adapters
func NewSelector(adapters ...load.ProviderAdapter) *Selector {
	list := make([]load.ProviderAdapter, 0, len(adapters))
	for _, a := range adapters {
		if a != nil {
			list = append(list, a)
		}
	}
	return &Selector{adapters: list}
}

// Select returns the adapter to dispatch item through, or false when no
// registered adapter carries an offer for it.
func (s *Selector) Select(item load.CatalogItem) (load.ProviderAdapter, bool) {
	ranking := rankProviders(item.Offers)

	var (
		best     load.ProviderAdapter
		bestRank int
	)
	for _, a := range s.adapters {
		rank, ok := ranking[a.Name()]
		if !ok {
			continue
		}
		if best == nil || rank < bestRank || (rank == bestRank && a.Priority() < best.Priority()) {
			best, bestRank = a, rank
		}
	}
	return best, best != nil
}

// ByName returns the registered adapter for a provider name
func (s *Selector) ByName(name string) (load.ProviderAdapter, bool) {
	for _, a := range s.adapters {
		if a.Name() == name {
			return a, true
		}
	}
	return nil, false
}

// ByInitial returns the registered adapter whose name starts with initial
func (s *Selector) ByInitial(initial byte) (load.ProviderAdapter, bool) {
	for _, a := range s.adapters {
		if load.ProviderInitial(a.Name()) == initial {
			return a, true
		}
	}
	return nil, false
}

// Names lists the registered provider names in registration order
func (s *Selector) Names() []string {
	names := make([]string, len(s.adapters))
	for i, a := range s.adapters {
		names[i] = a.Name()
	}
	return names
}

// rankProviders maps each provider name to its position in the discount ranking
func rankProviders(offers []load.Offer) map[string]int {
	sorted := make([]load.Offer, len(offers))
	copy(sorted, offers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].WholesaleDiscount.GreaterThan(sorted[j].WholesaleDiscount)
	})

	ranking := make(map[string]int, len(sorted))
	for i, o := range sorted {
		if _, seen := ranking[o.ProviderName]; !seen {
			ranking[o.ProviderName] = i
		}
	}
	return ranking
}
