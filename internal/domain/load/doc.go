// Package load provides the domain model for dispatching prepaid mobile load
// purchases to wholesale providers and reconciling them against provider callbacks.
//
// Key Aggregates:
//   - LedgerEntry: Durable record of one dispatch attempt, its callback history and derived state
//
// Value Objects:
//   - Status: Canonical transaction status, either a known code or an unmapped raw value
//   - CatalogItem / Offer: A sellable SKU and the terms each provider offers for it
//   - LoadRequest: The normalized purchase request handed to a provider adapter
//   - Outcome: Result of a synchronous provider dispatch (accepted or rejected)
//
// Ports:
//   - ProviderAdapter: One wholesale provider integration
//   - LedgerRepository, OrphanRepository, CatalogRepository, QueryLogRepository: Persistence
//   - SMSSender, BotMessenger, UserDirectory, NumberValidator: External collaborators
package load
