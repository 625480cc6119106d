package load

import (
	"errors"

	"github.com/loadengine/backend/internal/domain/shared"
)

var (
	// ErrInvalidRequest is returned for malformed load requests or identifiers.
	ErrInvalidRequest = shared.NewDomainError("INVALID_INPUT", "Invalid load request")
	// ErrNoProviderAvailable is returned when no registered adapter carries an offer for the item.
	ErrNoProviderAvailable = shared.NewDomainError("NO_PROVIDER_AVAILABLE", "No Load provider available")
	// ErrDuplicateRequest is returned when the same query was already accepted inside the duplicate window.
	ErrDuplicateRequest = shared.NewDomainError("DUPLICATE_REQUEST", "Duplicate load request")
	// ErrLedgerEntryNotFound is returned when no ledger entry matches the lookup.
	ErrLedgerEntryNotFound = shared.NewDomainError("NOT_FOUND", "Ledger entry not found")
	// ErrCatalogItemNotFound is returned when no catalog item matches the SKU.
	ErrCatalogItemNotFound = shared.NewDomainError("NOT_FOUND", "No matching load SKU")
)

var (
	ErrInvalidTransition   = errors.New("load: invalid state transition")
	ErrInvalidReference    = errors.New("load: invalid reference code")
	ErrUnknownProvider     = errors.New("load: unknown provider")
	ErrMalformedCallback   = errors.New("load: malformed callback payload")
	ErrDuplicateOffer      = errors.New("load: duplicate provider offer")
	ErrInvalidDenomination = errors.New("load: invalid denomination range")
)
