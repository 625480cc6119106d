package load

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/loadengine/backend/internal/domain/shared/crockford"
)

// NewReferenceCode builds the customer-facing reference for a provider
// transaction: the provider's initial followed by the unchecked base32 form
// of the numeric transaction id.
func NewReferenceCode(provider, providerTxnID string) (string, error) {
	initial := ProviderInitial(provider)
	if initial < 'A' || initial > 'Z' {
		return "", fmt.Errorf("%w: provider %q has no initial", ErrInvalidReference, provider)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(providerTxnID), 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: transaction id %q is not numeric", ErrInvalidReference, providerTxnID)
	}
	return string(initial) + crockford.Encode(n), nil
}

// ParseReferenceCode splits a reference code into the provider initial and
// the decimal provider transaction id. Decoding is case-insensitive.
func ParseReferenceCode(code string) (byte, string, error) {
	c := strings.TrimSpace(code)
	if len(c) < 2 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidReference, code)
	}
	initial := strings.ToUpper(c[:1])[0]
	if initial < 'A' || initial > 'Z' {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidReference, code)
	}
	n, err := crockford.Decode(c[1:])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %w", ErrInvalidReference, err)
	}
	return initial, strconv.FormatUint(n, 10), nil
}
