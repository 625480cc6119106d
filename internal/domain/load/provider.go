package load

import (
	"context"
	"strings"
)

// Provider names as they appear on offers, ledger entries and reference codes
const (
	ProviderDTOne     = "DTOne"
	ProviderGlobeLabs = "GlobeLabs"
)

// ProviderAdapter dispatches a request to one wholesale provider.
//
// Dispatch performs exactly one outbound call and never returns an error:
// every failure, including transport errors and deadline expiry, is reported
// as a Rejected outcome. Adapters do not retry.
type ProviderAdapter interface {
	Name() string
	Priority() int
	Dispatch(ctx context.Context, req LoadRequest, item CatalogItem) Outcome
}

// Outcome is the synchronous result of a dispatch
type Outcome struct {
	accepted      bool
	providerTxnID string
	reason        string
	raw           []byte
	request       []byte
}

// WithRequest attaches the wire request that produced the outcome
func (o Outcome) WithRequest(rawRequest []byte) Outcome {
	o.request = rawRequest
	return o
}

// RawRequest returns the wire request, if the adapter attached it
func (o Outcome) RawRequest() []byte {
	return o.request
}

// Accepted reports provider acceptance with the provider's transaction id
func Accepted(providerTxnID string, rawResponse []byte) Outcome {
	return Outcome{accepted: true, providerTxnID: providerTxnID, raw: rawResponse}
}

// Rejected reports a provider or transport failure. rawResponse may be nil.
func Rejected(reason string, rawResponse []byte) Outcome {
	return Outcome{reason: reason, raw: rawResponse}
}

// IsAccepted reports whether the provider accepted the request
func (o Outcome) IsAccepted() bool {
	return o.accepted
}

// ProviderTxnID returns the provider's transaction id for accepted outcomes
func (o Outcome) ProviderTxnID() string {
	return o.providerTxnID
}

// Reason returns the rejection reason
func (o Outcome) Reason() string {
	return o.reason
}

// RawResponse returns the provider response body, if any
func (o Outcome) RawResponse() []byte {
	return o.raw
}

// Status returns the ledger state the outcome moves a CREATED entry to
func (o Outcome) Status() Status {
	if o.accepted {
		return Known(StatusWait)
	}
	return Known(StatusRejected)
}

// ProviderInitial returns the reference code prefix for a provider name
func ProviderInitial(provider string) byte {
	if provider == "" {
		return 0
	}
	return strings.ToUpper(provider[:1])[0]
}
