package load

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CallbackKind discriminates inbound callback payloads
type CallbackKind string

const (
	CallbackGlobeLabs CallbackKind = "GLOBELABS"
	CallbackDTOne     CallbackKind = "DTONE"
)

// ResolvedCallback is a provider callback reduced to what the reconciler needs
type ResolvedCallback struct {
	Provider      string
	ProviderTxnID string
	Status        Status
	RawStatus     string
	Pin           string
	Raw           []byte
}

// CallbackPayload is one of the known provider callback shapes
type CallbackPayload interface {
	Kind() CallbackKind
	Resolve() (ResolvedCallback, error)
	RawPayload() []byte
}

// ParseCallback decodes body according to kind
func ParseCallback(kind CallbackKind, body []byte) (CallbackPayload, error) {
	switch kind {
	case CallbackGlobeLabs:
		var p GlobeLabsCallback
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCallback, err)
		}
		p.raw = append([]byte(nil), body...)
		return &p, nil
	case CallbackDTOne:
		var p DTOneCallback
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCallback, err)
		}
		p.raw = append([]byte(nil), body...)
		return &p, nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrUnknownProvider, kind)
}

// GlobeLabsCallback is the rewards transaction status notification
type GlobeLabsCallback struct {
	Body struct {
		TransactionID json.Number `json:"transaction_id"`
		Status        string      `json:"status"`
		Address       string      `json:"address,omitempty"`
		Promo         string      `json:"promo,omitempty"`
		Timestamp     string      `json:"timestamp,omitempty"`
	} `json:"outboundRewardRequest"`

	raw []byte
}

// Kind implements CallbackPayload
func (c *GlobeLabsCallback) Kind() CallbackKind { return CallbackGlobeLabs }

// RawPayload returns the body the callback was decoded from
func (c *GlobeLabsCallback) RawPayload() []byte { return c.raw }

// Resolve implements CallbackPayload
func (c *GlobeLabsCallback) Resolve() (ResolvedCallback, error) {
	txn := strings.TrimSpace(c.Body.TransactionID.String())
	if txn == "" {
		return ResolvedCallback{}, fmt.Errorf("%w: missing transaction_id", ErrMalformedCallback)
	}
	return ResolvedCallback{
		Provider:      ProviderGlobeLabs,
		ProviderTxnID: txn,
		Status:        GlobeLabsStatus(c.Body.Status),
		RawStatus:     c.Body.Status,
		Raw:           c.raw,
	}, nil
}

// GlobeLabsStatus maps a GlobeLabs status word to the canonical status
func GlobeLabsStatus(value string) Status {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "SUCCESS":
		return Known(StatusDelivered)
	case "FAILED":
		return Known(StatusRejected)
	}
	return StatusFromValue(value)
}

// DTOneCallback is the asynchronous transaction notification sent to the
// callback URL given at dispatch.
type DTOneCallback struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id,omitempty"`
	Status     struct {
		ID      int    `json:"id"`
		Message string `json:"message"`
	} `json:"status"`
	Pin *struct {
		Code   string `json:"code"`
		Serial string `json:"serial,omitempty"`
	} `json:"pin,omitempty"`
	OperatorReference string `json:"operator_reference,omitempty"`

	raw []byte
}

// Kind implements CallbackPayload
func (c *DTOneCallback) Kind() CallbackKind { return CallbackDTOne }

// RawPayload returns the body the callback was decoded from
func (c *DTOneCallback) RawPayload() []byte { return c.raw }

// Resolve implements CallbackPayload
func (c *DTOneCallback) Resolve() (ResolvedCallback, error) {
	if c.ID <= 0 {
		return ResolvedCallback{}, fmt.Errorf("%w: missing transaction id", ErrMalformedCallback)
	}
	var pin string
	if c.Pin != nil {
		pin = strings.TrimSpace(c.Pin.Code)
	}
	return ResolvedCallback{
		Provider:      ProviderDTOne,
		ProviderTxnID: strconv.FormatInt(c.ID, 10),
		Status:        DTOneStatus(c.Status.ID, c.Status.Message),
		RawStatus:     fmt.Sprintf("%d %s", c.Status.ID, c.Status.Message),
		Pin:           pin,
		Raw:           c.raw,
	}, nil
}

// DTOneStatus maps a DTOne status id and message to the canonical status
func DTOneStatus(id int, message string) Status {
	switch id {
	case 7000:
		return Known(StatusDelivered)
	case 90000:
		// postpaid number credited with prepaid load
		return Known(StatusInvalid)
	case 90200:
		// operator does not match the number
		return Known(StatusRejected)
	}
	return StatusFromValue(message)
}
