package dto

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	loadapp "github.com/loadengine/backend/internal/application/load"
	"github.com/loadengine/backend/internal/domain/load"
)

// ReloadRequest is the body of a structured load request
type ReloadRequest struct {
	AccountNo string `json:"account_no" binding:"omitempty,max=50"`
	Mobile    string `json:"mobile" binding:"omitempty,max=20"`
	SKU       string `json:"sku" binding:"required,max=50"`
	Telco     string `json:"telco" binding:"omitempty,telco"`
	Source    string `json:"source" binding:"omitempty,botsource"`
	SendAck   bool   `json:"send_ack"`
}

// ToDomain converts the body to a load request
func (r ReloadRequest) ToDomain() (load.LoadRequest, error) {
	source, err := load.ParseBotSource(r.Source)
	if err != nil {
		return load.LoadRequest{}, err
	}
	req := load.LoadRequest{
		AccountNo: r.AccountNo,
		Mobile:    r.Mobile,
		SKU:       r.SKU,
		Source:    source,
		SendAck:   r.SendAck,
	}
	if r.Telco != "" {
		telco, ok := load.ParseTelco(r.Telco)
		if !ok {
			return load.LoadRequest{}, fmt.Errorf("%w: unknown telco %q", load.ErrInvalidRequest, r.Telco)
		}
		req.Telco = telco
	}
	return req, nil
}

// QueryRequest is the body of a free-text load query
type QueryRequest struct {
	Query  string `json:"query" binding:"required,max=255"`
	Source string `json:"source" binding:"omitempty,botsource"`
}

// DispatchResponse is the synchronous result of a dispatch
type DispatchResponse struct {
	LedgerID      uuid.UUID `json:"ledger_id"`
	Provider      string    `json:"provider"`
	ProviderTxnID string    `json:"provider_txn_id,omitempty"`
	Status        string    `json:"status"`
	ReferenceCode string    `json:"reference_code,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// NewDispatchResponse converts a dispatch result
func NewDispatchResponse(r *loadapp.DispatchResult) DispatchResponse {
	return DispatchResponse{
		LedgerID:      r.LedgerID,
		Provider:      r.Provider,
		ProviderTxnID: r.ProviderTxnID,
		Status:        r.Status.String(),
		ReferenceCode: r.ReferenceCode,
		Error:         r.Error,
	}
}

// CallbackRecordResponse is one history row of a ledger entry
type CallbackRecordResponse struct {
	Seq        int       `json:"seq"`
	ReceivedAt time.Time `json:"received_at"`
	Origin     string    `json:"origin"`
	Status     string    `json:"status"`
}

// LedgerEntryResponse describes a ledger entry found by reference
type LedgerEntryResponse struct {
	ID            uuid.UUID                `json:"id"`
	SKU           string                   `json:"sku"`
	Target        string                   `json:"target"`
	Provider      string                   `json:"provider"`
	ProviderTxnID string                   `json:"provider_txn_id,omitempty"`
	ReferenceCode string                   `json:"reference_code,omitempty"`
	Status        string                   `json:"status"`
	RejectReason  string                   `json:"reject_reason,omitempty"`
	History       []CallbackRecordResponse `json:"history"`
	CreatedAt     time.Time                `json:"created_at"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

// NewLedgerEntryResponse converts a ledger entry and its history
func NewLedgerEntryResponse(e *load.LedgerEntry) LedgerEntryResponse {
	history := e.History()
	resp := LedgerEntryResponse{
		ID:            e.ID,
		SKU:           e.Request.SKU,
		Target:        e.Request.Target(),
		Provider:      e.Provider,
		ProviderTxnID: e.ProviderTxnID,
		ReferenceCode: e.ReferenceCode,
		Status:        e.State.String(),
		RejectReason:  e.RejectReason,
		History:       make([]CallbackRecordResponse, 0, len(history)),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
	for _, r := range history {
		resp.History = append(resp.History, CallbackRecordResponse{
			Seq:        r.Seq,
			ReceivedAt: r.ReceivedAt,
			Origin:     string(r.Origin),
			Status:     r.Status.String(),
		})
	}
	return resp
}

// OrphanResponse describes a callback that never correlated
type OrphanResponse struct {
	ID            uuid.UUID `json:"id"`
	Provider      string    `json:"provider"`
	ProviderTxnID string    `json:"provider_txn_id,omitempty"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// NewOrphanResponses converts orphan records
func NewOrphanResponses(records []load.OrphanRecord) []OrphanResponse {
	out := make([]OrphanResponse, 0, len(records))
	for _, o := range records {
		out = append(out, OrphanResponse{
			ID:            o.ID,
			Provider:      o.Provider,
			ProviderTxnID: o.ProviderTxnID,
			Reason:        o.Reason,
			CreatedAt:     o.CreatedAt,
		})
	}
	return out
}
