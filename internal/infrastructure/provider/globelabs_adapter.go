package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/loadengine/backend/internal/domain/load"
)

// GlobeLabsAdapter dispatches promos through the Globe Labs rewards API.
// It is the preferred adapter on ties (priority 0).
type GlobeLabsAdapter struct {
	config     *GlobeLabsConfig
	numbers    load.NumberValidator
	httpClient *http.Client
}

// NewGlobeLabsAdapter creates a new Globe Labs adapter with the given configuration
func NewGlobeLabsAdapter(config *GlobeLabsConfig, numbers load.NumberValidator) (*GlobeLabsAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &GlobeLabsAdapter{
		config:  config,
		numbers: numbers,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Name implements load.ProviderAdapter
func (a *GlobeLabsAdapter) Name() string { return load.ProviderGlobeLabs }

// Priority implements load.ProviderAdapter
func (a *GlobeLabsAdapter) Priority() int { return 0 }

// Dispatch implements load.ProviderAdapter
func (a *GlobeLabsAdapter) Dispatch(ctx context.Context, req load.LoadRequest, item load.CatalogItem) load.Outcome {
	body, err := a.buildRequest(req, item)
	if err != nil {
		return load.Rejected(err.Error(), nil)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return load.Rejected(fmt.Sprintf("globelabs: failed to encode request: %v", err), nil)
	}
	logged, _ := json.Marshal(body.redact())

	status, respBody, err := postJSON(ctx, a.httpClient, "globelabs", a.config.BaseURL+"/rewards/v1/transactions/send", raw, nil)
	if err != nil {
		return load.Rejected(fmt.Sprintf("globelabs: %v", err), respBody).WithRequest(logged)
	}

	var resp globeRewardsResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return load.Rejected(fmt.Sprintf("globelabs: invalid response (HTTP %d)", status), respBody).WithRequest(logged)
	}

	var txnID string
	if resp.Body != nil {
		txnID = strings.TrimSpace(resp.Body.TransactionID.String())
	}
	if !isSuccess(status) || txnID == "" {
		reason := strings.TrimSpace(resp.Error)
		if reason == "" {
			reason = fmt.Sprintf("globelabs: HTTP %d", status)
		}
		return load.Rejected(reason, respBody).WithRequest(logged)
	}
	return load.Accepted(txnID, respBody).WithRequest(logged)
}

func (a *GlobeLabsAdapter) buildRequest(req load.LoadRequest, item load.CatalogItem) (*globeRewardsRequest, error) {
	offer, ok := item.OfferFor(load.ProviderGlobeLabs)
	if !ok {
		return nil, fmt.Errorf("globelabs: no offer for %s", item.Code)
	}
	if req.Mobile == "" {
		return nil, fmt.Errorf("globelabs: mobile number is required")
	}
	info, err := a.numbers.Parse(req.Mobile)
	if err != nil {
		return nil, fmt.Errorf("globelabs: invalid phone number %q", req.Mobile)
	}

	return &globeRewardsRequest{
		Body: globeRewardsRequestBody{
			AppID:        a.config.AppID,
			AppSecret:    a.config.AppSecret,
			RewardsToken: a.config.RewardsToken,
			Address:      info.NationalCompact,
			Promo:        offer.ProductCode,
		},
	}, nil
}
