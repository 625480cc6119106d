package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/shopspring/decimal"
)

// DTOneAdapter dispatches loads through the DTOne DVS async transaction API
type DTOneAdapter struct {
	config     *DTOneConfig
	numbers    load.NumberValidator
	httpClient *http.Client
}

// NewDTOneAdapter creates a new DTOne adapter with the given configuration
func NewDTOneAdapter(config *DTOneConfig, numbers load.NumberValidator) (*DTOneAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &DTOneAdapter{
		config:  config,
		numbers: numbers,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Name implements load.ProviderAdapter
func (a *DTOneAdapter) Name() string { return load.ProviderDTOne }

// Priority implements load.ProviderAdapter
func (a *DTOneAdapter) Priority() int { return 1 }

// Dispatch implements load.ProviderAdapter
func (a *DTOneAdapter) Dispatch(ctx context.Context, req load.LoadRequest, item load.CatalogItem) load.Outcome {
	body, err := a.buildRequest(req, item)
	if err != nil {
		return load.Rejected(err.Error(), nil)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return load.Rejected(fmt.Sprintf("dtone: failed to encode request: %v", err), nil)
	}

	status, respBody, err := postJSON(ctx, a.httpClient, "dtone", a.config.BaseURL+"/v1/async/transactions", raw, func(r *http.Request) {
		r.SetBasicAuth(a.config.APIKey, a.config.APISecret)
	})
	if err != nil {
		return load.Rejected(fmt.Sprintf("dtone: %v", err), respBody).WithRequest(raw)
	}

	var resp dtoneTransactionResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return load.Rejected(fmt.Sprintf("dtone: invalid response (HTTP %d)", status), respBody).WithRequest(raw)
	}
	if !isSuccess(status) || resp.ID <= 0 {
		reason := resp.errorMessage()
		if reason == "" {
			reason = fmt.Sprintf("dtone: HTTP %d", status)
		}
		return load.Rejected(reason, respBody).WithRequest(raw)
	}
	return load.Accepted(strconv.FormatInt(resp.ID, 10), respBody).WithRequest(raw)
}

func (a *DTOneAdapter) buildRequest(req load.LoadRequest, item load.CatalogItem) (*dtoneTransactionRequest, error) {
	offer, ok := item.OfferFor(load.ProviderDTOne)
	if !ok {
		return nil, fmt.Errorf("dtone: no offer for %s", item.Code)
	}
	productID, err := strconv.ParseInt(strings.TrimSpace(offer.ProductCode), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("dtone: invalid product id %q", offer.ProductCode)
	}

	body := &dtoneTransactionRequest{
		ExternalID:  uuid.NewString(),
		ProductID:   productID,
		AutoConfirm: true,
		CallbackURL: a.config.CallbackURL,
		CreditPartyIdentifier: dtonePartyIdentifier{
			AccountNumber: req.AccountNo,
		},
	}

	if req.Mobile != "" {
		info, err := a.numbers.Parse(req.Mobile)
		if err != nil {
			return nil, fmt.Errorf("dtone: invalid phone number %q", req.Mobile)
		}
		body.CreditPartyIdentifier.MobileNumber = info.E164
	}

	if item.Type == load.SkuTypeRanged {
		amount, err := decimal.NewFromString(strings.TrimSpace(req.SKU))
		if err != nil || !amount.IsPositive() {
			return nil, fmt.Errorf("%w: %q", load.ErrInvalidDenomination, req.SKU)
		}
		body.CalculationMode = dtoneCalculationDestinationAmount
		body.Destination = &dtoneAmount{
			Amount:   amount.InexactFloat64(),
			Unit:     dtoneUnitPHP,
			UnitType: dtoneUnitTypeCurrency,
		}
	}
	return body, nil
}
