package provider

import "encoding/json"

const redacted = "***"

// globeRewardsRequest is the rewards send body
type globeRewardsRequest struct {
	Body globeRewardsRequestBody `json:"outboundRewardRequest"`
}

type globeRewardsRequestBody struct {
	AppID        string `json:"app_id"`
	AppSecret    string `json:"app_secret"`
	RewardsToken string `json:"rewards_token"`
	Address      string `json:"address"`
	Promo        string `json:"promo"`
}

// redact returns a copy safe to keep on the ledger
func (r globeRewardsRequest) redact() globeRewardsRequest {
	r.Body.AppSecret = redacted
	r.Body.RewardsToken = redacted
	return r
}

// globeRewardsResponse covers both the accepted and the error shape
type globeRewardsResponse struct {
	Body *struct {
		TransactionID json.Number `json:"transaction_id"`
		Status        string      `json:"status"`
		Address       string      `json:"address"`
		Promo         string      `json:"promo"`
		Timestamp     string      `json:"timestamp"`
	} `json:"outboundRewardRequest,omitempty"`
	Error string `json:"error,omitempty"`
}
