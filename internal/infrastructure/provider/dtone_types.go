package provider

import (
	"encoding/json"
	"strings"
)

// DVS calculation modes and units used for ranged products
const (
	dtoneCalculationDestinationAmount = "DESTINATION_AMOUNT"
	dtoneUnitTypeCurrency             = "CURRENCY"
	dtoneUnitPHP                      = "PHP"
)

// dtoneTransactionRequest is the DVS async transaction body
type dtoneTransactionRequest struct {
	ExternalID            string               `json:"external_id"`
	ProductID             int64                `json:"product_id"`
	AutoConfirm           bool                 `json:"auto_confirm"`
	CallbackURL           string               `json:"callback_url,omitempty"`
	CreditPartyIdentifier dtonePartyIdentifier `json:"credit_party_identifier"`
	CalculationMode       string               `json:"calculation_mode,omitempty"`
	Destination           *dtoneAmount         `json:"destination,omitempty"`
}

type dtonePartyIdentifier struct {
	MobileNumber  string `json:"mobile_number,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
}

type dtoneAmount struct {
	Amount   float64 `json:"amount"`
	Unit     string  `json:"unit"`
	UnitType string  `json:"unit_type"`
}

// dtoneTransactionResponse covers both the transaction and the error shape
type dtoneTransactionResponse struct {
	ID         int64  `json:"id"`
	ExternalID string `json:"external_id,omitempty"`
	Status     *struct {
		ID      int    `json:"id"`
		Message string `json:"message"`
	} `json:"status,omitempty"`
	Errors []dtoneError `json:"errors,omitempty"`
}

type dtoneError struct {
	Code    json.Number `json:"code"`
	Message string      `json:"message"`
}

// errorMessage joins the DVS error messages the way they are shown to users
func (r *dtoneTransactionResponse) errorMessage() string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		if m := strings.TrimSpace(e.Message); m != "" {
			msgs = append(msgs, m)
		}
	}
	return strings.Join(msgs, ", ")
}
