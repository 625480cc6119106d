package provider

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

const (
	// DTOneProductionURL is the DVS API endpoint
	DTOneProductionURL = "https://dvs-api.dtone.com"
	// DTOnePreProductionURL is the DVS pre-production endpoint
	DTOnePreProductionURL = "https://preprod-dvs-api.dtone.com"
	// GlobeLabsProductionURL is the Globe Labs API endpoint
	GlobeLabsProductionURL = "https://devapi.globelabs.com.ph"

	defaultTimeoutSeconds = 30
)

// Errors for provider configuration
var (
	ErrDTOneConfigInvalid     = errors.New("dtone: invalid configuration")
	ErrGlobeLabsConfigInvalid = errors.New("globelabs: invalid configuration")
)

var validate = validator.New()

// DTOneConfig holds configuration for the DTOne DVS integration
type DTOneConfig struct {
	// BaseURL is the DVS API root, without the /v1 suffix
	BaseURL string `validate:"required,url"`
	// APIKey and APISecret are the DVS basic auth credentials
	APIKey    string `validate:"required"`
	APISecret string `validate:"required"`
	// CallbackURL receives asynchronous transaction updates
	CallbackURL string `validate:"omitempty,url"`
	// TimeoutSeconds bounds a single outbound call
	TimeoutSeconds int `validate:"gte=0"`
}

// Validate applies defaults and validates the DTOne configuration
func (c *DTOneConfig) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = DTOneProductionURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrDTOneConfigInvalid, err)
	}
	return nil
}

// GlobeLabsConfig holds configuration for the Globe Labs rewards API
type GlobeLabsConfig struct {
	BaseURL      string `validate:"required,url"`
	AppID        string `validate:"required"`
	AppSecret    string `validate:"required"`
	RewardsToken string `validate:"required"`
	// TimeoutSeconds bounds a single outbound call
	TimeoutSeconds int `validate:"gte=0"`
}

// Validate applies defaults and validates the Globe Labs configuration
func (c *GlobeLabsConfig) Validate() error {
	if c.BaseURL == "" {
		c.BaseURL = GlobeLabsProductionURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrGlobeLabsConfigInvalid, err)
	}
	return nil
}
