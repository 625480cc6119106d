// Package phone validates and formats Philippine subscriber numbers.
package phone

import (
	"errors"
	"fmt"
	"strings"

	"github.com/loadengine/backend/internal/domain/load"
	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the region numbers without a country code are parsed in
const DefaultRegion = "PH"

// ErrInvalidNumber is returned for numbers that do not parse or validate
var ErrInvalidNumber = errors.New("phone: invalid number")

// carrier names that do not start with a telco name
var carrierAliases = map[string]load.Telco{
	"tm":           load.TelcoGlobe,
	"touch mobile": load.TelcoGlobe,
	"tnt":          load.TelcoSmart,
	"talk 'n text": load.TelcoSmart,
}

// Validator implements load.NumberValidator with libphonenumber metadata
type Validator struct {
	region string
}

// NewValidator creates a validator for region, defaulting to DefaultRegion
func NewValidator(region string) *Validator {
	if region == "" {
		region = DefaultRegion
	}
	return &Validator{region: strings.ToUpper(region)}
}

// Parse implements load.NumberValidator
func (v *Validator) Parse(number string) (load.NumberInfo, error) {
	num, err := v.parse(number)
	if err != nil {
		return load.NumberInfo{}, err
	}
	return load.NumberInfo{
		E164:            phonenumbers.Format(num, phonenumbers.E164),
		NationalCompact: nationalCompact(num),
		Telco:           carrier(num),
	}, nil
}

// E164 formats number as +<country><subscriber>
func (v *Validator) E164(number string) (string, error) {
	num, err := v.parse(number)
	if err != nil {
		return "", err
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

func (v *Validator) parse(number string) (*phonenumbers.PhoneNumber, error) {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidNumber)
	}
	num, err := phonenumbers.Parse(trimmed, v.region)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidNumber, number, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidNumber, number)
	}
	return num, nil
}

// nationalCompact is the national format without whitespace and trunk prefix,
// e.g. 0917 123 4567 -> 9171234567.
func nationalCompact(num *phonenumbers.PhoneNumber) string {
	national := strings.Join(strings.Fields(phonenumbers.Format(num, phonenumbers.NATIONAL)), "")
	national = strings.NewReplacer("-", "", "(", "", ")", "").Replace(national)
	return strings.TrimPrefix(national, "0")
}

func carrier(num *phonenumbers.PhoneNumber) load.Telco {
	name, err := phonenumbers.GetCarrierForNumber(num, "en")
	if err != nil || name == "" {
		return load.TelcoNone
	}
	if t, ok := load.ParseTelco(name); ok {
		return t
	}
	if t, ok := carrierAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t
	}
	return load.TelcoNone
}
