package load

import (
	"fmt"
	"strings"
)

// BotSource is the channel a load request arrived through
type BotSource string

const (
	SourceMessenger BotSource = "FB_MSGR"
	SourceTelegram  BotSource = "TELEGRAM"
	SourceViber     BotSource = "VIBER"
	SourceSMS       BotSource = "SMS"
	SourceAPI       BotSource = "API"
)

// IsValid checks if the source is a known channel
func (s BotSource) IsValid() bool {
	switch s {
	case SourceMessenger, SourceTelegram, SourceViber, SourceSMS, SourceAPI:
		return true
	}
	return false
}

// IsBot reports whether replies to this source go through a chat bot
func (s BotSource) IsBot() bool {
	switch s {
	case SourceMessenger, SourceTelegram, SourceViber:
		return true
	}
	return false
}

// String returns the string representation of BotSource
func (s BotSource) String() string {
	return string(s)
}

// ParseBotSource parses a channel name, defaulting to SourceAPI when empty
func ParseBotSource(name string) (BotSource, error) {
	if strings.TrimSpace(name) == "" {
		return SourceAPI, nil
	}
	s := BotSource(strings.ToUpper(strings.TrimSpace(name)))
	if !s.IsValid() {
		return "", fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, name)
	}
	return s, nil
}

// LoadRequest is a normalized purchase request
type LoadRequest struct {
	AccountNo string
	Mobile    string
	SKU       string
	Telco     Telco
	Source    BotSource
	SendAck   bool
}

// Target returns the identifier the load is credited to: the account number
// when present, else the mobile number.
func (r LoadRequest) Target() string {
	if r.AccountNo != "" {
		return r.AccountNo
	}
	return r.Mobile
}

// Validate checks that the request names a SKU and a destination
func (r LoadRequest) Validate() error {
	if strings.TrimSpace(r.SKU) == "" {
		return fmt.Errorf("%w: sku is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.Mobile) == "" && strings.TrimSpace(r.AccountNo) == "" {
		return fmt.Errorf("%w: mobile or account number is required", ErrInvalidRequest)
	}
	if r.Telco != TelcoNone && !r.Telco.IsValid() {
		return fmt.Errorf("%w: unknown telco %d", ErrInvalidRequest, int(r.Telco))
	}
	if r.Source != "" && !r.Source.IsValid() {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidRequest, r.Source)
	}
	return nil
}
