package load

import "context"

// SMSSender sends a text message to a mobile number
type SMSSender interface {
	SendSMS(ctx context.Context, mobile, text string) error
}

// BotMessenger delivers a message through the chat bot behind source,
// including any typing indicators that channel expects.
type BotMessenger interface {
	Deliver(ctx context.Context, source BotSource, recipient, text string) error
}

// UserProfile is what the user directory knows about a requester
type UserProfile struct {
	ID         string
	Mobile     string
	MetaID     string
	TelegramID string
	ViberID    string
}

// RecipientFor returns the user's id on the chat bot behind source
func (u UserProfile) RecipientFor(source BotSource) string {
	switch source {
	case SourceMessenger:
		return u.MetaID
	case SourceTelegram:
		return u.TelegramID
	case SourceViber:
		return u.ViberID
	}
	return ""
}

// UserDirectory looks up requester profiles
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (UserProfile, error)
}

// NumberInfo is a validated subscriber number
type NumberInfo struct {
	E164            string
	NationalCompact string
	Telco           Telco
}

// NumberValidator parses and formats subscriber numbers
type NumberValidator interface {
	Parse(number string) (NumberInfo, error)
}
