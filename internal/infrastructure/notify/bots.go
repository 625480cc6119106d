package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/loadengine/backend/internal/domain/load"
)

type botMessage struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

type typingRequest struct {
	Recipient string `json:"recipient"`
	On        bool   `json:"on"`
}

// MessengerClient talks to the Facebook Messenger bot service
type MessengerClient struct {
	c *client
}

// NewMessengerClient creates a new MessengerClient
func NewMessengerClient(cfg Config) *MessengerClient {
	return &MessengerClient{c: newClient(cfg.MessengerURL, cfg.APIKey, cfg.TimeoutSeconds)}
}

// ToggleTyping switches the typing indicator for recipient
func (m *MessengerClient) ToggleTyping(ctx context.Context, recipient string, on bool) error {
	return m.c.do(ctx, http.MethodPost, "/typing", typingRequest{Recipient: recipient, On: on}, nil)
}

// SendMessage sends text to recipient
func (m *MessengerClient) SendMessage(ctx context.Context, recipient, text string) error {
	return m.c.do(ctx, http.MethodPost, "/messages", botMessage{Recipient: recipient, Content: text}, nil)
}

// TelegramClient talks to the Telegram bot service
type TelegramClient struct {
	c *client
}

// NewTelegramClient creates a new TelegramClient
func NewTelegramClient(cfg Config) *TelegramClient {
	return &TelegramClient{c: newClient(cfg.TelegramURL, cfg.APIKey, cfg.TimeoutSeconds)}
}

// SendTyping shows the typing action to recipient; Telegram clears it on send
func (t *TelegramClient) SendTyping(ctx context.Context, recipient string) error {
	return t.c.do(ctx, http.MethodPost, "/typing", typingRequest{Recipient: recipient, On: true}, nil)
}

// SendMessage sends text to recipient
func (t *TelegramClient) SendMessage(ctx context.Context, recipient, text string) error {
	return t.c.do(ctx, http.MethodPost, "/messages", botMessage{Recipient: recipient, Content: text}, nil)
}

// ViberClient talks to the Viber bot service
type ViberClient struct {
	c *client
}

// NewViberClient creates a new ViberClient
func NewViberClient(cfg Config) *ViberClient {
	return &ViberClient{c: newClient(cfg.ViberURL, cfg.APIKey, cfg.TimeoutSeconds)}
}

// SendMessage sends text to recipient
func (v *ViberClient) SendMessage(ctx context.Context, recipient, text string) error {
	return v.c.do(ctx, http.MethodPost, "/messages", botMessage{Recipient: recipient, Content: text}, nil)
}

// BotRouter implements load.BotMessenger over the per-channel clients
type BotRouter struct {
	Messenger *MessengerClient
	Telegram  *TelegramClient
	Viber     *ViberClient
}

// NewBotRouter creates a BotRouter with a client for every channel in cfg
func NewBotRouter(cfg Config) *BotRouter {
	return &BotRouter{
		Messenger: NewMessengerClient(cfg),
		Telegram:  NewTelegramClient(cfg),
		Viber:     NewViberClient(cfg),
	}
}

// Deliver implements load.BotMessenger
func (b *BotRouter) Deliver(ctx context.Context, source load.BotSource, recipient, text string) error {
	switch source {
	case load.SourceMessenger:
		if err := b.Messenger.ToggleTyping(ctx, recipient, true); err != nil {
			return err
		}
		if err := b.Messenger.SendMessage(ctx, recipient, text); err != nil {
			return err
		}
		return b.Messenger.ToggleTyping(ctx, recipient, false)
	case load.SourceTelegram:
		if err := b.Telegram.SendTyping(ctx, recipient); err != nil {
			return err
		}
		return b.Telegram.SendMessage(ctx, recipient, text)
	case load.SourceViber:
		return b.Viber.SendMessage(ctx, recipient, text)
	}
	return fmt.Errorf("notify: no bot for source %s", source)
}
