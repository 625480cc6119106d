package load

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loadengine/backend/internal/domain/load"
	"go.uber.org/zap"
)

// Notifications sends acknowledgements after a callback is applied
type Notifications interface {
	NotifyRequester(ctx context.Context, entry *load.LedgerEntry, status load.Status, pin string) error
	NotifyCustomer(ctx context.Context, entry *load.LedgerEntry, status load.Status, pin string) error
}

// NotifierConfig holds the collaborators of a Notifier
type NotifierConfig struct {
	SMS     load.SMSSender
	Bots    load.BotMessenger
	Users   load.UserDirectory
	Numbers load.NumberValidator
	Logger  *zap.Logger
}

// Notifier tells the requester and, when asked for, the customer how a load ended
type Notifier struct {
	sms     load.SMSSender
	bots    load.BotMessenger
	users   load.UserDirectory
	numbers load.NumberValidator
	logger  *zap.Logger
}

// NewNotifier creates a new Notifier
func NewNotifier(cfg NotifierConfig) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		sms:     cfg.SMS,
		bots:    cfg.Bots,
		users:   cfg.Users,
		numbers: cfg.Numbers,
		logger:  logger,
	}
}

// NotifyRequester sends the loader acknowledgement through the bot the
// request came from, and by SMS when the requester has a mobile number.
func (n *Notifier) NotifyRequester(ctx context.Context, entry *load.LedgerEntry, status load.Status, pin string) error {
	if entry.OriginatingUser == "" {
		return nil
	}
	user, err := n.users.GetUser(ctx, entry.OriginatingUser)
	if err != nil {
		return fmt.Errorf("failed to look up requester %s: %w", entry.OriginatingUser, err)
	}

	text := RequesterMessage(entry, status, pin)
	var errs []error

	source := entry.Request.Source
	if source.IsBot() && n.bots != nil {
		if recipient := user.RecipientFor(source); recipient != "" {
			if err := n.bots.Deliver(ctx, source, recipient, text); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", source, err))
			}
		} else {
			n.logger.Debug("Requester has no recipient id on bot",
				zap.String("user_id", user.ID),
				zap.String("source", source.String()))
		}
	}

	if user.Mobile != "" && n.sms != nil {
		if err := n.sms.SendSMS(ctx, user.Mobile, text); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		}
	}
	return errors.Join(errs...)
}

// NotifyCustomer texts the subscriber when the request asked for an
// acknowledgement and the load was delivered.
func (n *Notifier) NotifyCustomer(ctx context.Context, entry *load.LedgerEntry, status load.Status, pin string) error {
	if !entry.Request.SendAck || !status.Is(load.StatusDelivered) {
		return nil
	}
	if entry.Request.Mobile == "" || n.sms == nil {
		return nil
	}
	number, err := n.numbers.Parse(entry.Request.Mobile)
	if err != nil {
		return fmt.Errorf("invalid recipient number %s: %w", entry.Request.Mobile, err)
	}
	return n.sms.SendSMS(ctx, number.E164, CustomerMessage(entry, pin))
}

// RequesterMessage renders the loader acknowledgement
func RequesterMessage(entry *load.LedgerEntry, status load.Status, pin string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Loaded %s to %s\n\n", entry.Request.SKU, entry.Request.Target())
	if pin != "" {
		fmt.Fprintf(&sb, "ePIN: %s\n", pin)
	}
	fmt.Fprintf(&sb, "S: %s\nRef: %s", status.Code().Short(), entry.ReferenceCode)
	return sb.String()
}

// CustomerMessage renders the subscriber acknowledgement
func CustomerMessage(entry *load.LedgerEntry, pin string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s was loaded to your account.\n\n", entry.Request.SKU)
	if pin != "" {
		fmt.Fprintf(&sb, "ePIN: %s\n", pin)
	}
	fmt.Fprintf(&sb, "Ref: %s", entry.ReferenceCode)
	return sb.String()
}
