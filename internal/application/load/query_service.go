package load

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/loadengine/backend/internal/domain/load"
	"github.com/loadengine/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DefaultDuplicateWindow is how long an identical query is refused
const DefaultDuplicateWindow = 30 * time.Minute

const maxQueryTokens = 4

// QueryServiceConfig holds configuration for the query service
type QueryServiceConfig struct {
	Dispatcher *DispatchService
	Store      shared.IdempotencyStore
	Logs       load.QueryLogRepository
	Numbers    load.NumberValidator
	Window     time.Duration
	Logger     *zap.Logger
}

// QueryService turns free-text load queries into dispatches.
//
// A query reads "<sku> <msisdn> [network] [ack]". The same query from the
// same user is refused while the duplicate window is open.
type QueryService struct {
	dispatcher *DispatchService
	store      shared.IdempotencyStore
	logs       load.QueryLogRepository
	numbers    load.NumberValidator
	window     time.Duration
	logger     *zap.Logger
}

// NewQueryService creates a new QueryService
func NewQueryService(cfg QueryServiceConfig) *QueryService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := cfg.Window
	if window <= 0 {
		window = DefaultDuplicateWindow
	}
	return &QueryService{
		dispatcher: cfg.Dispatcher,
		store:      cfg.Store,
		logs:       cfg.Logs,
		numbers:    cfg.Numbers,
		window:     window,
		logger:     logger,
	}
}

// ParsedQuery is a load query split into its parts
type ParsedQuery struct {
	SKU     string
	Target  string
	Network string
	SendAck bool
}

// ParseQuery splits a free-text query into sku, target, optional network
// and an optional acknowledgement flag. The flag defaults to true. A third
// token that names no known telco is read as the flag instead.
func ParseQuery(query string) (ParsedQuery, error) {
	tokens := strings.Fields(query)
	if len(tokens) < 2 || len(tokens) > maxQueryTokens {
		return ParsedQuery{}, fmt.Errorf("%w: expected \"<sku> <number> [network] [ack]\"", load.ErrInvalidRequest)
	}

	p := ParsedQuery{SKU: tokens[0], Target: tokens[1], SendAck: true}
	switch len(tokens) {
	case 3:
		if _, ok := load.ParseTelco(tokens[2]); ok {
			p.Network = tokens[2]
		} else {
			p.SendAck = parseFlag(tokens[2])
		}
	case 4:
		p.Network = tokens[2]
		p.SendAck = parseFlag(tokens[3])
	}
	return p, nil
}

// parseFlag accepts true, yes, y, on and t in any case; anything else is false.
func parseFlag(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "on", "t":
		return true
	}
	return false
}

// Process parses query, rejects duplicates and dispatches the load for user
func (s *QueryService) Process(ctx context.Context, query, user string, source load.BotSource) (*DispatchResult, error) {
	parsed, err := ParseQuery(query)
	if err != nil {
		return nil, err
	}

	req := load.LoadRequest{
		SKU:     parsed.SKU,
		Source:  source,
		SendAck: parsed.SendAck,
	}

	if parsed.Network != "" {
		if telco, ok := load.ParseTelco(parsed.Network); ok {
			req.Telco = telco
		} else {
			s.logger.Info("Unknown network in load query, detecting carrier",
				zap.String("user_id", user),
				zap.String("network", parsed.Network))
		}
	}

	if info, err := s.numbers.Parse(parsed.Target); err == nil {
		req.Mobile = parsed.Target
		if req.Telco == load.TelcoNone {
			req.Telco = info.Telco
		}
	} else {
		// Not a subscriber number; treat it as an account number.
		req.AccountNo = parsed.Target
	}

	key := duplicateKey(user, parsed)
	if s.store != nil {
		fresh, err := s.store.MarkProcessed(ctx, key, s.window)
		if err != nil {
			s.logger.Warn("Duplicate check unavailable",
				zap.String("user_id", user),
				zap.Error(err))
		} else if !fresh {
			s.logger.Info("Duplicate load query refused",
				zap.String("user_id", user),
				zap.String("query", query))
			return nil, load.ErrDuplicateRequest
		}
	}

	if s.logs != nil {
		now := time.Now().UTC()
		entry := &load.QueryLog{
			ID:        uuid.New(),
			Query:     query,
			UserID:    user,
			Source:    source,
			ExpiresAt: now.Add(s.window),
			CreatedAt: now,
		}
		if err := s.logs.Create(ctx, entry); err != nil {
			s.logger.Warn("Failed to log load query", zap.Error(err))
		}
	}

	return s.dispatcher.Dispatch(ctx, req, user)
}

func duplicateKey(user string, p ParsedQuery) string {
	return strings.ToLower(fmt.Sprintf("%s:%s:%s:%s", user, p.SKU, p.Target, p.Network))
}
