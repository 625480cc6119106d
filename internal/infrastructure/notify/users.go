package notify

import (
	"context"
	"net/http"
	"net/url"

	"github.com/loadengine/backend/internal/domain/load"
)

type userResponse struct {
	ID         string `json:"id"`
	Mobile     string `json:"mobile"`
	MetaID     string `json:"meta_id"`
	TelegramID string `json:"telegram_id"`
	ViberID    string `json:"viber_id"`
}

// UserClient resolves requester profiles from the user service
type UserClient struct {
	c *client
}

// NewUserClient creates a new UserClient
func NewUserClient(cfg Config) *UserClient {
	return &UserClient{c: newClient(cfg.UserURL, cfg.APIKey, cfg.TimeoutSeconds)}
}

// GetUser implements load.UserDirectory
func (u *UserClient) GetUser(ctx context.Context, userID string) (load.UserProfile, error) {
	var resp userResponse
	if err := u.c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID), nil, &resp); err != nil {
		return load.UserProfile{}, err
	}
	return load.UserProfile{
		ID:         resp.ID,
		Mobile:     resp.Mobile,
		MetaID:     resp.MetaID,
		TelegramID: resp.TelegramID,
		ViberID:    resp.ViberID,
	}, nil
}
