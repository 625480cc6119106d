package notify

import (
	"context"
	"net/http"
)

type smsRequest struct {
	Mobile  string `json:"mobile"`
	Content string `json:"content"`
}

// SMSClient sends text messages through the SMS gateway service
type SMSClient struct {
	c *client
}

// NewSMSClient creates a new SMSClient
func NewSMSClient(cfg Config) *SMSClient {
	return &SMSClient{c: newClient(cfg.SMSURL, cfg.APIKey, cfg.TimeoutSeconds)}
}

// SendSMS implements load.SMSSender
func (s *SMSClient) SendSMS(ctx context.Context, mobile, text string) error {
	return s.c.do(ctx, http.MethodPost, "/sms", smsRequest{Mobile: mobile, Content: text}, nil)
}
