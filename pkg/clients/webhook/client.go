package webhook

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/meattrace/internal/config"
	"github.com/mamadbah2/meattrace/internal/domain/models"
)

// Client posts transition events to the configured downstream webhook.
type Client interface {
	PostEvent(ctx context.Context, event models.TransitionEvent) error
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds a webhook client using the provided configuration values.
func NewClient(cfg config.NotifyConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(cfg.WebhookURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	if cfg.AuthToken != "" {
		restyClient.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.AuthToken))
	}

	return &APIClient{httpClient: restyClient}
}

// apiError represents an error payload returned by the webhook receiver.
type apiError struct {
	Error string `json:"error"`
}

// PostEvent delivers a single transition event.
func (c *APIClient) PostEvent(ctx context.Context, event models.TransitionEvent) error {
	receiverErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(event).
		SetError(receiverErr).
		Post("")
	if err != nil {
		return fmt.Errorf("post transition event: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("webhook error: code=%d, message=%s", resp.StatusCode(), receiverErr.Error)
	}

	return nil
}
