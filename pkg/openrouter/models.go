package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ModelsClient lists the models available behind an OpenRouter deployment.
// Kept separate from the completion client: listing is a plain authenticated
// GET and does not need the SDK.
type ModelsClient struct {
	httpClient *resty.Client
}

func NewModelsClient(cfg Config) *ModelsClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")).
		SetAuthToken(strings.TrimSpace(cfg.APIKey)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &ModelsClient{httpClient: client}
}

// List returns the raw model catalog document from GET /models.
func (c *ModelsClient) List(ctx context.Context) (json.RawMessage, error) {
	resp, err := c.httpClient.R().SetContext(ctx).Get("/models")
	if err != nil {
		return nil, fmt.Errorf("openrouter: list models: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("openrouter: list models: status=%d body=%s", resp.StatusCode(), resp.String())
	}
	return json.RawMessage(resp.Body()), nil
}
