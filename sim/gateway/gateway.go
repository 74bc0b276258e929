// Package gateway owns all traffic to the LLM completion endpoint: credential
// resolution, blocking and streaming completions, and the fallback policy
// that keeps autonomous simulation turns alive when the endpoint fails.
package gateway

import (
	"context"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/rs/zerolog/log"

	openrouterx "github.com/openvend/vendsim/pkg/openrouter"
	contractx "github.com/openvend/vendsim/sim/contract"
)

const (
	// OperatorFallback stands in for an operator reply when the endpoint is
	// unreachable; it parses to UNKNOWN and the turn degrades to no action.
	OperatorFallback = "Error: Could not get response from LLM."

	// CustomerFallback is a safe synthetic customer request for the same case.
	CustomerFallback = "REQUEST: Could you offer a discount on one of your products today?"
)

type Gateway struct {
	cfg       openrouterx.Config
	client    *openaisdk.Client
	creds     contractx.CredentialStore
	keySecret []byte
}

// New builds a gateway around the process-wide default credential. creds may
// be nil when per-user keys are not in play (pure simulation deployments).
func New(cfg openrouterx.Config, keySecret string, creds contractx.CredentialStore) *Gateway {
	return &Gateway{
		cfg:       cfg,
		client:    openrouterx.NewClient(cfg),
		creds:     creds,
		keySecret: []byte(keySecret),
	}
}

// Complete sends prompt as a single user message and blocks for the full
// reply. Failures are explicit; simulation callers wrap this with
// WithFallback.
func (g *Gateway) Complete(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", contractx.ErrNoAPIKey
	}

	resp, err := g.client.Chat.Completions.New(ctx, g.params([]openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.UserMessage(prompt),
	}, g.cfg.Model))
	if err != nil {
		return "", fmt.Errorf("%w: %v", contractx.ErrGateway, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", contractx.ErrGateway)
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStream sends prompt and returns a lazy, finite, non-restartable
// fragment sequence.
func (g *Gateway) CompleteStream(ctx context.Context, prompt string) (*Stream, error) {
	if g.client == nil {
		return nil, contractx.ErrNoAPIKey
	}
	inner := g.client.Chat.Completions.NewStreaming(ctx, g.params([]openaisdk.ChatCompletionMessageParamUnion{
		openaisdk.UserMessage(prompt),
	}, g.cfg.Model))
	return &Stream{inner: inner}, nil
}

// clientFor resolves the completion client for a user: their stored encrypted
// key when present and decryptable, else the process default. Resolution
// failures degrade to the default key; only a missing default is terminal.
func (g *Gateway) clientFor(ctx context.Context, userID string) (*openaisdk.Client, error) {
	if userID != "" && g.creds != nil {
		encrypted, err := g.creds.UserAPIKey(ctx, userID)
		switch {
		case err != nil:
			log.Warn().Err(err).Str("user_id", userID).Msg("user api key lookup failed")
		case encrypted != "":
			key, err := decryptAPIKey(g.keySecret, encrypted)
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("user api key decrypt failed")
			} else if client := openrouterx.NewClientWithKey(g.cfg, key); client != nil {
				return client, nil
			}
		}
	}

	if g.client == nil {
		return nil, contractx.ErrNoAPIKey
	}
	return g.client, nil
}

func (g *Gateway) params(messages []openaisdk.ChatCompletionMessageParamUnion, model string) openaisdk.ChatCompletionNewParams {
	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(strings.TrimSpace(model)),
		Messages: messages,
	}
	if g.cfg.Temperature >= 0 {
		params.Temperature = openaisdk.Float(g.cfg.Temperature)
	}
	if g.cfg.MaxCompletionToken > 0 {
		params.MaxTokens = openaisdk.Int(int64(g.cfg.MaxCompletionToken))
	}
	return params
}

// WithFallback adapts a Completer for autonomous use: any completion error is
// logged and replaced by value, never surfaced.
func WithFallback(inner contractx.Completer, value string) contractx.Completer {
	return fallbackCompleter{inner: inner, value: value}
}

type fallbackCompleter struct {
	inner contractx.Completer
	value string
}

func (f fallbackCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	text, err := f.inner.Complete(ctx, prompt)
	if err != nil {
		log.Warn().Err(err).Msg("completion failed, using fallback response")
		return f.value, nil
	}
	return text, nil
}
