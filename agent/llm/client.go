// Package llm adapts an OpenAI-compatible endpoint (OpenRouter by
// default) to the Synthesizer and Embedder contracts.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

// Client is a Synthesizer bound to one completion model. WithModel
// derives clients for per-role model overrides without reconnecting.
type Client struct {
	api            openaisdk.Client
	embedAPI       openaisdk.Client
	model          string
	embeddingModel string
	maxTokens      int64
	temperature    float64
}

var _ contractx.Synthesizer = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(cfg.APIKey)),
	}
	if trimmed := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); trimmed != "" {
		opts = append(opts, option.WithBaseURL(trimmed))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	// OpenRouter attribution headers.
	if cfg.SiteURL != "" {
		opts = append(opts, option.WithHeader("HTTP-Referer", cfg.SiteURL))
	}
	if cfg.SiteName != "" {
		opts = append(opts, option.WithHeader("X-Title", cfg.SiteName))
	}

	embedOpts := opts
	if base := strings.TrimRight(strings.TrimSpace(cfg.EmbeddingBaseURL), "/"); base != "" {
		embedOpts = []option.RequestOption{
			option.WithAPIKey(strings.TrimSpace(cfg.EmbeddingAPIKey)),
			option.WithBaseURL(base),
		}
		if cfg.Timeout > 0 {
			embedOpts = append(embedOpts, option.WithRequestTimeout(cfg.Timeout))
		}
	}

	return &Client{
		api:            openaisdk.NewClient(opts...),
		embedAPI:       openaisdk.NewClient(embedOpts...),
		model:          strings.TrimSpace(cfg.Model),
		embeddingModel: strings.TrimSpace(cfg.EmbeddingModel),
		maxTokens:      int64(cfg.MaxCompletionToken),
		temperature:    float64(cfg.Temperature),
	}, nil
}

// WithModel returns a client using the given completion model. An empty
// model returns the receiver unchanged.
func (c *Client) WithModel(model string) *Client {
	model = strings.TrimSpace(model)
	if model == "" || model == c.model {
		return c
	}
	derived := *c
	derived.model = model
	return &derived
}

// Complete runs one chat completion and returns the generated text.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, openaisdk.SystemMessage(systemPrompt))
	}
	messages = append(messages, openaisdk.UserMessage(userPrompt))

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(c.model),
		Messages: messages,
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openaisdk.Int(c.maxTokens)
	}
	if c.temperature >= 0 {
		params.Temperature = openaisdk.Float(c.temperature)
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", wrapCallError(ctx, "completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: completion returned no choices", contractx.ErrServiceUnavailable)
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("%w: completion is empty", contractx.ErrServiceUnavailable)
	}
	return text, nil
}

// Embed converts one text into an embedding vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.embedAPI.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(c.embeddingModel),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: openaisdk.String(text),
		},
	})
	if err != nil {
		return nil, wrapCallError(ctx, "embedding", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: embedding response is empty", contractx.ErrServiceUnavailable)
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}

func wrapCallError(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: llm %s: %v", contractx.ErrTimeout, op, err)
	}
	return fmt.Errorf("%w: llm %s: %v", contractx.ErrServiceUnavailable, op, err)
}
