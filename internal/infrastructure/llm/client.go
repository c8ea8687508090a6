// Package llm adapts an OpenAI-compatible chat completion endpoint (Ollama by
// default) for persona analysis and in-character replies.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/ports"
)

// Config configures the client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client implements ports.Analyzer and ports.Responder.
type Client struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

var (
	_ ports.Analyzer  = (*Client)(nil)
	_ ports.Responder = (*Client)(nil)
)

// NewClient builds a client. BaseURL is the server root; "/v1" is appended
// when missing.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "ollama"
	}
	return &Client{
		client: openai.NewClient(
			option.WithBaseURL(apiBase(cfg.BaseURL)),
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			option.WithMaxRetries(0),
		),
		model:  cfg.Model,
		logger: logger,
	}
}

func apiBase(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/"
}

// Analyze synthesizes a profile from the persona's transcripts.
func (c *Client) Analyze(ctx context.Context, name string, transcripts []domain.TranscriptInput) (domain.Profile, error) {
	if len(transcripts) == 0 {
		return domain.Profile{}, fmt.Errorf("analyze %s: no transcripts", name)
	}

	text, err := c.complete(ctx, analysisSystemPrompt, buildAnalysisPrompt(name, transcripts), 0.3)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("analyze %s: %w", name, err)
	}

	profile, err := parseProfile(text)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("analyze %s: %w", name, err)
	}
	c.logger.Info("profile synthesized", "persona", name, "transcripts", len(transcripts), "topics", len(profile.Topics))
	return profile, nil
}

// Respond answers prompt under systemPrompt.
func (c *Client) Respond(ctx context.Context, systemPrompt, prompt string) (string, error) {
	text, err := c.complete(ctx, systemPrompt, prompt, 0.8)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) complete(ctx context.Context, systemPrompt, prompt string, temperature float64) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}

	c.logger.Debug("completion received",
		"model", c.model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return resp.Choices[0].Message.Content, nil
}
