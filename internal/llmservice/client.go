package llmservice

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"genai-auto/internal/config"
	"genai-auto/internal/models"
)

var (
	ErrEmptyResponse = errors.New("llm returned no choices")

	thinkRe = regexp.MustCompile(models.ThinkTag)
)

// Completer produces a single chat completion from a system and a user message.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float64) (string, error)
}

// Client calls a chat model through langchaingo.
type Client struct {
	llm     llms.Model
	model   string
	timeout time.Duration
}

// New builds a client for the configured provider.
func New(cfg *config.LLMConfig) (*Client, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Str("base_url", cfg.BaseURL).Msg("Creating LLM client")
	var (
		llm llms.Model
		err error
	)
	switch cfg.Provider {
	case "ollama":
		llm, err = ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
	case "openai", "":
		llm, err = openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewWithModel(llm, cfg.Model, cfg.Timeout), nil
}

// NewWithModel wraps an existing langchaingo model.
func NewWithModel(llm llms.Model, model string, timeout time.Duration) *Client {
	return &Client{llm: llm, model: model, timeout: timeout}
}

func (c *Client) Model() string { return c.model }

// Complete returns the first choice with any <think> block removed.
func (c *Client) Complete(ctx context.Context, system, user string, temperature float64) (string, error) {
	return c.generate(ctx, system, user, llms.WithTemperature(temperature))
}

// Stream is Complete with chunks forwarded to fn as they arrive. The full
// text is still returned.
func (c *Client) Stream(ctx context.Context, system, user string, temperature float64, fn func(chunk string) error) (string, error) {
	return c.generate(ctx, system, user,
		llms.WithTemperature(temperature),
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			return fn(string(chunk))
		}),
	)
}

func (c *Client) generate(ctx context.Context, system, user string, opts ...llms.CallOption) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, user),
	}
	if system != "" {
		messages = append([]llms.MessageContent{llms.TextParts(llms.ChatMessageTypeSystem, system)}, messages...)
	}

	start := time.Now()
	resp, err := c.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	log.Debug().Str("model", c.model).Dur("took", time.Since(start)).Msg("LLM call completed")
	return StripThinking(resp.Choices[0].Content), nil
}

// StripThinking removes reasoning blocks some models prepend to the answer.
func StripThinking(s string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(s, ""))
}
