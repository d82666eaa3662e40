// Package llm turns a prompt into a completion through one of the
// configured model providers.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/pkg/anthropic"
	"github.com/sells-group/leadgen-cli/pkg/perplexity"
)

// ErrEmptyCompletion is returned when the provider replies without text.
var ErrEmptyCompletion = eris.New("llm: empty completion")

// Completer produces a single text completion for a prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt string) (string, error)

// Complete implements Completer.
func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Params are the generation settings shared by the providers.
type Params struct {
	Model       string
	MaxTokens   int64
	Temperature *float64
	System      string

	// Web search filters, honored by Perplexity only.
	SearchDomains []string
	SearchRecency string
}

// AnthropicCompleter completes prompts with the Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	params Params
	stage  string
}

// NewAnthropic creates an AnthropicCompleter. stage labels usage logs.
func NewAnthropic(client anthropic.Client, p Params, stage string) *AnthropicCompleter {
	if p.MaxTokens <= 0 {
		p.MaxTokens = 1024
	}
	return &AnthropicCompleter{client: client, params: p, stage: stage}
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	req := anthropic.MessageRequest{
		Model:       c.params.Model,
		MaxTokens:   c.params.MaxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: c.params.Temperature,
	}
	if c.params.System != "" {
		req.System = []anthropic.SystemBlock{{Text: c.params.System, Cached: true}}
	}

	resp, err := c.client.CreateMessage(ctx, req)
	if err != nil {
		return "", eris.Wrap(resilience.MarkHTTP(err, anthropic.StatusCode(err), 0), "llm: anthropic")
	}
	resp.Usage.LogCost(c.params.Model, c.stage)

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", eris.Wrapf(ErrEmptyCompletion, "anthropic stop_reason=%s", resp.StopReason)
	}
	return text, nil
}

// PerplexityCompleter completes prompts with Perplexity chat completions.
type PerplexityCompleter struct {
	client perplexity.Client
	params Params
}

// NewPerplexity creates a PerplexityCompleter.
func NewPerplexity(client perplexity.Client, p Params) *PerplexityCompleter {
	return &PerplexityCompleter{client: client, params: p}
}

// Complete implements Completer.
func (c *PerplexityCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	var msgs []perplexity.Message
	if c.params.System != "" {
		msgs = append(msgs, perplexity.Message{Role: "system", Content: c.params.System})
	}
	msgs = append(msgs, perplexity.Message{Role: "user", Content: prompt})

	req := perplexity.ChatCompletionRequest{
		Model:               c.params.Model,
		Messages:            msgs,
		Temperature:         c.params.Temperature,
		SearchDomainFilter:  c.params.SearchDomains,
		SearchRecencyFilter: c.params.SearchRecency,
	}
	if c.params.MaxTokens > 0 {
		n := int(c.params.MaxTokens)
		req.MaxTokens = &n
	}

	resp, err := c.client.ChatCompletion(ctx, req)
	if err != nil {
		var se *perplexity.StatusError
		if errors.As(err, &se) {
			err = resilience.MarkHTTP(err, se.StatusCode, se.RetryAfter)
		}
		return "", eris.Wrap(err, "llm: perplexity")
	}
	zap.L().Debug("llm: perplexity usage",
		zap.String("model", resp.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("sources", len(resp.SearchResults)),
	)

	text := strings.TrimSpace(resp.Content())
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
