// Package anthropic is a thin client over the Anthropic Messages API,
// reduced to plain text turns.
package anthropic

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Client sends one Messages API request.
type Client interface {
	CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error)
}

// MessageRequest is a single-shot text request.
type MessageRequest struct {
	Model         string
	MaxTokens     int64
	System        []SystemBlock
	Messages      []Message
	Temperature   *float64
	StopSequences []string
}

// SystemBlock is one system prompt block. Cached blocks are marked for
// ephemeral prompt caching.
type SystemBlock struct {
	Text   string
	Cached bool
}

// Message is one turn. A trailing assistant turn prefills the reply.
type Message struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageResponse is the reply, reduced to its text blocks.
type MessageResponse struct {
	ID         string
	Model      string
	Content    []ContentBlock
	StopReason string
	Usage      TokenUsage
}

// ContentBlock is one block of the reply.
type ContentBlock struct {
	Type string
	Text string
}

// Text joins the reply's text blocks.
func (r *MessageResponse) Text() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	for _, c := range r.Content {
		if c.Type == "text" {
			b.WriteString(c.Text)
		}
	}
	return b.String()
}

// TokenUsage is the token accounting of one request.
type TokenUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

// USD per million input and output tokens, keyed by model family prefix.
var pricing = []struct {
	prefix        string
	input, output float64
}{
	{"claude-haiku-4-5", 1.00, 5.00},
	{"claude-sonnet-4", 3.00, 15.00},
	{"claude-opus-4", 15.00, 75.00},
}

// CostUSD estimates what the request cost. Unknown models cost 0. Cache
// writes bill at 1.25x input and cache reads at 0.1x.
func (u TokenUsage) CostUSD(model string) float64 {
	for _, p := range pricing {
		if !strings.HasPrefix(model, p.prefix) {
			continue
		}
		in := float64(u.InputTokens) + 1.25*float64(u.CacheCreationInputTokens) + 0.1*float64(u.CacheReadInputTokens)
		return (in*p.input + float64(u.OutputTokens)*p.output) / 1e6
	}
	return 0
}

// LogCost logs the usage of a pipeline stage at debug level.
func (u TokenUsage) LogCost(model, stage string) {
	zap.L().Debug("anthropic: usage",
		zap.String("model", model),
		zap.String("stage", stage),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_read_tokens", u.CacheReadInputTokens),
		zap.Float64("cost_usd", u.CostUSD(model)),
	)
}

// StatusCode returns the HTTP status of an API error, or 0 when err did
// not come from an HTTP reply.
func StatusCode(err error) int {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Option configures the SDK client.
type Option func(*[]option.RequestOption)

// WithBaseURL points the client at another API host.
func WithBaseURL(url string) Option {
	return func(o *[]option.RequestOption) {
		*o = append(*o, option.WithBaseURL(url))
	}
}

// WithMaxRetries sets how often the SDK retries throttled and failed
// requests on its own.
func WithMaxRetries(n int) Option {
	return func(o *[]option.RequestOption) {
		*o = append(*o, option.WithMaxRetries(max(n, 0)))
	}
}

type sdkClient struct {
	messages sdk.MessageService
}

// NewClient creates a Client backed by the official SDK.
func NewClient(apiKey string, opts ...Option) Client {
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	for _, o := range opts {
		o(&reqOpts)
	}
	c := sdk.NewClient(reqOpts...)
	return &sdkClient{messages: c.Messages}
}

func (c *sdkClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	if len(req.Messages) == 0 {
		return nil, eris.New("anthropic: no messages")
	}
	params := sdk.MessageNewParams{
		Model:         sdk.Model(req.Model),
		MaxTokens:     req.MaxTokens,
		Messages:      make([]sdk.MessageParam, 0, len(req.Messages)),
		StopSequences: req.StopSequences,
	}
	for _, m := range req.Messages {
		block := sdk.NewTextBlock(m.Content)
		if m.Role == "assistant" {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, sdk.NewUserMessage(block))
		}
	}
	for _, s := range req.System {
		tb := sdk.TextBlockParam{Text: s.Text}
		if s.Cached {
			tb.CacheControl = sdk.NewCacheControlEphemeralParam()
		}
		params.System = append(params.System, tb)
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	msg, err := c.messages.New(ctx, params)
	if err != nil {
		return nil, eris.Wrap(err, "anthropic: create message")
	}

	out := &MessageResponse{
		ID:         msg.ID,
		Model:      string(msg.Model),
		StopReason: string(msg.StopReason),
		Content:    make([]ContentBlock, 0, len(msg.Content)),
		Usage: TokenUsage{
			InputTokens:              msg.Usage.InputTokens,
			OutputTokens:             msg.Usage.OutputTokens,
			CacheCreationInputTokens: msg.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     msg.Usage.CacheReadInputTokens,
		},
	}
	for _, b := range msg.Content {
		out.Content = append(out.Content, ContentBlock{Type: b.Type, Text: b.Text})
	}
	return out, nil
}
