package openai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bryanwahyu/fineprint/internal/domain/ai"
)

const (
	defaultModel     = "gpt-4o"
	defaultMaxTokens = 2048
	defaultTimeout   = 60 * time.Second
)

type Options struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// Client is an ai.Client backed by the OpenAI chat completions API.
type Client struct {
	*openai.Client
	Model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	rejected    atomic.Bool
}

func NewClient(opts Options) *Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{}

	c := &Client{
		Client:      openai.NewClientWithConfig(cfg),
		Model:       opts.Model,
		temperature: opts.Temperature,
		maxTokens:   opts.MaxTokens,
		timeout:     opts.Timeout,
	}
	if c.Model == "" {
		c.Model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	return c
}

// reasoning models reject temperature and MaxTokens
func isReasoningModel(model string) bool {
	return strings.HasPrefix(model, "o1") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") || strings.HasPrefix(model, "gpt-5")
}

func (c *Client) Complete(ctx context.Context, in ai.CompletionRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: c.Model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: in.System},
			{Role: openai.ChatMessageRoleUser, Content: in.User},
		},
	}
	if isReasoningModel(c.Model) {
		req.MaxCompletionTokens = c.maxTokens
	} else {
		req.MaxTokens = c.maxTokens
		req.Temperature = c.temperature
	}

	start := time.Now()
	resp, err := c.CreateChatCompletion(ctx, req)
	if err != nil {
		me := classify(err)
		if me.Kind == ai.KindAuth {
			c.rejected.Store(true)
		}
		zap.L().Warn("chat completion failed",
			zap.String("model", c.Model),
			zap.String("kind", string(me.Kind)),
			zap.Int("status", me.StatusCode),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return "", me
	}
	c.rejected.Store(false)

	if len(resp.Choices) == 0 {
		return "", ai.NewModelError(ai.KindEmptyReply, 0, errors.New("no choices in response"))
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ai.NewModelError(ai.KindEmptyReply, 0, errors.New("empty message content"))
	}

	zap.L().Info("chat completion done",
		zap.String("model", c.Model),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("reply_chars", len(content)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return content, nil
}

// CredentialsRejected reports whether the last call failed on authentication.
func (c *Client) CredentialsRejected() bool {
	return c.rejected.Load()
}

func classify(err error) *ai.ModelError {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return ai.NewModelError(kindForStatus(apiErr.HTTPStatusCode), apiErr.HTTPStatusCode, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return ai.NewModelError(kindForStatus(reqErr.HTTPStatusCode), reqErr.HTTPStatusCode, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ai.NewModelError(ai.KindTimeout, 0, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ai.NewModelError(ai.KindTimeout, 0, err)
	}
	return ai.NewModelError(ai.KindUnavailable, 0, err)
}

func kindForStatus(status int) ai.ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ai.KindAuth
	case http.StatusTooManyRequests:
		return ai.KindRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ai.KindTimeout
	}
	return ai.KindUnavailable
}
