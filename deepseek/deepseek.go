// Package deepseek implements client.Completer against the DeepSeek
// chat-completion API, which speaks the OpenAI wire format.
package deepseek

import (
	"context"
	"net/http"
	"strings"

	gptLib "github.com/sashabaranov/go-openai"
	. "github.com/stevegt/goadapt"

	"github.com/aititan/deepseek-agent/client"
)

const (
	DefaultBaseURL = "https://api.deepseek.com/v1"
	DefaultModel   = "deepseek-chat"
)

// Config holds everything the client needs.  Nothing is read from the
// environment here; callers load configuration and pass it in.
type Config struct {
	APIKey  string
	BaseURL string
	// Model is used when a request leaves Model empty.
	Model string
	// Temperature and MaxTokens are used when a request leaves them
	// nil.  When both are nil the field is omitted from the request.
	Temperature *float32
	MaxTokens   *int
	// HTTPClient replaces the default transport, mostly for tests.
	HTTPClient *http.Client
}

// Client is a stateless DeepSeek completion client.  It is safe for
// concurrent use.
type Client struct {
	api         *gptLib.Client
	model       string
	temperature *float32
	maxTokens   *int
}

// NewClient creates a new Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	oaiConfig := gptLib.DefaultConfig(cfg.APIKey)
	oaiConfig.BaseURL = baseURL
	if cfg.HTTPClient != nil {
		oaiConfig.HTTPClient = cfg.HTTPClient
	}

	return &Client{
		api:         gptLib.NewClientWithConfig(oaiConfig),
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// Model returns the default model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one chat-completion request and returns the content
// of the first choice.  A missing or empty first choice is a
// MalformedResponseError.  It never retries.
func (c *Client) Complete(ctx context.Context, req client.Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", ErrEmptyPrompt
	}

	oreq := gptLib.ChatCompletionRequest{
		Model: req.Model,
	}
	if oreq.Model == "" {
		oreq.Model = c.model
	}
	// go-openai omits zero values, so an explicit 0 temperature means
	// "server default".
	if t := pick(req.Temperature, c.temperature); t != nil {
		oreq.Temperature = *t
	}
	if n := pick(req.MaxTokens, c.maxTokens); n != nil {
		oreq.MaxTokens = *n
	}
	for _, msg := range req.Messages() {
		oreq.Messages = append(oreq.Messages, gptLib.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	Debug("deepseek: model %s, %d messages", oreq.Model, len(oreq.Messages))
	resp, err := c.api.CreateChatCompletion(ctx, oreq)
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &MalformedResponseError{Reason: "no choices in response"}
	}
	Debug("deepseek: finish reason %q, total tokens %d", resp.Choices[0].FinishReason, resp.Usage.TotalTokens)
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", &MalformedResponseError{Reason: "empty content in first choice"}
	}
	return content, nil
}

func pick[T any](v, fallback *T) *T {
	if v != nil {
		return v
	}
	return fallback
}

// Assert that Client implements client.Completer.
var _ client.Completer = (*Client)(nil)
