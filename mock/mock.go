package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/aititan/deepseek-agent/client"
	"github.com/aititan/deepseek-agent/deepseek"
)

// Client is a mock completion provider for testing and demo mode.
// It implements the Completer interface and returns pre-configured
// responses based on the model name.  Tests can configure responses
// using SetResponse and failures using SetError.
type Client struct {
	mu        sync.Mutex
	Responses map[string]string // model name -> response
	Errors    map[string]error  // model name -> error
	// Requests records every request that reached the mock.
	Requests []client.Request
}

// NewClient creates a new mock client.
func NewClient() *Client {
	return &Client{
		Responses: make(map[string]string),
		Errors:    make(map[string]error),
	}
}

// SetResponse sets the response for a given model name.
func (c *Client) SetResponse(model, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Responses[model] = response
}

// SetError makes every request for model fail with err.
func (c *Client) SetError(model string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Errors[model] = err
}

// Calls returns the number of requests that reached the mock.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

// Complete returns a pre-configured response based on the model name.
// If no response has been configured for the given model, it echoes
// the prompt back, which keeps demo mode useful without a key.
func (c *Client) Complete(ctx context.Context, req client.Request) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", deepseek.ErrEmptyPrompt
	}
	if err := ctx.Err(); err != nil {
		return "", &deepseek.NetworkError{Err: err}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Requests = append(c.Requests, req)
	if err, ok := c.Errors[req.Model]; ok {
		return "", err
	}
	response, ok := c.Responses[req.Model]
	if !ok {
		response = fmt.Sprintf("[demo mode] %s", req.Prompt)
	}
	return response, nil
}

var _ client.Completer = (*Client)(nil)
