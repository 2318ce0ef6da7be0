package core

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	. "github.com/stevegt/goadapt"

	"github.com/aititan/deepseek-agent/client"
	"github.com/aititan/deepseek-agent/deepseek"
	"github.com/aititan/deepseek-agent/history"
)

// TokenLimitError is returned before any network call when the prompt
// does not fit in the model's context window.
type TokenLimitError struct {
	Model string
	Count int
	Limit int
}

func (e *TokenLimitError) Error() string {
	return fmt.Sprintf("token count %d exceeds token limit %d for model %s", e.Count, e.Limit, e.Model)
}

// Agent sits between the command surfaces and a Completer.  Each Ask
// is a single call to the Completer; the agent adds validation, a
// token budget check, an optional deadline, and history recording.
type Agent struct {
	completer client.Completer
	models    *Models
	tokenizer *Tokenizer
	history   *history.Store
	timeout   time.Duration
}

// Option configures an Agent.
type Option func(*Agent)

// WithTokenizer enables the token budget check.
func WithTokenizer(t *Tokenizer) Option {
	return func(a *Agent) { a.tokenizer = t }
}

// WithHistory records every successful exchange in s.
func WithHistory(s *history.Store) Option {
	return func(a *Agent) { a.history = s }
}

// WithTimeout bounds each call with a deadline.
func WithTimeout(d time.Duration) Option {
	return func(a *Agent) { a.timeout = d }
}

// NewAgent creates an Agent.  models may be nil, in which case the
// built-in registry is used.
func NewAgent(c client.Completer, models *Models, opts ...Option) *Agent {
	if models == nil {
		models = NewModels()
	}
	a := &Agent{completer: c, models: models}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Models returns the agent's model registry.
func (a *Agent) Models() *Models {
	return a.models
}

// Ask sends req to the completer and returns the generated text.
// The prompt is passed through unmodified.
func (a *Agent) Ask(ctx context.Context, req client.Request) (out string, err error) {
	// the prompt is sent as given; whitespace may be significant
	if strings.TrimSpace(req.Prompt) == "" {
		return "", deepseek.ErrEmptyPrompt
	}

	name := req.Model
	if name == "" {
		name = a.models.Default
	}
	sent := req
	sent.Model = name
	_, m, ferr := a.models.FindModel(name)
	if ferr != nil {
		// let the endpoint decide about models we don't know
		Debug("model %q not in registry, passing through", name)
	} else {
		sent.Model = m.UpstreamName()
		err = a.checkBudget(m, req)
		if err != nil {
			return
		}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	Debug("asking %s (upstream %s)", name, sent.Model)
	out, err = a.completer.Complete(ctx, sent)
	if err != nil {
		return "", err
	}

	if a.history != nil {
		herr := a.history.Add(&history.Entry{
			Model:       name,
			Sysmsg:      req.Sysmsg,
			Prompt:      req.Prompt,
			Response:    out,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		})
		if herr != nil {
			// the answer is still good; don't lose it
			Fpf(os.Stderr, "warning: failed to record history: %v\n", herr)
		}
	}
	return
}

// checkBudget fails if the prompt and system message don't fit in m's
// context window.  It is a no-op without a tokenizer.
func (a *Agent) checkBudget(m *Model, req client.Request) (err error) {
	if a.tokenizer == nil {
		return
	}
	count := 0
	for _, txt := range []string{req.Sysmsg, req.Prompt} {
		var tc int
		tc, err = a.tokenizer.Count(txt)
		if err != nil {
			return
		}
		count += tc
	}
	Debug("prompt token count: %d of %d", count, m.TokenLimit)
	if count > m.TokenLimit {
		return &TokenLimitError{Model: m.Name, Count: count, Limit: m.TokenLimit}
	}
	return
}

// TokenCount returns the number of tokens in text, or an error when the
// agent has no tokenizer.
func (a *Agent) TokenCount(text string) (count int, err error) {
	if a.tokenizer == nil {
		return 0, fmt.Errorf("no tokenizer configured")
	}
	return a.tokenizer.Count(text)
}
