package client

import "context"

// Role values for Msg.Role.  These match the OpenAI chat-completion
// wire format so providers can pass them through unchanged.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer defines the interface for single-shot completions.
// Implementations (the DeepSeek client and the mock) send one request
// and return the text of the first choice.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Request is one completion request.  Temperature and MaxTokens are
// optional; nil means "use the completer's default".
type Request struct {
	Prompt      string
	Model       string
	Sysmsg      string
	Temperature *float32
	MaxTokens   *int
}

// Msg represents a single chat message.
type Msg struct {
	Role    string
	Content string
}

// Messages returns the chat messages for req: an optional system
// message followed by the user prompt.
func (req Request) Messages() (msgs []Msg) {
	if req.Sysmsg != "" {
		msgs = append(msgs, Msg{Role: RoleSystem, Content: req.Sysmsg})
	}
	msgs = append(msgs, Msg{Role: RoleUser, Content: req.Prompt})
	return
}

// Float32 returns a pointer to v.
func Float32(v float32) *float32 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
