package core

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	. "github.com/stevegt/goadapt"

	"github.com/aititan/deepseek-agent/client"
)

// Component is one UI element of an app definition.
type Component struct {
	Type  string                 `json:"type"`
	Label string                 `json:"label,omitempty"`
	Props map[string]interface{} `json:"props,omitempty"`
}

// AppResult is the outcome of CreateApp.
type AppResult struct {
	// Code is the App.js source with any code fence removed.
	Code string `json:"code"`
	// Raw is the unmodified model response.
	Raw string `json:"raw"`
}

var appPromptLines = []string{
	"You are TitanForge, an expert full-stack app-creating agent.",
	"Given an app description and a list of UI components, produce a single-file React app (App.js).",
	"Requirements:",
	"- Use functional React components.",
	"- Render the provided components with sensible defaults and labels.",
	"- Do not include explanations. Return ONLY the code for App.js inside a single fenced code block.",
}

// BuildAppPrompt returns the prompt used to generate an app from a
// description and component list.
func BuildAppPrompt(description string, components []Component) (prompt string, err error) {
	defer Return(&err)
	if components == nil {
		components = []Component{}
	}
	buf, err := json.MarshalIndent(components, "", "  ")
	Ck(err)
	if strings.TrimSpace(description) == "" {
		description = "(no description provided)"
	}
	lines := append([]string{}, appPromptLines...)
	lines = append(lines,
		"",
		"App Description:",
		description,
		"",
		"Components JSON:",
		string(buf),
	)
	prompt = strings.Join(lines, "\n")
	return
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\n(.*?)```")

// StripCodeFence returns the body of the first fenced code block in
// text, or the trimmed text if there is none.
func StripCodeFence(text string) string {
	m := fenceRe.FindStringSubmatch(text)
	if m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// CreateApp asks the model for a React app matching description and
// components.  req supplies the model and sampling options; its Prompt
// is replaced.
func (a *Agent) CreateApp(ctx context.Context, description string, components []Component, req client.Request) (res AppResult, err error) {
	req.Prompt, err = BuildAppPrompt(description, components)
	if err != nil {
		return
	}
	raw, err := a.Ask(ctx, req)
	if err != nil {
		return
	}
	res = AppResult{Code: StripCodeFence(raw), Raw: raw}
	return
}
