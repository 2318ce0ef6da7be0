package core

import (
	"fmt"
	"sort"

	"github.com/aititan/deepseek-agent/deepseek"
)

// Model is a type for model name and characteristics
type Model struct {
	Name        string
	TokenLimit  int
	Description string
	// upstreamName is the id sent to the endpoint
	upstreamName string
	active       bool
}

func (m *Model) String() string {
	status := ""
	if m.active {
		status = "*"
	}
	return fmt.Sprintf("%1s %-20s tokens: %-7d %s", status, m.Name, m.TokenLimit, m.Description)
}

// UpstreamName returns the model id sent to the endpoint.
func (m *Model) UpstreamName() string {
	return m.upstreamName
}

// Models is a type that manages the set of available models.
type Models struct {
	// The list of available models.
	Available map[string]*Model
	// Default is used when no model is named.
	Default string
}

// NewModels creates a new Models object.
func NewModels() (models *Models) {
	models = &Models{Default: deepseek.DefaultModel}
	models.Available = make(map[string]*Model)
	add := func(name string, tokenLimit int, upstreamName, description string) {
		m := &Model{
			Name:         name,
			TokenLimit:   tokenLimit,
			Description:  description,
			upstreamName: upstreamName,
		}
		models.Available[name] = m
	}

	add("deepseek-chat", 64000, "deepseek-chat", "general chat model")
	add("deepseek-reasoner", 64000, "deepseek-reasoner", "reasoning model")
	// deepseek-coder is served by the chat model upstream
	add("deepseek-coder", 64000, "deepseek-chat", "code generation (alias of deepseek-chat)")

	return
}

// FindModel returns the model name and object given a model name.
// if the given model name is empty, then use the default.
func (models *Models) FindModel(model string) (name string, m *Model, err error) {
	if model == "" {
		model = models.Default
	}
	m, ok := models.Available[model]
	if !ok {
		err = fmt.Errorf("model %q not found", model)
		return
	}
	name = model
	return
}

// SetDefault marks model as the default.
func (models *Models) SetDefault(model string) (err error) {
	_, m, err := models.FindModel(model)
	if err != nil {
		return
	}
	for _, other := range models.Available {
		other.active = false
	}
	m.active = true
	models.Default = m.Name
	return
}

// ListModels returns a list of available models sorted by name.
func (models *Models) ListModels() (list []*Model) {
	for _, m := range models.Available {
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return
}
