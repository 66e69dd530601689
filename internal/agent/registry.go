// Package agent holds the built-in chat personas. Personas are static
// configuration: a system prompt plus generation parameters, never mutated
// after startup.
package agent

import (
	"sort"
	"strings"

	"github.com/felipepmaragno/chat-relay/internal/domain"
)

// AvailableModels is the catalog shared by every persona.
var AvailableModels = []domain.ModelInfo{
	{ID: "claude-sonnet-4-20250514", Name: "Claude 4 Sonnet", Tier: "balanced"},
	{ID: "claude-opus-4-5-20251101", Name: "Claude 4.5 Opus", Tier: "premium"},
	{ID: "claude-3-5-sonnet-20241022", Name: "Claude 3.5 Sonnet", Tier: "legacy"},
	{ID: "claude-3-5-haiku-20241022", Name: "Claude 3.5 Haiku", Tier: "fast"},
}

const customerSupportPrompt = `You are a friendly customer support agent for TechCorp.

Your role:
- Help customers with product questions
- Troubleshoot technical issues
- Handle billing inquiries
- Be empathetic and solution-focused

Always greet customers warmly and ask how you can help them today.`

const codeAssistantPrompt = `You are an expert programming assistant.

Your role:
- Help developers write clean, efficient code
- Debug issues and suggest fixes
- Explain programming concepts clearly
- Provide code examples in multiple languages

Always format code properly and explain your reasoning.`

const creativeWriterPrompt = `You are a creative writing assistant.

Your role:
- Write engaging stories and content
- Help with brainstorming ideas
- Provide writing tips and techniques
- Adapt your style to different genres

Be imaginative, expressive, and inspiring!`

// Registry is a read-only persona lookup. Name matching is
// case-insensitive.
type Registry struct {
	agents map[string]domain.AgentConfig
}

func NewRegistry() *Registry {
	r := &Registry{agents: make(map[string]domain.AgentConfig)}

	for _, a := range []domain.AgentConfig{
		{
			Name:         "CustomerSupport",
			Description:  "Friendly, empathetic support agent",
			SystemPrompt: customerSupportPrompt,
			Model:        "claude-sonnet-4-20250514",
			Temperature:  0.7,
			MaxTokens:    2000,
		},
		{
			Name:         "CodeAssistant",
			Description:  "Expert programming assistant",
			SystemPrompt: codeAssistantPrompt,
			Model:        "claude-sonnet-4-20250514",
			Temperature:  0.3,
			MaxTokens:    3000,
		},
		{
			Name:         "CreativeWriter",
			Description:  "Imaginative creative writing assistant",
			SystemPrompt: creativeWriterPrompt,
			Model:        "claude-sonnet-4-20250514",
			Temperature:  0.9,
			MaxTokens:    2000,
		},
	} {
		r.agents[strings.ToLower(a.Name)] = a
	}

	return r
}

func (r *Registry) Get(name string) (domain.AgentConfig, bool) {
	a, ok := r.agents[strings.ToLower(name)]
	return a, ok
}

// List returns all personas sorted by name.
func (r *Registry) List() []domain.AgentConfig {
	agents := make([]domain.AgentConfig, 0, len(r.agents))
	for _, a := range r.agents {
		agents = append(agents, a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Name < agents[j].Name })
	return agents
}
