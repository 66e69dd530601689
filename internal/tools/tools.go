// Package tools is the demo tool registry: static definitions with JSON
// Schema parameters and stubbed executors. Tools are exposed read-only to
// the UI; the relay never executes them during a chat turn.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/felipepmaragno/chat-relay/internal/domain"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
	Timeout     time.Duration   `json:"-"`

	execute func(ctx context.Context, args json.RawMessage) (any, error)
	schema  *jsonschema.Schema
}

type Registry struct {
	tools map[string]*Tool
}

// NewRegistry builds the registry and compiles every tool's parameter
// schema. A schema that fails to compile is a programming error.
func NewRegistry() (*Registry, error) {
	r := &Registry{tools: make(map[string]*Tool)}

	for _, t := range []*Tool{weatherTool(), calculatorTool(), searchTool()} {
		schema, err := compileSchema(t.Name, t.Parameters)
		if err != nil {
			return nil, err
		}
		t.schema = schema
		r.tools[t.Name] = t
	}

	return r, nil
}

func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns all tool definitions sorted by name.
func (r *Registry) List() []*Tool {
	tools := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })
	return tools
}

// Call validates args against the tool's schema and runs its executor
// under the tool's timeout.
func (r *Registry) Call(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrToolNotFound, name)
	}

	var value any
	if err := json.Unmarshal(args, &value); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments for tool %q: %w", name, err)
	}
	if err := t.schema.Validate(value); err != nil {
		return nil, fmt.Errorf("arguments for tool %q: %w", name, err)
	}

	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	return t.execute(ctx, args)
}

func compileSchema(name string, params json.RawMessage) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()

	var doc any
	if err := json.Unmarshal(params, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON schema for tool %q: %w", name, err)
	}
	if err := compiler.AddResource(name+".json", doc); err != nil {
		return nil, fmt.Errorf("invalid JSON schema for tool %q: %w", name, err)
	}

	schema, err := compiler.Compile(name + ".json")
	if err != nil {
		return nil, fmt.Errorf("compile JSON schema for tool %q: %w", name, err)
	}
	return schema, nil
}

func weatherTool() *Tool {
	return &Tool{
		Name:        "get_weather",
		Description: "Get current weather conditions for a specific location",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"location": {
					"type": "string",
					"description": "City name or coordinates"
				},
				"units": {
					"type": "string",
					"enum": ["celsius", "fahrenheit"]
				}
			},
			"required": ["location"]
		}`),
		Timeout: 5 * time.Second,
		execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Location string `json:"location"`
				Units    string `json:"units"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}
			if in.Units == "" {
				in.Units = "celsius"
			}

			// Canned demo data, no weather API behind this.
			temperature := 22
			if in.Units == "fahrenheit" {
				temperature = 72
			}
			return map[string]any{
				"temperature": temperature,
				"conditions":  "Partly cloudy",
				"units":       in.Units,
			}, nil
		},
	}
}

func calculatorTool() *Tool {
	return &Tool{
		Name:        "calculate",
		Description: "Evaluate a mathematical expression and return the result",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"expression": {
					"type": "string",
					"description": "Arithmetic expression to evaluate (e.g., \"2 + 2 * 3\")"
				}
			},
			"required": ["expression"]
		}`),
		Timeout: time.Second,
		execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Expression string `json:"expression"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}

			result, err := Evaluate(in.Expression)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"result":     result,
				"expression": in.Expression,
			}, nil
		},
	}
}

func searchTool() *Tool {
	return &Tool{
		Name:        "web_search",
		Description: "Search the web for information on a given topic",
		Parameters: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {
					"type": "string",
					"description": "Search query"
				},
				"limit": {
					"type": "integer",
					"minimum": 1
				}
			},
			"required": ["query"]
		}`),
		Timeout: 10 * time.Second,
		execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Query string `json:"query"`
				Limit int    `json:"limit"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, err
			}

			results := []map[string]string{
				{
					"title":   "Results for: " + in.Query,
					"snippet": "Found information about " + in.Query + "...",
					"url":     "https://example.com/search",
				},
			}
			if in.Limit > 0 && in.Limit < len(results) {
				results = results[:in.Limit]
			}
			return map[string]any{"results": results}, nil
		},
	}
}
