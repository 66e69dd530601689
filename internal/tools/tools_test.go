package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/felipepmaragno/chat-relay/internal/domain"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistry_List(t *testing.T) {
	r := newTestRegistry(t)

	list := r.List()
	want := []string{"calculate", "get_weather", "web_search"}
	if len(list) != len(want) {
		t.Fatalf("got %d tools, want %d", len(list), len(want))
	}
	for i, tool := range list {
		if tool.Name != want[i] {
			t.Errorf("tool %d = %q, want %q", i, tool.Name, want[i])
		}
		if tool.Description == "" {
			t.Errorf("tool %q has no description", tool.Name)
		}
		if len(tool.Parameters) == 0 {
			t.Errorf("tool %q has no parameter schema", tool.Name)
		}
	}
}

func TestRegistry_Get(t *testing.T) {
	r := newTestRegistry(t)

	if _, ok := r.Get("calculate"); !ok {
		t.Error("Get(calculate) not found")
	}
	if _, ok := r.Get("nope"); ok {
		t.Error("Get(nope) found an unregistered tool")
	}
}

func TestRegistry_CallCalculator(t *testing.T) {
	r := newTestRegistry(t)

	out, err := r.Call(context.Background(), "calculate", json.RawMessage(`{"expression":"2 + 2 * 3"}`))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	result, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("result type = %T, want map", out)
	}
	if result["result"] != 8.0 {
		t.Errorf("result = %v, want 8", result["result"])
	}
}

func TestRegistry_CallWeatherDefaults(t *testing.T) {
	r := newTestRegistry(t)

	out, err := r.Call(context.Background(), "get_weather", json.RawMessage(`{"location":"Lisbon"}`))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}

	result := out.(map[string]any)
	if result["units"] != "celsius" {
		t.Errorf("units = %v, want celsius default", result["units"])
	}
}

func TestRegistry_CallValidation(t *testing.T) {
	r := newTestRegistry(t)

	tests := []struct {
		name string
		tool string
		args string
	}{
		{"missing required", "calculate", `{}`},
		{"wrong type", "calculate", `{"expression": 42}`},
		{"enum violation", "get_weather", `{"location":"Lisbon","units":"kelvin"}`},
		{"not json", "calculate", `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Call(context.Background(), tt.tool, json.RawMessage(tt.args)); err == nil {
				t.Error("Call succeeded, want validation error")
			}
		})
	}
}

func TestRegistry_CallUnknownTool(t *testing.T) {
	r := newTestRegistry(t)

	_, err := r.Call(context.Background(), "teleport", json.RawMessage(`{}`))
	if !errors.Is(err, domain.ErrToolNotFound) {
		t.Fatalf("error = %v, want ErrToolNotFound", err)
	}
}
