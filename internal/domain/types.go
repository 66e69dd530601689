package domain

import "time"

// ChatRequest is one chat turn submitted by the UI. Messages are in
// conversation order and immutable for the duration of the request.
type ChatRequest struct {
	Messages        []Message   `json:"messages"`
	Agent           AgentConfig `json:"agent"`
	EnableStreaming *bool       `json:"enableStreaming,omitempty"`
}

// Streaming reports whether the turn should be relayed token by token.
// Defaults to true when the field is omitted.
func (r ChatRequest) Streaming() bool {
	return r.EnableStreaming == nil || *r.EnableStreaming
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AgentConfig is a named persona: a system prompt plus generation
// parameters. Read-only reference data, shared between requests.
type AgentConfig struct {
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	Model        string  `json:"model"`
	SystemPrompt string  `json:"systemPrompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"maxTokens"`
}

// ModelInfo is one entry of the model catalog exposed to the UI.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Tier string `json:"tier"`
}

// EventKind discriminates stream event payloads on the wire. Decoders
// dispatch on this tag, never on which fields happen to be present.
type EventKind string

const (
	EventMetadata EventKind = "metadata"
	EventToken    EventKind = "token"
	EventUsage    EventKind = "usage"
	EventError    EventKind = "error"
)

// MetadataEvent opens every stream. Derived from the AgentConfig once,
// never recomputed.
type MetadataEvent struct {
	Kind        EventKind `json:"kind"`
	AgentName   string    `json:"agentName"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	StartTime   time.Time `json:"startTime"`
}

// TokenEvent carries one incremental chunk of assistant output.
// Concatenating all token payloads in emission order reconstructs the
// full response text.
type TokenEvent struct {
	Kind  EventKind `json:"kind"`
	Token string    `json:"token"`
}

// UsageEvent is the success terminal event, computed once at stream end
// from the provider's reported token counts.
type UsageEvent struct {
	Kind             EventKind `json:"kind"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	TotalTokens      int       `json:"totalTokens"`
	EstimatedCost    float64   `json:"estimatedCost"`
}

// ErrorEvent is the failure terminal event. Code is the provider's HTTP
// status when known, "UNKNOWN" otherwise.
type ErrorEvent struct {
	Kind    EventKind      `json:"kind"`
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// StreamEvent is a decoded event as seen by a client. Exactly one of the
// payload pointers is set, matching Kind.
type StreamEvent struct {
	Kind     EventKind
	Metadata *MetadataEvent
	Token    *TokenEvent
	Usage    *UsageEvent
	Err      *ErrorEvent
}
