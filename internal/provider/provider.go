// Package provider defines the upstream LLM contract consumed by the
// relay: a completion call that returns either a full response or an
// incremental stream of chunks with trailing usage counts.
package provider

import (
	"context"

	"github.com/felipepmaragno/chat-relay/internal/domain"
)

// Request is one completion call. System carries the persona prompt
// separately from the conversation messages.
type Request struct {
	Model       string
	System      string
	Messages    []domain.Message
	Temperature float64
	MaxTokens   int
}

// Completion is a full non-streaming response. Text is empty when the
// provider returned no text content block.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

type ChunkKind int

const (
	// ChunkStart opens a streamed message and carries the input token
	// count.
	ChunkStart ChunkKind = iota
	// ChunkText carries one incremental text delta.
	ChunkText
	// ChunkUsage carries the output token count. May arrive more than
	// once; the last value before end-of-stream wins.
	ChunkUsage
)

// Chunk is one upstream incremental event, normalized across providers.
type Chunk struct {
	Kind         ChunkKind
	Text         string
	InputTokens  int
	OutputTokens int
}

type Provider interface {
	ID() string
	Complete(ctx context.Context, req Request) (*Completion, error)
	// Stream closes the chunk channel on upstream end-of-stream. A failure
	// at any point is delivered on the error channel instead; both
	// channels are closed when the call finishes either way.
	Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
	HealthCheck(ctx context.Context) error
}
