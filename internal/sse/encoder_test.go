package sse

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felipepmaragno/chat-relay/internal/domain"
)

// syncBuffer lets the heartbeat goroutine and the test body share a
// buffer safely.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testAgent() domain.AgentConfig {
	return domain.AgentConfig{
		Name:        "CustomerSupport",
		Model:       "claude-sonnet-4-20250514",
		Temperature: 0.7,
		MaxTokens:   2000,
	}
}

func TestEncoder_FrameFormat(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	defer enc.Close()

	if err := enc.Token("Hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frame := buf.String()
	if !strings.HasPrefix(frame, "data: ") {
		t.Errorf("frame = %q, want data: prefix", frame)
	}
	if !strings.HasSuffix(frame, "\n\n") {
		t.Errorf("frame = %q, want blank-line terminator", frame)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(frame, "data: "), "\n\n")), &payload); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if payload["kind"] != "token" {
		t.Errorf("kind = %v, want token", payload["kind"])
	}
	if payload["token"] != "Hello" {
		t.Errorf("token = %v, want Hello", payload["token"])
	}
}

func TestEncoder_UsageComputesTotal(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	defer enc.Close()

	if err := enc.Usage(5, 2, 0.0001); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload domain.UsageEvent
	data := strings.TrimSuffix(strings.TrimPrefix(buf.String(), "data: "), "\n\n")
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload.TotalTokens != 7 {
		t.Errorf("total tokens = %d, want 7", payload.TotalTokens)
	}
}

func TestEncoder_RefusesEventsAfterTerminal(t *testing.T) {
	tests := []struct {
		name     string
		terminal func(*Encoder) error
	}{
		{"after usage", func(e *Encoder) error { return e.Usage(5, 2, 0.001) }},
		{"after error", func(e *Encoder) error { return e.Error("boom", "500", nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			enc := NewEncoder(&buf)
			defer enc.Close()

			if err := tt.terminal(enc); err != nil {
				t.Fatalf("terminal write failed: %v", err)
			}

			before := buf.Len()

			if err := enc.Token("late"); !errors.Is(err, domain.ErrStreamClosed) {
				t.Errorf("Token after terminal = %v, want ErrStreamClosed", err)
			}
			if err := enc.Usage(1, 1, 0); !errors.Is(err, domain.ErrStreamClosed) {
				t.Errorf("second terminal = %v, want ErrStreamClosed", err)
			}
			if err := enc.Metadata(testAgent(), time.Now()); !errors.Is(err, domain.ErrStreamClosed) {
				t.Errorf("Metadata after terminal = %v, want ErrStreamClosed", err)
			}

			if buf.Len() != before {
				t.Errorf("bytes written after terminal: %q", buf.String()[before:])
			}
			if !enc.Terminated() {
				t.Error("Terminated() = false after terminal event")
			}
		})
	}
}

func TestEncoder_HeartbeatWhenIdle(t *testing.T) {
	buf := &syncBuffer{}
	enc := NewEncoder(buf)
	defer enc.Close()

	enc.StartHeartbeat(10 * time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), ": ping\n\n") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no heartbeat emitted on an idle stream")
}

func TestEncoder_NoHeartbeatAfterTerminal(t *testing.T) {
	buf := &syncBuffer{}
	enc := NewEncoder(buf)
	defer enc.Close()

	enc.StartHeartbeat(10 * time.Millisecond)

	if err := enc.Usage(1, 1, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	if strings.Contains(buf.String(), ": ping") {
		t.Error("heartbeat emitted after terminal event")
	}
}

func TestEncoder_HeartbeatSuppressedByRecentEvent(t *testing.T) {
	buf := &syncBuffer{}
	enc := NewEncoder(buf)
	defer enc.Close()

	enc.StartHeartbeat(40 * time.Millisecond)

	// Keep writing more often than the interval; no tick should find the
	// stream idle.
	for i := 0; i < 10; i++ {
		if err := enc.Token("x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if strings.Contains(buf.String(), ": ping") {
		t.Error("heartbeat emitted while events were flowing")
	}
}
