// Package sse implements the relay's wire protocol: a server-side encoder
// that frames stream events onto a long-lived text/event-stream response,
// and a client-side decoder that parses the same framing back into typed
// events.
//
// Every data record is "data: <json>\n\n" and every payload carries an
// explicit "kind" discriminant. Heartbeats are SSE comment records and are
// never surfaced as events.
package sse

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/felipepmaragno/chat-relay/internal/domain"
)

const heartbeatFrame = ": ping\n\n"

// Encoder serializes stream events onto an outbound byte stream. Event
// order is enforced: once a terminal event (usage or error) is written,
// further writes return domain.ErrStreamClosed. Safe for use by the
// relay goroutine concurrently with the heartbeat timer.
type Encoder struct {
	mu        sync.Mutex
	w         io.Writer
	flusher   http.Flusher
	terminal  bool
	lastWrite time.Time

	stopHeartbeat chan struct{}
	stopOnce      sync.Once
}

// NewEncoder wraps w. When w also implements http.Flusher, each frame is
// flushed so tokens reach the client without buffering delay.
func NewEncoder(w io.Writer) *Encoder {
	e := &Encoder{
		w:             w,
		lastWrite:     time.Now(),
		stopHeartbeat: make(chan struct{}),
	}
	if f, ok := w.(http.Flusher); ok {
		e.flusher = f
	}
	return e
}

// StartHeartbeat emits a comment frame on each tick of interval unless a
// substantive event was written since the previous tick. The timer is
// scoped to this stream; Close (or the terminal event) stops it.
func (e *Encoder) StartHeartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.heartbeat(interval)
			case <-e.stopHeartbeat:
				return
			}
		}
	}()
}

func (e *Encoder) heartbeat(interval time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminal || time.Since(e.lastWrite) < interval {
		return
	}

	// Write errors here mean the client is gone; nothing to signal to.
	if _, err := io.WriteString(e.w, heartbeatFrame); err != nil {
		return
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}
}

// Metadata writes the stream-opening metadata event.
func (e *Encoder) Metadata(a domain.AgentConfig, start time.Time) error {
	return e.writeEvent(domain.MetadataEvent{
		Kind:        domain.EventMetadata,
		AgentName:   a.Name,
		Model:       a.Model,
		Temperature: a.Temperature,
		StartTime:   start,
	}, false)
}

// Token writes one incremental chunk of assistant output.
func (e *Encoder) Token(text string) error {
	return e.writeEvent(domain.TokenEvent{
		Kind:  domain.EventToken,
		Token: text,
	}, false)
}

// Usage writes the success terminal event and seals the stream.
func (e *Encoder) Usage(promptTokens, completionTokens int, estimatedCost float64) error {
	return e.writeEvent(domain.UsageEvent{
		Kind:             domain.EventUsage,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
		EstimatedCost:    estimatedCost,
	}, true)
}

// Error writes the failure terminal event and seals the stream.
func (e *Encoder) Error(message, code string, details map[string]any) error {
	return e.writeEvent(domain.ErrorEvent{
		Kind:    domain.EventError,
		Error:   message,
		Code:    code,
		Details: details,
	}, true)
}

// Close stops the heartbeat timer. It does not write anything: the
// terminal event is the protocol-level close, and the transport itself
// belongs to the caller.
func (e *Encoder) Close() {
	e.stopOnce.Do(func() { close(e.stopHeartbeat) })
}

// Terminated reports whether a terminal event has been written.
func (e *Encoder) Terminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminal
}

func (e *Encoder) writeEvent(payload any, terminal bool) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.terminal {
		return domain.ErrStreamClosed
	}

	if _, err := e.w.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
		return err
	}
	if e.flusher != nil {
		e.flusher.Flush()
	}

	e.lastWrite = time.Now()
	if terminal {
		e.terminal = true
	}
	return nil
}
