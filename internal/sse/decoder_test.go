package sse

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/felipepmaragno/chat-relay/internal/domain"
)

// chunkedReader serves its contents n bytes at a time so records land on
// arbitrary read boundaries.
type chunkedReader struct {
	data []byte
	n    int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.n
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func encodeStream(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	defer enc.Close()

	if err := enc.Metadata(testAgent(), time.Now()); err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if err := enc.Token("Hello"); err != nil {
		t.Fatalf("token: %v", err)
	}
	if err := enc.Token(" there"); err != nil {
		t.Fatalf("token: %v", err)
	}
	if err := enc.Usage(5, 2, 0.0001); err != nil {
		t.Fatalf("usage: %v", err)
	}
	return buf.Bytes()
}

func collect(t *testing.T, d *Decoder) []domain.StreamEvent {
	t.Helper()

	var events []domain.StreamEvent
	for {
		ev, err := d.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		events = append(events, ev)
	}
}

func TestDecoder_Roundtrip(t *testing.T) {
	d := NewDecoder(bytes.NewReader(encodeStream(t)))
	events := collect(t, d)

	wantKinds := []domain.EventKind{
		domain.EventMetadata,
		domain.EventToken,
		domain.EventToken,
		domain.EventUsage,
	}
	if len(events) != len(wantKinds) {
		t.Fatalf("got %d events, want %d", len(events), len(wantKinds))
	}
	for i, ev := range events {
		if ev.Kind != wantKinds[i] {
			t.Errorf("event %d kind = %q, want %q", i, ev.Kind, wantKinds[i])
		}
	}

	if events[0].Metadata.AgentName != "CustomerSupport" {
		t.Errorf("agent = %q, want CustomerSupport", events[0].Metadata.AgentName)
	}
	if events[3].Usage.TotalTokens != 7 {
		t.Errorf("total tokens = %d, want 7", events[3].Usage.TotalTokens)
	}
	if got := d.Message(); got != "Hello there" {
		t.Errorf("message = %q, want %q", got, "Hello there")
	}
}

func TestDecoder_ArbitraryReadBoundaries(t *testing.T) {
	stream := encodeStream(t)

	for _, chunk := range []int{1, 2, 3, 7, 64} {
		d := NewDecoder(&chunkedReader{data: append([]byte(nil), stream...), n: chunk})
		events := collect(t, d)
		if len(events) != 4 {
			t.Errorf("chunk size %d: got %d events, want 4", chunk, len(events))
		}
		if got := d.Message(); got != "Hello there" {
			t.Errorf("chunk size %d: message = %q, want %q", chunk, got, "Hello there")
		}
	}
}

func TestDecoder_SkipsNonDataRecords(t *testing.T) {
	stream := strings.Join([]string{
		": ping",
		"",
		`data: {"kind":"token","token":"a"}`,
		"",
		": ping",
		"",
		"event: noise",
		`data: {"kind":"token","token":"b"}`,
		"",
	}, "\n")

	d := NewDecoder(strings.NewReader(stream))
	events := collect(t, d)

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if got := d.Message(); got != "ab" {
		t.Errorf("message = %q, want %q", got, "ab")
	}
}

func TestDecoder_SkipsMalformedAndUnknown(t *testing.T) {
	stream := strings.Join([]string{
		`data: {not json`,
		"",
		`data: {"kind":"telepathy","vibes":true}`,
		"",
		`data: {"kind":"error","error":"upstream failed","code":"529"}`,
		"",
	}, "\n")

	d := NewDecoder(strings.NewReader(stream))
	events := collect(t, d)

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Kind != domain.EventError {
		t.Fatalf("kind = %q, want error", events[0].Kind)
	}
	if events[0].Err.Code != "529" {
		t.Errorf("code = %q, want 529", events[0].Err.Code)
	}
}

func TestDecoder_EmptyStream(t *testing.T) {
	d := NewDecoder(strings.NewReader(""))
	if _, err := d.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("Next on empty stream = %v, want io.EOF", err)
	}
	if d.Message() != "" {
		t.Errorf("message = %q, want empty", d.Message())
	}
}
