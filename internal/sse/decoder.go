package sse

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/felipepmaragno/chat-relay/internal/domain"
)

// Decoder incrementally parses an event stream produced by Encoder.
// Records may arrive split across arbitrary read boundaries; partial
// lines are buffered until complete. Heartbeat records and records whose
// payload fails to parse are silently discarded rather than aborting the
// stream.
type Decoder struct {
	scanner *bufio.Scanner
	message strings.Builder
}

func NewDecoder(r io.Reader) *Decoder {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	return &Decoder{scanner: scanner}
}

// Next returns the next decoded event, or io.EOF when the stream ends.
// Token text is accumulated as a side effect; see Message.
func (d *Decoder) Next() (domain.StreamEvent, error) {
	for d.scanner.Scan() {
		line := d.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			// Blank line separators and heartbeat comments.
			continue
		}
		data := []byte(strings.TrimPrefix(line, "data: "))

		var env struct {
			Kind domain.EventKind `json:"kind"`
		}
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}

		switch env.Kind {
		case domain.EventMetadata:
			var ev domain.MetadataEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			return domain.StreamEvent{Kind: env.Kind, Metadata: &ev}, nil

		case domain.EventToken:
			var ev domain.TokenEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			d.message.WriteString(ev.Token)
			return domain.StreamEvent{Kind: env.Kind, Token: &ev}, nil

		case domain.EventUsage:
			var ev domain.UsageEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			return domain.StreamEvent{Kind: env.Kind, Usage: &ev}, nil

		case domain.EventError:
			var ev domain.ErrorEvent
			if err := json.Unmarshal(data, &ev); err != nil {
				continue
			}
			return domain.StreamEvent{Kind: env.Kind, Err: &ev}, nil

		default:
			// Unknown kinds are dropped so protocol additions do not
			// break older clients.
			continue
		}
	}

	if err := d.scanner.Err(); err != nil {
		return domain.StreamEvent{}, err
	}
	return domain.StreamEvent{}, io.EOF
}

// Message returns the concatenation of all token payloads decoded so far,
// in emission order. At stream end, a non-empty value is the final
// assistant message.
func (d *Decoder) Message() string {
	return d.message.String()
}
