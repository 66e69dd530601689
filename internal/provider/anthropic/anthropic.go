// Package anthropic implements provider.Provider against the Anthropic
// Messages API.
package anthropic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/felipepmaragno/chat-relay/internal/domain"
	"github.com/felipepmaragno/chat-relay/internal/httputil"
	"github.com/felipepmaragno/chat-relay/internal/provider"
)

const (
	defaultBaseURL   = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"
)

type Provider struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func New(apiKey string, baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  httputil.DefaultClient(),
	}
}

func (p *Provider) ID() string {
	return "anthropic"
}

func (p *Provider) Complete(ctx context.Context, req provider.Request) (*provider.Completion, error) {
	resp, err := p.post(ctx, toMessagesRequest(req, false))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var msg messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// Concatenate text blocks; an empty result is passed through as-is,
	// the relay decides how to surface it.
	var text string
	for _, block := range msg.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &provider.Completion{
		Text:         text,
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
	}, nil
}

func (p *Provider) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, <-chan error) {
	chunks := make(chan provider.Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		resp, err := p.post(ctx, toMessagesRequest(req, true))
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
				continue
			}

			switch event.Type {
			case "message_start":
				if event.Message != nil {
					if !send(ctx, chunks, provider.Chunk{
						Kind:        provider.ChunkStart,
						InputTokens: event.Message.Usage.InputTokens,
					}) {
						return
					}
				}

			case "content_block_delta":
				if event.Delta != nil && event.Delta.Type == "text_delta" && event.Delta.Text != "" {
					if !send(ctx, chunks, provider.Chunk{
						Kind: provider.ChunkText,
						Text: event.Delta.Text,
					}) {
						return
					}
				}

			case "message_delta":
				if event.Usage != nil {
					if !send(ctx, chunks, provider.Chunk{
						Kind:         provider.ChunkUsage,
						OutputTokens: event.Usage.OutputTokens,
					}) {
						return
					}
				}

			case "message_stop":
				return

			case "error":
				errs <- &domain.ProviderError{
					ErrType: event.Error.Type,
					Message: event.Error.Message,
				}
				return
			}
		}

		if err := scanner.Err(); err != nil {
			errs <- fmt.Errorf("scan stream: %w", err)
		}
	}()

	return chunks, errs
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	return nil
}

func (p *Provider) post(ctx context.Context, msgReq messagesRequest) (*http.Response, error) {
	body, err := json.Marshal(msgReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if msgReq.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderError{Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, parseErrorResponse(resp)
	}

	return resp, nil
}

func parseErrorResponse(resp *http.Response) *domain.ProviderError {
	body, _ := io.ReadAll(resp.Body)

	var apiErr errorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return &domain.ProviderError{
			StatusCode: resp.StatusCode,
			ErrType:    apiErr.Error.Type,
			Message:    apiErr.Error.Message,
		}
	}

	return &domain.ProviderError{
		StatusCode: resp.StatusCode,
		Message:    string(body),
	}
}

func send(ctx context.Context, chunks chan<- provider.Chunk, c provider.Chunk) bool {
	select {
	case chunks <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

type messagesRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature"`
	System      string             `json:"system,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Role       string         `json:"role"`
	Content    []contentBlock `json:"content"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type streamEvent struct {
	Type    string        `json:"type"`
	Message *messageStart `json:"message,omitempty"`
	Delta   *streamDelta  `json:"delta,omitempty"`
	Usage   *usage        `json:"usage,omitempty"`
	Error   apiError      `json:"error,omitempty"`
}

type messageStart struct {
	Usage usage `json:"usage"`
}

type streamDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type errorResponse struct {
	Type  string   `json:"type"`
	Error apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func toMessagesRequest(req provider.Request, stream bool) messagesRequest {
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, anthropicMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	return messagesRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		System:      req.System,
		Stream:      stream,
	}
}
