// Package bedrock implements provider.Provider against AWS Bedrock,
// invoking Anthropic models through the Bedrock runtime API.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/felipepmaragno/chat-relay/internal/domain"
	"github.com/felipepmaragno/chat-relay/internal/provider"
)

type Provider struct {
	client *bedrockruntime.Client
	region string
}

func New(ctx context.Context, region string) (*Provider, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Provider{
		client: bedrockruntime.NewFromConfig(cfg),
		region: region,
	}, nil
}

func NewWithConfig(cfg aws.Config) *Provider {
	return &Provider{
		client: bedrockruntime.NewFromConfig(cfg),
		region: cfg.Region,
	}
}

func (p *Provider) ID() string {
	return "bedrock"
}

func (p *Provider) Complete(ctx context.Context, req provider.Request) (*provider.Completion, error) {
	body, err := json.Marshal(toBedrockRequest(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(mapModelID(req.Model)),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, &domain.ProviderError{Message: err.Error()}
	}

	var resp bedrockResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return &provider.Completion{
		Text:         text,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

func (p *Provider) Stream(ctx context.Context, req provider.Request) (<-chan provider.Chunk, <-chan error) {
	chunks := make(chan provider.Chunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		body, err := json.Marshal(toBedrockRequest(req))
		if err != nil {
			errs <- fmt.Errorf("marshal request: %w", err)
			return
		}

		output, err := p.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
			ModelId:     aws.String(mapModelID(req.Model)),
			ContentType: aws.String("application/json"),
			Accept:      aws.String("application/json"),
			Body:        body,
		})
		if err != nil {
			errs <- &domain.ProviderError{Message: err.Error()}
			return
		}

		stream := output.GetStream()
		defer stream.Close()

		for event := range stream.Events() {
			chunk, ok := event.(*types.ResponseStreamMemberChunk)
			if !ok {
				continue
			}

			var ev bedrockStreamEvent
			if err := json.Unmarshal(chunk.Value.Bytes, &ev); err != nil {
				continue
			}

			switch ev.Type {
			case "message_start":
				if ev.Message != nil {
					if !send(ctx, chunks, provider.Chunk{
						Kind:        provider.ChunkStart,
						InputTokens: ev.Message.Usage.InputTokens,
					}) {
						return
					}
				}

			case "content_block_delta":
				if ev.Delta != nil && ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
					if !send(ctx, chunks, provider.Chunk{
						Kind: provider.ChunkText,
						Text: ev.Delta.Text,
					}) {
						return
					}
				}

			case "message_delta":
				if ev.Usage != nil {
					if !send(ctx, chunks, provider.Chunk{
						Kind:         provider.ChunkUsage,
						OutputTokens: ev.Usage.OutputTokens,
					}) {
						return
					}
				}

			case "message_stop":
				return
			}
		}

		if err := stream.Err(); err != nil {
			errs <- &domain.ProviderError{Message: err.Error()}
		}
	}()

	return chunks, errs
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	return nil
}

type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	Temperature      float64          `json:"temperature"`
	Messages         []bedrockMessage `json:"messages"`
	System           string           `json:"system,omitempty"`
}

type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type bedrockResponse struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
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

type bedrockStreamEvent struct {
	Type    string        `json:"type"`
	Message *messageStart `json:"message,omitempty"`
	Delta   *streamDelta  `json:"delta,omitempty"`
	Usage   *usage        `json:"usage,omitempty"`
}

type messageStart struct {
	Usage usage `json:"usage"`
}

type streamDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func send(ctx context.Context, chunks chan<- provider.Chunk, c provider.Chunk) bool {
	select {
	case chunks <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// mapModelID translates the catalog's Anthropic model IDs to their
// Bedrock equivalents. Unmapped IDs pass through untouched.
func mapModelID(model string) string {
	modelMap := map[string]string{
		"claude-sonnet-4-20250514":   "anthropic.claude-sonnet-4-20250514-v1:0",
		"claude-opus-4-5-20251101":   "anthropic.claude-opus-4-5-20251101-v1:0",
		"claude-3-5-sonnet-20241022": "anthropic.claude-3-5-sonnet-20241022-v2:0",
		"claude-3-5-haiku-20241022":  "anthropic.claude-3-5-haiku-20241022-v1:0",
		"claude-3-opus-20240229":     "anthropic.claude-3-opus-20240229-v1:0",
		"claude-3-sonnet-20240229":   "anthropic.claude-3-sonnet-20240229-v1:0",
		"claude-3-haiku-20240307":    "anthropic.claude-3-haiku-20240307-v1:0",
	}

	if mapped, ok := modelMap[model]; ok {
		return mapped
	}
	return model
}

func toBedrockRequest(req provider.Request) bedrockRequest {
	messages := make([]bedrockMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, bedrockMessage{Role: m.Role, Content: m.Content})
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	return bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Temperature:      req.Temperature,
		Messages:         messages,
		System:           req.System,
	}
}
