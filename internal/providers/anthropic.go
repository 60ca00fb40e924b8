package providers

import (
	"context"
	"fmt"

	"autopatch/internal/gateway"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// AnthropicProvider implements gateway.Provider over the Anthropic messages API.
type AnthropicProvider struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicProvider creates an Anthropic-backed provider.
func NewAnthropicProvider(apiKey, modelName string) (*AnthropicProvider, error) {
	client := anthropic.NewClient(apiKey)

	return &AnthropicProvider{
		client: client,
		model:  modelName,
	}, nil
}

func (p *AnthropicProvider) Name() string  { return "anthropic" }
func (p *AnthropicProvider) Model() string { return p.model }

// Complete implements gateway.Provider.Complete.
func (p *AnthropicProvider) Complete(ctx context.Context, req gateway.CompletionRequest) (gateway.CompletionResponse, error) {
	msgReq := p.buildRequest(req)

	resp, err := p.client.CreateMessages(ctx, msgReq)
	if err != nil {
		httpStatus, _ := extractErrorMetadata(err)
		return gateway.CompletionResponse{}, gateway.WrapProviderError(p.Name(), httpStatus, err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			text += *block.Text
		}
	}

	return gateway.CompletionResponse{
		Text:             text,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		StopReason:       normalizeStopReason(string(resp.StopReason)),
	}, nil
}

// Stream implements gateway.Provider.Stream.
// The SDK uses callback-based streaming, which we adapt to channels.
func (p *AnthropicProvider) Stream(ctx context.Context, req gateway.CompletionRequest) (<-chan gateway.StreamEvent, <-chan error) {
	eventCh := make(chan gateway.StreamEvent, 10) // Buffered to avoid blocking
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)

		streamReq := anthropic.MessagesStreamRequest{
			MessagesRequest: p.buildRequest(req),
		}

		streamReq.OnError = func(errResp anthropic.ErrorResponse) {
			sendErr(errCh, gateway.WrapProviderError(p.Name(), 0,
				fmt.Errorf("anthropic streaming error: %s", errResp.Error.Message)))
		}

		streamReq.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
			if delta.Delta.Type == "text_delta" && delta.Delta.Text != nil {
				select {
				case eventCh <- gateway.StreamEvent{Type: "text_delta", Text: *delta.Delta.Text}:
				case <-ctx.Done():
				}
			}
		}

		resp, err := p.client.CreateMessagesStream(ctx, streamReq)
		if err != nil {
			httpStatus, _ := extractErrorMetadata(err)
			// OnError may already have filled the buffer; the first error
			// wins and the goroutine must not block on the second.
			sendErr(errCh, gateway.WrapProviderError(p.Name(), httpStatus, err))
			return
		}

		if resp.Usage.InputTokens > 0 {
			select {
			case eventCh <- gateway.StreamEvent{
				Type: "usage",
				Usage: gateway.CompletionResponse{
					PromptTokens:     resp.Usage.InputTokens,
					CompletionTokens: resp.Usage.OutputTokens,
					StopReason:       normalizeStopReason(string(resp.StopReason)),
				},
			}:
			case <-ctx.Done():
			}
		}
	}()

	return eventCh, errCh
}

// buildRequest converts a gateway request into the Anthropic wire shape.
func (p *AnthropicProvider) buildRequest(req gateway.CompletionRequest) anthropic.MessagesRequest {
	var msgs []anthropic.Message
	for _, m := range req.Messages {
		role := anthropic.RoleUser
		if m.Role == gateway.RoleAssistant {
			role = anthropic.RoleAssistant
		}
		msgs = append(msgs, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent(m.Content)},
		})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	temperature := req.Temperature

	out := anthropic.MessagesRequest{
		Model:       anthropic.Model(req.Model),
		Messages:    msgs,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
	}

	if req.System != "" {
		out.MultiSystem = []anthropic.MessageSystemPart{{Type: "text", Text: req.System}}
	}

	return out
}

// normalizeStopReason maps provider stop reasons onto the gateway vocabulary.
func normalizeStopReason(reason string) string {
	switch reason {
	case "max_tokens", "length":
		return "length"
	case "content_filtered", "content_filter":
		return "content_filter"
	default:
		return "stop"
	}
}
