package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"autopatch/internal/gateway"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// OpenAIProvider implements gateway.Provider over the OpenAI chat API, or any
// OpenAI-compatible endpoint when a base URL override is supplied.
type OpenAIProvider struct {
	client  *openai.Client
	name    string
	model   string
	baseURL string
}

// NewOpenAIProvider creates an OpenAI-backed provider.
func NewOpenAIProvider(apiKey, modelName, baseURL string) (*OpenAIProvider, error) {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	client := openai.NewClientWithConfig(config)

	return &OpenAIProvider{
		client:  client,
		name:    "openai",
		model:   modelName,
		baseURL: baseURL,
	}, nil
}

func (p *OpenAIProvider) Name() string  { return p.name }
func (p *OpenAIProvider) Model() string { return p.model }

// Complete implements gateway.Provider.Complete.
func (p *OpenAIProvider) Complete(ctx context.Context, req gateway.CompletionRequest) (gateway.CompletionResponse, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req, false))
	if err != nil {
		httpStatus, _ := extractErrorMetadata(err)
		return gateway.CompletionResponse{}, gateway.WrapProviderError(p.Name(), httpStatus, err)
	}

	if len(resp.Choices) == 0 {
		return gateway.CompletionResponse{}, gateway.WrapProviderError(p.Name(), 0,
			fmt.Errorf("empty response from %s", p.Name()))
	}

	choice := resp.Choices[0]

	stopReason := "stop"
	if choice.FinishReason == openai.FinishReasonLength {
		stopReason = "length"
	} else if choice.FinishReason == openai.FinishReasonContentFilter {
		stopReason = "content_filter"
	}

	return gateway.CompletionResponse{
		Text:             choice.Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		StopReason:       stopReason,
	}, nil
}

// Stream implements gateway.Provider.Stream.
func (p *OpenAIProvider) Stream(ctx context.Context, req gateway.CompletionRequest) (<-chan gateway.StreamEvent, <-chan error) {
	eventCh := make(chan gateway.StreamEvent, 10) // Buffered to avoid blocking
	errCh := make(chan error, 1)

	go func() {
		defer close(eventCh)
		defer close(errCh)

		stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(req, true))
		if err != nil {
			httpStatus, _ := extractErrorMetadata(err)
			sendErr(errCh, gateway.WrapProviderError(p.Name(), httpStatus, err))
			return
		}
		defer stream.Close()

		for {
			response, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF") {
					return
				}
				httpStatus, _ := extractErrorMetadata(err)
				sendErr(errCh, gateway.WrapProviderError(p.Name(), httpStatus, err))
				return
			}

			// The final chunk carries usage with no choices when
			// IncludeUsage is set.
			if response.Usage != nil {
				select {
				case eventCh <- gateway.StreamEvent{
					Type: "usage",
					Usage: gateway.CompletionResponse{
						PromptTokens:     response.Usage.PromptTokens,
						CompletionTokens: response.Usage.CompletionTokens,
						StopReason:       "stop",
					},
				}:
				case <-ctx.Done():
					return
				}
			}

			if len(response.Choices) == 0 {
				continue
			}

			delta := response.Choices[0].Delta.Content
			if delta == "" {
				continue
			}

			select {
			case eventCh <- gateway.StreamEvent{Type: "text_delta", Text: delta}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return eventCh, errCh
}

// buildRequest converts a gateway request into the OpenAI wire shape.
func (p *OpenAIProvider) buildRequest(req gateway.CompletionRequest, stream bool) openai.ChatCompletionRequest {
	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)

	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	for _, m := range req.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == gateway.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	out := openai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: msgs,
	}

	if stream {
		out.Stream = true
		out.StreamOptions = &openai.StreamOptions{IncludeUsage: true}
	}

	if req.MaxTokens > 0 {
		out.MaxTokens = req.MaxTokens
	}
	if req.Temperature > 0 {
		temp := req.Temperature
		out.Temperature = &temp
	}

	return out
}

// sendErr delivers err without blocking. Stream error channels have
// capacity 1 and the consumer stops reading after the first error, so a
// second error is dropped rather than parking the goroutine forever.
func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// extractErrorMetadata pulls an HTTP status and Retry-After hint out of a
// provider error message. SDKs flatten these into the error string, so we
// match on common patterns.
func extractErrorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	errStr := err.Error()
	var httpStatus int
	var retryAfter string

	if strings.Contains(errStr, "429") {
		httpStatus = http.StatusTooManyRequests
	} else if strings.Contains(errStr, "500") {
		httpStatus = http.StatusInternalServerError
	} else if strings.Contains(errStr, "502") {
		httpStatus = http.StatusBadGateway
	} else if strings.Contains(errStr, "503") {
		httpStatus = http.StatusServiceUnavailable
	} else if strings.Contains(errStr, "504") {
		httpStatus = http.StatusGatewayTimeout
	} else if strings.Contains(errStr, "401") {
		httpStatus = http.StatusUnauthorized
	} else if strings.Contains(errStr, "403") {
		httpStatus = http.StatusForbidden
	} else if strings.Contains(errStr, "400") {
		httpStatus = http.StatusBadRequest
	} else if strings.Contains(errStr, "402") {
		httpStatus = http.StatusPaymentRequired
	}

	if idx := strings.Index(strings.ToLower(errStr), "retry-after"); idx != -1 {
		parts := strings.Fields(errStr[idx+11:])
		if len(parts) > 0 {
			retryAfter = parts[0]
		}
	}

	return httpStatus, retryAfter
}
