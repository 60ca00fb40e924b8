package gateway

import (
	"context"
	"fmt"
)

// TaskKind identifies which prompt template a completion request is for.
type TaskKind string

const (
	KindGenerate TaskKind = "generate"
	KindFix      TaskKind = "fix"
	KindRefactor TaskKind = "refactor"
	KindTest     TaskKind = "test"
	KindReview   TaskKind = "review"
	KindAnalyze  TaskKind = "analyze"
	KindPlan     TaskKind = "plan"
)

// MessageRole represents the role of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is the provider-agnostic message we pass around.
type Message struct {
	Role    MessageRole
	Content string
}

// CompletionRequest is the normalized request handed to a provider backend.
type CompletionRequest struct {
	Model       string
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float32
}

// CompletionResponse is the normalized result of one provider call.
type CompletionResponse struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	StopReason       string // "stop" | "length" | "content_filter"
}

// StreamEvent is one incremental chunk of a streaming completion.
type StreamEvent struct {
	Type  string // "text_delta" | "usage"
	Text  string // for text_delta
	Usage CompletionResponse
}

// Provider abstracts one text-completion backend (Anthropic, OpenAI, local server).
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
	Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, <-chan error)
}

// HealthChecker is implemented by providers with an availability probe
// (the locally-hosted model server).
type HealthChecker interface {
	Healthy(ctx context.Context) bool
}

// Request is one completion request at the gateway boundary.
type Request struct {
	Kind        TaskKind
	Prompt      string
	System      string
	Temperature float32
	MaxTokens   int
	Provider    string // empty = gateway default
	TaskID      string // optional, threaded into usage accounting
}

// Result is the final accounting record of one completion.
type Result struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	Cost             float64
	Provider         string
	Model            string
	Unpriced         bool // model missing from the price table; priced at zero
}

// Chunk is one element of a streaming completion. The last chunk carries
// the final accounting Result and no text.
type Chunk struct {
	Text  string
	Final *Result
}

// ProviderError wraps a failure talking to a completion backend.
// It is not retried internally; callers see it as-is.
type ProviderError struct {
	Provider   string
	HTTPStatus int
	Err        error
}

func (e *ProviderError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("provider %s: http %d: %v", e.Provider, e.HTTPStatus, e.Err)
	}
	return fmt.Sprintf("provider %s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapProviderError attaches provider and HTTP status metadata to an error.
func WrapProviderError(provider string, httpStatus int, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, HTTPStatus: httpStatus, Err: err}
}
