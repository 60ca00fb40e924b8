package gateway

import (
	"context"
	"errors"
	"testing"
)

// stubProvider returns a fixed response.
type stubProvider struct {
	name  string
	model string
	text  string
	err   error
}

func (p *stubProvider) Name() string  { return p.name }
func (p *stubProvider) Model() string { return p.model }

func (p *stubProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	if p.err != nil {
		return CompletionResponse{}, p.err
	}
	return CompletionResponse{
		Text:             p.text,
		PromptTokens:     100,
		CompletionTokens: 50,
		StopReason:       "stop",
	}, nil
}

func (p *stubProvider) Stream(ctx context.Context, req CompletionRequest) (<-chan StreamEvent, <-chan error) {
	events := make(chan StreamEvent, 4)
	errCh := make(chan error, 1)
	go func() {
		defer close(events)
		defer close(errCh)
		if p.err != nil {
			errCh <- p.err
			return
		}
		half := len(p.text) / 2
		events <- StreamEvent{Type: "text_delta", Text: p.text[:half]}
		events <- StreamEvent{Type: "text_delta", Text: p.text[half:]}
		events <- StreamEvent{Type: "usage", Usage: CompletionResponse{PromptTokens: 100, CompletionTokens: 50}}
	}()
	return events, errCh
}

func newTestGateway(t *testing.T, p Provider) *Gateway {
	t.Helper()
	g, err := New(Options{
		Providers:       map[string]Provider{p.Name(): p},
		DefaultProvider: p.Name(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g
}

func TestCompleteAccountsCost(t *testing.T) {
	g := newTestGateway(t, &stubProvider{name: "anthropic", model: "claude-3-5-sonnet-20241022", text: "hello"})

	res, err := g.Complete(context.Background(), Request{Kind: KindGenerate, Prompt: "hi"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if res.Text != "hello" {
		t.Errorf("Text = %q", res.Text)
	}
	if res.Cost <= 0 {
		t.Errorf("Cost = %f, want > 0 for a priced model", res.Cost)
	}
	if res.Unpriced {
		t.Error("known model must not be unpriced")
	}
	if res.Provider != "anthropic" {
		t.Errorf("Provider = %s", res.Provider)
	}
}

func TestCompleteUnknownModelIsUnpriced(t *testing.T) {
	g := newTestGateway(t, &stubProvider{name: "openai", model: "gpt-experimental", text: "ok"})

	res, err := g.Complete(context.Background(), Request{Kind: KindFix, Prompt: "x"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !res.Unpriced {
		t.Error("unknown model must be flagged unpriced")
	}
	if res.Cost != 0 {
		t.Errorf("Cost = %f, want 0 for unpriced usage", res.Cost)
	}
}

func TestCompleteUnconfiguredProvider(t *testing.T) {
	g := newTestGateway(t, &stubProvider{name: "anthropic", model: "claude-3-5-haiku-20241022"})

	_, err := g.Complete(context.Background(), Request{Provider: "openai", Prompt: "x"})
	if err == nil {
		t.Fatal("expected hard error for unconfigured provider")
	}
}

func TestNewRequiresDefaultProvider(t *testing.T) {
	p := &stubProvider{name: "anthropic", model: "m"}
	_, err := New(Options{
		Providers:       map[string]Provider{"anthropic": p},
		DefaultProvider: "openai",
	})
	if err == nil {
		t.Fatal("expected error when default provider is not configured")
	}
}

func TestCompleteProviderError(t *testing.T) {
	wantErr := errors.New("connection refused")
	g := newTestGateway(t, &stubProvider{name: "anthropic", model: "m", err: wantErr})

	_, err := g.Complete(context.Background(), Request{Prompt: "x"})
	if err == nil {
		t.Fatal("expected provider error to propagate")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("error chain lost the cause: %v", err)
	}
}

func TestStreamMatchesCompleteAccounting(t *testing.T) {
	g := newTestGateway(t, &stubProvider{name: "anthropic", model: "claude-3-5-sonnet-20241022", text: "streamed"})

	chunks, errCh := g.Stream(context.Background(), Request{Kind: KindGenerate, Prompt: "x"})

	var text string
	var final *Result
	for chunk := range chunks {
		text += chunk.Text
		if chunk.Final != nil {
			final = chunk.Final
		}
	}
	if err := <-errCh; err != nil {
		t.Fatalf("Stream: %v", err)
	}

	if text != "streamed" {
		t.Errorf("streamed text = %q", text)
	}
	if final == nil {
		t.Fatal("stream must end with a final accounting chunk")
	}
	if final.Cost <= 0 {
		t.Errorf("final Cost = %f, want > 0", final.Cost)
	}
}

func TestHelpersDegradeOnMalformedOutput(t *testing.T) {
	g := newTestGateway(t, &stubProvider{name: "anthropic", model: "m", text: "not json at all"})
	ctx := context.Background()

	code, err := g.GenerateCode(ctx, "t1", "make a widget", "go")
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if !code.Degraded {
		t.Error("malformed output must set Degraded")
	}
	if code.Code != "not json at all" {
		t.Errorf("degraded code must carry the raw text, got %q", code.Code)
	}

	analysis, err := g.AnalyzeTask(ctx, "t1", "fix", "broken thing", "go")
	if err != nil {
		t.Fatalf("AnalyzeTask: %v", err)
	}
	if !analysis.Degraded {
		t.Error("analysis must degrade, not fail")
	}
	if analysis.Complexity != "medium" {
		t.Errorf("degraded complexity = %q, want the conservative default", analysis.Complexity)
	}

	plan, err := g.PlanTask(ctx, "t1", "fix", "broken thing")
	if err != nil {
		t.Fatalf("PlanTask: %v", err)
	}
	if !plan.Degraded || len(plan.Steps) != 1 {
		t.Errorf("degraded plan = %+v, want a single default step", plan)
	}
}

func TestHelpersParseStructuredOutput(t *testing.T) {
	g := newTestGateway(t, &stubProvider{
		name: "anthropic", model: "m",
		text: `{"code": "package main\n", "language": "go", "explanation": "trivial"}`,
	})

	code, err := g.FixCode(context.Background(), "t1", "fix it", "go", "package main")
	if err != nil {
		t.Fatalf("FixCode: %v", err)
	}
	if code.Degraded {
		t.Error("well-formed output must not degrade")
	}
	if code.Explanation != "trivial" {
		t.Errorf("Explanation = %q", code.Explanation)
	}
}
