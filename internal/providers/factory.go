package providers

import (
	"context"
	"fmt"
	"log"

	"autopatch/internal/gateway"
)

// Spec describes one provider to construct.
type Spec struct {
	Name    string // "anthropic" | "openai" | "local"
	APIKey  string
	Model   string
	BaseURL string // OpenAI-compatible override, and the local server address
}

// Build constructs a provider set for the gateway from specs.
// A local provider that fails its health probe is skipped with a warning so a
// stopped ollama does not take the whole process down; hosted providers with
// missing keys are hard errors.
func Build(ctx context.Context, specs []Spec) (map[string]gateway.Provider, error) {
	out := make(map[string]gateway.Provider, len(specs))

	for _, spec := range specs {
		switch spec.Name {
		case "anthropic":
			if spec.APIKey == "" {
				return nil, fmt.Errorf("anthropic provider requires an API key")
			}
			model := spec.Model
			if model == "" {
				model = "claude-3-5-sonnet-20241022"
			}
			p, err := NewAnthropicProvider(spec.APIKey, model)
			if err != nil {
				return nil, fmt.Errorf("failed to create anthropic provider: %w", err)
			}
			out[p.Name()] = p

		case "openai":
			if spec.APIKey == "" {
				return nil, fmt.Errorf("openai provider requires an API key")
			}
			model := spec.Model
			if model == "" {
				model = "gpt-4o-mini"
			}
			p, err := NewOpenAIProvider(spec.APIKey, model, spec.BaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to create openai provider: %w", err)
			}
			out[p.Name()] = p

		case "local":
			model := spec.Model
			if model == "" {
				model = "llama3.1"
			}
			p, err := NewLocalProvider(spec.APIKey, model, spec.BaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to create local provider: %w", err)
			}
			if !p.Healthy(ctx) {
				log.Printf("WARNING: local model server at %s is not responding, skipping provider", p.baseURL)
				continue
			}
			out[p.Name()] = p

		default:
			return nil, fmt.Errorf("unknown provider: %s (supported: anthropic, openai, local)", spec.Name)
		}
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("no providers could be configured")
	}

	return out, nil
}
