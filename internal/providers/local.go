package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// LocalProvider wraps a locally-hosted, OpenAI-compatible model server
// (ollama, LM Studio). Completions ride the OpenAI adapter; on top of that
// it carries a health probe against the server's model listing endpoint and
// accounts at zero cost (local models are absent from the hosted price
// table only when unlisted; the defaults pin them at zero).
type LocalProvider struct {
	*OpenAIProvider
	baseURL    string
	httpClient *http.Client
}

// DefaultLocalBaseURL is the ollama OpenAI-compatible endpoint.
const DefaultLocalBaseURL = "http://localhost:11434/v1"

// NewLocalProvider creates a provider for a local model server.
// The API key can be anything for local servers; "local" is used when empty.
func NewLocalProvider(apiKey, modelName, baseURL string) (*LocalProvider, error) {
	if baseURL == "" {
		baseURL = DefaultLocalBaseURL
	}
	if apiKey == "" {
		apiKey = "local"
	}

	inner, err := NewOpenAIProvider(apiKey, modelName, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create local provider: %w", err)
	}
	inner.name = "local"

	return &LocalProvider{
		OpenAIProvider: inner,
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: 3 * time.Second},
	}, nil
}

// Healthy probes the server's /models endpoint. A local server that is down
// should be detected at construction time rather than on the first task.
func (p *LocalProvider) Healthy(ctx context.Context) bool {
	url := strings.TrimSuffix(p.baseURL, "/") + "/models"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
