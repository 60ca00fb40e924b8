package gateway

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Gateway is the uniform entry point over interchangeable completion
// backends. It adds sliding-window rate limiting per provider, token/cost
// accounting against a static price table, and task-specific prompt helpers.
//
// Construct one Gateway per process and pass it explicitly to consumers;
// there is no package-level singleton.
type Gateway struct {
	providers       map[string]Provider
	defaultProvider string
	limiter         *SlidingWindow
	prices          PriceTable
	usage           *UsageStore // optional; nil disables persistence
	estimator       *TokenEstimator
}

// Options configures a Gateway.
type Options struct {
	Providers       map[string]Provider
	DefaultProvider string
	RateLimit       int           // requests per window, 0 = DefaultLimit
	RateWindow      time.Duration // 0 = DefaultWindow
	Prices          PriceTable    // nil = DefaultPriceTable
	Usage           *UsageStore   // optional
}

// New creates a Gateway. The default provider must be configured.
func New(opts Options) (*Gateway, error) {
	if len(opts.Providers) == 0 {
		return nil, fmt.Errorf("gateway requires at least one provider")
	}
	if opts.DefaultProvider == "" {
		return nil, fmt.Errorf("gateway requires a default provider")
	}
	if _, ok := opts.Providers[opts.DefaultProvider]; !ok {
		return nil, fmt.Errorf("default provider %q is not configured", opts.DefaultProvider)
	}

	prices := opts.Prices
	if prices == nil {
		prices = DefaultPriceTable()
	}

	return &Gateway{
		providers:       opts.Providers,
		defaultProvider: opts.DefaultProvider,
		limiter:         NewSlidingWindow(opts.RateLimit, opts.RateWindow),
		prices:          prices,
		usage:           opts.Usage,
		estimator:       NewTokenEstimator(),
	}, nil
}

// resolve selects the provider for a request. An unconfigured provider name
// is a hard error, not a fallback.
func (g *Gateway) resolve(name string) (Provider, error) {
	if name == "" {
		name = g.defaultProvider
	}
	p, ok := g.providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %q is not configured", name)
	}
	return p, nil
}

// Complete performs one completion through the selected provider.
// Admission is gated by the per-provider sliding window: under burst load the
// call blocks until the window admits it rather than failing.
func (g *Gateway) Complete(ctx context.Context, req Request) (Result, error) {
	provider, err := g.resolve(req.Provider)
	if err != nil {
		return Result{}, err
	}

	if err := g.limiter.Acquire(ctx, provider.Name()); err != nil {
		return Result{}, fmt.Errorf("rate limit admission cancelled: %w", err)
	}

	resp, err := provider.Complete(ctx, CompletionRequest{
		Model:       provider.Model(),
		System:      req.System,
		Messages:    []Message{{Role: RoleUser, Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return Result{}, err
	}

	result := g.account(ctx, req, provider, resp)
	return result, nil
}

// Stream performs one streaming completion. Text chunks are delivered as they
// arrive; the final chunk carries the same accounting Result a non-streaming
// call would have produced.
func (g *Gateway) Stream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 10)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		provider, err := g.resolve(req.Provider)
		if err != nil {
			errCh <- err
			return
		}

		if err := g.limiter.Acquire(ctx, provider.Name()); err != nil {
			errCh <- fmt.Errorf("rate limit admission cancelled: %w", err)
			return
		}

		events, provErrs := provider.Stream(ctx, CompletionRequest{
			Model:       provider.Model(),
			System:      req.System,
			Messages:    []Message{{Role: RoleUser, Content: req.Prompt}},
			MaxTokens:   req.MaxTokens,
			Temperature: req.Temperature,
		})

		var text string
		var usage CompletionResponse
		for events != nil || provErrs != nil {
			select {
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				switch ev.Type {
				case "text_delta":
					text += ev.Text
					select {
					case out <- Chunk{Text: ev.Text}:
					case <-ctx.Done():
						errCh <- ctx.Err()
						return
					}
				case "usage":
					usage = ev.Usage
				}
			case err, ok := <-provErrs:
				if !ok {
					provErrs = nil
					continue
				}
				if err != nil {
					errCh <- err
					return
				}
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}

		usage.Text = text
		final := g.account(ctx, req, provider, usage)
		select {
		case out <- Chunk{Final: &final}:
		case <-ctx.Done():
			errCh <- ctx.Err()
		}
	}()

	return out, errCh
}

// account computes cost, records usage, and builds the final Result.
func (g *Gateway) account(ctx context.Context, req Request, provider Provider, resp CompletionResponse) Result {
	promptTokens := resp.PromptTokens
	completionTokens := resp.CompletionTokens

	// The local server does not report usage; estimate so accounting stays
	// populated even at zero cost.
	if promptTokens == 0 && completionTokens == 0 {
		promptTokens = g.estimator.Estimate(req.System + req.Prompt)
		completionTokens = g.estimator.Estimate(resp.Text)
	}

	cost, priced := g.prices.Cost(provider.Model(), promptTokens, completionTokens)
	if !priced {
		// Degrade-safe default: unknown models price at zero, but the gap is
		// surfaced as unpriced usage in statistics rather than lost.
		log.Printf("WARNING: model %q not in price table, recording unpriced usage", provider.Model())
	}

	result := Result{
		Text:             resp.Text,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		Cost:             cost,
		Provider:         provider.Name(),
		Model:            provider.Model(),
		Unpriced:         !priced,
	}

	if g.usage != nil {
		err := g.usage.Record(ctx, UsageRecord{
			Timestamp:        time.Now(),
			TaskID:           req.TaskID,
			Kind:             req.Kind,
			Provider:         result.Provider,
			Model:            result.Model,
			PromptTokens:     result.PromptTokens,
			CompletionTokens: result.CompletionTokens,
			Cost:             result.Cost,
			Unpriced:         result.Unpriced,
		})
		if err != nil {
			log.Printf("WARNING: failed to persist usage record: %v", err)
		}
	}

	return result
}

// Providers returns the configured provider names.
func (g *Gateway) Providers() []string {
	names := make([]string, 0, len(g.providers))
	for name := range g.providers {
		names = append(names, name)
	}
	return names
}

// DefaultProvider returns the name of the default backend.
func (g *Gateway) DefaultProvider() string {
	return g.defaultProvider
}
