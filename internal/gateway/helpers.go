package gateway

import (
	"context"
	"log"
)

// CodeResult is the structured output of the generate/fix/refactor/tests
// helpers. When Degraded is set the model output could not be parsed: Code
// holds the raw text and consumers must treat the result conservatively.
type CodeResult struct {
	Code        string `json:"code"`
	Language    string `json:"language"`
	Explanation string `json:"explanation"`

	Degraded bool   `json:"-"`
	Raw      string `json:"-"`
	Usage    Result `json:"-"`
}

// ReviewIssue is one finding from a code review.
type ReviewIssue struct {
	Severity string `json:"severity"`
	Line     int    `json:"line"`
	Message  string `json:"message"`
}

// ReviewResult is the structured output of ReviewCode.
type ReviewResult struct {
	Summary string        `json:"summary"`
	Issues  []ReviewIssue `json:"issues"`

	Degraded bool   `json:"-"`
	Raw      string `json:"-"`
	Usage    Result `json:"-"`
}

// Analysis is the structured output of AnalyzeTask.
type Analysis struct {
	Complexity     string `json:"complexity"`
	Language       string `json:"language"`
	EstimatedLines int    `json:"estimated_lines"`

	Degraded bool   `json:"-"`
	Raw      string `json:"-"`
	Usage    Result `json:"-"`
}

// Plan is the structured output of PlanTask.
type Plan struct {
	Steps []string `json:"steps"`

	Degraded bool   `json:"-"`
	Raw      string `json:"-"`
	Usage    Result `json:"-"`
}

const (
	defaultMaxTokens   = 4096
	defaultTemperature = float32(0.2)
)

// completeCode runs one completion and parses a CodeResult out of it,
// degrading to the raw text on parse failure.
func (g *Gateway) completeCode(ctx context.Context, kind TaskKind, taskID, prompt, language string) (*CodeResult, error) {
	res, err := g.Complete(ctx, Request{
		Kind:        kind,
		Prompt:      prompt,
		System:      systemCodeAssistant,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		TaskID:      taskID,
	})
	if err != nil {
		return nil, err
	}

	out := &CodeResult{Usage: res, Raw: res.Text}
	if err := decodeStructured(res.Text, codeResultSchema, out); err != nil {
		log.Printf("WARNING: %s output not parseable, degrading to raw text: %v", kind, err)
		out.Code = res.Text
		out.Language = language
		out.Degraded = true
	}
	if out.Language == "" {
		out.Language = language
	}
	return out, nil
}

// GenerateCode produces new code for a task description.
func (g *Gateway) GenerateCode(ctx context.Context, taskID, description, language string) (*CodeResult, error) {
	return g.completeCode(ctx, KindGenerate, taskID, generatePrompt(description, language), language)
}

// FixCode repairs existing code given a problem description.
func (g *Gateway) FixCode(ctx context.Context, taskID, description, language, code string) (*CodeResult, error) {
	return g.completeCode(ctx, KindFix, taskID, fixPrompt(description, language, code), language)
}

// RefactorCode restructures existing code while preserving behavior.
func (g *Gateway) RefactorCode(ctx context.Context, taskID, description, language, code string) (*CodeResult, error) {
	return g.completeCode(ctx, KindRefactor, taskID, refactorPrompt(description, language, code), language)
}

// GenerateTests produces a test file for existing code.
func (g *Gateway) GenerateTests(ctx context.Context, taskID, description, language, code string) (*CodeResult, error) {
	return g.completeCode(ctx, KindTest, taskID, testsPrompt(description, language, code), language)
}

// ReviewCode reviews existing code and returns structured findings.
// On parse failure it degrades to an empty issue list with the raw text as
// the summary, flagged Degraded so Validate treats it conservatively.
func (g *Gateway) ReviewCode(ctx context.Context, taskID, language, code string) (*ReviewResult, error) {
	res, err := g.Complete(ctx, Request{
		Kind:        KindReview,
		Prompt:      reviewPrompt(language, code),
		System:      systemCodeReviewer,
		Temperature: defaultTemperature,
		MaxTokens:   defaultMaxTokens,
		TaskID:      taskID,
	})
	if err != nil {
		return nil, err
	}

	out := &ReviewResult{Usage: res, Raw: res.Text}
	if err := decodeStructured(res.Text, reviewResultSchema, out); err != nil {
		log.Printf("WARNING: review output not parseable, degrading: %v", err)
		out.Summary = res.Text
		out.Issues = nil
		out.Degraded = true
	}
	return out, nil
}

// AnalyzeTask classifies a task before work begins. A malformed response
// yields a conservative medium-complexity default rather than an error.
func (g *Gateway) AnalyzeTask(ctx context.Context, taskID, taskType, description, language string) (*Analysis, error) {
	res, err := g.Complete(ctx, Request{
		Kind:        KindAnalyze,
		Prompt:      analyzePrompt(taskType, description, language),
		System:      systemCodeAssistant,
		Temperature: 0.0,
		MaxTokens:   512,
		TaskID:      taskID,
	})
	if err != nil {
		return nil, err
	}

	out := &Analysis{Usage: res, Raw: res.Text}
	if err := decodeStructured(res.Text, analysisSchema, out); err != nil {
		log.Printf("WARNING: analysis output not parseable, using conservative default: %v", err)
		out.Complexity = "medium"
		out.Language = language
		out.EstimatedLines = 0
		out.Degraded = true
	}
	if out.Language == "" {
		out.Language = language
	}
	return out, nil
}

// PlanTask produces an ordered action plan. A malformed response yields a
// single-step default plan rather than an error.
func (g *Gateway) PlanTask(ctx context.Context, taskID, taskType, description string) (*Plan, error) {
	res, err := g.Complete(ctx, Request{
		Kind:        KindPlan,
		Prompt:      planPrompt(taskType, description),
		System:      systemCodeAssistant,
		Temperature: 0.0,
		MaxTokens:   1024,
		TaskID:      taskID,
	})
	if err != nil {
		return nil, err
	}

	out := &Plan{Usage: res, Raw: res.Text}
	if err := decodeStructured(res.Text, planSchema, out); err != nil || len(out.Steps) == 0 {
		if err != nil {
			log.Printf("WARNING: plan output not parseable, using single-step default: %v", err)
		}
		out.Steps = []string{"Implement the requested change in one pass"}
		out.Degraded = true
	}
	return out, nil
}
