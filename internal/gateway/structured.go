package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/xeipuuv/gojsonschema"
)

// Structured model output is parsed in three steps: strip any markdown fence
// the model added anyway, repair near-JSON (trailing commas, single quotes,
// truncation), then validate against the schema for the expected shape.
// Failure at any step is not an error to the caller: the helper returns its
// conservative default with Degraded set, and downstream consumers must
// branch on that flag instead of trusting parsed fields.

// decodeStructured parses raw model output into out, validating against
// schemaJSON first. Returns a non-nil error when the output is unusable.
func decodeStructured(raw, schemaJSON string, out any) error {
	text := extractJSON(raw)
	if text == "" {
		return fmt.Errorf("no JSON object found in model output")
	}

	if !json.Valid([]byte(text)) {
		repaired, err := jsonrepair.JSONRepair(text)
		if err != nil {
			return fmt.Errorf("json repair failed: %w", err)
		}
		text = repaired
	}

	schema := gojsonschema.NewStringLoader(schemaJSON)
	doc := gojsonschema.NewStringLoader(text)
	result, err := gojsonschema.Validate(schema, doc)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("model output failed schema validation: %s", strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return fmt.Errorf("failed to unmarshal model output: %w", err)
	}
	return nil
}

// extractJSON pulls the first top-level JSON object out of model text,
// tolerating markdown fences and prose around it.
func extractJSON(raw string) string {
	text := strings.TrimSpace(raw)

	// Strip a ```json ... ``` fence if present.
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = strings.TrimSpace(rest[:end])
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	// Scan for the matching close brace, respecting strings.
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}

	// Unbalanced braces: return the tail and let the repair pass try.
	return text[start:]
}

// Schemas for the structured helper outputs.

const codeResultSchema = `{
	"type": "object",
	"required": ["code"],
	"properties": {
		"code": {"type": "string"},
		"language": {"type": "string"},
		"explanation": {"type": "string"}
	}
}`

const reviewResultSchema = `{
	"type": "object",
	"required": ["summary"],
	"properties": {
		"summary": {"type": "string"},
		"issues": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["message"],
				"properties": {
					"severity": {"type": "string"},
					"line": {"type": "integer"},
					"message": {"type": "string"}
				}
			}
		}
	}
}`

const analysisSchema = `{
	"type": "object",
	"required": ["complexity"],
	"properties": {
		"complexity": {"type": "string"},
		"language": {"type": "string"},
		"estimated_lines": {"type": "integer"}
	}
}`

const planSchema = `{
	"type": "object",
	"required": ["steps"],
	"properties": {
		"steps": {"type": "array", "items": {"type": "string"}}
	}
}`
