package gateway

import "fmt"

// Prompt templates for the task-specific helpers. Each template asks for a
// single JSON object so the structured parser has a fighting chance; the
// parser still degrades gracefully when the model ignores the instruction.

const systemCodeAssistant = `You are a senior software engineer producing production-quality code changes.
Always respond with a single JSON object and nothing else. Do not wrap the JSON in markdown fences.`

const systemCodeReviewer = `You are a meticulous code reviewer. Identify bugs, style problems, and security risks.
Always respond with a single JSON object and nothing else. Do not wrap the JSON in markdown fences.`

func generatePrompt(description, language string) string {
	return fmt.Sprintf(`Write %s code for the following task.

Task: %s

Respond with JSON: {"code": "<the complete code>", "language": "%s", "explanation": "<one paragraph>"}`,
		language, description, language)
}

func fixPrompt(description, language, code string) string {
	return fmt.Sprintf(`Fix the following %s code.

Problem: %s

Code:
%s

Respond with JSON: {"code": "<the complete fixed code>", "language": "%s", "explanation": "<what was wrong and how you fixed it>"}`,
		language, description, code, language)
}

func refactorPrompt(description, language, code string) string {
	return fmt.Sprintf(`Refactor the following %s code. Preserve behavior exactly.

Goal: %s

Code:
%s

Respond with JSON: {"code": "<the complete refactored code>", "language": "%s", "explanation": "<what changed and why it is equivalent>"}`,
		language, description, code, language)
}

func testsPrompt(description, language, code string) string {
	return fmt.Sprintf(`Write unit tests for the following %s code.

Context: %s

Code:
%s

Respond with JSON: {"code": "<the complete test file>", "language": "%s", "explanation": "<what the tests cover>"}`,
		language, description, code, language)
}

func reviewPrompt(language, code string) string {
	return fmt.Sprintf(`Review the following %s code.

Code:
%s

Respond with JSON: {"summary": "<one paragraph>", "issues": [{"severity": "info|warning|error", "line": <number or 0>, "message": "<text>"}]}`,
		language, code)
}

func analyzePrompt(taskType, description, language string) string {
	return fmt.Sprintf(`Classify the following code task before any work begins.

Type: %s
Language hint: %s
Task: %s

Respond with JSON: {"complexity": "trivial|low|medium|high", "language": "<target language>", "estimated_lines": <number>}`,
		taskType, language, description)
}

func planPrompt(taskType, description string) string {
	return fmt.Sprintf(`Produce an ordered plan for the following %s task. Do not write code yet.

Task: %s

Respond with JSON: {"steps": ["<step 1>", "<step 2>", "..."]}`,
		taskType, description)
}
