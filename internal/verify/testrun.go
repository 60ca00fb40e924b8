package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"autopatch/internal/sandbox"
)

// TestExecutor runs the test-suite check for a candidate.
// The bool result reports whether tests were actually executed: false means
// "not applicable" (no sandbox, no test command for the language), which
// Validate treats as a pass.
type TestExecutor interface {
	Run(ctx context.Context, language, code string) ([]TestResult, bool, error)
}

// SandboxExecutor stages the candidate into a throwaway workspace and runs
// the language's test command inside the sandbox. When RepoRoot is set the
// existing repository is staged first (gitignore-filtered) and the candidate
// overlaid, so tests see the candidate in context.
type SandboxExecutor struct {
	Runner   sandbox.Runner
	RepoRoot string // optional
	FilePath string // candidate's path inside the repo, optional
	Timeout  time.Duration
}

// testCommand returns the command that runs a language's tests, or ok=false
// when we have none for the language.
func testCommand(language string) (name string, args []string, ok bool) {
	switch language {
	case "go", "golang":
		return "go", []string{"test", "./..."}, true
	case "python":
		return "python", []string{"-m", "pytest", "-q"}, true
	case "javascript", "typescript", "node":
		return "npm", []string{"test", "--silent"}, true
	default:
		return "", nil, false
	}
}

// Run implements TestExecutor.
func (e *SandboxExecutor) Run(ctx context.Context, language, code string) ([]TestResult, bool, error) {
	if e.Runner == nil {
		return nil, false, nil
	}

	name, args, ok := testCommand(language)
	if !ok {
		return nil, false, nil
	}

	workDir, err := os.MkdirTemp("", "autopatch-verify-")
	if err != nil {
		return nil, false, fmt.Errorf("failed to create workspace: %w", err)
	}
	defer os.RemoveAll(workDir)

	if e.RepoRoot != "" {
		if err := sandbox.Stage(e.RepoRoot, workDir); err != nil {
			return nil, false, err
		}
	}

	if err := e.writeCandidate(workDir, language, code); err != nil {
		return nil, false, err
	}

	if dr, ok := e.Runner.(*sandbox.DockerRunner); ok {
		dr.SetLanguage(language)
	}

	res, err := e.Runner.RunCmd(ctx, workDir, name, args, e.Timeout)
	if err != nil && !res.TimedOut && res.Stdout == "" && res.Stderr == "" {
		return nil, false, err
	}

	output := res.Stdout
	if res.Stderr != "" {
		output = strings.TrimSpace(output + "\n" + res.Stderr)
	}
	if len(output) > 4096 {
		output = output[:4096] + "\n... (truncated)"
	}

	result := TestResult{
		Name:   fmt.Sprintf("%s %s", name, strings.Join(args, " ")),
		Passed: res.Code == 0 && !res.TimedOut,
		Output: output,
	}

	return []TestResult{result}, true, nil
}

// writeCandidate places the candidate file into the workspace. Without a
// repo context it synthesizes the minimal scaffolding the test command needs.
func (e *SandboxExecutor) writeCandidate(workDir, language, code string) error {
	path := e.FilePath
	if path == "" {
		path = defaultFileName(language)
	}

	full := filepath.Join(workDir, path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("failed to create candidate directory: %w", err)
	}
	if err := os.WriteFile(full, []byte(code), 0644); err != nil {
		return fmt.Errorf("failed to write candidate: %w", err)
	}

	// A bare Go candidate needs a module before `go test` will touch it.
	if (language == "go" || language == "golang") && e.RepoRoot == "" {
		gomod := filepath.Join(workDir, "go.mod")
		if _, err := os.Stat(gomod); os.IsNotExist(err) {
			content := "module candidate\n\ngo 1.24\n"
			if err := os.WriteFile(gomod, []byte(content), 0644); err != nil {
				return fmt.Errorf("failed to write go.mod: %w", err)
			}
		}
	}

	return nil
}

func defaultFileName(language string) string {
	switch language {
	case "go", "golang":
		return "candidate_test.go"
	case "python":
		return "test_candidate.py"
	case "javascript", "node":
		return "candidate.test.js"
	case "typescript":
		return "candidate.test.ts"
	default:
		return "candidate.txt"
	}
}
