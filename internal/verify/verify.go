// Package verify runs the pre-approval checks over a candidate change:
// syntax, lint, security scan, and an optional sandboxed test run.
package verify

import (
	"context"
	"log"
)

// TestResult is the outcome of one test command.
type TestResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Output string `json:"output,omitempty"`
}

// Result bundles every check's outcome for one candidate change.
// All checks always run; a failing check never prevents the others.
type Result struct {
	SyntaxOK       bool         `json:"syntaxOk"`
	SyntaxErrors   []string     `json:"syntaxErrors,omitempty"`
	LintWarnings   []string     `json:"lintWarnings,omitempty"`
	SecurityIssues []string     `json:"securityIssues,omitempty"`
	TestResults    []TestResult `json:"testResults,omitempty"`
	TestsRan       bool         `json:"testsRan"`
}

// LintOK reports whether the linter found nothing.
func (r *Result) LintOK() bool { return len(r.LintWarnings) == 0 }

// SecurityOK reports whether the scanner found nothing.
func (r *Result) SecurityOK() bool { return len(r.SecurityIssues) == 0 }

// TestsOK reports whether every executed test passed. True when no tests
// were applicable: absence of tests is not a failure.
func (r *Result) TestsOK() bool {
	for _, t := range r.TestResults {
		if !t.Passed {
			return false
		}
	}
	return true
}

// Runner executes the full check sequence.
type Runner struct {
	tests    TestExecutor // nil disables the test-suite check
	runTests bool
}

// Options configures a verification Runner.
type Options struct {
	Tests    TestExecutor
	RunTests bool
}

// NewRunner creates a verification runner.
func NewRunner(opts Options) *Runner {
	return &Runner{
		tests:    opts.Tests,
		runTests: opts.RunTests,
	}
}

// Static runs the syntax, lint, and security checks without touching the
// test executor.
func (r *Runner) Static(language, code string) *Result {
	result := &Result{}

	result.SyntaxOK, result.SyntaxErrors = CheckSyntax(language, code)
	result.LintWarnings = Lint(language, code)
	result.SecurityIssues = ScanSecurity(language, code)

	return result
}

// Verify runs syntax, lint, security, and (unless disabled) the test suite,
// in that order. Each check's failure is recorded, never raised; the bundle
// always reflects all four.
func (r *Runner) Verify(ctx context.Context, language, code string) *Result {
	result := r.Static(language, code)

	if !r.runTests || r.tests == nil {
		return result
	}

	tests, ran, err := r.tests.Run(ctx, language, code)
	if err != nil {
		// A broken test environment is recorded, not fatal: the other three
		// checks still stand and Validate treats missing tests as not
		// applicable.
		log.Printf("WARNING: test run failed to execute: %v", err)
		return result
	}
	result.TestResults = tests
	result.TestsRan = ran

	return result
}
