// Package approval implements the deterministic policy that decides whether
// a generated change may be applied automatically or needs a human gate.
package approval

import "fmt"

// MaxAutoApproveLines is the changed-line threshold above which every change
// needs human approval.
const MaxAutoApproveLines = 50

// Change carries the attributes the policy evaluates. It deliberately knows
// nothing about how the change was produced.
type Change struct {
	TaskType       string // generate | fix | refactor | test | review
	ChangedLines   int
	SecurityIssues []string
	Degraded       bool // model output could not be parsed as structured
}

// Decision is the policy outcome. Computed once per change and recorded;
// never re-derived afterwards.
type Decision struct {
	AutoApproved  bool     `json:"autoApproved"`
	NeedsApproval bool     `json:"needsApproval"`
	Issues        []string `json:"issues,omitempty"`
}

// Evaluate applies the approval rules in order. Rule 1 (security findings)
// dominates everything, including rules that would otherwise auto-approve.
func Evaluate(c Change) Decision {
	// 1. Any security issue requires a human. Non-negotiable.
	if len(c.SecurityIssues) > 0 {
		issues := make([]string, 0, len(c.SecurityIssues)+1)
		issues = append(issues, fmt.Sprintf("%d security issue(s) found", len(c.SecurityIssues)))
		issues = append(issues, c.SecurityIssues...)
		return Decision{NeedsApproval: true, Issues: issues}
	}

	// Degraded model output means the attributes below were not verifiable
	// against a structured result; treat conservatively.
	if c.Degraded {
		return Decision{NeedsApproval: true, Issues: []string{"model output was degraded; manual review required"}}
	}

	// 2. Large changes require a human regardless of type.
	if c.ChangedLines > MaxAutoApproveLines {
		return Decision{
			NeedsApproval: true,
			Issues:        []string{fmt.Sprintf("change touches %d lines (limit %d)", c.ChangedLines, MaxAutoApproveLines)},
		}
	}

	// 3. Tests are inherently low-risk.
	if c.TaskType == "test" {
		return Decision{AutoApproved: true}
	}

	// 4. Small fixes are low-risk.
	if c.TaskType == "fix" {
		return Decision{AutoApproved: true}
	}

	// 5. Everything else defaults to human review.
	return Decision{NeedsApproval: true, Issues: []string{fmt.Sprintf("task type %q requires human approval", c.TaskType)}}
}
