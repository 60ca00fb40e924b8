// Package orchestrator connects the reasoning agent to the source-control
// engine: a task is reasoned over, and its change is executed externally
// only when the policy auto-approved it and the task asked for application.
package orchestrator

import (
	"context"
	"fmt"
	"log"

	"autopatch/internal/agent"
	"autopatch/internal/audit"
	"autopatch/internal/scm"
)

// Executor is the slice of the source-control engine the orchestrator uses.
type Executor interface {
	Execute(ctx context.Context, cs scm.ChangeSet) (*scm.ExecutionResult, error)
}

// Outcome is one complete task run: the reasoning result plus the external
// execution result when one happened.
type Outcome struct {
	Run       *agent.RunResult
	Execution *scm.ExecutionResult
	// Applied reports whether the change was sent to source control.
	Applied bool
}

// Orchestrator runs tasks end to end.
type Orchestrator struct {
	agent    *agent.Agent
	executor Executor
	ledger   *audit.Ledger
}

// New wires the pipeline. executor may be nil when no source-control
// backend is configured; tasks then stop after reasoning.
func New(a *agent.Agent, executor Executor, ledger *audit.Ledger) *Orchestrator {
	return &Orchestrator{agent: a, executor: executor, ledger: ledger}
}

// Run reasons over a task and, when the decision allows, executes the
// change. Execution happens only behind an auto-approved decision; a
// needs-approval outcome is a normal stop, not an error.
func (o *Orchestrator) Run(ctx context.Context, task agent.Task) (*Outcome, error) {
	result, err := o.agent.Reason(ctx, task)
	if err != nil {
		return &Outcome{Run: result}, err
	}

	outcome := &Outcome{Run: result}

	if !task.AutoApply {
		return outcome, nil
	}
	if !result.Decision.AutoApproved {
		log.Printf("task %s needs human approval, skipping execution", task.ID)
		return outcome, nil
	}
	if o.executor == nil {
		log.Printf("WARNING: task %s auto-approved but no source-control backend configured", task.ID)
		return outcome, nil
	}
	if task.FilePath == "" {
		return outcome, fmt.Errorf("task %s requested auto-apply without a target file path", task.ID)
	}

	execution, execErr := o.executor.Execute(ctx, changeSet(task, result))
	outcome.Execution = execution
	outcome.Applied = execution != nil && len(execution.Commits) > 0

	o.recordExecution(task, execution, execErr)

	if execErr != nil {
		return outcome, fmt.Errorf("execution failed for task %s: %w", task.ID, execErr)
	}
	return outcome, nil
}

func changeSet(task agent.Task, result *agent.RunResult) scm.ChangeSet {
	return scm.ChangeSet{
		TaskID:      task.ID,
		Type:        task.Type,
		Description: task.Description,
		Changes: []scm.FileChange{
			{Path: task.FilePath, Content: result.Change.Code},
		},
		Rationale:           result.Change.Explanation,
		Risks:               result.Decision.Issues,
		AutoMerge:           task.AutoApply && result.Passed,
		VerificationSummary: verificationSummary(result),
	}
}

func verificationSummary(result *agent.RunResult) string {
	v := result.Verification
	if v == nil {
		return ""
	}
	return fmt.Sprintf(
		"Verification: syntax=%t lint_warnings=%d security_issues=%d tests_ran=%t tests_ok=%t changed_lines=%d",
		v.SyntaxOK, len(v.LintWarnings), len(v.SecurityIssues), v.TestsRan, v.TestsOK(), result.ChangedLines,
	)
}

func (o *Orchestrator) recordExecution(task agent.Task, execution *scm.ExecutionResult, execErr error) {
	if execution == nil {
		o.ledger.Record(audit.TypeError, task.ID, "orchestrator",
			fmt.Sprintf("execution produced no result: %v", execErr), nil)
		return
	}

	for _, c := range execution.Commits {
		o.ledger.Record(audit.TypeCommit, task.ID, "scm",
			fmt.Sprintf("committed %s on %s", c.Path, execution.Branch),
			map[string]any{"sha": c.SHA})
	}

	details := map[string]any{
		"branch":  execution.Branch,
		"commits": len(execution.Commits),
		"errors":  len(execution.Errors),
		"merged":  execution.Merged,
	}
	if execution.PullRequest != nil {
		details["pullRequest"] = execution.PullRequest.Number
		details["url"] = execution.PullRequest.URL
	}

	message := "change executed"
	entryType := audit.TypeExecution
	if execErr != nil {
		message = fmt.Sprintf("execution failed: %v", execErr)
		entryType = audit.TypeError
	} else if len(execution.Errors) > 0 {
		message = fmt.Sprintf("change executed with %d step error(s)", len(execution.Errors))
	}

	o.ledger.Record(entryType, task.ID, "orchestrator", message, details)
}
