package orchestrator

import (
	"context"
	"errors"
	"testing"

	"autopatch/internal/agent"
	"autopatch/internal/audit"
	"autopatch/internal/gateway"
	"autopatch/internal/scm"
	"autopatch/internal/verify"
)

type fixedCompleter struct {
	code string
}

func (f *fixedCompleter) AnalyzeTask(ctx context.Context, taskID, taskType, description, language string) (*gateway.Analysis, error) {
	return &gateway.Analysis{Complexity: "low", Language: "go"}, nil
}

func (f *fixedCompleter) PlanTask(ctx context.Context, taskID, taskType, description string) (*gateway.Plan, error) {
	return &gateway.Plan{Steps: []string{"apply the fix"}}, nil
}

func (f *fixedCompleter) result() (*gateway.CodeResult, error) {
	return &gateway.CodeResult{Code: f.code, Language: "go"}, nil
}

func (f *fixedCompleter) GenerateCode(ctx context.Context, taskID, description, language string) (*gateway.CodeResult, error) {
	return f.result()
}

func (f *fixedCompleter) FixCode(ctx context.Context, taskID, description, language, code string) (*gateway.CodeResult, error) {
	return f.result()
}

func (f *fixedCompleter) RefactorCode(ctx context.Context, taskID, description, language, code string) (*gateway.CodeResult, error) {
	return f.result()
}

func (f *fixedCompleter) GenerateTests(ctx context.Context, taskID, description, language, code string) (*gateway.CodeResult, error) {
	return f.result()
}

func (f *fixedCompleter) ReviewCode(ctx context.Context, taskID, language, code string) (*gateway.ReviewResult, error) {
	return &gateway.ReviewResult{Summary: "ok"}, nil
}

type fakeExecutor struct {
	called bool
	cs     scm.ChangeSet
	result *scm.ExecutionResult
	err    error
}

func (f *fakeExecutor) Execute(ctx context.Context, cs scm.ChangeSet) (*scm.ExecutionResult, error) {
	f.called = true
	f.cs = cs
	if f.result == nil && f.err == nil {
		return &scm.ExecutionResult{
			TaskID:  cs.TaskID,
			Branch:  "fix/test-branch-1",
			Commits: []scm.Commit{{Path: cs.Changes[0].Path, SHA: "abc"}},
		}, nil
	}
	return f.result, f.err
}

func newOrchestrator(t *testing.T, executor Executor) (*Orchestrator, *audit.Ledger) {
	t.Helper()
	ledger, err := audit.NewLedger(audit.Options{})
	if err != nil {
		t.Fatalf("NewLedger: %v", err)
	}
	a, err := agent.New(agent.Options{
		Completer: &fixedCompleter{code: "package main\n\nfunc main() {}\n"},
		Verifier:  verify.NewRunner(verify.Options{}),
		Ledger:    ledger,
	})
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	return New(a, executor, ledger), ledger
}

func autoApplyTask() agent.Task {
	return agent.Task{
		ID:          "task-1",
		Type:        "fix",
		Description: "fix the thing",
		Language:    "go",
		FilePath:    "main.go",
		Code:        "package main\n",
		AutoApply:   true,
	}
}

func TestRunAutoApprovedExecutes(t *testing.T) {
	executor := &fakeExecutor{}
	o, ledger := newOrchestrator(t, executor)

	outcome, err := o.Run(context.Background(), autoApplyTask())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !executor.called {
		t.Fatal("auto-approved fix with AutoApply must execute")
	}
	if !outcome.Applied {
		t.Error("expected outcome.Applied")
	}
	if executor.cs.Changes[0].Path != "main.go" {
		t.Errorf("change path = %s", executor.cs.Changes[0].Path)
	}
	if len(ledger.ByType(audit.TypeExecution)) != 1 {
		t.Error("expected one execution entry in the ledger")
	}
	if len(ledger.ByType(audit.TypeCommit)) != 1 {
		t.Error("expected one commit entry in the ledger")
	}
}

func TestRunWithoutAutoApplyStopsAfterReasoning(t *testing.T) {
	executor := &fakeExecutor{}
	o, _ := newOrchestrator(t, executor)

	task := autoApplyTask()
	task.AutoApply = false

	outcome, err := o.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if executor.called {
		t.Error("execution must not run without AutoApply")
	}
	if outcome.Applied {
		t.Error("outcome must not be applied")
	}
}

func TestRunNeedsApprovalBlocksExecution(t *testing.T) {
	executor := &fakeExecutor{}
	o, _ := newOrchestrator(t, executor)

	// generate tasks hit the conservative default rule.
	task := autoApplyTask()
	task.Type = "generate"
	task.Code = ""

	outcome, err := o.Run(context.Background(), task)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if executor.called {
		t.Error("needs-approval decision must block execution")
	}
	if outcome.Run.Decision.AutoApproved {
		t.Error("generate task should not auto-approve")
	}
}

func TestRunExecutionFailureRecorded(t *testing.T) {
	executor := &fakeExecutor{err: errors.New("api down")}
	o, ledger := newOrchestrator(t, executor)

	_, err := o.Run(context.Background(), autoApplyTask())
	if err == nil {
		t.Fatal("expected execution error to propagate")
	}
	if len(ledger.ByType(audit.TypeError)) == 0 {
		t.Error("expected an error entry in the ledger")
	}
}

func TestRunMissingFilePath(t *testing.T) {
	executor := &fakeExecutor{}
	o, _ := newOrchestrator(t, executor)

	task := autoApplyTask()
	task.FilePath = ""

	if _, err := o.Run(context.Background(), task); err == nil {
		t.Fatal("expected error for auto-apply without a file path")
	}
	if executor.called {
		t.Error("execution must not run without a target path")
	}
}
