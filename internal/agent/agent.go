// Package agent drives one task through the fixed reasoning pipeline:
// analyze, plan, implement, test, validate. Phases run in that order,
// never skipped, never re-entered, and every transition is traced.
package agent

import (
	"context"
	"fmt"
	"time"

	"autopatch/internal/approval"
	"autopatch/internal/audit"
	"autopatch/internal/gateway"
	"autopatch/internal/verify"
)

// Phase is one state of the reasoning run.
type Phase string

const (
	PhaseStart     Phase = "START"
	PhaseAnalyze   Phase = "ANALYZE"
	PhasePlan      Phase = "PLAN"
	PhaseImplement Phase = "IMPLEMENT"
	PhaseTest      Phase = "TEST"
	PhaseValidate  Phase = "VALIDATE"
	PhaseComplete  Phase = "COMPLETE"
	PhaseError     Phase = "ERROR"
)

// Task is one unit of work entering the pipeline.
type Task struct {
	ID          string
	Type        string // generate | fix | refactor | test | review
	Description string
	Language    string
	FilePath    string // repository path the change targets
	Code        string // existing code, required for fix/refactor/test/review
	SkipTests   bool   // skip the test-suite run during the test phase
	AutoApply   bool   // request external execution when auto-approved
}

// UnknownTaskTypeError aborts a run; there is no conservative fallback
// for not knowing what to build.
type UnknownTaskTypeError struct {
	Type string
}

func (e *UnknownTaskTypeError) Error() string {
	return fmt.Sprintf("unknown task type: %s", e.Type)
}

// TraceRecord is one phase transition. The trace is append-only for the
// duration of a run and owned by that run alone.
type TraceRecord struct {
	Phase     Phase          `json:"phase"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// CandidateChange is the implement phase's artifact. Immutable once built;
// one run produces exactly one.
type CandidateChange struct {
	Language    string
	Code        string
	Explanation string
	Degraded    bool
	Usage       gateway.Result
}

// RunResult is everything one reasoning run produced.
type RunResult struct {
	TaskID       string
	Success      bool
	Analysis     *gateway.Analysis
	Plan         *gateway.Plan
	Change       *CandidateChange
	Verification *verify.Result
	Passed       bool // validation verdict over the verification checks
	Decision     approval.Decision
	ChangedLines int
	Trace        []TraceRecord
	Cost         float64
}

// Completer is the slice of the completion gateway the agent drives.
type Completer interface {
	AnalyzeTask(ctx context.Context, taskID, taskType, description, language string) (*gateway.Analysis, error)
	PlanTask(ctx context.Context, taskID, taskType, description string) (*gateway.Plan, error)
	GenerateCode(ctx context.Context, taskID, description, language string) (*gateway.CodeResult, error)
	FixCode(ctx context.Context, taskID, description, language, code string) (*gateway.CodeResult, error)
	RefactorCode(ctx context.Context, taskID, description, language, code string) (*gateway.CodeResult, error)
	GenerateTests(ctx context.Context, taskID, description, language, code string) (*gateway.CodeResult, error)
	ReviewCode(ctx context.Context, taskID, language, code string) (*gateway.ReviewResult, error)
}

// Agent runs tasks through the pipeline. Safe for concurrent use; each run
// keeps its own trace and shares only the gateway and the ledger.
type Agent struct {
	completer Completer
	verifier  *verify.Runner
	ledger    *audit.Ledger
	timeout   time.Duration
}

// Options configures an Agent.
type Options struct {
	Completer Completer
	Verifier  *verify.Runner
	Ledger    *audit.Ledger
	// Timeout bounds one full run. Once a completion call is dispatched it
	// cannot be aborted server-side, so this caller-side deadline is the
	// only cancellation mechanism. Zero means no deadline.
	Timeout time.Duration
}

func New(opts Options) (*Agent, error) {
	if opts.Completer == nil {
		return nil, fmt.Errorf("agent requires a completer")
	}
	if opts.Verifier == nil {
		return nil, fmt.Errorf("agent requires a verifier")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("agent requires a ledger")
	}
	return &Agent{
		completer: opts.Completer,
		verifier:  opts.Verifier,
		ledger:    opts.Ledger,
		timeout:   opts.Timeout,
	}, nil
}

// run carries the mutable state of one task through the phases.
type run struct {
	agent  *Agent
	task   Task
	result *RunResult

	// usage consumed by the phase in flight, carried onto its trace entry
	// so ledger stats account for the whole run
	phaseCost     float64
	phaseUnpriced bool
}

// Reason executes the full pipeline for one task. The partial result is
// returned even when an error aborts a phase, so the caller can see how
// far the run got; the trace and the error are in the ledger either way.
func (a *Agent) Reason(ctx context.Context, task Task) (*RunResult, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	r := &run{
		agent:  a,
		task:   task,
		result: &RunResult{TaskID: task.ID},
	}

	r.transition(PhaseStart, map[string]any{
		"taskType":    task.Type,
		"description": task.Description,
	})

	steps := []struct {
		phase Phase
		fn    func(context.Context) (map[string]any, error)
	}{
		{PhaseAnalyze, r.analyze},
		{PhasePlan, r.plan},
		{PhaseImplement, r.implement},
		{PhaseTest, r.test},
		{PhaseValidate, r.validate},
	}

	for _, step := range steps {
		payload, err := step.fn(ctx)
		if err != nil {
			r.fail(step.phase, err)
			return r.result, err
		}
		r.transition(step.phase, payload)
	}

	r.result.Success = true
	r.transition(PhaseComplete, map[string]any{
		"passed":       r.result.Passed,
		"autoApproved": r.result.Decision.AutoApproved,
		"cost":         r.result.Cost,
	})

	return r.result, nil
}

// transition appends one trace record and mirrors it into the ledger.
func (r *run) transition(phase Phase, payload map[string]any) {
	r.result.Trace = append(r.result.Trace, TraceRecord{
		Phase:     phase,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
	cost, unpriced := r.phaseCost, r.phaseUnpriced
	r.phaseCost, r.phaseUnpriced = 0, false
	r.agent.ledger.RecordCost(audit.TypeTrace, r.task.ID, "agent",
		fmt.Sprintf("phase %s", phase), cost, unpriced, payload)
}

func (r *run) fail(phase Phase, err error) {
	r.transition(PhaseError, map[string]any{
		"failedPhase": string(phase),
		"error":       err.Error(),
	})
	r.agent.ledger.Record(audit.TypeError, r.task.ID, "agent",
		fmt.Sprintf("run aborted in %s: %v", phase, err), nil)
}

func (r *run) analyze(ctx context.Context) (map[string]any, error) {
	analysis, err := r.agent.completer.AnalyzeTask(ctx, r.task.ID, r.task.Type, r.task.Description, r.task.Language)
	if err != nil {
		return nil, fmt.Errorf("analyze phase failed: %w", err)
	}

	r.result.Analysis = analysis
	r.result.Cost += analysis.Usage.Cost
	r.phaseCost, r.phaseUnpriced = analysis.Usage.Cost, analysis.Usage.Unpriced

	if r.task.Language == "" {
		r.task.Language = analysis.Language
	}

	return map[string]any{
		"complexity": analysis.Complexity,
		"language":   analysis.Language,
		"degraded":   analysis.Degraded,
	}, nil
}

func (r *run) plan(ctx context.Context) (map[string]any, error) {
	plan, err := r.agent.completer.PlanTask(ctx, r.task.ID, r.task.Type, r.task.Description)
	if err != nil {
		return nil, fmt.Errorf("plan phase failed: %w", err)
	}

	r.result.Plan = plan
	r.result.Cost += plan.Usage.Cost
	r.phaseCost, r.phaseUnpriced = plan.Usage.Cost, plan.Usage.Unpriced

	return map[string]any{
		"steps":    len(plan.Steps),
		"degraded": plan.Degraded,
	}, nil
}

func (r *run) implement(ctx context.Context) (map[string]any, error) {
	change, err := r.generate(ctx)
	if err != nil {
		return nil, err
	}

	r.result.Change = change
	r.result.Cost += change.Usage.Cost
	// the generation entry carries this phase's usage; the trace entry
	// stays at zero so stats count it once
	r.agent.ledger.RecordCost(audit.TypeGeneration, r.task.ID, "agent",
		fmt.Sprintf("candidate change generated (%s, %d bytes)", change.Language, len(change.Code)),
		change.Usage.Cost, change.Usage.Unpriced,
		map[string]any{"degraded": change.Degraded})

	return map[string]any{
		"language": change.Language,
		"bytes":    len(change.Code),
		"degraded": change.Degraded,
	}, nil
}

// generate dispatches to the task-type generator.
func (r *run) generate(ctx context.Context) (*CandidateChange, error) {
	t := r.task
	switch t.Type {
	case "generate":
		res, err := r.agent.completer.GenerateCode(ctx, t.ID, t.Description, t.Language)
		if err != nil {
			return nil, fmt.Errorf("implement phase failed: %w", err)
		}
		return changeFromCode(res), nil
	case "fix":
		res, err := r.agent.completer.FixCode(ctx, t.ID, t.Description, t.Language, t.Code)
		if err != nil {
			return nil, fmt.Errorf("implement phase failed: %w", err)
		}
		return changeFromCode(res), nil
	case "refactor":
		res, err := r.agent.completer.RefactorCode(ctx, t.ID, t.Description, t.Language, t.Code)
		if err != nil {
			return nil, fmt.Errorf("implement phase failed: %w", err)
		}
		return changeFromCode(res), nil
	case "test":
		res, err := r.agent.completer.GenerateTests(ctx, t.ID, t.Description, t.Language, t.Code)
		if err != nil {
			return nil, fmt.Errorf("implement phase failed: %w", err)
		}
		return changeFromCode(res), nil
	case "review":
		res, err := r.agent.completer.ReviewCode(ctx, t.ID, t.Language, t.Code)
		if err != nil {
			return nil, fmt.Errorf("implement phase failed: %w", err)
		}
		// A review does not rewrite the code; the candidate carries the
		// reviewed code with the findings as its explanation.
		return &CandidateChange{
			Language:    t.Language,
			Code:        t.Code,
			Explanation: reviewSummary(res),
			Degraded:    res.Degraded,
			Usage:       res.Usage,
		}, nil
	default:
		return nil, &UnknownTaskTypeError{Type: t.Type}
	}
}

func changeFromCode(res *gateway.CodeResult) *CandidateChange {
	return &CandidateChange{
		Language:    res.Language,
		Code:        res.Code,
		Explanation: res.Explanation,
		Degraded:    res.Degraded,
		Usage:       res.Usage,
	}
}

func reviewSummary(res *gateway.ReviewResult) string {
	s := res.Summary
	for _, issue := range res.Issues {
		s += fmt.Sprintf("\n- [%s] line %d: %s", issue.Severity, issue.Line, issue.Message)
	}
	return s
}

func (r *run) test(ctx context.Context) (map[string]any, error) {
	language := r.result.Change.Language
	if language == "" {
		language = r.task.Language
	}

	var verification *verify.Result
	if r.task.SkipTests {
		verification = r.agent.verifier.Static(language, r.result.Change.Code)
	} else {
		verification = r.agent.verifier.Verify(ctx, language, r.result.Change.Code)
	}
	r.result.Verification = verification

	return map[string]any{
		"syntaxOk":       verification.SyntaxOK,
		"lintWarnings":   len(verification.LintWarnings),
		"securityIssues": len(verification.SecurityIssues),
		"testsRan":       verification.TestsRan,
		"testsOk":        verification.TestsOK(),
	}, nil
}

func (r *run) validate(ctx context.Context) (map[string]any, error) {
	v := r.result.Verification
	r.result.Passed = v.SyntaxOK && v.LintOK() && v.SecurityOK() && v.TestsOK()

	r.result.ChangedLines = approval.CountChangedLines(r.task.Code, r.result.Change.Code)

	decision := approval.Evaluate(approval.Change{
		TaskType:       r.task.Type,
		ChangedLines:   r.result.ChangedLines,
		SecurityIssues: v.SecurityIssues,
		Degraded:       r.result.Change.Degraded,
	})
	r.result.Decision = decision

	entryType := audit.TypeRejection
	message := "change needs human approval"
	if decision.AutoApproved {
		entryType = audit.TypeApproval
		message = "change auto-approved"
	}
	r.agent.ledger.Record(entryType, r.task.ID, "agent", message, map[string]any{
		"autoApproved": decision.AutoApproved,
		"changedLines": r.result.ChangedLines,
		"issues":       decision.Issues,
	})

	return map[string]any{
		"passed":       r.result.Passed,
		"autoApproved": decision.AutoApproved,
		"changedLines": r.result.ChangedLines,
	}, nil
}
