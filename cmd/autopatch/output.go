package main

import (
	"fmt"

	"autopatch/internal/orchestrator"
)

// printOutcome renders a human summary of one task run.
func printOutcome(outcome *orchestrator.Outcome) {
	run := outcome.Run

	fmt.Printf("Task %s\n", run.TaskID)
	if run.Analysis != nil {
		fmt.Printf("  Analysis:   complexity=%s language=%s\n", run.Analysis.Complexity, run.Analysis.Language)
	}
	if run.Plan != nil {
		fmt.Printf("  Plan:       %d step(s)\n", len(run.Plan.Steps))
		for i, step := range run.Plan.Steps {
			fmt.Printf("    %d. %s\n", i+1, step)
		}
	}
	if run.Change != nil {
		fmt.Printf("  Change:     %d byte(s) of %s", len(run.Change.Code), run.Change.Language)
		if run.Change.Degraded {
			fmt.Print(" (degraded output)")
		}
		fmt.Println()
	}
	if run.Verification != nil {
		v := run.Verification
		fmt.Printf("  Checks:     syntax=%t lint=%d security=%d tests_ran=%t\n",
			v.SyntaxOK, len(v.LintWarnings), len(v.SecurityIssues), v.TestsRan)
	}

	verdict := "needs human approval"
	if run.Decision.AutoApproved {
		verdict = "auto-approved"
	}
	fmt.Printf("  Decision:   %s (changed lines: %d)\n", verdict, run.ChangedLines)
	for _, issue := range run.Decision.Issues {
		fmt.Printf("    - %s\n", issue)
	}
	fmt.Printf("  Cost:       $%.6f\n", run.Cost)

	if outcome.Execution != nil {
		exec := outcome.Execution
		fmt.Printf("  Branch:     %s (%d commit(s))\n", exec.Branch, len(exec.Commits))
		if exec.PullRequest != nil {
			fmt.Printf("  PR:         #%d %s\n", exec.PullRequest.Number, exec.PullRequest.URL)
		}
		if exec.Merged {
			fmt.Println("  Merged:     yes")
		}
		for _, e := range exec.Errors {
			fmt.Printf("  Error:      %s %s: %s\n", e.Step, e.Path, e.Message)
		}
	}

	if run.Change != nil && run.Change.Code != "" && outcome.Execution == nil {
		fmt.Println("\n--- candidate change ---")
		fmt.Println(run.Change.Code)
	}
}
