package scm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// DefaultMergeDelay is how long Execute waits before an auto-merge attempt,
// giving CI and humans a window to intervene.
const DefaultMergeDelay = 30 * time.Second

const maxSlugLength = 40

// Engine turns an approved ChangeSet into branch, commits and a pull
// request against one repository.
type Engine struct {
	client     Client
	mergeDelay time.Duration
	strategy   MergeStrategy
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMergeDelay overrides the pre-merge waiting period.
func WithMergeDelay(d time.Duration) EngineOption {
	return func(e *Engine) { e.mergeDelay = d }
}

// WithMergeStrategy overrides the merge method used for auto-merge.
func WithMergeStrategy(s MergeStrategy) EngineOption {
	return func(e *Engine) { e.strategy = s }
}

// NewEngine creates an execution engine over a source-control client.
func NewEngine(client Client, opts ...EngineOption) *Engine {
	e := &Engine{
		client:     client,
		mergeDelay: DefaultMergeDelay,
		strategy:   MergeStrategySquash,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute materializes a change set. Each step's failure is recorded in the
// result and siblings are still attempted; only an empty change set or a
// failed branch creation abort the run. The result is always returned, even
// alongside an error, so callers can see which side effects landed.
func (e *Engine) Execute(ctx context.Context, cs ChangeSet) (*ExecutionResult, error) {
	result := &ExecutionResult{TaskID: cs.TaskID}

	if len(cs.Changes) == 0 {
		return result, fmt.Errorf("change set for task %s has no file changes", cs.TaskID)
	}

	result.Branch = BranchName(cs.Type, cs.Description)

	exists, err := e.client.CreateBranch(ctx, result.Branch)
	if err != nil {
		result.Errors = append(result.Errors, StepError{Step: "create_branch", Message: err.Error()})
		return result, fmt.Errorf("failed to create branch %s: %w", result.Branch, err)
	}
	if exists {
		log.Printf("WARNING: branch %s already exists, reusing it", result.Branch)
	}

	for _, change := range cs.Changes {
		commit, err := e.writeFile(ctx, result.Branch, cs, change)
		if err != nil {
			log.Printf("WARNING: failed to write %s on %s: %v", change.Path, result.Branch, err)
			result.Errors = append(result.Errors, StepError{
				Step:    "write_file",
				Path:    change.Path,
				Message: err.Error(),
			})
			continue
		}
		result.Commits = append(result.Commits, *commit)
	}

	if len(result.Commits) == 0 {
		return result, fmt.Errorf("no file changes landed on branch %s", result.Branch)
	}

	base, err := e.client.DefaultBranch(ctx)
	if err != nil {
		result.Errors = append(result.Errors, StepError{Step: "open_pr", Message: err.Error()})
		return result, nil
	}

	pr, err := e.client.OpenPullRequest(ctx, PullRequestOptions{
		Title: prTitle(cs),
		Body:  prBody(cs, result),
		Head:  result.Branch,
		Base:  base,
	})
	if err != nil {
		result.Errors = append(result.Errors, StepError{Step: "open_pr", Message: err.Error()})
		return result, nil
	}
	result.PullRequest = pr

	if cs.VerificationSummary != "" {
		if err := e.client.CommentPullRequest(ctx, pr.Number, cs.VerificationSummary); err != nil {
			log.Printf("WARNING: failed to comment on PR #%d: %v", pr.Number, err)
			result.Errors = append(result.Errors, StepError{Step: "comment", Message: err.Error()})
		}
	}

	if cs.AutoMerge {
		e.autoMerge(ctx, result)
	}

	return result, nil
}

// writeFile commits one file change onto branch, reading the current
// version marker first so updates do not clobber blindly.
func (e *Engine) writeFile(ctx context.Context, branch string, cs ChangeSet, change FileChange) (*Commit, error) {
	sha := ""
	existing, err := e.client.GetFile(ctx, change.Path, branch)
	if err != nil {
		return nil, fmt.Errorf("failed to read current version of %s: %w", change.Path, err)
	}
	if existing != nil {
		sha = existing.SHA
	}

	message := commitMessage(cs, change.Path)
	return e.client.PutFile(ctx, change.Path, branch, change.Content, message, sha)
}

// autoMerge waits out the configured delay then attempts a single merge.
// A failed merge is recorded and left for a human; nothing is rolled back.
func (e *Engine) autoMerge(ctx context.Context, result *ExecutionResult) {
	select {
	case <-time.After(e.mergeDelay):
	case <-ctx.Done():
		result.Errors = append(result.Errors, StepError{Step: "merge", Message: ctx.Err().Error()})
		return
	}

	if err := e.client.MergePullRequest(ctx, result.PullRequest.Number, e.strategy); err != nil {
		log.Printf("WARNING: auto-merge of PR #%d failed: %v", result.PullRequest.Number, err)
		result.Errors = append(result.Errors, StepError{Step: "merge", Message: err.Error()})
		return
	}

	result.Merged = true
	result.PullRequest.Merged = true
	result.PullRequest.State = "closed"
}

// BranchName derives a branch name from the change type and description:
// a type prefix, a slug capped at 40 characters, and a unix timestamp
// suffix to keep repeat runs from colliding.
func BranchName(changeType, description string) string {
	prefix := branchPrefix(changeType)
	slug := slugify(description)
	if slug == "" {
		slug = "change"
	}
	return fmt.Sprintf("%s/%s-%d", prefix, slug, time.Now().Unix())
}

func branchPrefix(changeType string) string {
	switch changeType {
	case "fix":
		return "fix"
	case "refactor":
		return "refactor"
	case "test":
		return "test"
	case "review":
		return "review"
	default:
		return "feat"
	}
}

func slugify(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= maxSlugLength {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}

func commitMessage(cs ChangeSet, path string) string {
	verb := "Update"
	switch cs.Type {
	case "fix":
		verb = "Fix"
	case "test":
		verb = "Add tests for"
	}
	return fmt.Sprintf("%s %s\n\n%s", verb, path, cs.Description)
}

func prTitle(cs ChangeSet) string {
	title := cs.Description
	if len(title) > 70 {
		title = title[:67] + "..."
	}
	return fmt.Sprintf("[%s] %s", branchPrefix(cs.Type), title)
}

// prBody builds the structured pull request description: rationale, the
// list of changed files, known risks, and the approval state marker.
func prBody(cs ChangeSet, result *ExecutionResult) string {
	var b strings.Builder

	b.WriteString("## Description\n\n")
	b.WriteString(cs.Description)
	b.WriteString("\n")

	if cs.Rationale != "" {
		b.WriteString("\n## Rationale\n\n")
		b.WriteString(cs.Rationale)
		b.WriteString("\n")
	}

	b.WriteString("\n## Changes\n\n")
	for _, c := range result.Commits {
		fmt.Fprintf(&b, "- `%s`\n", c.Path)
	}
	for _, e := range result.Errors {
		if e.Step == "write_file" {
			fmt.Fprintf(&b, "- `%s` (failed: %s)\n", e.Path, e.Message)
		}
	}

	if len(cs.Risks) > 0 {
		b.WriteString("\n## Risks\n\n")
		for _, r := range cs.Risks {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}

	b.WriteString("\n---\n")
	if cs.AutoMerge {
		b.WriteString("Auto-merge requested; this PR will be merged automatically after a short delay.\n")
	} else {
		b.WriteString("Pending human approval.\n")
	}

	fmt.Fprintf(&b, "\nTask: `%s`\n", cs.TaskID)

	return b.String()
}
