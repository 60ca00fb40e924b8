// Package scm materializes approved changes against a hosted source-control
// API: branch, commits, pull request, optional merge.
//
// There is no cross-task locking here. Two concurrent tasks targeting the
// same path and branch race with last-write-wins semantics and no conflict
// detection; this engine is built for low-concurrency internal automation.
package scm

import "context"

// FileChange is one file's new content, exchanged as decoded text. Any
// wire-level encoding is the client's concern.
type FileChange struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ChangeSet is the unit the engine executes: every file of one approved
// candidate change, plus the metadata the pull request is built from.
type ChangeSet struct {
	TaskID      string
	Type        string // generate | fix | refactor | test | review
	Description string
	Changes     []FileChange
	Rationale   string
	Risks       []string
	// AutoMerge requests full automation: skip the draft marker and attempt
	// one merge after the configured delay.
	AutoMerge bool
	// VerificationSummary, when present, is posted as a PR comment.
	VerificationSummary string
}

// Commit records one successful file write.
type Commit struct {
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Message string `json:"message"`
}

// PullRequest is the engine's view of a review request.
type PullRequest struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	State  string `json:"state"`
	Merged bool   `json:"merged"`
}

// StepError is one failed step of an execution. Steps fail independently;
// an error never aborts sibling operations.
type StepError struct {
	Step    string `json:"step"` // "create_branch" | "write_file" | "open_pr" | "comment" | "merge"
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// ExecutionResult records the external side effects of one execution,
// partially populated on failure. Executions are never retried
// automatically; recovery from a partial result is a human decision.
type ExecutionResult struct {
	TaskID      string       `json:"taskId"`
	Branch      string       `json:"branch"`
	Commits     []Commit     `json:"commits"`
	PullRequest *PullRequest `json:"pullRequest,omitempty"`
	Merged      bool         `json:"merged"`
	Errors      []StepError  `json:"errors,omitempty"`
}

// RepoFile is file content read at a ref, with the version marker needed to
// update it.
type RepoFile struct {
	Path    string
	Content string
	SHA     string
}

// MergeStrategy selects how a pull request is merged.
type MergeStrategy string

const (
	MergeStrategyMerge  MergeStrategy = "merge"
	MergeStrategySquash MergeStrategy = "squash"
	MergeStrategyRebase MergeStrategy = "rebase"
)

// PullRequestOptions parameterizes opening a review request.
type PullRequestOptions struct {
	Title string
	Body  string
	Head  string
	Base  string
	Draft bool
}

// Client is the hosted source-control API boundary.
type Client interface {
	// DefaultBranch returns the repository's default branch name.
	DefaultBranch(ctx context.Context) (string, error)
	// GetFile reads decoded file content at a ref. A missing file returns
	// (nil, nil): absence is an expected state, not an error.
	GetFile(ctx context.Context, path, ref string) (*RepoFile, error)
	// PutFile creates or updates a file on a branch. sha is the prior
	// version marker, empty for new files.
	PutFile(ctx context.Context, path, branch, content, message, sha string) (*Commit, error)
	// CreateBranch creates a branch from the default branch's head.
	// An already-existing branch reports exists=true and no error.
	CreateBranch(ctx context.Context, name string) (exists bool, err error)
	// OpenPullRequest opens a review request.
	OpenPullRequest(ctx context.Context, opts PullRequestOptions) (*PullRequest, error)
	// CommentPullRequest adds a comment to a review request.
	CommentPullRequest(ctx context.Context, number int, body string) error
	// MergePullRequest merges a review request with the given strategy.
	MergePullRequest(ctx context.Context, number int, strategy MergeStrategy) error
	// GetPullRequest fetches a review request's current state.
	GetPullRequest(ctx context.Context, number int) (*PullRequest, error)
}
