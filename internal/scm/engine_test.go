package scm

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// fakeClient records calls and fails on demand, standing in for the
// hosted API during engine tests.
type fakeClient struct {
	branchExists bool
	branchErr    error
	failPaths    map[string]bool
	prErr        error
	mergeErr     error
	files        map[string]string

	createdBranches []string
	puts            []string
	comments        []string
	prOpened        bool
	mergeCalls      int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		failPaths: map[string]bool{},
		files:     map[string]string{},
	}
}

func (f *fakeClient) DefaultBranch(ctx context.Context) (string, error) {
	return "main", nil
}

func (f *fakeClient) GetFile(ctx context.Context, path, ref string) (*RepoFile, error) {
	content, ok := f.files[path]
	if !ok {
		return nil, nil
	}
	return &RepoFile{Path: path, Content: content, SHA: "sha-" + path}, nil
}

func (f *fakeClient) PutFile(ctx context.Context, path, branch, content, message, sha string) (*Commit, error) {
	if f.failPaths[path] {
		return nil, fmt.Errorf("write rejected")
	}
	f.puts = append(f.puts, path)
	return &Commit{Path: path, SHA: "commit-" + path, Message: message}, nil
}

func (f *fakeClient) CreateBranch(ctx context.Context, name string) (bool, error) {
	if f.branchErr != nil {
		return false, f.branchErr
	}
	f.createdBranches = append(f.createdBranches, name)
	return f.branchExists, nil
}

func (f *fakeClient) OpenPullRequest(ctx context.Context, opts PullRequestOptions) (*PullRequest, error) {
	if f.prErr != nil {
		return nil, f.prErr
	}
	f.prOpened = true
	return &PullRequest{Number: 7, URL: "https://example.test/pr/7", State: "open"}, nil
}

func (f *fakeClient) CommentPullRequest(ctx context.Context, number int, body string) error {
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeClient) MergePullRequest(ctx context.Context, number int, strategy MergeStrategy) error {
	f.mergeCalls++
	return f.mergeErr
}

func (f *fakeClient) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	return &PullRequest{Number: number, State: "open"}, nil
}

func threeFileChangeSet() ChangeSet {
	return ChangeSet{
		TaskID:      "task-1",
		Type:        "fix",
		Description: "Fix nil pointer in parser",
		Changes: []FileChange{
			{Path: "parser/parse.go", Content: "package parser\n"},
			{Path: "parser/lex.go", Content: "package parser\n"},
			{Path: "parser/parse_test.go", Content: "package parser\n"},
		},
		Rationale: "The parser dereferences an unchecked token.",
	}
}

func TestExecutePartialFailure(t *testing.T) {
	client := newFakeClient()
	client.failPaths["parser/lex.go"] = true

	engine := NewEngine(client)
	result, err := engine.Execute(context.Background(), threeFileChangeSet())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if len(result.Commits) != 2 {
		t.Errorf("expected 2 commits, got %d", len(result.Commits))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 step error, got %d: %v", len(result.Errors), result.Errors)
	}
	if result.Errors[0].Step != "write_file" || result.Errors[0].Path != "parser/lex.go" {
		t.Errorf("unexpected step error: %+v", result.Errors[0])
	}
	if !client.prOpened {
		t.Error("expected PR to be opened despite the failed write")
	}
	if result.PullRequest == nil {
		t.Fatal("expected pull request in result")
	}
}

func TestExecuteAllWritesFail(t *testing.T) {
	client := newFakeClient()
	for _, c := range threeFileChangeSet().Changes {
		client.failPaths[c.Path] = true
	}

	engine := NewEngine(client)
	result, err := engine.Execute(context.Background(), threeFileChangeSet())
	if err == nil {
		t.Fatal("expected error when no writes land")
	}
	if client.prOpened {
		t.Error("PR must not open when no commit landed")
	}
	if len(result.Errors) != 3 {
		t.Errorf("expected 3 step errors, got %d", len(result.Errors))
	}
}

func TestExecuteBranchAlreadyExists(t *testing.T) {
	client := newFakeClient()
	client.branchExists = true

	engine := NewEngine(client)
	result, err := engine.Execute(context.Background(), threeFileChangeSet())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Errorf("existing branch should not be an error: %v", result.Errors)
	}
	if len(result.Commits) != 3 {
		t.Errorf("expected 3 commits, got %d", len(result.Commits))
	}
}

func TestExecuteBranchCreateFails(t *testing.T) {
	client := newFakeClient()
	client.branchErr = fmt.Errorf("forbidden")

	engine := NewEngine(client)
	result, err := engine.Execute(context.Background(), threeFileChangeSet())
	if err == nil {
		t.Fatal("expected error when branch creation fails")
	}
	if len(client.puts) != 0 {
		t.Errorf("no files should be written after branch failure, got %d", len(client.puts))
	}
	if result == nil {
		t.Fatal("result must be returned even on failure")
	}
}

func TestExecuteEmptyChangeSet(t *testing.T) {
	engine := NewEngine(newFakeClient())
	_, err := engine.Execute(context.Background(), ChangeSet{TaskID: "t"})
	if err == nil {
		t.Fatal("expected error for empty change set")
	}
}

func TestExecuteAutoMerge(t *testing.T) {
	client := newFakeClient()
	engine := NewEngine(client, WithMergeDelay(time.Millisecond))

	cs := threeFileChangeSet()
	cs.AutoMerge = true

	result, err := engine.Execute(context.Background(), cs)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if client.mergeCalls != 1 {
		t.Errorf("expected exactly 1 merge attempt, got %d", client.mergeCalls)
	}
	if !result.Merged {
		t.Error("expected result.Merged")
	}
}

func TestExecuteAutoMergeFailureIsRecordedNotRetried(t *testing.T) {
	client := newFakeClient()
	client.mergeErr = fmt.Errorf("required check pending")
	engine := NewEngine(client, WithMergeDelay(time.Millisecond))

	cs := threeFileChangeSet()
	cs.AutoMerge = true

	result, err := engine.Execute(context.Background(), cs)
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if client.mergeCalls != 1 {
		t.Errorf("expected a single merge attempt, got %d", client.mergeCalls)
	}
	if result.Merged {
		t.Error("result must not report merged after a failed merge")
	}

	found := false
	for _, e := range result.Errors {
		if e.Step == "merge" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a merge step error, got %v", result.Errors)
	}
}

func TestExecuteVerificationComment(t *testing.T) {
	client := newFakeClient()
	engine := NewEngine(client)

	cs := threeFileChangeSet()
	cs.VerificationSummary = "All checks passed."

	if _, err := engine.Execute(context.Background(), cs); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(client.comments) != 1 || client.comments[0] != "All checks passed." {
		t.Errorf("unexpected comments: %v", client.comments)
	}
}

func TestExecuteUpdatesExistingFileWithSHA(t *testing.T) {
	client := newFakeClient()
	client.files["parser/parse.go"] = "old"

	engine := NewEngine(client)
	if _, err := engine.Execute(context.Background(), threeFileChangeSet()); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if len(client.puts) != 3 {
		t.Errorf("expected 3 writes, got %d", len(client.puts))
	}
}

func TestBranchName(t *testing.T) {
	tests := []struct {
		changeType  string
		description string
		wantPrefix  string
		wantSlug    string
	}{
		{"fix", "Fix nil pointer in parser", "fix/", "fix-nil-pointer-in-parser"},
		{"generate", "Add retry support!!", "feat/", "add-retry-support"},
		{"refactor", "", "refactor/", "change"},
		{"test", strings.Repeat("very long description ", 10), "test/", ""},
	}

	for _, tt := range tests {
		t.Run(tt.changeType+"_"+tt.wantSlug, func(t *testing.T) {
			name := BranchName(tt.changeType, tt.description)
			if !strings.HasPrefix(name, tt.wantPrefix) {
				t.Errorf("BranchName(%q, %q) = %q, want prefix %q", tt.changeType, tt.description, name, tt.wantPrefix)
			}
			if tt.wantSlug != "" && !strings.Contains(name, tt.wantSlug) {
				t.Errorf("BranchName = %q, want slug %q", name, tt.wantSlug)
			}
			// prefix/slug-unix
			parts := strings.SplitN(name, "/", 2)
			if len(parts) != 2 {
				t.Fatalf("malformed branch name %q", name)
			}
			slugPart := parts[1][:strings.LastIndex(parts[1], "-")]
			if len(slugPart) > maxSlugLength+1 {
				t.Errorf("slug too long: %q", slugPart)
			}
		})
	}
}

func TestPRBodyMarksApprovalState(t *testing.T) {
	cs := threeFileChangeSet()
	result := &ExecutionResult{Commits: []Commit{{Path: "a.go"}}}

	body := prBody(cs, result)
	if !strings.Contains(body, "Pending human approval") {
		t.Error("manual change set body must carry the approval marker")
	}

	cs.AutoMerge = true
	body = prBody(cs, result)
	if strings.Contains(body, "Pending human approval") {
		t.Error("auto-merge body must not carry the approval marker")
	}
	if !strings.Contains(body, "merged automatically") {
		t.Error("auto-merge body must state the merge intent")
	}
}
