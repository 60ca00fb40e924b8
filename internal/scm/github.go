package scm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GitHubAPIBase is the default REST endpoint.
const GitHubAPIBase = "https://api.github.com"

// GitHubClient implements Client against the GitHub REST API.
type GitHubClient struct {
	baseURL    string
	owner      string
	repo       string
	token      string
	httpClient *http.Client

	defaultBranch string // cached after first lookup
}

// NewGitHubClient creates a client for one repository. baseURL is for
// GitHub Enterprise installs; empty uses api.github.com.
func NewGitHubClient(owner, repo, token, baseURL string) *GitHubClient {
	if baseURL == "" {
		baseURL = GitHubAPIBase
	}
	return &GitHubClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		owner:      owner,
		repo:       repo,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do performs one API call, decoding a JSON response into out when non-nil.
func (c *GitHubClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(data, &apiErr)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return resp.StatusCode, fmt.Errorf("github api %s %s: %d: %s", method, path, resp.StatusCode, apiErr.Message)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return resp.StatusCode, nil
}

func (c *GitHubClient) repoPath(suffix string) string {
	return fmt.Sprintf("/repos/%s/%s%s", c.owner, c.repo, suffix)
}

// DefaultBranch implements Client.
func (c *GitHubClient) DefaultBranch(ctx context.Context) (string, error) {
	if c.defaultBranch != "" {
		return c.defaultBranch, nil
	}

	var repo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if _, err := c.do(ctx, http.MethodGet, c.repoPath(""), nil, &repo); err != nil {
		return "", err
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}

	c.defaultBranch = repo.DefaultBranch
	return repo.DefaultBranch, nil
}

// GetFile implements Client. Content crosses this boundary decoded; the
// API's base64 wrapping stays in here.
func (c *GitHubClient) GetFile(ctx context.Context, path, ref string) (*RepoFile, error) {
	apiPath := c.repoPath("/contents/" + path)
	if ref != "" {
		apiPath += "?ref=" + ref
	}

	var file struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
		SHA      string `json:"sha"`
	}
	status, err := c.do(ctx, http.MethodGet, apiPath, nil, &file)
	if status == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	content := file.Content
	if file.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("failed to decode file content: %w", err)
		}
		content = string(decoded)
	}

	return &RepoFile{Path: path, Content: content, SHA: file.SHA}, nil
}

// PutFile implements Client.
func (c *GitHubClient) PutFile(ctx context.Context, path, branch, content, message, sha string) (*Commit, error) {
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  branch,
	}
	if sha != "" {
		body["sha"] = sha
	}

	var resp struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if _, err := c.do(ctx, http.MethodPut, c.repoPath("/contents/"+path), body, &resp); err != nil {
		return nil, err
	}

	return &Commit{Path: path, SHA: resp.Commit.SHA, Message: message}, nil
}

// CreateBranch implements Client. Branch creation is idempotent: a 422
// "Reference already exists" reports exists=true, not an error.
func (c *GitHubClient) CreateBranch(ctx context.Context, name string) (bool, error) {
	base, err := c.DefaultBranch(ctx)
	if err != nil {
		return false, err
	}

	var ref struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	if _, err := c.do(ctx, http.MethodGet, c.repoPath("/git/ref/heads/"+base), nil, &ref); err != nil {
		return false, fmt.Errorf("failed to resolve base branch %s: %w", base, err)
	}

	body := map[string]string{
		"ref": "refs/heads/" + name,
		"sha": ref.Object.SHA,
	}
	status, err := c.do(ctx, http.MethodPost, c.repoPath("/git/refs"), body, nil)
	if err != nil {
		if status == http.StatusUnprocessableEntity && strings.Contains(err.Error(), "already exists") {
			return true, nil
		}
		return false, err
	}

	return false, nil
}

// OpenPullRequest implements Client.
func (c *GitHubClient) OpenPullRequest(ctx context.Context, opts PullRequestOptions) (*PullRequest, error) {
	body := map[string]any{
		"title": opts.Title,
		"body":  opts.Body,
		"head":  opts.Head,
		"base":  opts.Base,
		"draft": opts.Draft,
	}

	var pr struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
		State   string `json:"state"`
	}
	if _, err := c.do(ctx, http.MethodPost, c.repoPath("/pulls"), body, &pr); err != nil {
		return nil, err
	}

	return &PullRequest{Number: pr.Number, URL: pr.HTMLURL, State: pr.State}, nil
}

// CommentPullRequest implements Client. PR comments ride the issues API.
func (c *GitHubClient) CommentPullRequest(ctx context.Context, number int, body string) error {
	payload := map[string]string{"body": body}
	_, err := c.do(ctx, http.MethodPost, c.repoPath(fmt.Sprintf("/issues/%d/comments", number)), payload, nil)
	return err
}

// MergePullRequest implements Client.
func (c *GitHubClient) MergePullRequest(ctx context.Context, number int, strategy MergeStrategy) error {
	if strategy == "" {
		strategy = MergeStrategySquash
	}
	body := map[string]string{"merge_method": string(strategy)}

	var resp struct {
		Merged  bool   `json:"merged"`
		Message string `json:"message"`
	}
	if _, err := c.do(ctx, http.MethodPut, c.repoPath(fmt.Sprintf("/pulls/%d/merge", number)), body, &resp); err != nil {
		return err
	}
	if !resp.Merged {
		return fmt.Errorf("merge was not performed: %s", resp.Message)
	}
	return nil
}

// GetPullRequest implements Client.
func (c *GitHubClient) GetPullRequest(ctx context.Context, number int) (*PullRequest, error) {
	var pr struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
		State   string `json:"state"`
		Merged  bool   `json:"merged"`
	}
	if _, err := c.do(ctx, http.MethodGet, c.repoPath(fmt.Sprintf("/pulls/%d", number)), nil, &pr); err != nil {
		return nil, err
	}

	return &PullRequest{Number: pr.Number, URL: pr.HTMLURL, State: pr.State, Merged: pr.Merged}, nil
}
