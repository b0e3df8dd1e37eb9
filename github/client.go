package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
)

const defaultBaseURL = "https://api.github.com"

var prURLPattern = regexp.MustCompile(`github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// ParsePullRequestURL extracts owner, repository and PR number from a pull
// request URL such as https://github.com/owner/repo/pull/123.
func ParsePullRequestURL(rawURL string) (owner, repo string, number int, err error) {
	m := prURLPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid pull request URL: %s", rawURL)
	}
	number, err = strconv.Atoi(m[3])
	if err != nil {
		return "", "", 0, fmt.Errorf("invalid pull request number in URL %s: %w", rawURL, err)
	}
	return m[1], m[2], number, nil
}

// Client provides methods to interact with the GitHub API. It is bound to a
// single credential at construction: either a GitHub App installation or a
// personal access token.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewAppClient creates a client authenticated as a GitHub App installation.
// The privateKey is the PEM-encoded private key of the app.
func NewAppClient(appID, installationID int64, privateKey []byte) (*Client, error) {
	transport, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create installation transport: %w", err)
	}
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
	}, nil
}

// NewTokenClient creates a client authenticated with a personal access token.
func NewTokenClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &tokenTransport{token: token, base: http.DefaultTransport},
			Timeout:   30 * time.Second,
		},
		baseURL: defaultBaseURL,
	}
}

type tokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(clone)
}

// SetBaseURL overrides the API endpoint, for tests and GitHub Enterprise.
func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

func (c *Client) do(ctx context.Context, method, url, accept string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// GetPullRequest fetches a pull request by number.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, prNumber int) (*PullRequest, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, prNumber)
	resp, err := c.do(ctx, "GET", url, "application/vnd.github+json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to fetch pull request: status %d, body: %s", resp.StatusCode, string(body))
	}

	var pr PullRequest
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("failed to decode pull request: %w", err)
	}
	return &pr, nil
}

// FetchDiff fetches the unified diff for a pull request.
func (c *Client) FetchDiff(ctx context.Context, owner, repo string, prNumber int) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, owner, repo, prNumber)
	resp, err := c.do(ctx, "GET", url, "application/vnd.github.diff", nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch diff: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to fetch diff: status %d, body: %s", resp.StatusCode, string(body))
	}

	diff, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read diff: %w", err)
	}
	return string(diff), nil
}

// FetchPullRequestFiles fetches the list of files changed in a pull request.
func (c *Client) FetchPullRequestFiles(ctx context.Context, owner, repo string, prNumber int) ([]PullRequestFile, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files", c.baseURL, owner, repo, prNumber)
	resp, err := c.do(ctx, "GET", url, "application/vnd.github+json", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch files: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to fetch files: status %d, body: %s", resp.StatusCode, string(body))
	}

	var files []PullRequestFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, fmt.Errorf("failed to decode files: %w", err)
	}
	return files, nil
}

// CreateIssueComment posts a comment on a PR (via the issues API).
func (c *Client) CreateIssueComment(ctx context.Context, owner, repo string, prNumber int, body string) (*IssueComment, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, owner, repo, prNumber)

	reqBody, err := json.Marshal(map[string]string{"body": body})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal comment: %w", err)
	}

	resp, err := c.do(ctx, "POST", url, "application/vnd.github+json", reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("failed to create comment: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var comment IssueComment
	if err := json.NewDecoder(resp.Body).Decode(&comment); err != nil {
		return nil, fmt.Errorf("failed to decode comment response: %w", err)
	}
	return &comment, nil
}
