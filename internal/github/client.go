// Package github submits migrated bugs to a GitHub repository.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/danielolaszy/bz2gl/internal/backend"
	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/internal/logging"
)

// Client is a backend.Client for one GitHub repository.
//
// GitHub has no impersonation: every issue and comment is created by the
// token owner, admin requests are accepted and ignored, and attachments are
// linked at their source instead of being uploaded.
type Client struct {
	client *github.Client
	owner  string
	repo   string
}

// APIURL returns the REST endpoint for a GitHub domain. An empty domain
// means github.com.
func APIURL(domain string) string {
	if domain == "" || domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// NewClient creates a GitHub client from configuration, authenticates with
// the API, and tests the connection.
func NewClient(ctx context.Context, cfg config.GitHubConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	apiURL := APIURL(cfg.Domain)
	logging.Info("github configuration",
		"domain", cfg.Domain,
		"api_url", apiURL,
		"repository", cfg.Repository,
		"token", logging.MaskSensitive(cfg.Token))

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	c, err := newClient(oauth2.NewClient(ctx, ts), apiURL, cfg.Repository)
	if err != nil {
		return nil, err
	}

	// Test the token
	testCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	user, resp, err := c.client.Users.Get(testCtx, "")
	if err != nil {
		return nil, fmt.Errorf("error testing github token: %w", classify(resp, err))
	}

	logging.Info("github authentication successful", "username", user.GetLogin())
	return c, nil
}

func newClient(httpClient *http.Client, apiURL, repository string) (*Client, error) {
	owner, repo, err := splitRepository(repository)
	if err != nil {
		return nil, err
	}

	parsedURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid github api url: %w", err)
	}

	client := github.NewClient(httpClient)
	client.BaseURL = parsedURL
	// For GitHub Enterprise, uploads go to the same endpoint
	client.UploadURL = parsedURL

	return &Client{client: client, owner: owner, repo: repo}, nil
}

func splitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

// Submit performs one request against the repository.
func (c *Client) Submit(ctx context.Context, req backend.Request) (backend.Result, error) {
	switch p := req.Payload.(type) {
	case backend.IssuePayload:
		return c.createIssue(ctx, p)
	case backend.NotePayload:
		return c.createComment(ctx, p)
	case backend.UploadPayload:
		return linkAttachment(p)
	case backend.ClosePayload:
		return backend.Result{}, c.closeIssue(ctx, p)
	case backend.AdminPayload:
		return backend.Result{}, nil
	default:
		return backend.Result{}, fmt.Errorf("github: %w: %s", backend.ErrUnsupportedKind, req.Kind)
	}
}

// issueRequest serializes an IssuePayload. GitHub cannot backdate issues,
// so the creation time is ignored.
func issueRequest(p backend.IssuePayload) *github.IssueRequest {
	req := &github.IssueRequest{
		Title: github.String(p.Title),
		Body:  github.String(p.Description),
	}
	if len(p.Labels) > 0 {
		labels := append([]string(nil), p.Labels...)
		req.Labels = &labels
	}
	if p.Assignee != "" {
		req.Assignee = github.String(p.Assignee)
	}
	return req
}

func (c *Client) createIssue(ctx context.Context, p backend.IssuePayload) (backend.Result, error) {
	issue, resp, err := c.client.Issues.Create(ctx, c.owner, c.repo, issueRequest(p))
	if err != nil {
		return backend.Result{}, fmt.Errorf("failed to create github issue: %w", classify(resp, err))
	}

	logging.Debug("created github issue", "issue_ref", issue.GetNumber(), "repository", c.owner+"/"+c.repo)

	return backend.Result{
		ID:        strconv.FormatInt(issue.GetID(), 10),
		DisplayID: strconv.Itoa(issue.GetNumber()),
	}, nil
}

func (c *Client) createComment(ctx context.Context, p backend.NotePayload) (backend.Result, error) {
	number, err := issueNumber(p.IssueRef)
	if err != nil {
		return backend.Result{}, err
	}

	comment, resp, err := c.client.Issues.CreateComment(ctx, c.owner, c.repo, number, &github.IssueComment{Body: github.String(p.Body)})
	if err != nil {
		return backend.Result{}, fmt.Errorf("failed to comment on issue %s#%d: %w", c.repo, number, classify(resp, err))
	}

	id := strconv.FormatInt(comment.GetID(), 10)
	return backend.Result{ID: id, DisplayID: id}, nil
}

func (c *Client) closeIssue(ctx context.Context, p backend.ClosePayload) error {
	number, err := issueNumber(p.IssueRef)
	if err != nil {
		return err
	}

	_, resp, err := c.client.Issues.Edit(ctx, c.owner, c.repo, number, &github.IssueRequest{State: github.String("closed")})
	if err != nil {
		return fmt.Errorf("failed to close issue %s#%d: %w", c.repo, number, classify(resp, err))
	}
	return nil
}

// linkAttachment renders a link to the attachment in the source system.
func linkAttachment(p backend.UploadPayload) (backend.Result, error) {
	if p.SourceURL == "" {
		return backend.Result{}, fmt.Errorf("github cannot store %s and it has no source url", p.Filename)
	}
	return backend.Result{Markdown: fmt.Sprintf("[%s](%s)", p.Filename, p.SourceURL)}, nil
}

func issueNumber(ref string) (int, error) {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return 0, fmt.Errorf("invalid github issue reference %q: %w", ref, err)
	}
	return n, nil
}

func classify(resp *github.Response, err error) error {
	var httpResp *http.Response
	if resp != nil {
		httpResp = resp.Response
	}
	return backend.ClassifyResponse(httpResp, err)
}
