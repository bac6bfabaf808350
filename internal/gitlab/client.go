// Package gitlab submits migrated bugs to a GitLab project.
package gitlab

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/danielolaszy/bz2gl/internal/backend"
	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/internal/logging"
)

// Client is a backend.Client for one GitLab project. Issues and notes are
// created with sudo as their author, so the token must belong to an admin.
type Client struct {
	client    *gitlab.Client
	projectID string

	mu      sync.Mutex
	userIDs map[string]int64
}

// NewClient creates a GitLab client from configuration. Retries are left to
// backend.Retry.
func NewClient(cfg config.GitLabConfig) (*Client, error) {
	apiURL := strings.TrimSuffix(cfg.BaseURL, "/") + "/api/v4"

	gl, err := gitlab.NewClient(cfg.Token,
		gitlab.WithBaseURL(apiURL),
		gitlab.WithCustomRetryMax(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}

	logging.Info("gitlab configuration",
		"api_url", apiURL,
		"project_id", cfg.ProjectID,
		"token", logging.MaskSensitive(cfg.Token))

	return &Client{
		client:    gl,
		projectID: cfg.ProjectID,
		userIDs:   make(map[string]int64),
	}, nil
}

// Submit performs one request against the project.
func (c *Client) Submit(ctx context.Context, req backend.Request) (backend.Result, error) {
	switch p := req.Payload.(type) {
	case backend.IssuePayload:
		return c.createIssue(ctx, p, req.ActingIdentity)
	case backend.NotePayload:
		return c.createNote(ctx, p, req.ActingIdentity)
	case backend.UploadPayload:
		return c.upload(ctx, p)
	case backend.ClosePayload:
		return backend.Result{}, c.closeIssue(ctx, p, req.ActingIdentity)
	case backend.AdminPayload:
		return backend.Result{}, c.setAdmin(ctx, p)
	default:
		return backend.Result{}, fmt.Errorf("gitlab: %w: %s", backend.ErrUnsupportedKind, req.Kind)
	}
}

// requestOptions scopes a call to ctx and, when identity is set, to that user.
func requestOptions(ctx context.Context, identity string) []gitlab.RequestOptionFunc {
	opts := []gitlab.RequestOptionFunc{gitlab.WithContext(ctx)}
	if identity != "" {
		opts = append(opts, gitlab.WithSudo(identity))
	}
	return opts
}

// issueOptions serializes an IssuePayload.
func (c *Client) issueOptions(ctx context.Context, p backend.IssuePayload) (*gitlab.CreateIssueOptions, error) {
	opts := &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(p.Title),
		Description: gitlab.Ptr(p.Description),
	}
	if len(p.Labels) > 0 {
		labels := gitlab.LabelOptions(p.Labels)
		opts.Labels = &labels
	}
	if !p.CreatedAt.IsZero() {
		opts.CreatedAt = gitlab.Ptr(p.CreatedAt)
	}
	if p.Assignee != "" {
		id, err := c.userID(ctx, p.Assignee)
		if err != nil {
			return nil, err
		}
		opts.AssigneeIDs = &[]int64{id}
	}
	return opts, nil
}

func (c *Client) createIssue(ctx context.Context, p backend.IssuePayload, identity string) (backend.Result, error) {
	opts, err := c.issueOptions(ctx, p)
	if err != nil {
		return backend.Result{}, err
	}

	issue, resp, err := c.client.Issues.CreateIssue(c.projectID, opts, requestOptions(ctx, identity)...)
	if err != nil {
		return backend.Result{}, fmt.Errorf("failed to create gitlab issue: %w", classify(resp, err))
	}

	logging.Debug("created gitlab issue", "issue_id", issue.ID, "issue_ref", issue.IID, "author", identity)

	return backend.Result{
		ID:        strconv.FormatInt(issue.ID, 10),
		DisplayID: strconv.FormatInt(issue.IID, 10),
	}, nil
}

func (c *Client) createNote(ctx context.Context, p backend.NotePayload, identity string) (backend.Result, error) {
	iid, err := issueIID(p.IssueRef)
	if err != nil {
		return backend.Result{}, err
	}

	opts := &gitlab.CreateIssueNoteOptions{Body: gitlab.Ptr(p.Body)}
	if !p.CreatedAt.IsZero() {
		opts.CreatedAt = gitlab.Ptr(p.CreatedAt)
	}

	note, resp, err := c.client.Notes.CreateIssueNote(c.projectID, iid, opts, requestOptions(ctx, identity)...)
	if err != nil {
		return backend.Result{}, fmt.Errorf("failed to create note on issue %s: %w", p.IssueRef, classify(resp, err))
	}

	id := strconv.FormatInt(note.ID, 10)
	return backend.Result{ID: id, DisplayID: id}, nil
}

func (c *Client) upload(ctx context.Context, p backend.UploadPayload) (backend.Result, error) {
	file, resp, err := c.client.ProjectMarkdownUploads.UploadProjectMarkdown(c.projectID, bytes.NewReader(p.Content), p.Filename, gitlab.WithContext(ctx))
	if err != nil {
		return backend.Result{}, fmt.Errorf("failed to upload %s: %w", p.Filename, classify(resp, err))
	}
	return backend.Result{Markdown: file.Markdown}, nil
}

func (c *Client) closeIssue(ctx context.Context, p backend.ClosePayload, identity string) error {
	iid, err := issueIID(p.IssueRef)
	if err != nil {
		return err
	}

	opts := &gitlab.UpdateIssueOptions{StateEvent: gitlab.Ptr("close")}
	_, resp, err := c.client.Issues.UpdateIssue(c.projectID, iid, opts, requestOptions(ctx, identity)...)
	if err != nil {
		return fmt.Errorf("failed to close issue %s: %w", p.IssueRef, classify(resp, err))
	}
	return nil
}

func (c *Client) setAdmin(ctx context.Context, p backend.AdminPayload) error {
	id, err := c.userID(ctx, p.Identity)
	if err != nil {
		return err
	}

	opts := &gitlab.ModifyUserOptions{Admin: gitlab.Ptr(p.Admin)}
	_, resp, err := c.client.Users.ModifyUser(id, opts, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to set admin=%t for %s: %w", p.Admin, p.Identity, classify(resp, err))
	}

	logging.Debug("changed gitlab admin status", "identity", p.Identity, "admin", p.Admin)
	return nil
}

// userID resolves a username to its id, caching the answer.
func (c *Client) userID(ctx context.Context, username string) (int64, error) {
	c.mu.Lock()
	id, ok := c.userIDs[username]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	users, resp, err := c.client.Users.ListUsers(&gitlab.ListUsersOptions{Username: gitlab.Ptr(username)}, gitlab.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to look up gitlab user %s: %w", username, classify(resp, err))
	}
	if len(users) == 0 {
		return 0, fmt.Errorf("gitlab user %s does not exist", username)
	}

	c.mu.Lock()
	c.userIDs[username] = users[0].ID
	c.mu.Unlock()

	return users[0].ID, nil
}

func issueIID(ref string) (int64, error) {
	iid, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid gitlab issue reference %q: %w", ref, err)
	}
	return iid, nil
}

func classify(resp *gitlab.Response, err error) error {
	var httpResp *http.Response
	if resp != nil {
		httpResp = resp.Response
	}
	return backend.ClassifyResponse(httpResp, err)
}
