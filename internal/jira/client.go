// Package jira submits migrated bugs to a JIRA project.
package jira

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	jira "github.com/andygrunwald/go-jira"

	"github.com/danielolaszy/bz2gl/internal/backend"
	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/internal/logging"
)

// Client is a backend.Client for one JIRA project.
//
// Like GitHub, JIRA offers no impersonation through the REST API: admin
// requests are ignored and attachments are linked at their source.
type Client struct {
	client          *jira.Client
	project         string
	issueType       string
	closeTransition string
}

// NewClient creates a JIRA client authenticating with basic auth.
func NewClient(cfg config.JiraConfig) (*Client, error) {
	if cfg.URL == "" || cfg.Username == "" || cfg.Token == "" {
		return nil, fmt.Errorf("JIRA_URL, JIRA_USERNAME, and JIRA_TOKEN must be set")
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}

	client, err := jira.NewClient(tp.Client(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error creating JIRA client: %w", err)
	}

	logging.Info("jira configuration",
		"url", cfg.URL,
		"project", cfg.Project,
		"username", cfg.Username,
		"token", logging.MaskSensitive(cfg.Token))

	return &Client{
		client:          client,
		project:         cfg.Project,
		issueType:       cfg.IssueType,
		closeTransition: cfg.CloseTransition,
	}, nil
}

// Submit performs one request against the project.
func (c *Client) Submit(ctx context.Context, req backend.Request) (backend.Result, error) {
	if c.client == nil {
		return backend.Result{}, fmt.Errorf("JIRA client not initialized")
	}

	switch p := req.Payload.(type) {
	case backend.IssuePayload:
		return c.createTicket(ctx, p)
	case backend.NotePayload:
		return c.addComment(ctx, p)
	case backend.UploadPayload:
		return linkAttachment(p)
	case backend.ClosePayload:
		return backend.Result{}, c.transition(ctx, p.IssueRef, c.closeTransition)
	case backend.AdminPayload:
		return backend.Result{}, nil
	default:
		return backend.Result{}, fmt.Errorf("jira: %w: %s", backend.ErrUnsupportedKind, req.Kind)
	}
}

// issueFields serializes an IssuePayload. JIRA sets the creation date
// itself.
func (c *Client) issueFields(p backend.IssuePayload) *jira.IssueFields {
	fields := &jira.IssueFields{
		Project:     jira.Project{Key: c.project},
		Summary:     p.Title,
		Description: WikiText(p.Description),
		Type:        jira.IssueType{Name: c.issueType},
		Labels:      jiraLabels(p.Labels),
	}
	if p.Assignee != "" {
		fields.Assignee = &jira.User{Name: p.Assignee}
	}
	return fields
}

func (c *Client) createTicket(ctx context.Context, p backend.IssuePayload) (backend.Result, error) {
	issue, resp, err := c.client.Issue.CreateWithContext(ctx, &jira.Issue{Fields: c.issueFields(p)})
	if err != nil {
		return backend.Result{}, fmt.Errorf("failed to create JIRA ticket: %w", classify(resp, err))
	}

	logging.Debug("created jira ticket", "issue_ref", issue.Key, "project", c.project)
	return backend.Result{ID: issue.ID, DisplayID: issue.Key}, nil
}

func (c *Client) addComment(ctx context.Context, p backend.NotePayload) (backend.Result, error) {
	comment, resp, err := c.client.Issue.AddCommentWithContext(ctx, p.IssueRef, &jira.Comment{Body: WikiText(p.Body)})
	if err != nil {
		return backend.Result{}, fmt.Errorf("failed to comment on %s: %w", p.IssueRef, classify(resp, err))
	}
	return backend.Result{ID: comment.ID, DisplayID: comment.ID}, nil
}

// transition moves a ticket through the workflow transition with the given
// name.
func (c *Client) transition(ctx context.Context, key, name string) error {
	transitions, resp, err := c.client.Issue.GetTransitionsWithContext(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to list transitions of %s: %w", key, classify(resp, err))
	}

	for _, t := range transitions {
		if !strings.EqualFold(t.Name, name) {
			continue
		}
		resp, err := c.client.Issue.DoTransitionWithContext(ctx, key, t.ID)
		if err != nil {
			return fmt.Errorf("failed to transition %s to %s: %w", key, name, classify(resp, err))
		}
		return nil
	}

	return fmt.Errorf("transition %q is not available for %s", name, key)
}

// linkAttachment renders a link to the attachment in the source system.
func linkAttachment(p backend.UploadPayload) (backend.Result, error) {
	if p.SourceURL == "" {
		return backend.Result{}, fmt.Errorf("jira attachments are linked and %s has no source url", p.Filename)
	}
	return backend.Result{Markdown: fmt.Sprintf("[%s|%s]", p.Filename, p.SourceURL)}, nil
}

var wikiReplacer = strings.NewReplacer("<pre>", "{noformat}", "</pre>", "{noformat}")

// WikiText converts preformatted blocks to JIRA's noformat markup.
func WikiText(s string) string {
	return wikiReplacer.Replace(s)
}

// jiraLabels replaces spaces, which JIRA labels cannot contain.
func jiraLabels(labels []string) []string {
	if len(labels) == 0 {
		return nil
	}
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = strings.ReplaceAll(l, " ", "_")
	}
	return out
}

func classify(resp *jira.Response, err error) error {
	var httpResp *http.Response
	if resp != nil {
		httpResp = resp.Response
	}
	return backend.ClassifyResponse(httpResp, err)
}
