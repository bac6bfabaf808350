package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielolaszy/bz2gl/internal/backend"
	"github.com/danielolaszy/bz2gl/internal/logging"
	"github.com/danielolaszy/bz2gl/pkg/models"
)

// State is the lifecycle position of a Thread.
type State int

const (
	StateBuilt State = iota
	StateValidated
	StateSubmitted
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateBuilt:
		return "built"
	case StateValidated:
		return "validated"
	case StateSubmitted:
		return "submitted"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Thread is one bug reconciled into an issue and its comments.
type Thread struct {
	BugID       int
	Issue       models.NormalizedIssue
	Comments    []models.NormalizedComment
	Attachments []*Attachment

	// CloseOnSubmit is set when the bug's status closes the issue.
	CloseOnSubmit bool

	// IssueID and IssueRef identify the created issue once submitted.
	IssueID  string
	IssueRef string

	state State
}

// State returns the lifecycle state of t.
func (t *Thread) State() State {
	return t.state
}

func validateIssue(issue models.NormalizedIssue) error {
	switch {
	case issue.Title == "":
		return &ValidationError{Resource: "issue", Field: "title"}
	case issue.Description == "":
		return &ValidationError{Resource: "issue", Field: "description"}
	case issue.Status == "":
		return &ValidationError{Resource: "issue", Field: "status"}
	}
	return nil
}

func validateComment(c models.NormalizedComment) error {
	switch {
	case c.Body == "":
		return &ValidationError{Resource: "comment", Field: "body"}
	case c.IssueRef == "":
		return &ValidationError{Resource: "comment", Field: "issue_ref"}
	}
	return nil
}

// Save submits the issue, then its comments in order, then closes the issue
// when required. Each step only runs after the previous one succeeded.
func (e *Engine) Save(ctx context.Context, t *Thread) error {
	if t.state != StateBuilt {
		return fmt.Errorf("bug %d: thread is already %s", t.BugID, t.state)
	}

	if err := validateIssue(t.Issue); err != nil {
		return err
	}
	t.state = StateValidated

	issue := backend.IssuePayload{
		Title:       t.Issue.Title,
		Description: t.Issue.Description,
		Labels:      t.Issue.Labels,
		Assignee:    t.Issue.Assignee,
		CreatedAt:   t.Issue.CreatedAt,
	}
	res, err := e.submitAs(ctx, t.Issue.Author, issue)
	if err != nil {
		return fmt.Errorf("bug %d: failed to create issue: %w", t.BugID, err)
	}
	t.IssueID, t.IssueRef = res.ID, res.DisplayID

	logging.Debug("created issue",
		"bug_id", t.BugID,
		"issue_ref", t.IssueRef,
		"author", t.Issue.Author)

	for i := range t.Comments {
		c := &t.Comments[i]
		c.IssueRef = t.IssueRef
		if err := validateComment(*c); err != nil {
			return err
		}

		note := backend.NotePayload{IssueRef: c.IssueRef, Body: c.Body, CreatedAt: c.CreatedAt}
		if _, err := e.submitAs(ctx, c.Author, note); err != nil {
			return fmt.Errorf("bug %d: failed to create comment %d on issue %s: %w", t.BugID, i+1, t.IssueRef, err)
		}
	}
	t.state = StateSubmitted

	if !t.CloseOnSubmit {
		return nil
	}

	req := backend.NewRequest(backend.ClosePayload{IssueRef: t.IssueRef}, t.Issue.Author, e.cfg.DryRun)
	if _, err := e.client.Submit(ctx, req); err != nil {
		return fmt.Errorf("bug %d: failed to close issue %s: %w", t.BugID, t.IssueRef, err)
	}
	t.state = StateClosed

	return nil
}

// submitAs submits payload as identity, holding admin elevation for the
// duration of the request when identity needs it.
func (e *Engine) submitAs(ctx context.Context, identity string, payload backend.Payload) (backend.Result, error) {
	if err := e.elevator.acquire(ctx, identity); err != nil {
		return backend.Result{}, fmt.Errorf("failed to grant admin to %s: %w", identity, err)
	}

	res, err := e.client.Submit(ctx, backend.NewRequest(payload, identity, e.cfg.DryRun))

	if rerr := e.elevator.release(ctx, identity); rerr != nil {
		rerr = fmt.Errorf("failed to revoke admin from %s: %w", identity, rerr)
		if err == nil {
			err = rerr
		} else {
			err = errors.Join(err, rerr)
		}
	}

	return res, err
}
