package backend

import (
	"context"
	"fmt"

	"github.com/danielolaszy/bz2gl/internal/logging"
)

// Synthetic identifiers returned for dry-run submissions.
const (
	DryRunIssueID        = "5"
	DryRunIssueDisplayID = "50"
	DryRunNoteID         = "0"
)

// DryRunPlaceholder is the display token used for an attachment that was not
// transferred.
func DryRunPlaceholder(filename string) string {
	return fmt.Sprintf("[attachment](%s)", filename)
}

type dryRunGuard struct {
	next Client
}

// DryRunGuard returns a Client that answers dry-run requests with synthetic
// deterministic results and forwards all other requests to next.
func DryRunGuard(next Client) Client {
	return &dryRunGuard{next: next}
}

func (d *dryRunGuard) Submit(ctx context.Context, req Request) (Result, error) {
	if !req.DryRun {
		return d.next.Submit(ctx, req)
	}

	logging.Debug("dry run submission",
		"kind", req.Kind,
		"acting_identity", req.ActingIdentity,
		"payload", fmt.Sprintf("%+v", redact(req.Payload)))

	return Synthetic(req), nil
}

// Synthetic returns the dry-run Result for req.
func Synthetic(req Request) Result {
	switch p := req.Payload.(type) {
	case IssuePayload:
		return Result{ID: DryRunIssueID, DisplayID: DryRunIssueDisplayID}
	case NotePayload:
		return Result{ID: DryRunNoteID, DisplayID: DryRunNoteID}
	case UploadPayload:
		return Result{Markdown: DryRunPlaceholder(p.Filename)}
	default:
		return Result{}
	}
}

// redact drops file contents so dry-run logs stay readable.
func redact(p Payload) Payload {
	if up, ok := p.(UploadPayload); ok {
		up.Content = nil
		return up
	}
	return p
}
