// Package migrate reconciles Bugzilla records into destination issues and
// submits them through a backend.Client.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielolaszy/bz2gl/internal/backend"
	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/internal/logging"
	"github.com/danielolaszy/bz2gl/internal/markdown"
	"github.com/danielolaszy/bz2gl/pkg/models"
)

// AttachmentSource supplies attachment contents and source-side URLs.
type AttachmentSource interface {
	FetchAttachment(ctx context.Context, att models.RawAttachment) ([]byte, error)
	AttachmentURL(id int) string
	BugURL(id int) string
}

// Engine turns bug records into threads and submits them. It holds no
// per-record state and may be shared by concurrent migrations.
type Engine struct {
	cfg      *config.Config
	client   backend.Client
	source   AttachmentSource
	composer *Composer
	elevator *elevator
}

// NewEngine creates an Engine.
func NewEngine(cfg *config.Config, client backend.Client, source AttachmentSource) *Engine {
	return &Engine{
		cfg:      cfg,
		client:   client,
		source:   source,
		composer: NewComposer(cfg, source.BugURL),
		elevator: newElevator(client, cfg.IsAdmin, cfg.DryRun),
	}
}

// Assemble validates the identities of bug, transfers its attachments, and
// reconciles its comments into a Thread ready for Save.
func (e *Engine) Assemble(ctx context.Context, bug *models.BugRecord) (*Thread, error) {
	reporter, assignee, err := e.validateUsers(bug)
	if err != nil {
		return nil, err
	}

	reg, err := BuildRegistry(ctx, bug.Attachments, e.transfer(bug.ID))
	if err != nil {
		return nil, err
	}

	rec, err := Reconcile(bug.Comments, reg, bug.Reporter)
	if err != nil {
		return nil, err
	}

	thread := &Thread{
		BugID: bug.ID,
		Issue: models.NormalizedIssue{
			Title:       bug.Title,
			Description: e.composer.Compose(bug, reg.Active(), rec.ExtendedDescription),
			Labels:      e.labels(bug),
			Assignee:    assignee,
			Author:      reporter,
			Status:      bug.Status,
			CreatedAt:   bug.CreatedAt,
		},
		Attachments:   reg.Active(),
		CloseOnSubmit: e.cfg.IsCloseStatus(bug.Status),
	}

	for _, c := range rec.Comments {
		if !submitted(c) {
			continue
		}
		nc, err := e.normalizeComment(c, reg)
		if err != nil {
			return nil, err
		}
		thread.Comments = append(thread.Comments, nc)
	}

	logging.Debug("assembled thread",
		"bug_id", bug.ID,
		"attachments", len(thread.Attachments),
		"obsolete_attachments", len(reg.ObsoleteIDs()),
		"comments", len(thread.Comments),
		"close", thread.CloseOnSubmit)

	return thread, nil
}

// submitted reports whether a comment reaches the destination. Empty source
// comments carry nothing; stripped announcements keep their attachment tag.
func submitted(c models.RawComment) bool {
	return c.Body != "" || c.AttachmentID != 0
}

// validateUsers checks that every identity of bug whose content is submitted
// has a mapping and returns the reporter's and assignee's destination
// identities.
func (e *Engine) validateUsers(bug *models.BugRecord) (string, string, error) {
	reporter, ok := e.cfg.UserFor(bug.Reporter)
	if !ok {
		return "", "", &ConfigError{Identity: bug.Reporter}
	}

	var assignee string
	if bug.Assignee != "" {
		if assignee, ok = e.cfg.UserFor(bug.Assignee); !ok {
			return "", "", &ConfigError{Identity: bug.Assignee}
		}
	}

	for _, c := range bug.Comments {
		if !submitted(c) {
			continue
		}
		if _, ok := e.cfg.UserFor(c.Author); !ok {
			return "", "", &ConfigError{Identity: c.Author}
		}
	}

	return reporter, assignee, nil
}

// labels builds the label set: configured defaults, the component label,
// and the operating system unless it is the no-op value.
func (e *Engine) labels(bug *models.BugRecord) []string {
	var labels []string
	seen := make(map[string]bool)
	add := func(label string) {
		if label == "" || seen[label] {
			return
		}
		seen[label] = true
		labels = append(labels, label)
	}

	for _, l := range e.cfg.DefaultLabels {
		add(l)
	}
	if l, ok := e.cfg.ComponentLabel(bug.Component); ok {
		add(l)
	}
	if bug.OperatingSystem != e.cfg.OSNoopValue {
		add(bug.OperatingSystem)
	}

	return labels
}

func (e *Engine) normalizeComment(c models.RawComment, reg *Registry) (models.NormalizedComment, error) {
	identity, ok := e.cfg.UserFor(c.Author)
	if !ok {
		return models.NormalizedComment{}, &ConfigError{Identity: c.Author}
	}

	var b strings.Builder
	// The comment will appear to come from the shared account.
	if e.cfg.MiscUser != "" && identity == e.cfg.MiscUser {
		fmt.Fprintf(&b, "By %s\n\n", c.Author)
	}

	if c.AttachmentID != 0 {
		if a, ok := reg.Lookup(c.AttachmentID); ok {
			b.WriteString(a.String())
		} else {
			fmt.Fprintf(&b, "(obsolete attachment #%d)", c.AttachmentID)
		}
		b.WriteString("\n")
	}

	b.WriteString(markdown.Sanitize(c.Body))

	return models.NormalizedComment{
		Body:      b.String(),
		CreatedAt: c.CreatedAt,
		Author:    identity,
	}, nil
}

// transfer returns the Transfer used for the attachments of one bug. In dry
// runs nothing is fetched or uploaded.
func (e *Engine) transfer(bugID int) Transfer {
	return func(ctx context.Context, raw models.RawAttachment, filename string) (string, error) {
		if e.cfg.DryRun {
			return backend.DryRunPlaceholder(filename), nil
		}

		content, err := e.source.FetchAttachment(ctx, raw)
		if err != nil {
			return "", &TransferError{AttachmentID: raw.ID, Filename: filename, Err: err}
		}

		payload := backend.UploadPayload{
			Filename:  filename,
			Content:   content,
			SourceURL: e.source.AttachmentURL(raw.ID),
		}
		res, err := e.client.Submit(ctx, backend.NewRequest(payload, "", false))
		if err != nil {
			return "", &TransferError{AttachmentID: raw.ID, Filename: filename, Err: err}
		}
		if res.Markdown == "" {
			return "", &TransferError{AttachmentID: raw.ID, Filename: filename, Err: errors.New("destination returned no markdown")}
		}

		logging.Debug("transferred attachment",
			"bug_id", bugID,
			"attachment_id", raw.ID,
			"filename", filename,
			"bytes", len(content))

		return res.Markdown, nil
	}
}
