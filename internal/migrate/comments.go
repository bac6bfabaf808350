package migrate

import (
	"regexp"
	"strconv"

	"github.com/danielolaszy/bz2gl/internal/markdown"
	"github.com/danielolaszy/bz2gl/pkg/models"
)

// announcementPattern matches the first line of a comment Bugzilla writes
// when an attachment is added.
var announcementPattern = regexp.MustCompile(
	`^(?:Created an attachment \(id=(\d+)\)|Created attachment (\d+)\b|An attachment was created \(id=(\d+)\))`)

// announcementPrefix matches the announcement line and the attachment
// description line that follows it.
var announcementPrefix = regexp.MustCompile(
	`^(?:Created an attachment \(id=\d+\)|Created attachment \d+\b|An attachment was created \(id=\d+\))(?:.*\n*){1,2}`)

// ParseAnnouncement returns the attachment id announced by a comment body.
func ParseAnnouncement(body string) (int, bool) {
	m := announcementPattern.FindStringSubmatch(body)
	if m == nil {
		return 0, false
	}
	for _, group := range m[1:] {
		if group == "" {
			continue
		}
		id, err := strconv.Atoi(group)
		if err != nil {
			return 0, false
		}
		return id, true
	}
	return 0, false
}

// StripAnnouncement removes the one or two lines of announcement boilerplate
// from a comment body, keeping anything the author added below it.
func StripAnnouncement(body string) string {
	loc := announcementPrefix.FindStringIndex(body)
	if loc == nil {
		return body
	}
	return body[loc[1]:]
}

// Reconciliation is the outcome of Reconcile.
type Reconciliation struct {
	// ExtendedDescription is the sanitized body of the folded first comment.
	ExtendedDescription string

	// Comments are the remaining genuine comments in source order.
	Comments []models.RawComment
}

// commentEdit records what happens to one comment of the stream.
type commentEdit struct {
	drop         bool
	body         string
	attachmentID int
}

// Reconcile folds the reporter's first comment into the description and
// resolves attachment announcements against reg. Announcements by the
// reporter are dropped; announcements by anyone else lose their boilerplate
// and are tagged with the attachment id. The input slice is not modified.
func Reconcile(comments []models.RawComment, reg *Registry, reporter string) (Reconciliation, error) {
	var rec Reconciliation

	rest := comments
	if len(rest) > 0 && rest[0].Author == reporter && rest[0].Body != "" {
		rec.ExtendedDescription = markdown.Paragraphs(markdown.Sanitize(rest[0].Body))
		rest = rest[1:]
	}

	edits, err := planEdits(rest, reg, reporter)
	if err != nil {
		return Reconciliation{}, err
	}
	rec.Comments = applyEdits(rest, edits)

	return rec, nil
}

// planEdits is the first pass: it decides the fate of every comment without
// touching the stream.
func planEdits(comments []models.RawComment, reg *Registry, reporter string) ([]commentEdit, error) {
	edits := make([]commentEdit, len(comments))

	for i, c := range comments {
		edits[i] = commentEdit{body: c.Body, attachmentID: c.AttachmentID}

		id, ok := ParseAnnouncement(c.Body)
		if !ok {
			if c.AttachmentID != 0 && !reg.Known(c.AttachmentID) {
				return nil, &DataConsistencyError{AttachmentID: c.AttachmentID, CommentText: c.Body}
			}
			continue
		}

		if !reg.Known(id) {
			return nil, &DataConsistencyError{AttachmentID: id, CommentText: c.Body}
		}

		if c.Author == reporter {
			edits[i].drop = true
			continue
		}

		// The stripped body may be empty; the attachment tag still carries
		// the comment.
		edits[i].body = StripAnnouncement(c.Body)
		edits[i].attachmentID = id
	}

	return edits, nil
}

// applyEdits is the second pass: it builds the filtered stream.
func applyEdits(comments []models.RawComment, edits []commentEdit) []models.RawComment {
	out := make([]models.RawComment, 0, len(comments))
	for i, c := range comments {
		if edits[i].drop {
			continue
		}
		c.Body = edits[i].body
		c.AttachmentID = edits[i].attachmentID
		out = append(out, c)
	}
	return out
}
