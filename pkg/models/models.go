// Package models defines data structures shared across the application.
package models

import (
	"time"
)

// BugRecord represents one Bugzilla bug together with its comments and
// attachments. It is treated as immutable once read from the source.
type BugRecord struct {
	// ID is the Bugzilla bug number
	ID int

	// Title is the bug's short description
	Title string

	// Status is the Bugzilla status (e.g., "NEW", "RESOLVED")
	Status string

	// Resolution is the resolution name (e.g., "FIXED"); empty while open
	Resolution string

	// CreatedAt is the timestamp when the bug was filed
	CreatedAt time.Time

	// UpdatedAt is the last-change timestamp, used as the resolution date
	UpdatedAt time.Time

	// Reporter is the Bugzilla login of the submitter
	Reporter string

	// Assignee is the Bugzilla login of the assignee
	Assignee string

	Component string
	Version   string

	// OperatingSystem is Bugzilla's op_sys field
	OperatingSystem string

	// Platform is Bugzilla's rep_platform field
	Platform string

	// Comments is the chronologically ordered comment stream
	Comments []RawComment

	// Attachments is the attachment metadata in source order
	Attachments []RawAttachment
}

// RawComment is a single entry of a bug's comment stream.
type RawComment struct {
	Author    string
	Body      string
	CreatedAt time.Time

	// AttachmentID is set by reconciliation when the comment announced an
	// attachment; zero means no tag.
	AttachmentID int
}

// RawAttachment is attachment metadata as found in the source record.
type RawAttachment struct {
	ID       int
	Filename string
	Obsolete bool

	// Data holds the attachment content when the source embedded it
	Data []byte
}

// NormalizedIssue is an issue ready to be submitted to the destination.
type NormalizedIssue struct {
	Title       string
	Description string

	// Labels is a unique label set; order carries no meaning
	Labels []string

	// Assignee is the destination identity of the assignee
	Assignee string

	// Author is the destination identity the issue is submitted as
	Author string

	Status    string
	CreatedAt time.Time
}

// NormalizedComment is a comment ready to be submitted to the destination.
type NormalizedComment struct {
	Body      string
	CreatedAt time.Time

	// IssueRef is the destination display id of the parent issue; bound
	// only after the issue has been submitted
	IssueRef string

	// Author is the destination identity the comment is submitted as
	Author string
}
