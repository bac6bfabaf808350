package migrate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/bz2gl/pkg/models"
)

func TestParseAnnouncement(t *testing.T) {
	testCases := []struct {
		body   string
		id     int
		wantOK bool
	}{
		{"Created an attachment (id=7)\nbacktrace", 7, true},
		{"Created attachment 12\npatch", 12, true},
		{"An attachment was created (id=7)", 7, true},
		{"I created an attachment (id=7)", 0, false},
		{"Created attachments 7", 0, false},
		{"plain comment", 0, false},
		{"", 0, false},
	}

	for _, tc := range testCases {
		t.Run(tc.body, func(t *testing.T) {
			id, ok := ParseAnnouncement(tc.body)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.id, id)
		})
	}
}

func TestStripAnnouncement(t *testing.T) {
	testCases := []struct {
		name     string
		body     string
		expected string
	}{
		{"Remarks kept", "Created an attachment (id=7)\nbacktrace\n\nLooks like a null pointer.", "Looks like a null pointer."},
		{"Description only", "Created attachment 7\nbacktrace", ""},
		{"Announcement only", "An attachment was created (id=7)", ""},
		{"Not an announcement", "plain comment", "plain comment"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, StripAnnouncement(tc.body))
		})
	}
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	raws := []models.RawAttachment{
		{ID: 7, Filename: "log.txt"},
		{ID: 8, Filename: "old.txt", Obsolete: true},
	}
	var calls []string
	reg, err := BuildRegistry(context.Background(), raws, echoTransfer(&calls))
	require.NoError(t, err)
	return reg
}

func TestReconcileFoldsReporterFirstComment(t *testing.T) {
	comments := []models.RawComment{
		{Author: "alice", Body: "Steps to reproduce: crash"},
		{Author: "bob", Body: "Confirmed"},
	}

	rec, err := Reconcile(comments, testRegistry(t), "alice")
	require.NoError(t, err)

	assert.Equal(t, "Steps to reproduce: crash", rec.ExtendedDescription)
	require.Len(t, rec.Comments, 1)
	assert.Equal(t, "Confirmed", rec.Comments[0].Body)
}

func TestReconcileKeepsFirstCommentFromSomeoneElse(t *testing.T) {
	comments := []models.RawComment{
		{Author: "bob", Body: "Filed on behalf of alice"},
	}

	rec, err := Reconcile(comments, testRegistry(t), "alice")
	require.NoError(t, err)

	assert.Empty(t, rec.ExtendedDescription)
	assert.Equal(t, comments, rec.Comments)
}

func TestReconcileKeepsEmptyReporterFirstComment(t *testing.T) {
	comments := []models.RawComment{{Author: "alice", Body: ""}}

	rec, err := Reconcile(comments, testRegistry(t), "alice")
	require.NoError(t, err)

	assert.Empty(t, rec.ExtendedDescription)
	assert.Len(t, rec.Comments, 1)
}

func TestReconcileSanitizesExtendedDescription(t *testing.T) {
	comments := []models.RawComment{{Author: "alice", Body: "see foo_bar\n\n\n\nthanks"}}

	rec, err := Reconcile(comments, testRegistry(t), "alice")
	require.NoError(t, err)

	assert.Equal(t, "<pre>see foo_bar\n\nthanks</pre>", rec.ExtendedDescription)
}

func TestReconcileAnnouncements(t *testing.T) {
	testCases := []struct {
		name     string
		author   string
		body     string
		expected []models.RawComment
	}{
		{
			name:     "Reporter announcement is dropped",
			author:   "alice",
			body:     "An attachment was created (id=7)",
			expected: []models.RawComment{},
		},
		{
			name:   "Other announcement is stripped and tagged",
			author: "bob",
			body:   "Created an attachment (id=7)\nbacktrace\n\nLooks like a null pointer.",
			expected: []models.RawComment{
				{Author: "bob", Body: "Looks like a null pointer.", AttachmentID: 7},
			},
		},
		{
			name:   "Stripped announcement may be empty",
			author: "bob",
			body:   "An attachment was created (id=7)",
			expected: []models.RawComment{
				{Author: "bob", Body: "", AttachmentID: 7},
			},
		},
		{
			name:     "Reporter announcement of obsolete attachment is dropped",
			author:   "alice",
			body:     "Created attachment 8\nold",
			expected: []models.RawComment{},
		},
		{
			name:   "Other announcement of obsolete attachment is tagged",
			author: "bob",
			body:   "Created attachment 8\nold",
			expected: []models.RawComment{
				{Author: "bob", Body: "", AttachmentID: 8},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			comments := []models.RawComment{
				{Author: "alice", Body: "description"},
				{Author: tc.author, Body: tc.body},
			}

			rec, err := Reconcile(comments, testRegistry(t), "alice")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, rec.Comments)
		})
	}
}

func TestReconcileUnknownAttachment(t *testing.T) {
	body := "Created an attachment (id=99)\nmissing"
	comments := []models.RawComment{
		{Author: "alice", Body: "description"},
		{Author: "bob", Body: body},
	}

	_, err := Reconcile(comments, testRegistry(t), "alice")
	require.Error(t, err)

	var dataErr *DataConsistencyError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, 99, dataErr.AttachmentID)
	assert.Equal(t, body, dataErr.CommentText)
	assert.Contains(t, err.Error(), "99")
	assert.Equal(t, KindDataConsistency, KindOf(err))
}

func TestReconcileUnknownExistingTag(t *testing.T) {
	comments := []models.RawComment{
		{Author: "bob", Body: "see attached", AttachmentID: 42},
	}

	_, err := Reconcile(comments, testRegistry(t), "alice")
	var dataErr *DataConsistencyError
	require.True(t, errors.As(err, &dataErr))
	assert.Equal(t, 42, dataErr.AttachmentID)
}

func TestReconcileDoesNotModifyInput(t *testing.T) {
	comments := []models.RawComment{
		{Author: "alice", Body: "description"},
		{Author: "bob", Body: "Created attachment 7\nbacktrace\nnote"},
		{Author: "alice", Body: "Created attachment 7\nbacktrace"},
	}
	original := append([]models.RawComment(nil), comments...)

	rec, err := Reconcile(comments, testRegistry(t), "alice")
	require.NoError(t, err)

	assert.Equal(t, original, comments)
	require.Len(t, rec.Comments, 1)
	assert.Equal(t, "note", rec.Comments[0].Body)
}
