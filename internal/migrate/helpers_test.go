package migrate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/danielolaszy/bz2gl/internal/backend"
	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/pkg/models"
)

var testTime = time.Date(2010, 3, 4, 15, 30, 0, 0, time.UTC)

func newTestConfig() *config.Config {
	return &config.Config{
		Destination: config.DestinationGitLab,
		Bugzilla: config.BugzillaConfig{
			BaseURL:      "https://bugzilla.example.com",
			AutoReporter: "bugzilla-daemon@example.com",
		},
		MiscUser:            "bugzilla",
		IncludeBugzillaLink: true,
		DatetimeFormat:      "2006-01-02 15:04",
		DefaultLabels:       []string{"bugzilla"},
		ComponentMappings:   map[string]string{"core ui": "ui"},
		OSNoopValue:         "Other",
		CloseStatuses:       []string{"RESOLVED"},
		Admins:              map[string]bool{"root": true},
		Users: map[string]string{
			"alice@example.com":           "alice",
			"bob@example.com":             "bob",
			"root@example.com":            "root",
			"daemon@example.com":          "bugzilla",
			"bugzilla-daemon@example.com": "bugzilla",
		},
	}
}

// recorder is a destination that records every request it receives.
type recorder struct {
	mu   sync.Mutex
	reqs []backend.Request

	// fail, when set, decides whether a request fails.
	fail func(req backend.Request) error
}

func (r *recorder) Submit(ctx context.Context, req backend.Request) (backend.Result, error) {
	r.mu.Lock()
	r.reqs = append(r.reqs, req)
	n := len(r.reqs)
	r.mu.Unlock()

	if r.fail != nil {
		if err := r.fail(req); err != nil {
			return backend.Result{}, err
		}
	}

	switch p := req.Payload.(type) {
	case backend.IssuePayload:
		return backend.Result{ID: fmt.Sprintf("%d", 100+n), DisplayID: fmt.Sprintf("%d", n)}, nil
	case backend.NotePayload:
		return backend.Result{ID: fmt.Sprintf("%d", 1000+n)}, nil
	case backend.UploadPayload:
		return backend.Result{Markdown: fmt.Sprintf("[%s](/uploads/%s)", p.Filename, p.Filename)}, nil
	default:
		return backend.Result{}, nil
	}
}

func (r *recorder) requests() []backend.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]backend.Request(nil), r.reqs...)
}

func (r *recorder) kinds() []backend.Kind {
	var kinds []backend.Kind
	for _, req := range r.requests() {
		kinds = append(kinds, req.Kind)
	}
	return kinds
}

func (r *recorder) ofKind(kind backend.Kind) []backend.Request {
	var out []backend.Request
	for _, req := range r.requests() {
		if req.Kind == kind {
			out = append(out, req)
		}
	}
	return out
}

// memorySource serves bugs from memory.
type memorySource struct {
	bugs map[int]*models.BugRecord
}

func (s *memorySource) Fetch(ctx context.Context, id int) (*models.BugRecord, error) {
	bug, ok := s.bugs[id]
	if !ok {
		return nil, errors.New("bug not found")
	}
	return bug, nil
}

func (s *memorySource) FetchAttachment(ctx context.Context, att models.RawAttachment) ([]byte, error) {
	if att.Data == nil {
		return nil, fmt.Errorf("attachment %d has no data", att.ID)
	}
	return att.Data, nil
}

func (s *memorySource) BugURL(id int) string {
	return fmt.Sprintf("https://bugzilla.example.com/show_bug.cgi?id=%d", id)
}

func (s *memorySource) AttachmentURL(id int) string {
	return fmt.Sprintf("https://bugzilla.example.com/attachment.cgi?id=%d", id)
}

func simpleBug(id int, reporter string) *models.BugRecord {
	return &models.BugRecord{
		ID:              id,
		Title:           fmt.Sprintf("Bug %d", id),
		Status:          "NEW",
		CreatedAt:       testTime,
		Reporter:        reporter,
		Assignee:        "bob@example.com",
		Component:       "Core UI",
		Version:         "2.1",
		OperatingSystem: "Linux",
		Platform:        "x86_64",
		Comments: []models.RawComment{
			{Author: reporter, Body: "It crashes", CreatedAt: testTime},
		},
	}
}
