// Package backend defines the contract between the migration engine and a
// destination issue tracker, together with decorators shared by every
// destination: dry-run, retry, and instrumentation.
package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind names the resource a Request creates or changes.
type Kind string

const (
	KindIssue  Kind = "issue"
	KindNote   Kind = "note"
	KindUpload Kind = "upload"
	KindClose  Kind = "close"
	KindAdmin  Kind = "admin"
)

// Idempotent reports whether sending a request of kind k twice has the same
// effect as sending it once.
func (k Kind) Idempotent() bool {
	return k == KindClose || k == KindAdmin
}

// Client submits a single request to a destination. Implementations must be
// safe for concurrent use.
type Client interface {
	Submit(ctx context.Context, req Request) (Result, error)
}

// Request is one submission. ActingIdentity is the destination identity the
// request is performed as; an empty identity means the token owner.
type Request struct {
	Kind           Kind
	Payload        Payload
	ActingIdentity string
	DryRun         bool
}

// Result identifies what a submission created. Markdown is only set for
// uploads.
type Result struct {
	ID        string
	DisplayID string
	Markdown  string
}

// Payload is implemented by the typed payload of each Kind.
type Payload interface {
	Kind() Kind
}

// IssuePayload creates an issue.
type IssuePayload struct {
	Title       string
	Description string
	Labels      []string
	Assignee    string
	CreatedAt   time.Time
}

// NotePayload creates a comment on an existing issue.
type NotePayload struct {
	IssueRef  string
	Body      string
	CreatedAt time.Time
}

// UploadPayload transfers a file. SourceURL is where the file can be
// downloaded from the source system, for destinations that only link.
type UploadPayload struct {
	Filename  string
	Content   []byte
	SourceURL string
}

// ClosePayload closes an issue.
type ClosePayload struct {
	IssueRef string
}

// AdminPayload grants or revokes admin rights for a destination identity.
type AdminPayload struct {
	Identity string
	Admin    bool
}

func (IssuePayload) Kind() Kind  { return KindIssue }
func (NotePayload) Kind() Kind   { return KindNote }
func (UploadPayload) Kind() Kind { return KindUpload }
func (ClosePayload) Kind() Kind  { return KindClose }
func (AdminPayload) Kind() Kind  { return KindAdmin }

// NewRequest builds a Request whose Kind matches the payload.
func NewRequest(payload Payload, actingIdentity string, dryRun bool) Request {
	return Request{
		Kind:           payload.Kind(),
		Payload:        payload,
		ActingIdentity: actingIdentity,
		DryRun:         dryRun,
	}
}

// ErrUnsupportedKind is returned by destinations for kinds they cannot serve.
var ErrUnsupportedKind = errors.New("unsupported request kind")

// TemporaryError marks a destination failure that may succeed when retried
// (rate limiting, server errors, requests that got no response).
type TemporaryError struct {
	StatusCode int
	Err        error

	// Unanswered is set when no response arrived. The destination may still
	// have applied the request.
	Unanswered bool
}

func (e *TemporaryError) Error() string {
	if e.Unanswered {
		return fmt.Sprintf("temporary failure (no response): %v", e.Err)
	}
	return fmt.Sprintf("temporary failure (status %d): %v", e.StatusCode, e.Err)
}

func (e *TemporaryError) Unwrap() error {
	return e.Err
}

// Classify wraps err in a TemporaryError when statusCode indicates that the
// request may be retried.
func Classify(statusCode int, err error) error {
	if err == nil {
		return nil
	}
	if statusCode == 429 || statusCode >= 500 {
		return &TemporaryError{StatusCode: statusCode, Err: err}
	}
	return err
}

// ClassifyResponse classifies err using the HTTP response an SDK call
// returned. A missing response is temporary and marked Unanswered.
func ClassifyResponse(resp *http.Response, err error) error {
	if err == nil {
		return nil
	}
	if resp == nil {
		return &TemporaryError{Err: err, Unanswered: true}
	}
	return Classify(resp.StatusCode, err)
}

// IsTemporary reports whether err, or any error it wraps, is temporary.
func IsTemporary(err error) bool {
	var tmp *TemporaryError
	return errors.As(err, &tmp)
}

// Retryable reports whether a request of kind k that failed with err may be
// sent again. Unanswered requests are only resent when k is idempotent, so a
// timed out create cannot produce a duplicate.
func Retryable(k Kind, err error) bool {
	var tmp *TemporaryError
	if !errors.As(err, &tmp) {
		return false
	}
	return !tmp.Unanswered || k.Idempotent()
}

// Func adapts a function to the Client interface.
type Func func(ctx context.Context, req Request) (Result, error)

// Submit calls f.
func (f Func) Submit(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Wrap decorates a destination client with dry-run handling, retries, and
// instrumentation, in that order from the inside out.
func Wrap(c Client, maxRetries uint64) Client {
	return Instrument(DryRunGuard(Retry(c, maxRetries)))
}
