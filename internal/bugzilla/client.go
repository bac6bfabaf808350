// Package bugzilla fetches bug records and attachment contents from a
// Bugzilla installation or from a directory of XML exports.
package bugzilla

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/internal/logging"
	"github.com/danielolaszy/bz2gl/pkg/models"
)

// DefaultTimeout is the HTTP timeout for a single Bugzilla request.
const DefaultTimeout = 60 * time.Second

// Client talks to a Bugzilla installation over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

// NewClient creates a Bugzilla client from configuration.
func NewClient(cfg config.BugzillaConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxRetries: 3,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// BugURL returns the human-facing page of a bug.
func (c *Client) BugURL(id int) string {
	return fmt.Sprintf("%s/show_bug.cgi?id=%d", c.baseURL, id)
}

// AttachmentURL returns the download URL of an attachment.
func (c *Client) AttachmentURL(id int) string {
	return fmt.Sprintf("%s/attachment.cgi?id=%d", c.baseURL, id)
}

// Fetch downloads and decodes the XML export of one bug.
func (c *Client) Fetch(ctx context.Context, id int) (*models.BugRecord, error) {
	q := url.Values{}
	q.Set("ctype", "xml")
	q.Set("id", strconv.Itoa(id))

	body, err := c.get(ctx, "/show_bug.cgi", q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bug %d: %w", id, err)
	}

	bugs, err := Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bug %d: %w", id, err)
	}
	if len(bugs) != 1 {
		return nil, fmt.Errorf("bug %d: expected one bug in export, got %d", id, len(bugs))
	}

	logging.Debug("fetched bug",
		"bug_id", id,
		"comments", len(bugs[0].Comments),
		"attachments", len(bugs[0].Attachments))

	return bugs[0], nil
}

// FetchAttachment returns the content of an attachment, using the data
// embedded in the export when present.
func (c *Client) FetchAttachment(ctx context.Context, att models.RawAttachment) ([]byte, error) {
	if att.Data != nil {
		return att.Data, nil
	}

	q := url.Values{}
	q.Set("id", strconv.Itoa(att.ID))

	body, err := c.get(ctx, "/attachment.cgi", q)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch attachment %d: %w", att.ID, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if c.apiKey != "" {
		q.Set("Bugzilla_api_key", c.apiKey)
	}
	endpoint := c.baseURL + path + "?" + q.Encode()

	var body []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("bugzilla returned status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("bugzilla returned status %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		return err
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return body, nil
}

// DirSource reads bugs from "<Dir>/<id>.xml" files and falls back to a
// Client for attachments that were exported without data.
type DirSource struct {
	Dir    string
	Client *Client
}

// Fetch decodes the exported XML of one bug.
func (d *DirSource) Fetch(ctx context.Context, id int) (*models.BugRecord, error) {
	f, err := os.Open(filepath.Join(d.Dir, strconv.Itoa(id)+".xml"))
	if err != nil {
		return nil, fmt.Errorf("failed to open export for bug %d: %w", id, err)
	}
	defer f.Close()

	bugs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("bug %d: %w", id, err)
	}
	if len(bugs) != 1 {
		return nil, fmt.Errorf("bug %d: expected one bug in export, got %d", id, len(bugs))
	}
	return bugs[0], nil
}

// FetchAttachment returns embedded attachment data or downloads it.
func (d *DirSource) FetchAttachment(ctx context.Context, att models.RawAttachment) ([]byte, error) {
	if att.Data != nil {
		return att.Data, nil
	}
	if d.Client == nil {
		return nil, fmt.Errorf("attachment %d has no embedded data and no bugzilla client is configured", att.ID)
	}
	return d.Client.FetchAttachment(ctx, att)
}

// BugURL returns the human-facing page of a bug.
func (d *DirSource) BugURL(id int) string {
	if d.Client == nil {
		return ""
	}
	return d.Client.BugURL(id)
}

// AttachmentURL returns the download URL of an attachment.
func (d *DirSource) AttachmentURL(id int) string {
	if d.Client == nil {
		return ""
	}
	return d.Client.AttachmentURL(id)
}
