package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/bz2gl/internal/backend"
	"github.com/danielolaszy/bz2gl/internal/config"
)

// TestGitHubDomainToAPIURL tests the logic that converts a domain to an API URL
func TestGitHubDomainToAPIURL(t *testing.T) {
	testCases := []struct {
		name           string
		domain         string
		expectedAPIURL string
	}{
		{
			name:           "Default GitHub.com",
			domain:         "github.com",
			expectedAPIURL: "https://api.github.com/",
		},
		{
			name:           "GitHub Enterprise",
			domain:         "github.example.com",
			expectedAPIURL: "https://github.example.com/api/v3/",
		},
		{
			name:           "Empty Domain (should default to github.com)",
			domain:         "",
			expectedAPIURL: "https://api.github.com/",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			apiURL := APIURL(tc.domain)
			assert.Equal(t, tc.expectedAPIURL, apiURL)

			// The URL must survive parsing unchanged
			parsedURL, err := url.Parse(apiURL)
			require.NoError(t, err)
			assert.Equal(t, apiURL, parsedURL.String())
		})
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := newClient(http.DefaultClient, "https://api.github.com/", "invalid-repo-format")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid repository format")

	_, err = NewClient(context.Background(), configWithoutToken())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := newClient(srv.Client(), srv.URL+"/", "org/repo")
	require.NoError(t, err)
	return c
}

func TestSubmitIssueCommentAndClose(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/org/repo/issues", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Crash", body["title"])
		assert.Equal(t, []any{"bugzilla", "ui"}, body["labels"])
		assert.Equal(t, "octocat", body["assignee"])

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":5550,"number":12}`)
	})
	mux.HandleFunc("POST /repos/org/repo/issues/12/comments", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Confirmed", body["body"])

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":77}`)
	})
	mux.HandleFunc("PATCH /repos/org/repo/issues/12", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "closed", body["state"])
		io.WriteString(w, `{"id":5550,"number":12,"state":"closed"}`)
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	res, err := c.Submit(ctx, backend.NewRequest(backend.IssuePayload{
		Title:    "Crash",
		Labels:   []string{"bugzilla", "ui"},
		Assignee: "octocat",
	}, "alice", false))
	require.NoError(t, err)
	assert.Equal(t, backend.Result{ID: "5550", DisplayID: "12"}, res)

	res, err = c.Submit(ctx, backend.NewRequest(backend.NotePayload{IssueRef: "12", Body: "Confirmed"}, "bob", false))
	require.NoError(t, err)
	assert.Equal(t, "77", res.ID)

	_, err = c.Submit(ctx, backend.NewRequest(backend.ClosePayload{IssueRef: "12"}, "", false))
	require.NoError(t, err)
}

func TestSubmitWithoutNetwork(t *testing.T) {
	c := newTestClient(t, http.NewServeMux())
	ctx := context.Background()

	res, err := c.Submit(ctx, backend.NewRequest(backend.UploadPayload{
		Filename:  "log.txt",
		SourceURL: "https://bugzilla.example.com/attachment.cgi?id=7",
	}, "", false))
	require.NoError(t, err)
	assert.Equal(t, "[log.txt](https://bugzilla.example.com/attachment.cgi?id=7)", res.Markdown)

	_, err = c.Submit(ctx, backend.NewRequest(backend.UploadPayload{Filename: "log.txt"}, "", false))
	assert.Error(t, err)

	_, err = c.Submit(ctx, backend.NewRequest(backend.AdminPayload{Identity: "bob", Admin: true}, "", false))
	assert.NoError(t, err)

	_, err = c.Submit(ctx, backend.NewRequest(backend.NotePayload{IssueRef: "twelve", Body: "x"}, "", false))
	assert.Error(t, err)
}

func TestSubmitClassifiesErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/org/repo/issues/1/comments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"message":"unavailable"}`)
	})
	mux.HandleFunc("POST /repos/org/repo/issues/2/comments", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Not Found"}`)
	})

	c := newTestClient(t, mux)

	_, err := c.Submit(context.Background(), backend.NewRequest(backend.NotePayload{IssueRef: "1", Body: "x"}, "", false))
	require.Error(t, err)
	assert.True(t, backend.IsTemporary(err))

	_, err = c.Submit(context.Background(), backend.NewRequest(backend.NotePayload{IssueRef: "2", Body: "x"}, "", false))
	require.Error(t, err)
	assert.False(t, backend.IsTemporary(err))
}

func configWithoutToken() config.GitHubConfig {
	return config.GitHubConfig{Domain: "github.com", Repository: "org/repo"}
}
