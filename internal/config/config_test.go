package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
destination: gitlab
gitlab:
  base_url: https://gitlab.example.com
  project_id: "42"
bugzilla:
  base_url: https://bugzilla.example.com/
  auto_reporter: bugzilla-daemon@example.com
misc_user: bugzilla
default_labels:
  - bugzilla
component_mappings:
  Core UI: ui
admins:
  - root
`

const sampleUsers = `
Alice@Example.com: alice
bob@example.com: bugzilla
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yml", sampleConfig)
	usersPath := writeFile(t, dir, "user_mappings.yml", sampleUsers)

	t.Setenv("GITLAB_TOKEN", "glpat-secret")
	t.Setenv("BZ2GL_DRY_RUN", "")

	config, err := LoadConfig(Options{ConfigFile: cfgPath, UsersFile: usersPath})
	require.NoError(t, err)

	assert.Equal(t, DestinationGitLab, config.Destination)
	assert.Equal(t, "https://gitlab.example.com", config.GitLab.BaseURL)
	assert.Equal(t, "42", config.GitLab.ProjectID)
	assert.Equal(t, "glpat-secret", config.GitLab.Token)
	assert.Equal(t, "https://bugzilla.example.com", config.Bugzilla.BaseURL)
	assert.Equal(t, "bugzilla-daemon@example.com", config.Bugzilla.AutoReporter)
	assert.Equal(t, "bugzilla", config.MiscUser)
	assert.Equal(t, []string{"bugzilla"}, config.DefaultLabels)
	assert.True(t, config.IncludeBugzillaLink)
	assert.Equal(t, "Other", config.OSNoopValue)
	assert.Equal(t, []string{"RESOLVED"}, config.CloseStatuses)
	assert.False(t, config.DryRun)

	identity, ok := config.UserFor("Alice@Example.com")
	assert.True(t, ok, "user mapping keys must keep their case")
	assert.Equal(t, "alice", identity)

	label, ok := config.ComponentLabel("Core UI")
	assert.True(t, ok)
	assert.Equal(t, "ui", label)

	assert.True(t, config.IsAdmin("root"))
	assert.False(t, config.IsAdmin("alice"))
	assert.True(t, config.IsCloseStatus("resolved"))
	assert.False(t, config.IsCloseStatus("NEW"))
}

func TestLoadConfigDryRunFromEnv(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "config.yml", sampleConfig)

	t.Setenv("GITLAB_TOKEN", "")
	t.Setenv("BZ2GL_DRY_RUN", "true")

	config, err := LoadConfig(Options{ConfigFile: cfgPath})
	require.NoError(t, err)
	assert.True(t, config.DryRun)
	assert.Empty(t, config.Users)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yml")})
	assert.Error(t, err)
}

func TestLoadUserMappingsInvalidYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "users.yml", "- not\n- a map\n")
	_, err := LoadUserMappings(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "GitLab complete",
			config: Config{
				Destination: DestinationGitLab,
				Bugzilla:    BugzillaConfig{BaseURL: "https://bz"},
				GitLab:      GitLabConfig{BaseURL: "https://gl", ProjectID: "1", Token: "t"},
			},
		},
		{
			name: "GitLab missing token",
			config: Config{
				Destination: DestinationGitLab,
				Bugzilla:    BugzillaConfig{BaseURL: "https://bz"},
				GitLab:      GitLabConfig{BaseURL: "https://gl", ProjectID: "1"},
			},
			wantErr: "GITLAB_TOKEN",
		},
		{
			name: "GitLab dry run without token",
			config: Config{
				Destination: DestinationGitLab,
				Bugzilla:    BugzillaConfig{BaseURL: "https://bz"},
				GitLab:      GitLabConfig{BaseURL: "https://gl", ProjectID: "1"},
				DryRun:      true,
			},
		},
		{
			name: "GitHub missing repository",
			config: Config{
				Destination: DestinationGitHub,
				Bugzilla:    BugzillaConfig{BaseURL: "https://bz"},
				GitHub:      GitHubConfig{Token: "t"},
			},
			wantErr: "github.repository",
		},
		{
			name: "Jira missing credentials",
			config: Config{
				Destination: DestinationJira,
				Bugzilla:    BugzillaConfig{BaseURL: "https://bz"},
				Jira:        JiraConfig{URL: "https://jira", Project: "BZ"},
			},
			wantErr: "JIRA_USERNAME",
		},
		{
			name: "Missing bugzilla URL",
			config: Config{
				Destination: DestinationGitHub,
				GitHub:      GitHubConfig{Repository: "o/r", Token: "t"},
			},
			wantErr: "bugzilla.base_url",
		},
		{
			name:    "Unknown destination",
			config:  Config{Destination: "trello", Bugzilla: BugzillaConfig{BaseURL: "https://bz"}},
			wantErr: "unknown destination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.config)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
