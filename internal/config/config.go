// Package config provides centralized configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Supported destinations.
const (
	DestinationGitLab = "gitlab"
	DestinationGitHub = "github"
	DestinationJira   = "jira"
)

// Config holds all configuration parameters for a migration run. It is
// loaded once and passed explicitly to every component.
type Config struct {
	Destination string

	GitLab   GitLabConfig
	GitHub   GitHubConfig
	Jira     JiraConfig
	Bugzilla BugzillaConfig

	// MiscUser is the destination identity that stands in for source users
	// without a personal account.
	MiscUser string

	IncludeBugzillaLink bool

	// DatetimeFormat is a Go time layout used in issue descriptions.
	DatetimeFormat string

	DefaultLabels []string

	// ComponentMappings maps a lowercased Bugzilla component to a label.
	ComponentMappings map[string]string

	// OSNoopValue is the op_sys value that never becomes a label.
	OSNoopValue string

	// CloseStatuses lists Bugzilla statuses that close the destination issue.
	CloseStatuses []string

	// Admins lists destination identities that already hold admin rights.
	Admins map[string]bool

	// Users maps a Bugzilla login to a destination identity.
	Users map[string]string

	DryRun bool
}

// GitLabConfig holds GitLab specific configuration.
type GitLabConfig struct {
	BaseURL   string
	Token     string
	ProjectID string
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Domain     string
	Token      string
	Repository string
}

// JiraConfig holds JIRA specific configuration.
type JiraConfig struct {
	URL             string
	Username        string
	Token           string
	Project         string
	IssueType       string
	CloseTransition string
}

// BugzillaConfig holds Bugzilla specific configuration.
type BugzillaConfig struct {
	BaseURL string
	APIKey  string

	// AutoReporter is the Bugzilla login used by automated bug submission.
	AutoReporter string
}

// Options locates the configuration files.
type Options struct {
	ConfigFile string
	UsersFile  string
}

// LoadConfig reads the YAML configuration file, the user mapping file, and
// environment overrides, then validates the result.
func LoadConfig(opts Options) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}

	// Secrets only come from the environment.
	v.BindEnv("gitlab.token", "GITLAB_TOKEN")
	v.BindEnv("gitlab.base_url", "GITLAB_URL")
	v.BindEnv("github.token", "GITHUB_TOKEN")
	v.BindEnv("github.domain", "GITHUB_DOMAIN")
	v.BindEnv("jira.url", "JIRA_URL")
	v.BindEnv("jira.username", "JIRA_USERNAME")
	v.BindEnv("jira.token", "JIRA_TOKEN")
	v.BindEnv("bugzilla.api_key", "BUGZILLA_API_KEY")
	v.BindEnv("dry_run", "BZ2GL_DRY_RUN")

	config := &Config{
		Destination: strings.ToLower(v.GetString("destination")),
		GitLab: GitLabConfig{
			BaseURL:   v.GetString("gitlab.base_url"),
			Token:     v.GetString("gitlab.token"),
			ProjectID: v.GetString("gitlab.project_id"),
		},
		GitHub: GitHubConfig{
			Domain:     v.GetString("github.domain"),
			Token:      v.GetString("github.token"),
			Repository: v.GetString("github.repository"),
		},
		Jira: JiraConfig{
			URL:             v.GetString("jira.url"),
			Username:        v.GetString("jira.username"),
			Token:           v.GetString("jira.token"),
			Project:         v.GetString("jira.project"),
			IssueType:       v.GetString("jira.issue_type"),
			CloseTransition: v.GetString("jira.close_transition"),
		},
		Bugzilla: BugzillaConfig{
			BaseURL:      strings.TrimSuffix(v.GetString("bugzilla.base_url"), "/"),
			APIKey:       v.GetString("bugzilla.api_key"),
			AutoReporter: v.GetString("bugzilla.auto_reporter"),
		},
		MiscUser:            v.GetString("misc_user"),
		IncludeBugzillaLink: v.GetBool("include_bugzilla_link"),
		DatetimeFormat:      v.GetString("datetime_format"),
		DefaultLabels:       v.GetStringSlice("default_labels"),
		ComponentMappings:   lowerKeys(v.GetStringMapString("component_mappings")),
		OSNoopValue:         v.GetString("os_noop_value"),
		CloseStatuses:       v.GetStringSlice("close_statuses"),
		Admins:              make(map[string]bool),
		DryRun:              v.GetBool("dry_run"),
	}

	for _, admin := range v.GetStringSlice("admins") {
		config.Admins[admin] = true
	}

	if opts.UsersFile != "" {
		users, err := LoadUserMappings(opts.UsersFile)
		if err != nil {
			return nil, err
		}
		config.Users = users
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("destination", DestinationGitLab)
	v.SetDefault("github.domain", "github.com")
	v.SetDefault("jira.issue_type", "Bug")
	v.SetDefault("jira.close_transition", "Done")
	v.SetDefault("include_bugzilla_link", true)
	v.SetDefault("datetime_format", "Jan 02, 2006 15:04")
	v.SetDefault("os_noop_value", "Other")
	v.SetDefault("close_statuses", []string{"RESOLVED"})
}

// LoadUserMappings reads a flat "bugzilla login: destination identity" YAML
// file. yaml.v3 is used directly because viper lowercases map keys and
// Bugzilla logins are case sensitive.
func LoadUserMappings(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user mappings %s: %w", path, err)
	}

	users := make(map[string]string)
	if err := yaml.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to parse user mappings %s: %w", path, err)
	}

	return users, nil
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

// Validate ensures that all settings required by the chosen destination
// are present. Every missing setting is reported at once.
func Validate(config *Config) error {
	var missingVars []string

	if config.Bugzilla.BaseURL == "" {
		missingVars = append(missingVars, "bugzilla.base_url")
	}

	switch config.Destination {
	case DestinationGitLab:
		missingVars = append(missingVars, missingGitLab(config)...)
	case DestinationGitHub:
		missingVars = append(missingVars, missingGitHub(config)...)
	case DestinationJira:
		missingVars = append(missingVars, missingJira(config)...)
	default:
		return fmt.Errorf("unknown destination %q, expected one of gitlab, github, jira", config.Destination)
	}

	if len(missingVars) > 0 {
		return fmt.Errorf("missing required configuration: %v", missingVars)
	}

	return nil
}

func missingGitLab(config *Config) []string {
	var missing []string
	if config.GitLab.BaseURL == "" {
		missing = append(missing, "gitlab.base_url")
	}
	if config.GitLab.ProjectID == "" {
		missing = append(missing, "gitlab.project_id")
	}
	// Dry runs never talk to the destination.
	if config.GitLab.Token == "" && !config.DryRun {
		missing = append(missing, "GITLAB_TOKEN")
	}
	return missing
}

func missingGitHub(config *Config) []string {
	var missing []string
	if config.GitHub.Repository == "" {
		missing = append(missing, "github.repository")
	}
	if config.GitHub.Token == "" && !config.DryRun {
		missing = append(missing, "GITHUB_TOKEN")
	}
	return missing
}

func missingJira(config *Config) []string {
	var missing []string
	if config.Jira.URL == "" {
		missing = append(missing, "JIRA_URL")
	}
	if config.Jira.Project == "" {
		missing = append(missing, "jira.project")
	}
	if !config.DryRun {
		if config.Jira.Username == "" {
			missing = append(missing, "JIRA_USERNAME")
		}
		if config.Jira.Token == "" {
			missing = append(missing, "JIRA_TOKEN")
		}
	}
	return missing
}

// UserFor returns the destination identity mapped to a Bugzilla login.
func (c *Config) UserFor(bugzillaUser string) (string, bool) {
	identity, ok := c.Users[bugzillaUser]
	return identity, ok
}

// IsAdmin reports whether a destination identity already has admin rights.
func (c *Config) IsAdmin(identity string) bool {
	return c.Admins[identity]
}

// ComponentLabel returns the label mapped to a Bugzilla component, if any.
func (c *Config) ComponentLabel(component string) (string, bool) {
	label, ok := c.ComponentMappings[strings.ToLower(component)]
	return label, ok && label != ""
}

// IsCloseStatus reports whether a Bugzilla status closes the destination issue.
func (c *Config) IsCloseStatus(status string) bool {
	for _, s := range c.CloseStatuses {
		if strings.EqualFold(s, status) {
			return true
		}
	}
	return false
}
