package cmd

import (
	"context"
	"fmt"

	"github.com/danielolaszy/bz2gl/internal/backend"
	"github.com/danielolaszy/bz2gl/internal/bugzilla"
	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/internal/github"
	"github.com/danielolaszy/bz2gl/internal/gitlab"
	"github.com/danielolaszy/bz2gl/internal/jira"
	"github.com/danielolaszy/bz2gl/internal/migrate"
)

// maxRetries bounds the retries of a temporary destination failure.
const maxRetries = 5

// errOffline answers any request that slips past the dry-run guard.
var errOffline = fmt.Errorf("destination is not connected in dry-run mode")

// newDestination builds the backend.Client for the configured destination.
// In dry runs no destination client is created at all.
func newDestination(ctx context.Context, cfg *config.Config) (backend.Client, error) {
	if cfg.DryRun {
		offline := backend.Func(func(ctx context.Context, req backend.Request) (backend.Result, error) {
			return backend.Result{}, errOffline
		})
		return backend.Wrap(offline, 0), nil
	}

	var (
		client backend.Client
		err    error
	)
	switch cfg.Destination {
	case config.DestinationGitLab:
		client, err = gitlab.NewClient(cfg.GitLab)
	case config.DestinationGitHub:
		client, err = github.NewClient(ctx, cfg.GitHub)
	case config.DestinationJira:
		client, err = jira.NewClient(cfg.Jira)
	default:
		err = fmt.Errorf("unknown destination %q", cfg.Destination)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s client: %w", cfg.Destination, err)
	}

	return backend.Wrap(client, maxRetries), nil
}

// newSource reads bugs from Bugzilla, or from XML exports in dir when set.
func newSource(cfg *config.Config, dir string) migrate.Source {
	client := bugzilla.NewClient(cfg.Bugzilla)
	if dir != "" {
		return &bugzilla.DirSource{Dir: dir, Client: client}
	}
	return client
}
