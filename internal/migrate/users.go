package migrate

import (
	"context"
	"fmt"
	"sort"

	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/pkg/models"
)

// MissingUser is a source identity without a destination mapping.
type MissingUser struct {
	Identity string
	BugIDs   []int
}

// FindMissingUsers reads every bug and reports the reporters, assignees, and
// comment authors that have no user mapping, sorted by identity.
func FindMissingUsers(ctx context.Context, cfg *config.Config, source Source, ids []int) ([]MissingUser, error) {
	seen := make(map[string][]int)

	for _, id := range ids {
		bug, err := source.Fetch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to read bug %d: %w", id, err)
		}
		for _, identity := range identities(bug) {
			if _, ok := cfg.UserFor(identity); ok {
				continue
			}
			bugs := seen[identity]
			if len(bugs) == 0 || bugs[len(bugs)-1] != id {
				seen[identity] = append(bugs, id)
			}
		}
	}

	missing := make([]MissingUser, 0, len(seen))
	for identity, bugs := range seen {
		missing = append(missing, MissingUser{Identity: identity, BugIDs: bugs})
	}
	sort.Slice(missing, func(i, j int) bool {
		return missing[i].Identity < missing[j].Identity
	})
	return missing, nil
}

func identities(bug *models.BugRecord) []string {
	out := []string{bug.Reporter}
	if bug.Assignee != "" {
		out = append(out, bug.Assignee)
	}
	for _, c := range bug.Comments {
		if submitted(c) {
			out = append(out, c.Author)
		}
	}
	return out
}
