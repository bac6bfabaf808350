package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/bz2gl/internal/logging"
	"github.com/danielolaszy/bz2gl/internal/migrate"
)

var usersCmd = &cobra.Command{
	Use:   "users [bug-id...]",
	Short: "List Bugzilla users missing from the user mapping file",
	Long: `Read the given bugs and list every reporter, assignee, and comment author
that has no entry in the user mapping file.

The output is YAML that can be pasted into the mapping file once the
destination identities are filled in. Nothing is submitted to the destination.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bugsFile, _ := cmd.Flags().GetString("bugs-file")
		fromDir, _ := cmd.Flags().GetString("from-dir")

		ids, err := collectBugIDs(args, bugsFile)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		missing, err := migrate.FindMissingUsers(cmd.Context(), cfg, newSource(cfg, fromDir), ids)
		if err != nil {
			return err
		}

		logging.Info("checked user mappings", "bugs", len(ids), "missing", len(missing))
		renderMissingUsers(cmd.OutOrStdout(), missing)
		return nil
	},
}

func init() {
	usersCmd.Flags().String("bugs-file", "", "File with one bug id per line")
	usersCmd.Flags().String("from-dir", "", "Read bugs from <dir>/<id>.xml exports instead of Bugzilla")
}

func renderMissingUsers(w io.Writer, missing []migrate.MissingUser) {
	if len(missing) == 0 {
		fmt.Fprintln(w, "# all users are mapped")
		return
	}
	for _, m := range missing {
		bugs := make([]string, len(m.BugIDs))
		for i, id := range m.BugIDs {
			bugs[i] = strconv.Itoa(id)
		}
		fmt.Fprintf(w, "%q: \"\" # bugs %s\n", m.Identity, strings.Join(bugs, ", "))
	}
}
