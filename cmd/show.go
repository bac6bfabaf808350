package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/bz2gl/internal/migrate"
)

var showCmd = &cobra.Command{
	Use:   "show <bug-id>",
	Short: "Print the issue and comments a bug would become",
	Long: `Reconcile a single bug exactly as migrate would and print the resulting
issue and comments. Runs in dry-run mode: nothing is submitted and
attachments are rendered as placeholders.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fromDir, _ := cmd.Flags().GetString("from-dir")

		ids, err := parseBugIDs(args)
		if err != nil {
			return err
		}

		os.Setenv("BZ2GL_DRY_RUN", "true")
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		client, err := newDestination(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		source := newSource(cfg, fromDir)
		bug, err := source.Fetch(cmd.Context(), ids[0])
		if err != nil {
			return err
		}

		thread, err := migrate.NewEngine(cfg, client, source).Assemble(cmd.Context(), bug)
		if err != nil {
			return fmt.Errorf("bug %d cannot be migrated (%s error): %w", bug.ID, migrate.KindOf(err), err)
		}

		renderThread(cmd.OutOrStdout(), thread)
		return nil
	},
}

func init() {
	showCmd.Flags().String("from-dir", "", "Read the bug from <dir>/<id>.xml exports instead of Bugzilla")
}

func renderThread(w io.Writer, t *migrate.Thread) {
	fmt.Fprintln(w, headerStyle.Render(t.Issue.Title))
	fmt.Fprintf(w, "author: %s  assignee: %s  labels: %v  close: %t\n\n",
		t.Issue.Author, t.Issue.Assignee, t.Issue.Labels, t.CloseOnSubmit)
	fmt.Fprintln(w, t.Issue.Description)

	for i, c := range t.Comments {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("comment %d by %s at %s", i+1, c.Author, c.CreatedAt.Format("2006-01-02 15:04"))))
		fmt.Fprintln(w, c.Body)
	}
}
