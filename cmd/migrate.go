package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/danielolaszy/bz2gl/internal/logging"
	"github.com/danielolaszy/bz2gl/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [bug-id...]",
	Short: "Migrate Bugzilla bugs to the configured destination",
	Long: `Migrate one or more Bugzilla bugs to the configured destination.

Bug ids are taken from the arguments and from --bugs-file, which holds one id
per line. Blank lines and lines starting with # are ignored.

A bug that cannot be migrated is skipped and reported in the summary. Use
--fail-fast to stop after the first failure, or --halt-on to stop only on
specific failure kinds (config, data, validation, transfer, source, submit).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bugsFile, _ := cmd.Flags().GetString("bugs-file")
		fromDir, _ := cmd.Flags().GetString("from-dir")
		workers, _ := cmd.Flags().GetInt("workers")
		failFast, _ := cmd.Flags().GetBool("fail-fast")
		haltOn, _ := cmd.Flags().GetStringSlice("halt-on")

		ids, err := collectBugIDs(args, bugsFile)
		if err != nil {
			return err
		}

		kinds, err := migrate.ParseKinds(haltOn)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		client, err := newDestination(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		logging.Info("starting migration",
			"bugs", len(ids),
			"destination", cfg.Destination,
			"workers", workers,
			"dry_run", cfg.DryRun)

		m := migrate.NewMigrator(cfg, client, newSource(cfg, fromDir), migrate.Options{
			Workers:  workers,
			FailFast: failFast,
			HaltOn:   kinds,
		})

		outcomes, runErr := m.Run(cmd.Context(), ids)
		fmt.Fprint(cmd.OutOrStdout(), renderSummary(outcomes))

		if runErr != nil {
			return runErr
		}
		if failed := countFailed(outcomes); failed > 0 {
			return fmt.Errorf("%d of %d bugs could not be migrated", failed, len(outcomes))
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("bugs-file", "", "File with one bug id per line")
	migrateCmd.Flags().String("from-dir", "", "Read bugs from <dir>/<id>.xml exports instead of Bugzilla")
	migrateCmd.Flags().IntP("workers", "w", 1, "Number of bugs migrated concurrently")
	migrateCmd.Flags().Bool("fail-fast", false, "Stop after the first bug that fails")
	migrateCmd.Flags().StringSlice("halt-on", nil, "Stop after a bug fails with one of these error kinds")
}

// collectBugIDs merges ids from the arguments and an optional file, keeping
// the first occurrence of each id.
func collectBugIDs(args []string, file string) ([]int, error) {
	ids, err := parseBugIDs(args)
	if err != nil {
		return nil, err
	}

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open bugs file: %w", err)
		}
		defer f.Close()

		fromFile, err := readBugIDs(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		ids = append(ids, fromFile...)
	}

	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil, errors.New("no bug ids given")
	}
	return ids, nil
}

func parseBugIDs(args []string) ([]int, error) {
	var ids []int
	for _, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			id, err := strconv.Atoi(field)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid bug id %q", field)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func readBugIDs(r io.Reader) ([]int, error) {
	var ids []int
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		id, err := strconv.Atoi(text)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("line %d: invalid bug id %q", line, text)
		}
		ids = append(ids, id)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func countFailed(outcomes []migrate.Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// renderSummary prints one line per bug followed by the totals.
func renderSummary(outcomes []migrate.Outcome) string {
	var b strings.Builder

	migrated, failed, notStarted := 0, 0, 0
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-8s %-10s %-10s %s", "BUG", "ISSUE", "STATE", "DETAILS")))
	b.WriteString("\n")

	for _, o := range outcomes {
		switch {
		case o.NotStarted:
			notStarted++
			b.WriteString(skippedStyle.Render(fmt.Sprintf("%-8d %-10s %-10s %s", o.BugID, "-", "-", "not started")))
		case o.Err != nil:
			failed++
			b.WriteString(failStyle.Render(fmt.Sprintf("%-8d %-10s %-10s %s error: %v", o.BugID, "-", o.State, o.Kind, o.Err)))
		default:
			migrated++
			b.WriteString(okStyle.Render(fmt.Sprintf("%-8d %-10s %-10s %d comments, %d attachments, %s",
				o.BugID, o.IssueRef, o.State, o.Comments, o.Attachments, o.Duration.Round(time.Millisecond))))
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("\n%d migrated, %d failed, %d not started\n", migrated, failed, notStarted))
	return b.String()
}
