// Package cmd provides the command-line interface for bz2gl.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danielolaszy/bz2gl/internal/config"
	"github.com/danielolaszy/bz2gl/internal/logging"
	"github.com/danielolaszy/bz2gl/internal/telemetry"
)

// Version is set at build time.
var Version = "dev"

var (
	configFile string
	usersFile  string
	dryRun     bool
	logLevel   string
	logDir     string

	logFile *os.File
)

var rootCmd = &cobra.Command{
	Use:   "bz2gl",
	Short: "bz2gl migrates Bugzilla bugs to GitLab, GitHub, or JIRA",
	Long: `bz2gl is a CLI tool that migrates Bugzilla bugs, with their comments and
attachments, into issues of a GitLab project, a GitHub repository, or a JIRA
project.

Each bug becomes one issue whose description carries the bug's metadata and
first comment. Remaining comments are posted in order as the users that wrote
them, attachments are transferred, and resolved bugs are closed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(); err != nil {
			return err
		}
		return telemetry.Init(cmd.Context(), "bz2gl", Version)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		telemetry.Shutdown(context.Background())
		if logFile != nil {
			logFile.Close()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVarP(&usersFile, "users", "u", "user_mappings.yml", "Path to the Bugzilla to destination user mapping file")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Log what would be submitted without calling the destination")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logDir, "log-file", "", "Directory to also write a dated log file to")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(usersCmd)
	rootCmd.AddCommand(showCmd)
}

func setupLogging() error {
	if logLevel == "" && logDir == "" {
		return nil
	}

	level, err := logging.ResolveLevel(logLevel, os.Getenv("LOG_LEVEL"))
	if err != nil {
		return err
	}

	var w = os.Stdout
	if logDir == "" {
		logging.SetupLogger(w, level)
		return nil
	}

	tee, f, err := logging.OpenLogFile(logDir, w)
	if err != nil {
		return err
	}
	logFile = f
	logging.SetupLogger(tee, level)
	return nil
}

// loadConfig reads the configuration files named by the persistent flags.
// The --dry-run flag only ever turns dry-run on.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if dryRun {
		os.Setenv("BZ2GL_DRY_RUN", "true")
	}

	cfg, err := config.LoadConfig(config.Options{ConfigFile: configFile, UsersFile: usersFile})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Debug("loaded configuration",
		"destination", cfg.Destination,
		"bugzilla", cfg.Bugzilla.BaseURL,
		"users", len(cfg.Users),
		"dry_run", cfg.DryRun)

	return cfg, nil
}
