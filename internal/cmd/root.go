// Package cmd implements the goferry command line interface.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/goferry/internal/config"
	"github.com/3leaps/goferry/internal/observability"
)

// versionInfo holds build-time version metadata, injected via ldflags
// through SetVersionInfo.
var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	rootConfigPath string
	rootLogLevel   string

	// cfg is the tool configuration resolved before any command runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "goferry",
	Short: "Replicate build artifacts between CI jobs",
	Long: `goferry copies archived build artifacts from a source job's build
into a destination build's workspace, records fingerprint provenance
links between the two builds, and exposes the selected build number to
later steps.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(rootConfigPath)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
		}
		level := cfg.Logging.Level
		if rootLogLevel != "" {
			level = rootLogLevel
		}
		observability.Init(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to config file (default .goferry.yaml)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Override log level (debug|info|warn|error)")
}

// cliError carries an exit code alongside the message shown to the user.
type cliError struct {
	code int
	msg  string
	err  error
}

func (e *cliError) Error() string {
	if e.err == nil {
		return e.msg
	}
	return fmt.Sprintf("%s: %v", e.msg, e.err)
}

func (e *cliError) Unwrap() error { return e.err }

// exitError wraps err with a user-facing message and a process exit code.
func exitError[C ~int](code C, msg string, err error) error {
	return &cliError{code: int(code), msg: msg, err: err}
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	defer observability.Sync()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if ce, ok := err.(*cliError); ok {
			return ce.code
		}
		return int(foundry.ExitInvalidArgument)
	}
	return 0
}

// logStepFailure records a failed step without aborting siblings.
func logStepFailure(project string, err error) {
	if err != nil {
		observability.CLILogger.Error("Copy step failed",
			zap.String("project", project),
			zap.Error(err))
		return
	}
	observability.CLILogger.Warn("Copy step unsuccessful",
		zap.String("project", project))
}
