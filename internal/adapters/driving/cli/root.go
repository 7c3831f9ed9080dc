// Package cli implements the ctxexport command line.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ctxexport/internal/logger"
)

// version is set by SetVersion from build flags.
var version = "dev"

var (
	verbose    bool
	logLevel   string
	logFormat  string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "ctxexport",
	Short: "Export labelled Confluence pages and Jira issues",
	Long: `ctxexport finds every Confluence page and Jira issue carrying a label and
renders one document per space or project.

Calls go through a rate limiter, retries with backoff and a per-upstream
circuit breaker. Progress is checkpointed after every item so an interrupted
run can be resumed with --resume.

Upstreams are configured through the environment:
  CONFLUENCE_URL, JIRA_URL, ATLASSIAN_USERNAME, ATLASSIAN_API_TOKEN, ATLASSIAN_AUTH`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: configureLogging,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json, logfmt")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (.toml, .yaml, .json); defaults to ~/.ctxexport/config.toml")
}

// SetVersion sets the version reported by the version command and sent as User-Agent.
func SetVersion(v string) {
	if v != "" {
		version = v
		rootCmd.Version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// configureLogging applies the global logging flags. Config file values are
// applied later by loadRuntime and never override these.
func configureLogging(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if logLevel != "" {
		if err := logger.SetLevel(logLevel); err != nil {
			return err
		}
	}
	if logFormat != "" {
		if err := logger.SetFormat(logFormat); err != nil {
			return err
		}
	}
	return nil
}
