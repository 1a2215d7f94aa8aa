package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/kwmatch/pkg/logging"
)

var (
	verbose   bool
	quiet     bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "kwmatch",
	Short: "kwmatch - dictionary keyword matching and redaction",
	Long: `kwmatch finds every occurrence of dictionary keywords in files, git history,
hosted repositories and object storage, and rewrites streams with keywords
replaced or masked. Dictionaries can change while a server is running.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text, json")

	// Add subcommands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(replaceCmd)
	rootCmd.AddCommand(keywordsCmd)
	rootCmd.AddCommand(dictionariesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(githubCmd)
	rootCmd.AddCommand(gitlabCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exploreCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger logs to stderr at the level chosen by --verbose and --quiet.
func newLogger(cmd *cobra.Command) (*logging.Logger, error) {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}
	return logging.ParseFormat(cmd.ErrOrStderr(), logFormat, level)
}
