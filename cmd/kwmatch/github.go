package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/kwmatch/pkg/datastore"
	"github.com/praetorian-inc/kwmatch/pkg/enum"
	"github.com/praetorian-inc/kwmatch/pkg/matcher"
)

var (
	githubToken        string
	githubOrg          string
	githubUser         string
	githubBaseURL      string
	githubDatastore    string
	githubOutputFormat string
	githubDictionaries []string
	githubMode         string
	githubNoClone      bool
	githubGit          bool
)

var githubCmd = &cobra.Command{
	Use:   "github [owner/repo]",
	Short: "Scan GitHub repositories for dictionary keywords",
	Long: `Scan GitHub repositories by cloning and scanning locally.
No API token needed for public repositories.
Use --token or GITHUB_TOKEN for private repos and higher rate limits.
Use --git to scan full git history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGitHubScan,
}

func init() {
	githubCmd.Flags().StringVar(&githubToken, "token", "", "GitHub API token (or GITHUB_TOKEN env; optional for public repos)")
	githubCmd.Flags().StringVar(&githubOrg, "org", "", "Scan all repositories in organization")
	githubCmd.Flags().StringVar(&githubUser, "user", "", "Scan all repositories for user")
	githubCmd.Flags().StringVar(&githubBaseURL, "url", "", "GitHub Enterprise API URL (default: api.github.com)")
	githubCmd.Flags().StringVar(&githubDatastore, "datastore", "kwmatch.ds", "Datastore directory")
	githubCmd.Flags().StringVar(&githubOutputFormat, "format", "human", "Output format: json, sarif, human")
	githubCmd.Flags().StringSliceVar(&githubDictionaries, "dictionary", nil, "Dictionary file or directory (repeatable; default builtin)")
	githubCmd.Flags().StringVar(&githubMode, "mode", "all", "Match mode: all, greedy")
	githubCmd.Flags().BoolVar(&githubNoClone, "no-clone", false, "Fetch files via API instead of cloning (requires token, no git history)")
	githubCmd.Flags().BoolVar(&githubGit, "git", false, "Scan full git history (slower; default scans only current files)")
}

func runGitHubScan(cmd *cobra.Command, args []string) error {
	token := githubToken
	if token == "" {
		token = os.Getenv("GITHUB_TOKEN")
	}

	if githubNoClone && token == "" {
		return fmt.Errorf("--no-clone requires a GitHub API token: use --token or GITHUB_TOKEN")
	}

	var owner, repo string
	if len(args) > 0 {
		parts := splitOwnerRepo(args[0])
		if len(parts) != 2 {
			return fmt.Errorf("invalid repository format, expected owner/repo (e.g., praetorian-inc/kwmatch)")
		}
		owner, repo = parts[0], parts[1]
	}

	if repo == "" && githubOrg == "" && githubUser == "" {
		return fmt.Errorf("must specify owner/repo, --org, or --user")
	}

	if token == "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Note: No GitHub token provided. Using unauthenticated access (60 requests/hour, public repos only).\n\n")
	}

	config := enum.Config{MaxFileSize: 10 * 1024 * 1024}
	ghEnum, err := enum.NewGitHubEnumerator(enum.GitHubConfig{
		Token:   token,
		BaseURL: githubBaseURL,
		Owner:   owner,
		Repo:    repo,
		Org:     githubOrg,
		User:    githubUser,
		Config:  config,
	})
	if err != nil {
		return fmt.Errorf("creating GitHub client: %w", err)
	}

	ctx := commandContext(cmd)
	var enumerator enum.Enumerator
	if githubNoClone {
		enumerator = ghEnum
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "Enumerating repositories...\n")
		repos, err := ghEnum.ListRepos(ctx)
		if err != nil {
			return fmt.Errorf("listing repositories: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Found %d repositories to scan\n\n", len(repos))

		clone := enum.NewCloneEnumerator(repos, config)
		clone.History = githubGit
		clone.Token = token
		enumerator = clone
	}

	return runRemoteScan(cmd, remoteScan{
		What:         "GitHub scan",
		Enumerator:   enumerator,
		Dictionaries: githubDictionaries,
		Mode:         githubMode,
		Datastore:    githubDatastore,
		Format:       githubOutputFormat,
	})
}

// remoteScan describes a scan of a hosted source into a datastore.
type remoteScan struct {
	What         string
	Enumerator   enum.Enumerator
	Dictionaries []string
	Mode         string
	Datastore    string
	Format       string
}

func runRemoteScan(cmd *cobra.Command, rs remoteScan) error {
	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	dicts, err := loadDictionaries(rs.Dictionaries, "", "", nil)
	if err != nil {
		return err
	}
	mode, err := matcher.ParseMode(rs.Mode)
	if err != nil {
		return err
	}

	ds, err := datastore.Open(rs.Datastore, datastore.Options{})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer ds.Close()

	if clone, ok := rs.Enumerator.(*enum.CloneEnumerator); ok {
		clone.Logger = logger
	}

	core, err := newScanCore(ds, dicts, mode, 3, false, logger)
	if err != nil {
		return err
	}
	defer core.Close()

	stats, err := scanBlobs(commandContext(cmd), core, ds, rs.Enumerator, false)
	if err != nil {
		return fmt.Errorf("%s: %w", rs.What, err)
	}

	printSummary(cmd, rs.Format, rs.What, stats, rs.Datastore)
	return outputResults(cmd, rs.Format, ds.Store, core.Dictionaries())
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// splitOwnerRepo splits "owner/repo" into ["owner", "repo"].
func splitOwnerRepo(s string) []string {
	result := make([]string, 0, 2)
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			result = append(result, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		result = append(result, s[start:])
	}
	return result
}
