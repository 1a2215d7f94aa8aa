package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/kwmatch/pkg/enum"
)

var (
	gitlabToken        string
	gitlabGroup        string
	gitlabUser         string
	gitlabBaseURL      string
	gitlabDatastore    string
	gitlabOutputFormat string
	gitlabDictionaries []string
	gitlabMode         string
	gitlabNoClone      bool
	gitlabGit          bool
)

var gitlabCmd = &cobra.Command{
	Use:   "gitlab [namespace/project]",
	Short: "Scan GitLab projects for dictionary keywords",
	Long: `Scan GitLab projects by cloning and scanning locally.
Projects are listed through the API, so --token or GITLAB_TOKEN is required.
Use --git to scan full git history.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGitLabScan,
}

func init() {
	gitlabCmd.Flags().StringVar(&gitlabToken, "token", "", "GitLab token (or GITLAB_TOKEN env)")
	gitlabCmd.Flags().StringVar(&gitlabGroup, "group", "", "Scan all projects in group")
	gitlabCmd.Flags().StringVar(&gitlabUser, "user", "", "Scan all projects for user")
	gitlabCmd.Flags().StringVar(&gitlabBaseURL, "url", "", "GitLab base URL (default: gitlab.com)")
	gitlabCmd.Flags().StringVar(&gitlabDatastore, "datastore", "kwmatch.ds", "Datastore directory")
	gitlabCmd.Flags().StringVar(&gitlabOutputFormat, "format", "human", "Output format: json, sarif, human")
	gitlabCmd.Flags().StringSliceVar(&gitlabDictionaries, "dictionary", nil, "Dictionary file or directory (repeatable; default builtin)")
	gitlabCmd.Flags().StringVar(&gitlabMode, "mode", "all", "Match mode: all, greedy")
	gitlabCmd.Flags().BoolVar(&gitlabNoClone, "no-clone", false, "Fetch files via API instead of cloning (no git history)")
	gitlabCmd.Flags().BoolVar(&gitlabGit, "git", false, "Scan full git history (slower; default scans only current files)")
}

func runGitLabScan(cmd *cobra.Command, args []string) error {
	token := gitlabToken
	if token == "" {
		token = os.Getenv("GITLAB_TOKEN")
	}
	if token == "" {
		return fmt.Errorf("GitLab scans require a token: use --token or GITLAB_TOKEN")
	}

	var project string
	if len(args) > 0 {
		project = args[0]
	}
	if project == "" && gitlabGroup == "" && gitlabUser == "" {
		return fmt.Errorf("must specify namespace/project, --group, or --user")
	}

	config := enum.Config{MaxFileSize: 10 * 1024 * 1024}
	glEnum, err := enum.NewGitLabEnumerator(enum.GitLabConfig{
		Token:   token,
		BaseURL: gitlabBaseURL,
		Project: project,
		Group:   gitlabGroup,
		User:    gitlabUser,
		Config:  config,
	})
	if err != nil {
		return fmt.Errorf("creating GitLab client: %w", err)
	}

	var enumerator enum.Enumerator
	if gitlabNoClone {
		enumerator = glEnum
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "Enumerating projects...\n")
		repos, err := glEnum.ListProjectURLs(commandContext(cmd))
		if err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Found %d projects to scan\n\n", len(repos))

		clone := enum.NewCloneEnumerator(repos, config)
		clone.History = gitlabGit
		clone.Token = token
		enumerator = clone
	}

	return runRemoteScan(cmd, remoteScan{
		What:         "GitLab scan",
		Enumerator:   enumerator,
		Dictionaries: gitlabDictionaries,
		Mode:         gitlabMode,
		Datastore:    gitlabDatastore,
		Format:       gitlabOutputFormat,
	})
}
