package enum

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// DefaultAPIRate paces hosted API requests (requests per second).
const DefaultAPIRate = 10

// GitHubConfig configures GitHub API enumeration.
type GitHubConfig struct {
	Token   string  // GitHub API token (optional; unauthenticated access is rate limited)
	BaseURL string  // API endpoint for GitHub Enterprise (default api.github.com)
	Owner   string  // Repository owner (for single repo)
	Repo    string  // Repository name (for single repo)
	Org     string  // Organization name (list all org repos)
	User    string  // User name (list all user repos)
	Rate    float64 // API requests per second (0 = DefaultAPIRate)
	Config          // Embedded base config
}

// GitHubEnumerator enumerates blobs from GitHub via API.
type GitHubEnumerator struct {
	client  *github.Client
	limiter *rate.Limiter
	config  GitHubConfig
}

// NewGitHubEnumerator creates a new GitHub API enumerator.
func NewGitHubEnumerator(cfg GitHubConfig) (*GitHubEnumerator, error) {
	var hc *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		hc = oauth2.NewClient(context.Background(), ts)
	}
	client := github.NewClient(hc)

	if cfg.BaseURL != "" {
		base := cfg.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing GitHub base URL: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHubEnumerator{
		client:  client,
		limiter: newLimiter(cfg.Rate),
		config:  cfg,
	}, nil
}

func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		perSecond = DefaultAPIRate
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
}

// Enumerate yields blobs from the default branch of each repository.
func (e *GitHubEnumerator) Enumerate(ctx context.Context, fn Callback) error {
	repos, err := e.listRepos(ctx)
	if err != nil {
		return err
	}

	for _, repo := range repos {
		if err := e.enumerateRepo(ctx, repo, fn); err != nil {
			return fmt.Errorf("enumerating %s: %w", repo.GetFullName(), err)
		}
	}
	return nil
}

// ListRepos returns clone information for the configured repositories.
func (e *GitHubEnumerator) ListRepos(ctx context.Context) ([]RepoInfo, error) {
	repos, err := e.listRepos(ctx)
	if err != nil {
		return nil, err
	}
	infos := make([]RepoInfo, 0, len(repos))
	for _, r := range repos {
		infos = append(infos, RepoInfo{
			Name:          r.GetFullName(),
			CloneURL:      r.GetCloneURL(),
			DefaultBranch: r.GetDefaultBranch(),
		})
	}
	return infos, nil
}

// listRepos returns the list of repositories to enumerate.
func (e *GitHubEnumerator) listRepos(ctx context.Context) ([]*github.Repository, error) {
	switch {
	case e.config.Repo != "":
		if e.config.Owner == "" {
			return nil, fmt.Errorf("owner required when repo specified")
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		repo, _, err := e.client.Repositories.Get(ctx, e.config.Owner, e.config.Repo)
		if err != nil {
			return nil, fmt.Errorf("getting repository: %w", err)
		}
		return []*github.Repository{repo}, nil

	case e.config.Org != "":
		opts := &github.RepositoryListByOrgOptions{ListOptions: github.ListOptions{PerPage: 100}}
		return e.paginate(ctx, func() ([]*github.Repository, *github.Response, error) {
			return e.client.Repositories.ListByOrg(ctx, e.config.Org, opts)
		}, &opts.Page)

	case e.config.User != "":
		opts := &github.RepositoryListOptions{ListOptions: github.ListOptions{PerPage: 100}}
		return e.paginate(ctx, func() ([]*github.Repository, *github.Response, error) {
			return e.client.Repositories.List(ctx, e.config.User, opts)
		}, &opts.Page)
	}

	return nil, fmt.Errorf("must specify repo (with owner), org, or user")
}

// paginate calls list until the last page, advancing *page in between.
func (e *GitHubEnumerator) paginate(ctx context.Context, list func() ([]*github.Repository, *github.Response, error), page *int) ([]*github.Repository, error) {
	var all []*github.Repository
	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		repos, resp, err := list()
		if err != nil {
			return nil, fmt.Errorf("listing repositories: %w", err)
		}
		all = append(all, repos...)
		if resp.NextPage == 0 {
			return all, nil
		}
		*page = resp.NextPage
	}
}

// enumerateRepo enumerates all files of a repository's default branch.
func (e *GitHubEnumerator) enumerateRepo(ctx context.Context, repo *github.Repository, fn Callback) error {
	branch := repo.GetDefaultBranch()
	if branch == "" {
		branch = "main"
	}
	owner := repo.GetOwner().GetLogin()

	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	tree, _, err := e.client.Git.GetTree(ctx, owner, repo.GetName(), branch, true)
	if err != nil {
		return fmt.Errorf("getting tree: %w", err)
	}

	// The tree API caps responses at 100K entries.
	if tree.GetTruncated() {
		return fmt.Errorf("repository tree for %s is truncated (>100K files); clone it with --clone for complete coverage", repo.GetFullName())
	}

	for _, entry := range tree.Entries {
		if err := canceled(ctx); err != nil {
			return err
		}
		if entry.GetType() != "blob" {
			continue
		}
		if e.config.MaxFileSize > 0 && int64(entry.GetSize()) > e.config.MaxFileSize {
			continue
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		data, _, err := e.client.Git.GetBlobRaw(ctx, owner, repo.GetName(), entry.GetSHA())
		if err != nil {
			// Skip files we can't read (permissions, large files, etc.)
			continue
		}

		prov := types.GitProvenance{RepoPath: repo.GetFullName(), BlobPath: entry.GetPath()}
		if err := emit(e.config.Config, entry.GetPath(), data, prov, fn); err != nil {
			return err
		}
	}
	return nil
}
