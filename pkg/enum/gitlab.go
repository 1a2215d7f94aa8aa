package enum

import (
	"context"
	"fmt"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"golang.org/x/time/rate"

	"github.com/praetorian-inc/kwmatch/pkg/types"
)

// GitLabConfig for GitLab API enumeration.
type GitLabConfig struct {
	Token   string
	BaseURL string  // Optional, defaults to gitlab.com
	Project string  // Single project path (namespace/project)
	Group   string  // Group name (optional)
	User    string  // User name (optional)
	Rate    float64 // API requests per second (0 = DefaultAPIRate)
	Config          // Embedded base Config
}

// GitLabEnumerator enumerates blobs from GitLab projects via API.
type GitLabEnumerator struct {
	client  *gitlab.Client
	limiter *rate.Limiter
	config  GitLabConfig
}

// NewGitLabEnumerator creates a new GitLab enumerator.
func NewGitLabEnumerator(cfg GitLabConfig) (*GitLabEnumerator, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("GitLab token is required")
	}
	if cfg.Project == "" && cfg.Group == "" && cfg.User == "" {
		return nil, fmt.Errorf("must specify project, group, or user")
	}

	var opts []gitlab.ClientOptionFunc
	if cfg.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(cfg.BaseURL))
	}
	client, err := gitlab.NewClient(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}

	return &GitLabEnumerator{client: client, limiter: newLimiter(cfg.Rate), config: cfg}, nil
}

// Enumerate walks GitLab projects and yields their blobs.
func (e *GitLabEnumerator) Enumerate(ctx context.Context, fn Callback) error {
	projects, err := e.listProjects(ctx)
	if err != nil {
		return err
	}

	for _, project := range projects {
		if err := canceled(ctx); err != nil {
			return err
		}
		if err := e.enumerateProject(ctx, project, fn); err != nil {
			return fmt.Errorf("enumerating %s: %w", project.PathWithNamespace, err)
		}
	}
	return nil
}

// listProjects returns the list of projects to enumerate.
func (e *GitLabEnumerator) listProjects(ctx context.Context) ([]*gitlab.Project, error) {
	if e.config.Project != "" {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		project, _, err := e.client.Projects.GetProject(e.config.Project, nil, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("getting project: %w", err)
		}
		return []*gitlab.Project{project}, nil
	}

	var all []*gitlab.Project
	switch {
	case e.config.Group != "":
		opts := &gitlab.ListGroupProjectsOptions{ListOptions: gitlab.ListOptions{PerPage: 100}}
		for {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			projects, resp, err := e.client.Groups.ListGroupProjects(e.config.Group, opts, gitlab.WithContext(ctx))
			if err != nil {
				return nil, fmt.Errorf("listing group projects: %w", err)
			}
			all = append(all, projects...)
			if resp.NextPage == 0 {
				return all, nil
			}
			opts.Page = resp.NextPage
		}

	default:
		opts := &gitlab.ListProjectsOptions{
			ListOptions: gitlab.ListOptions{PerPage: 100},
			Owned:       gitlab.Ptr(true),
		}
		for {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			projects, resp, err := e.client.Projects.ListUserProjects(e.config.User, opts, gitlab.WithContext(ctx))
			if err != nil {
				return nil, fmt.Errorf("listing user projects: %w", err)
			}
			all = append(all, projects...)
			if resp.NextPage == 0 {
				return all, nil
			}
			opts.Page = resp.NextPage
		}
	}
}

// ListProjectURLs returns clone URLs for projects matching the configuration.
func (e *GitLabEnumerator) ListProjectURLs(ctx context.Context) ([]RepoInfo, error) {
	projects, err := e.listProjects(ctx)
	if err != nil {
		return nil, err
	}

	urls := make([]RepoInfo, 0, len(projects))
	for _, p := range projects {
		urls = append(urls, RepoInfo{
			Name:          p.PathWithNamespace,
			CloneURL:      p.HTTPURLToRepo,
			DefaultBranch: p.DefaultBranch,
		})
	}
	return urls, nil
}

// enumerateProject walks a single project's file tree.
func (e *GitLabEnumerator) enumerateProject(ctx context.Context, project *gitlab.Project, fn Callback) error {
	opts := &gitlab.ListTreeOptions{
		Recursive:   gitlab.Ptr(true),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}

	var nodes []*gitlab.TreeNode
	for {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		page, resp, err := e.client.Repositories.ListTree(project.ID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("listing tree: %w", err)
		}
		nodes = append(nodes, page...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	for _, node := range nodes {
		if err := canceled(ctx); err != nil {
			return err
		}
		if node.Type != "blob" {
			continue
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}
		content, _, err := e.client.RepositoryFiles.GetRawFile(project.ID, node.Path, &gitlab.GetRawFileOptions{}, gitlab.WithContext(ctx))
		if err != nil {
			// Skip files we can't read
			continue
		}
		if e.config.MaxFileSize > 0 && int64(len(content)) > e.config.MaxFileSize {
			continue
		}

		prov := types.GitProvenance{RepoPath: project.PathWithNamespace, BlobPath: node.Path}
		if err := emit(e.config.Config, node.Path, content, prov, fn); err != nil {
			return err
		}
	}
	return nil
}
