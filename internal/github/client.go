// Package github fetches branch lists and README content from the source
// repository.
package github

import (
	"context"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/pzntech/showcase-crawler/internal/catalog"
)

// Config identifies the source repository and its access token.
type Config struct {
	Owner         string
	Repo          string
	Token         string
	PrimaryBranch string
}

// Client implements catalog.ContentSource against the GitHub REST API.
type Client struct {
	repos repositoriesAPI
	cfg   Config
}

// repositoriesAPI is the slice of the go-github repositories service the
// client depends on, kept narrow so tests can fake it.
type repositoriesAPI interface {
	ListBranches(
		ctx context.Context,
		owner, repo string,
		opts *gh.BranchListOptions,
	) ([]*gh.Branch, *gh.Response, error)
	GetReadme(
		ctx context.Context,
		owner, repo string,
		opts *gh.RepositoryContentGetOptions,
	) (*gh.RepositoryContent, *gh.Response, error)
}

// New creates a Client. An empty token falls back to unauthenticated access,
// which is enough for public repositories but rate-limited.
func New(cfg Config) *Client {
	var httpClient *http.Client
	if cfg.Token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		httpClient = oauth2.NewClient(context.Background(), src)
	}
	if cfg.PrimaryBranch == "" {
		cfg.PrimaryBranch = "main"
	}
	return &Client{
		repos: gh.NewClient(httpClient).Repositories,
		cfg:   cfg,
	}
}

// NewWithAPI constructs a Client over an existing API implementation,
// primarily for testing.
func NewWithAPI(api repositoriesAPI, cfg Config) *Client {
	if cfg.PrimaryBranch == "" {
		cfg.PrimaryBranch = "main"
	}
	return &Client{repos: api, cfg: cfg}
}

// Branches lists the repository's branch names, filtered to the primary
// branch plus season-<N> branches and sorted primary-first then by ascending
// season number.
func (c *Client) Branches(ctx context.Context) ([]string, error) {
	opts := &gh.BranchListOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	var names []string
	for {
		branches, resp, err := c.repos.ListBranches(ctx, c.cfg.Owner, c.cfg.Repo, opts)
		if err != nil {
			return nil, fmt.Errorf("list branches for %s/%s: %w", c.cfg.Owner, c.cfg.Repo, err)
		}
		for _, b := range branches {
			names = append(names, b.GetName())
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return catalog.FilterSortBranches(names, c.cfg.PrimaryBranch), nil
}

// Readme fetches the decoded README content for a branch. A missing README
// returns an empty string with no error; the caller skips the branch with a
// warning.
func (c *Client) Readme(ctx context.Context, branch string) (string, error) {
	opts := &gh.RepositoryContentGetOptions{Ref: branch}
	readme, resp, err := c.repos.GetReadme(ctx, c.cfg.Owner, c.cfg.Repo, opts)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", fmt.Errorf("get readme for branch %s: %w", branch, err)
	}
	content, err := readme.GetContent()
	if err != nil {
		return "", fmt.Errorf("decode readme for branch %s: %w", branch, err)
	}
	return content, nil
}
