package release

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/go-github/v82/github"

	"github.com/veilnet/veil-deploy/internal/logger"
	"github.com/veilnet/veil-deploy/internal/platform"
)

// GitHubResolver resolves release assets through the typed GitHub API client.
type GitHubResolver struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHubResolver creates the structured resolver for a repository.
// The provided HTTP client carries the fetch timeout.
func NewGitHubResolver(owner, repo string, httpClient *http.Client) *GitHubResolver {
	return &GitHubResolver{
		client: github.NewClient(httpClient),
		owner:  owner,
		repo:   repo,
	}
}

// SetBaseURL redirects API calls, used by tests against a local feed.
func (r *GitHubResolver) SetBaseURL(base string) error {
	parsed, err := url.Parse(base + "/")
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}

	r.client.BaseURL = parsed

	return nil
}

// LatestAsset implements Resolver via the latest-release endpoint.
func (r *GitHubResolver) LatestAsset(ctx context.Context, arch platform.Arch) (*Asset, error) {
	rel, _, err := r.client.Repositories.GetLatestRelease(ctx, r.owner, r.repo)
	if err != nil {
		return nil, fmt.Errorf("fetch latest release: %w", err)
	}

	wantName := AssetName(arch)

	for _, asset := range rel.Assets {
		if asset.GetName() != wantName {
			continue
		}

		logger.InfoKV(ctx, "Resolved release asset",
			"release", rel.GetTagName(),
			"asset", wantName)

		return &Asset{
			Name:        asset.GetName(),
			DownloadURL: asset.GetBrowserDownloadURL(),
			Digest:      asset.GetDigest(),
		}, nil
	}

	return nil, fmt.Errorf("%w: %s in release %s", ErrNoMatchingAsset, wantName, rel.GetTagName())
}
