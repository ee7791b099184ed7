package release

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/veilnet/veil-deploy/internal/logger"
	"github.com/veilnet/veil-deploy/internal/platform"
)

// Asset describes one downloadable release artifact for an architecture.
// It is derived from the upstream feed, used once, and discarded.
type Asset struct {
	// Name is the human-readable asset filename.
	Name string
	// DownloadURL is where the archive is fetched from.
	DownloadURL string
	// Digest is the algorithm-prefixed content hash published by the feed,
	// e.g. "sha256:<hex>". May be empty when upstream published none.
	Digest string
}

// Resolver finds the latest release asset for an architecture tag.
//
// Two interchangeable implementations exist: the structured GitHub API
// client and a best-effort text scanner over the raw feed. Both must agree
// for well-formed feeds.
type Resolver interface {
	LatestAsset(ctx context.Context, arch platform.Arch) (*Asset, error)
}

// ErrNoMatchingAsset is returned when the latest release has no artifact
// for the requested architecture.
var ErrNoMatchingAsset = errors.New("no matching release asset")

// AssetName returns the fixed upstream artifact name for an architecture.
func AssetName(arch platform.Arch) string {
	return fmt.Sprintf("veil-linux-%s.tar.gz", arch)
}

// NewHTTPClient returns the client used for all feed and download requests:
// one fixed overall timeout, no retries. A failed call fails the workflow.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// fallbackResolver tries the structured feed parser first and degrades to
// the text scanner only when the structured path cannot produce an asset.
type fallbackResolver struct {
	primary   Resolver
	secondary Resolver
}

// NewResolver returns the production resolver chain for a release repository.
func NewResolver(owner, repo string, client *http.Client) Resolver {
	return &fallbackResolver{
		primary:   NewGitHubResolver(owner, repo, client),
		secondary: NewTextResolver(owner, repo, client),
	}
}

// LatestAsset implements Resolver.
func (r *fallbackResolver) LatestAsset(ctx context.Context, arch platform.Arch) (*Asset, error) {
	asset, err := r.primary.LatestAsset(ctx, arch)
	if err == nil {
		return asset, nil
	}

	// A missing asset in a well-formed response is definitive:
	// the degraded parser would only look at the same feed again.
	if errors.Is(err, ErrNoMatchingAsset) {
		return nil, err
	}

	logger.WarnKV(ctx, "Structured release lookup failed, falling back to text scan",
		"error", err)

	return r.secondary.LatestAsset(ctx, arch)
}
