package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/veilnet/veil-deploy/internal/logger"
	"github.com/veilnet/veil-deploy/internal/platform"
)

// TextResolver extracts asset fields by pattern-matching the raw feed body.
//
// This is the degraded path: it assumes each asset object carries its name,
// browser_download_url and digest close together, which the feed happens to
// do today but does not guarantee. Use only when the structured parser fails.
type TextResolver struct {
	client  *http.Client
	baseURL string
	owner   string
	repo    string
}

const (
	defaultAPIBase = "https://api.github.com"

	// assetWindow bounds how far past an asset's name the scanner looks for
	// the remaining fields before concluding the object ended.
	assetWindow = 4096

	// maxFeedBody caps how much of the feed is read into memory.
	maxFeedBody = 8 << 20
)

var (
	errBadFeedStatus = errors.New("unexpected release feed status")

	downloadURLPattern = regexp.MustCompile(`"browser_download_url"\s*:\s*"([^"]+)"`)
	digestPattern      = regexp.MustCompile(`"digest"\s*:\s*"([^"]+)"`)
)

// NewTextResolver creates the fallback resolver for a repository.
func NewTextResolver(owner, repo string, client *http.Client) *TextResolver {
	return &TextResolver{
		client:  client,
		baseURL: defaultAPIBase,
		owner:   owner,
		repo:    repo,
	}
}

// SetBaseURL redirects feed requests, used by tests against a local feed.
func (r *TextResolver) SetBaseURL(base string) {
	r.baseURL = strings.TrimRight(base, "/")
}

// LatestAsset implements Resolver by scanning the raw latest-release JSON.
func (r *TextResolver) LatestAsset(ctx context.Context, arch platform.Arch) (*Asset, error) {
	body, err := r.fetchFeed(ctx)
	if err != nil {
		return nil, err
	}

	wantName := AssetName(arch)

	namePattern, err := regexp.Compile(`"name"\s*:\s*"` + regexp.QuoteMeta(wantName) + `"`)
	if err != nil {
		return nil, fmt.Errorf("compile asset pattern: %w", err)
	}

	loc := namePattern.FindStringIndex(body)
	if loc == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMatchingAsset, wantName)
	}

	// Scan the window following the name for the sibling fields. The next
	// "name" key marks the start of the following asset object.
	window := body[loc[1]:]
	if len(window) > assetWindow {
		window = window[:assetWindow]
	}

	if next := strings.Index(window, `"name"`); next >= 0 {
		window = window[:next]
	}

	urlMatch := downloadURLPattern.FindStringSubmatch(window)
	if urlMatch == nil {
		return nil, fmt.Errorf("%w: no download URL near asset %s", ErrNoMatchingAsset, wantName)
	}

	asset := &Asset{
		Name:        wantName,
		DownloadURL: urlMatch[1],
	}

	// Digest is optional: verification soft-degrades without it.
	if digestMatch := digestPattern.FindStringSubmatch(window); digestMatch != nil {
		asset.Digest = digestMatch[1]
	}

	logger.InfoKV(ctx, "Resolved release asset via text scan", "asset", wantName)

	return asset, nil
}

// fetchFeed downloads the raw latest-release document.
func (r *TextResolver) fetchFeed(ctx context.Context) (string, error) {
	feedURL := fmt.Sprintf("%s/repos/%s/%s/releases/latest", r.baseURL, r.owner, r.repo)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build feed request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch release feed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s from %s", errBadFeedStatus, resp.Status, feedURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return "", fmt.Errorf("read release feed: %w", err)
	}

	return string(body), nil
}
