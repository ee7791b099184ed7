package release

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/veilnet/veil-deploy/internal/logger"
)

var errBadDownloadStatus = errors.New("unexpected download status")

// Download fetches the asset archive into destDir and returns the local path.
// destDir is expected to be an ephemeral, permission-restricted working
// directory owned by the calling workflow.
func Download(ctx context.Context, client *http.Client, asset *Asset, destDir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.DownloadURL, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("build download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", asset.Name, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s from %s", errBadDownloadStatus, resp.Status, asset.DownloadURL)
	}

	destPath := filepath.Join(destDir, path.Base(asset.Name))

	out, err := os.OpenFile(filepath.Clean(destPath), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", destPath, err)
	}

	written, err := io.Copy(out, resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return "", fmt.Errorf("write %s: %w", destPath, err)
	}

	logger.InfoKV(ctx, "Downloaded release asset",
		"asset", asset.Name,
		"bytes", written)

	return destPath, nil
}
