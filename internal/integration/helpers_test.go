package integration

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/veilnet/veil-deploy/internal/config"
	"github.com/veilnet/veil-deploy/internal/platform"
	"github.com/veilnet/veil-deploy/internal/release"
)

// fakeHost simulates the pieces of a Linux host the workflows drive:
// systemd unit states and the account database.
type fakeHost struct {
	accounts  map[string]bool
	unitState map[string]string
	calls     []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{
		accounts:  make(map[string]bool),
		unitState: make(map[string]string),
	}
}

func (h *fakeHost) Run(_ context.Context, name string, args ...string) (string, error) {
	h.calls = append(h.calls, strings.Join(append([]string{name}, args...), " "))

	switch name {
	case "getent":
		account := args[len(args)-1]
		if h.accounts[account] {
			return account + ":x:998:998::/nonexistent:/usr/sbin/nologin", nil
		}

		return "", errors.New("exit status 2")
	case "useradd":
		h.accounts[args[len(args)-1]] = true
		return "", nil
	case "userdel":
		delete(h.accounts, args[len(args)-1])
		return "", nil
	case "chown":
		return "", nil
	case "systemctl":
		return h.systemctl(args)
	default:
		return "", fmt.Errorf("unexpected command %s", name)
	}
}

func (h *fakeHost) systemctl(args []string) (string, error) {
	switch args[0] {
	case "daemon-reload":
		return "", nil
	case "enable":
		// enable --now <unit>
		h.unitState[args[len(args)-1]] = "active"
		return "", nil
	case "start":
		h.unitState[args[1]] = "active"
		return "", nil
	case "stop":
		h.unitState[args[1]] = "inactive"
		return "", nil
	case "disable":
		return "", nil
	case "is-active":
		state, ok := h.unitState[args[1]]
		if !ok {
			state = "inactive"
		}

		if state == "active" {
			return state, nil
		}

		return state, errors.New("exit status 3")
	default:
		return "", fmt.Errorf("unexpected systemctl verb %s", args[0])
	}
}

func (h *fakeHost) LookPath(name string) (string, error) {
	return "/usr/bin/" + name, nil
}

// testSettings lays the whole deployment out inside a temp directory.
func testSettings(t *testing.T, dir string) (*config.Settings, string) {
	t.Helper()

	settings := config.DefaultSettings()
	settings.BinaryPath = filepath.Join(dir, "bin", "veil")
	settings.WrapperPath = filepath.Join(dir, "bin", "veil-run")
	settings.ConfigDir = filepath.Join(dir, "etc", "veil")
	settings.UnitPath = filepath.Join(dir, "units", "veil.service")
	settings.FetchTimeout = 5 * time.Second
	settings.PollAttempts = 3
	settings.PollInterval = time.Millisecond

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "units"), 0o755))

	settingsPath := filepath.Join(dir, config.DefaultSettingsFilename)
	require.NoError(t, config.SaveSettings(settingsPath, settings))

	return settings, settingsPath
}

// buildArchive produces a release tar.gz containing the veil binary.
func buildArchive(t *testing.T, binary []byte) []byte {
	t.Helper()

	var buf bytes.Buffer

	gzWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzWriter)

	require.NoError(t, tarWriter.WriteHeader(&tar.Header{
		Name:     "veil",
		Typeflag: tar.TypeReg,
		Mode:     0o755,
		Size:     int64(len(binary)),
	}))

	_, err := tarWriter.Write(binary)
	require.NoError(t, err)
	require.NoError(t, tarWriter.Close())
	require.NoError(t, gzWriter.Close())

	return buf.Bytes()
}

// releaseFeed serves a GitHub-shaped latest-release document and the
// archive it points at, counting feed hits.
type releaseFeed struct {
	server *httptest.Server
	hits   atomic.Int64
}

func startReleaseFeed(t *testing.T, archiveBytes []byte) *releaseFeed {
	t.Helper()

	arch, err := platform.HostArch()
	require.NoError(t, err)

	assetName := release.AssetName(arch)
	sum := sha256.Sum256(archiveBytes)
	digest := "sha256:" + hex.EncodeToString(sum[:])

	feed := &releaseFeed{}

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/veilnet/veil/releases/latest",
		func(w http.ResponseWriter, _ *http.Request) {
			feed.hits.Add(1)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"tag_name":"v1.4.2","assets":[{"name":%q,"browser_download_url":%q,"digest":%q}]}`,
				assetName, feed.server.URL+"/download/"+assetName, digest)
		})
	mux.HandleFunc("/download/"+assetName,
		func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write(archiveBytes)
		})

	feed.server = httptest.NewServer(mux)
	t.Cleanup(feed.server.Close)

	return feed
}

// resolver builds the structured resolver pointed at the local feed.
func (f *releaseFeed) resolver(t *testing.T) release.Resolver {
	t.Helper()

	r := release.NewGitHubResolver("veilnet", "veil", release.NewHTTPClient(5*time.Second))
	require.NoError(t, r.SetBaseURL(f.server.URL))

	return r
}
