package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidateRuntime covers the invariant that both fields must be present and sane.
func TestValidateRuntime(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, ValidateRuntime(&Runtime{Port: 0, Password: "x"}), ErrPortOutOfRange)
	require.ErrorIs(t, ValidateRuntime(&Runtime{Port: 65536, Password: "x"}), ErrPortOutOfRange)
	require.ErrorIs(t, ValidateRuntime(&Runtime{Port: 8443}), ErrPasswordRequired)
	require.ErrorIs(t, ValidateRuntime(&Runtime{Port: 8443, Password: "a\nb"}), ErrPasswordLineBreak)
	require.ErrorIs(t, ValidateRuntime(&Runtime{Port: 8443, Password: "a\rb"}), ErrPasswordLineBreak)
	require.NoError(t, ValidateRuntime(&Runtime{Port: 8443, Password: "secret1"}))
}

// TestRuntimeSaveLoadRoundtrip ensures the wrapper-facing file format round-trips.
func TestRuntimeSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), RuntimeConfigFilename)
	want := &Runtime{Port: 8443, Password: "s3cr=t with spaces"}

	require.NoError(t, SaveRuntime(path, want))

	got, err := LoadRuntime(path)
	require.NoError(t, err)
	require.Equal(t, want, got)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "PORT=8443\nPASSWORD=s3cr=t with spaces\n", string(contents))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(RuntimeFilePermissions), info.Mode().Perm())
}

// TestLoadRuntime_Malformed rejects files that do not follow KEY=value.
func TestLoadRuntime_Malformed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	path := filepath.Join(dir, "broken.conf")
	require.NoError(t, os.WriteFile(path, []byte("PORT 8443\n"), 0o600))

	_, err := LoadRuntime(path)
	require.ErrorIs(t, err, ErrMalformedRuntimeConfig)

	path = filepath.Join(dir, "unknown.conf")
	require.NoError(t, os.WriteFile(path, []byte("PORT=8443\nPASSWORD=x\nEXTRA=1\n"), 0o600))

	_, err = LoadRuntime(path)
	require.ErrorIs(t, err, ErrMalformedRuntimeConfig)
}

// TestLoadRuntime_Missing surfaces the missing-file precondition.
func TestLoadRuntime_Missing(t *testing.T) {
	t.Parallel()

	_, err := LoadRuntime(filepath.Join(t.TempDir(), "absent.conf"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
