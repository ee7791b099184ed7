package integrity

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/veilnet/veil-deploy/internal/logger"
)

var (
	// ErrDigestMismatch is returned when the recomputed digest differs
	// from the expected one. Always fatal for callers.
	ErrDigestMismatch = errors.New("digest mismatch")
	// errMalformedDigest is returned for digests without an algorithm prefix.
	errMalformedDigest = errors.New("malformed digest, want <algorithm>:<hex>")
)

// Verify recomputes the digest of the file at path and compares it with the
// expected algorithm-prefixed value (e.g. "sha256:<hex>").
//
// An empty expected digest is a no-op success: the feed published nothing to
// check against. An unrecognized algorithm is a soft degrade: the check is
// skipped with a warning rather than failing the whole workflow.
func Verify(ctx context.Context, path, expected string) error {
	if expected == "" {
		logger.Warn(ctx, "No digest published for asset, skipping verification")
		return nil
	}

	algorithm, wantHex, found := strings.Cut(expected, ":")
	if !found {
		return fmt.Errorf("%w: %q", errMalformedDigest, expected)
	}

	hasher := newHasher(algorithm)
	if hasher == nil {
		logger.WarnKV(ctx, "Unsupported digest algorithm, skipping verification",
			"algorithm", algorithm)

		return nil
	}

	file, err := os.Open(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	defer func() {
		_ = file.Close()
	}()

	if _, err = io.Copy(hasher, file); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}

	gotHex := hex.EncodeToString(hasher.Sum(nil))
	if !strings.EqualFold(gotHex, wantHex) {
		return fmt.Errorf("%w for %s: expected %s, got %s:%s",
			ErrDigestMismatch, filepath.Base(path), expected, algorithm, gotHex)
	}

	logger.InfoKV(ctx, "Digest verified", "file", filepath.Base(path), "algorithm", algorithm)

	return nil
}

// newHasher returns a hash for the named algorithm, or nil when unknown.
func newHasher(algorithm string) hash.Hash {
	switch strings.ToLower(algorithm) {
	case "sha256":
		return sha256.New()
	case "sha512":
		return sha512.New()
	default:
		return nil
	}
}
