package archive

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrMemberNotFound is returned when the expected binary is absent
// from the downloaded archive.
var ErrMemberNotFound = errors.New("expected file not found in archive")

// maxMemberSize caps decompression to guard against a hostile archive.
const maxMemberSize = 512 << 20

// ExtractFile extracts the single named member from a gzip-compressed tar
// archive into destDir and returns the extracted file's path. Upstream
// archives contain exactly one binary under a fixed name; anything else in
// the archive is ignored.
func ExtractFile(archivePath, member, destDir string) (string, error) {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}

	defer func() {
		_ = file.Close()
	}()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return "", fmt.Errorf("read gzip: %w", err)
	}

	defer func() {
		_ = gzReader.Close()
	}()

	tarReader := tar.NewReader(gzReader)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("read archive: %w", err)
		}

		if header.Typeflag != tar.TypeReg {
			continue
		}

		// Archives may nest the binary in a release directory.
		if filepath.Base(header.Name) != member {
			continue
		}

		return writeMember(tarReader, filepath.Join(destDir, member))
	}

	return "", fmt.Errorf("%w: %s", ErrMemberNotFound, member)
}

// writeMember copies one archive member to disk.
func writeMember(reader io.Reader, destPath string) (string, error) {
	out, err := os.OpenFile(filepath.Clean(destPath), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", destPath, err)
	}

	_, err = io.Copy(out, io.LimitReader(reader, maxMemberSize))
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return "", fmt.Errorf("extract to %s: %w", destPath, err)
	}

	return destPath, nil
}
