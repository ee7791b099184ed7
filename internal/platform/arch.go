package platform

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Arch is a release-asset architecture tag.
type Arch string

// Supported release architectures. Upstream publishes exactly these two.
const (
	ArchAMD64 Arch = "amd64"
	ArchARM64 Arch = "arm64"
)

// ErrUnsupportedArch is returned for machine types without a published release.
var ErrUnsupportedArch = errors.New("unsupported architecture")

// ResolveArch maps a host machine identifier (uname -m style or GOARCH)
// to the release-asset tag. Unsupported machines are a hard error:
// there is nothing to download for them.
func ResolveArch(machine string) (Arch, error) {
	switch strings.TrimSpace(strings.ToLower(machine)) {
	case "x86_64", "amd64":
		return ArchAMD64, nil
	case "aarch64", "arm64":
		return ArchARM64, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedArch, machine)
	}
}

// HostArch resolves the architecture of the running process.
func HostArch() (Arch, error) {
	return ResolveArch(runtime.GOARCH)
}
