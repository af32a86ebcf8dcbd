package cmakeext

import (
	"fmt"
	"sort"
	"strings"
)

// platformToCMake maps Windows platform identifiers to cmake -A values.
var platformToCMake = map[string]string{
	"win32":     "Win32",
	"win-amd64": "x64",
	"win-arm32": "ARM",
	"win-arm64": "ARM64",
}

// CMakeArchitecture returns the cmake -A argument for a Windows platform
// identifier. Unknown identifiers fail with ErrUnsupportedPlatform rather
// than falling back to a default architecture.
func CMakeArchitecture(platformID string) (string, error) {
	arch, ok := platformToCMake[platformID]
	if !ok {
		return "", fmt.Errorf("%w: %q (known: %s)", ErrUnsupportedPlatform, platformID, strings.Join(KnownPlatforms(), ", "))
	}
	return arch, nil
}

// KnownPlatforms lists the identifiers CMakeArchitecture accepts, sorted.
func KnownPlatforms() []string {
	ids := make([]string, 0, len(platformToCMake))
	for id := range platformToCMake {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PlatformIDFor returns the platform identifier for a GOOS/GOARCH pair,
// spelled the way Python's build tooling names platforms.
//
// macOS identifiers carry no deployment target ("macosx-arm64", not
// "macosx-11.0-arm64"), so the derived build directories differ from the
// ones setuptools creates. Pass the full identifier with --plat-name to
// share them.
func PlatformIDFor(goos, goarch string) string {
	switch goos {
	case platformWindows:
		switch goarch {
		case "386":
			return "win32"
		case "amd64":
			return "win-amd64"
		case "arm":
			return "win-arm32"
		case "arm64":
			return "win-arm64"
		}
		return "win-" + goarch
	case platformDarwin:
		return "macosx-" + machineName(goos, goarch)
	default:
		return goos + "-" + machineName(goos, goarch)
	}
}

func machineName(goos, goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "386":
		return "i686"
	case "arm64":
		if goos == platformDarwin {
			return "arm64"
		}
		return "aarch64"
	case "arm":
		return "armv7l"
	default:
		return goarch
	}
}

const (
	platformWindows = "windows"
	platformDarwin  = "darwin"
)
