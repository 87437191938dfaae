package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/allowuntil/pkg/gate"
)

// Environment variables consulted for the current version.
const (
	VersionEnv        = "ALLOWUNTIL_VERSION"
	PackageVersionEnv = "PACKAGE_VERSION"
)

// ErrNoVersion means no source provided a current version.
var ErrNoVersion = errors.New("current version not set: use --current-version, " +
	VersionEnv + ", the version key in " + ConfigFileName + ", or a " + VersionFileName + " file")

// Source identifies where the current version came from.
type Source int

const (
	SourceNone Source = iota
	SourceFlag
	SourceEnv
	SourcePackageEnv
	SourceConfig
	SourceFile
)

func (s Source) String() string {
	switch s {
	case SourceFlag:
		return "--current-version"
	case SourceEnv:
		return VersionEnv
	case SourcePackageEnv:
		return PackageVersionEnv
	case SourceConfig:
		return ConfigFileName
	case SourceFile:
		return VersionFileName + " file"
	default:
		return "unset"
	}
}

// Resolution is a resolved current version and its provenance.
type Resolution struct {
	Version string
	Source  Source
}

// ResolveVersion resolves the current project version.
// Precedence (highest to lowest): explicit flag > ALLOWUNTIL_VERSION >
// PACKAGE_VERSION > version key in the config file > VERSION file at
// the project root. The resolved value must be a full semantic version;
// a malformed one is reported with its source so the user knows which
// setting to fix.
func ResolveVersion(explicit, configVersion, root string) (Resolution, error) {
	res := pickVersion(explicit, configVersion, root)
	if res.Source == SourceNone {
		return res, ErrNoVersion
	}
	if _, err := gate.ParseVersion(res.Version); err != nil {
		return res, fmt.Errorf("%s: %w", res.Source, err)
	}
	return res, nil
}

func pickVersion(explicit, configVersion, root string) Resolution {
	if explicit != "" {
		return Resolution{Version: explicit, Source: SourceFlag}
	}
	if v := os.Getenv(VersionEnv); v != "" {
		return Resolution{Version: v, Source: SourceEnv}
	}
	if v := os.Getenv(PackageVersionEnv); v != "" {
		return Resolution{Version: v, Source: SourcePackageEnv}
	}
	if configVersion != "" {
		return Resolution{Version: configVersion, Source: SourceConfig}
	}
	if root != "" {
		if v := readVersionFile(filepath.Join(root, VersionFileName)); v != "" {
			return Resolution{Version: v, Source: SourceFile}
		}
	}
	return Resolution{}
}

// readVersionFile returns the trimmed first line of a VERSION file, or
// empty when the file is absent or blank.
func readVersionFile(path string) string {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is root/VERSION
	if err != nil {
		return ""
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimSpace(line)
}
