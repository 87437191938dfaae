package gate

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ParseVersion parses a fully-resolved semantic version (major.minor.patch).
// A single leading "v" is tolerated for tag-style versions. Pre-release and
// build metadata parse but never participate in gate comparison.
func ParseVersion(s string) (*semver.Version, error) {
	trimmed := strings.TrimSpace(s)
	v, err := semver.StrictNewVersion(strings.TrimPrefix(trimmed, "v"))
	if err != nil {
		return nil, &MalformedVersionError{Input: s, Err: err}
	}
	return v, nil
}
