package version

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// semVerPattern accepts an optional leading "v", as produced by git tags.
var semVerPattern = regexp.MustCompile(`^v?(0|[1-9]\d*)\.(0|[1-9]\d*)\.(0|[1-9]\d*)(?:-([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?(?:\+([0-9A-Za-z-]+(?:\.[0-9A-Za-z-]+)*))?$`)

// SemVer is a parsed semantic version (semver.org).
type SemVer struct {
	Major int64
	Minor int64
	Patch int64

	PreRelease string
	Build      string
}

// Parse parses a semantic version string such as the release tags stamped
// into AppVersion at build time.
func Parse(raw string) (SemVer, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SemVer{}, errors.New("version cannot be empty")
	}

	matches := semVerPattern.FindStringSubmatch(raw)
	if len(matches) != 6 {
		return SemVer{}, fmt.Errorf("invalid semantic version: %q", raw)
	}

	v := SemVer{
		PreRelease: matches[4],
		Build:      matches[5],
	}
	// The pattern guarantees the numeric groups parse.
	v.Major, _ = strconv.ParseInt(matches[1], 10, 64)
	v.Minor, _ = strconv.ParseInt(matches[2], 10, 64)
	v.Patch, _ = strconv.ParseInt(matches[3], 10, 64)

	if v.PreRelease != "" {
		for _, id := range strings.Split(v.PreRelease, ".") {
			if id == "" {
				return SemVer{}, errors.New("invalid prerelease identifier: empty")
			}
			if _, err := strconv.ParseInt(id, 10, 64); err == nil && len(id) > 1 && id[0] == '0' {
				return SemVer{}, fmt.Errorf("invalid prerelease numeric identifier %q: leading zero", id)
			}
		}
	}

	return v, nil
}

// IsValid reports whether raw is a well-formed semantic version.
func IsValid(raw string) bool {
	_, err := Parse(raw)
	return err == nil
}

// String returns the canonical form without the leading "v".
func (v SemVer) String() string {
	base := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.PreRelease != "" {
		base += "-" + v.PreRelease
	}
	if v.Build != "" {
		base += "+" + v.Build
	}
	return base
}

// IsPreRelease reports whether the version carries a prerelease tag.
func (v SemVer) IsPreRelease() bool {
	return v.PreRelease != ""
}
