package params

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var versionNumber = regexp.MustCompile(`\d+\.\d+(?:\.\d+)?`)

// ParseToolVersion extracts the first version number from "--version" output,
// e.g. "svn, version 1.14.2 (r1899510)".
func ParseToolVersion(output string) (*semver.Version, error) {
	raw := versionNumber.FindString(output)
	if raw == "" {
		return nil, fmt.Errorf("no version number in %q", firstLine(output))
	}
	return semver.NewVersion(raw)
}

// CheckMinimumVersion returns a configuration problem when the tool version
// in output does not satisfy constraint, or an empty string when it does.
func CheckMinimumVersion(output, constraint string) string {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Sprintf("invalid minimum_version %q: %v", constraint, err)
	}

	version, err := ParseToolVersion(output)
	if err != nil {
		return fmt.Sprintf("unable to determine svn version: %v", err)
	}

	if !c.Check(version) {
		return fmt.Sprintf("svn version %s does not satisfy %q", version, constraint)
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
