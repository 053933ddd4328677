package gh

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

var disallowedVariableChars = regexp.MustCompile(`[^A-Z0-9_]+`)

const (
	maxVariableName = 100
	hashLength      = 8
	reservedPrefix  = "GITHUB_"
)

// VariableName derives a valid Actions variable name from prefix and key:
// upper-cased, restricted to [A-Z0-9_], never starting with a digit or the
// reserved GITHUB_ prefix, and shortened with a hash suffix when too long.
func VariableName(prefix, key string) string {
	name := sanitizeVariableSegment(prefix)
	if k := sanitizeVariableSegment(key); k != "" {
		if name == "" {
			name = k
		} else {
			name += "_" + k
		}
	}
	if name == "" {
		name = "SVN_ACTION_STATE"
	}

	if strings.HasPrefix(name, reservedPrefix) || (name[0] >= '0' && name[0] <= '9') {
		name = "X_" + name
	}

	if len(name) <= maxVariableName {
		return name
	}
	return shortenVariableName(name)
}

func sanitizeVariableSegment(segment string) string {
	segment = strings.ToUpper(strings.TrimSpace(segment))
	segment = disallowedVariableChars.ReplaceAllString(segment, "_")
	for strings.Contains(segment, "__") {
		segment = strings.ReplaceAll(segment, "__", "_")
	}
	return strings.Trim(segment, "_")
}

func shortenVariableName(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	suffix := fmt.Sprintf("_%0*X", hashLength, h.Sum32())

	base := strings.TrimRight(name[:maxVariableName-len(suffix)], "_")
	return base + suffix
}

// ParseRepository splits an "owner/name" reference such as GITHUB_REPOSITORY.
func ParseRepository(ref string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(ref), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRepository, ref)
	}
	return owner, repo, nil
}
