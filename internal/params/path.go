package params

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultWorkspaceRoot is where working copies without an explicit path go.
const DefaultWorkspaceRoot = "~/wc"

var disallowedNameChars = regexp.MustCompile(`[^\w-]`)

// SanitizeComposition lower-cases and trims the composition name, turns spaces
// into dashes and drops everything outside [A-Za-z0-9_-].
func SanitizeComposition(name string) string {
	s := strings.ReplaceAll(strings.TrimSpace(strings.ToLower(name)), " ", "-")
	return disallowedNameChars.ReplaceAllString(s, "")
}

// DefaultPath derives the working copy location for a composition:
// <root>/<sanitized composition>-<composition id>, expanded to an absolute path.
func DefaultPath(root, composition, compositionID string) (string, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultWorkspaceRoot
	}

	expanded, err := ExpandHome(root)
	if err != nil {
		return "", err
	}

	name := fmt.Sprintf("%s-%s", SanitizeComposition(composition), strings.TrimSpace(compositionID))
	return filepath.Abs(filepath.Join(expanded, name))
}

// ExpandHome expands a leading ~ to the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
