package svn

import (
	"errors"
	"regexp"
)

var revisionLine = regexp.MustCompile(`Revision:\s*(\w+)`)

// ErrRevisionNotFound is returned when "svn info" output carries no revision.
var ErrRevisionNotFound = errors.New("no revision found in svn info output")

// ExtractRevision returns the first "Revision: <token>" value in output. The
// token is opaque and never parsed as a number.
func ExtractRevision(output string) (string, error) {
	m := revisionLine.FindStringSubmatch(output)
	if m == nil {
		return "", ErrRevisionNotFound
	}
	return m[1], nil
}
