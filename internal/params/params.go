// Package params normalizes and validates the raw pipeline fields of the
// checkout and copy operations.
package params

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// DefaultExecutable is the tool invoked when no executable field is supplied.
const DefaultExecutable = "svn"

const exportCommand = "export"

var trailingSeparator = regexp.MustCompile(`(&&|[;&])\s*$`)

// Getter exposes raw pipeline fields. Values keep whatever type the source
// produced (bool, number or string).
type Getter interface {
	Get(name string) (any, bool)
}

// VersionProbe runs "<executable> --version" and returns its output. A
// non-nil error means the executable is unusable.
type VersionProbe interface {
	ToolVersion(ctx context.Context, envPrefix, executable string) (string, error)
}

// ValidationError aggregates every configuration problem found in one call.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return "Configuration errors: " + strings.Join(e.Problems, ", ")
}

// Common holds the fields shared by every operation.
type Common struct {
	Executable  string
	Environment string
	EnvPrefix   string
	Options     string
}

// CheckoutRequest is a validated checkout/update request.
type CheckoutRequest struct {
	Common
	Path             string
	URL              string
	CleanWorkingCopy bool
	ForceBuild       bool
	// ToolVersion is the parsed version of the executable, empty when the
	// --version output carried no recognizable number.
	ToolVersion string
}

// CopyRequest is a validated copy (branch/tag) request.
type CopyRequest struct {
	Common
	Source      string
	Revision    string
	Destination string
	Message     string
}

// Validator turns raw fields into requests.
type Validator struct {
	// Probe checks the executable. A nil Probe skips the check.
	Probe VersionProbe
	// WorkspaceRoot is the directory default working copies live under.
	// Defaults to "~/wc".
	WorkspaceRoot string
	// Exists reports whether a filesystem path exists. Defaults to os.Stat.
	Exists func(path string) bool
}

// Checkout validates the fields of a checkout request. The returned request
// carries the resolved Path even when validation fails, so callers
// can record it for downstream steps.
func (v Validator) Checkout(ctx context.Context, fields Getter) (CheckoutRequest, error) {
	common, versionOutput, problems, err := v.common(ctx, fields)
	if err != nil {
		return CheckoutRequest{}, err
	}

	req := CheckoutRequest{Common: common}
	req.Path = StringField(fields, "path", "")
	if req.Path == "" {
		path, err := DefaultPath(v.WorkspaceRoot, StringField(fields, "composition", ""), StringField(fields, "composition_id", ""))
		if err != nil {
			problems = append(problems, fmt.Sprintf("unable to derive default path: %v", err))
		}
		req.Path = path
	}

	req.URL = StringField(fields, "url", "")
	req.CleanWorkingCopy = BoolField(fields, "clean_working_copy")
	req.ForceBuild = BoolField(fields, "force_build")

	if req.URL == "" {
		problems = append(problems, "no svn url specified")
	}

	if versionOutput != "" {
		if version, err := ParseToolVersion(versionOutput); err == nil {
			req.ToolVersion = version.String()
		}
		if constraint := strings.TrimSpace(StringField(fields, "minimum_version", "")); constraint != "" {
			if problem := CheckMinimumVersion(versionOutput, constraint); problem != "" {
				problems = append(problems, problem)
			}
		}
	}

	if len(problems) > 0 {
		return CheckoutRequest{Path: req.Path}, &ValidationError{Problems: problems}
	}
	return req, nil
}

// Copy validates the fields of a copy request.
func (v Validator) Copy(ctx context.Context, fields Getter) (CopyRequest, error) {
	common, _, problems, err := v.common(ctx, fields)
	if err != nil {
		return CopyRequest{}, err
	}

	req := CopyRequest{
		Common:      common,
		Source:      StringField(fields, "source", ""),
		Revision:    StringField(fields, "revision", ""),
		Destination: StringField(fields, "destination", ""),
		Message:     StringField(fields, "message", ""),
	}

	if req.Source == "" {
		problems = append(problems, "no source specified")
	}
	if req.Destination == "" {
		problems = append(problems, "no destination specified")
	} else if v.exists(req.Destination) {
		problems = append(problems, fmt.Sprintf("Destination '%s' already exists", req.Destination))
	}

	if len(problems) > 0 {
		return CopyRequest{}, &ValidationError{Problems: problems}
	}
	return req, nil
}

func (v Validator) common(ctx context.Context, fields Getter) (Common, string, []string, error) {
	var problems []string

	c := Common{
		Executable:  StringField(fields, "executable", DefaultExecutable),
		Environment: StringField(fields, "environment", ""),
		Options:     StringField(fields, "options", ""),
	}
	c.EnvPrefix = EnvPrefix(c.Environment)

	var versionOutput string
	if v.Probe != nil {
		out, err := v.Probe.ToolVersion(ctx, c.EnvPrefix, c.Executable)
		if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
			return c, "", nil, ctxErr
		}
		if err != nil {
			problems = append(problems, "svn not installed (or not on path)")
		} else {
			versionOutput = out
		}
	}

	return c, versionOutput, problems, nil
}

func (v Validator) exists(path string) bool {
	if v.Exists != nil {
		return v.Exists(path)
	}
	_, err := os.Stat(path)
	return err == nil
}

// EnvPrefix renders the environment setup string as an export clause chained
// in front of the tool invocation. Trailing separators are dropped so the
// clause always ends in a single "&&".
func EnvPrefix(environment string) string {
	environment = strings.TrimSpace(environment)
	if environment == "" {
		return ""
	}
	environment = strings.TrimSpace(trailingSeparator.ReplaceAllString(environment, ""))
	if environment == "" {
		return ""
	}
	return fmt.Sprintf("%s %s && ", exportCommand, environment)
}

// StringField returns the named field as a string, or fallback when the
// field is missing, nil or blank. Non-blank values are returned unchanged.
func StringField(fields Getter, name, fallback string) string {
	if fields == nil {
		return fallback
	}
	raw, ok := fields.Get(name)
	if !ok || raw == nil {
		return fallback
	}

	var s string
	switch v := raw.(type) {
	case string:
		s = v
	case fmt.Stringer:
		s = v.String()
	default:
		s = fmt.Sprint(v)
	}

	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// BoolField coerces the named field with CoerceBool. Missing fields are false.
func BoolField(fields Getter, name string) bool {
	if fields == nil {
		return false
	}
	raw, ok := fields.Get(name)
	if !ok {
		return false
	}
	return CoerceBool(raw)
}

// CoerceBool maps the accepted truthy representations to true:
//
//   - the boolean true
//   - any non-zero integer or float
//   - the strings "true" and "t", case-insensitively
//
// Everything else, including nil, is false.
func CoerceBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int8:
		return t != 0
	case int16:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint:
		return t != 0
	case uint8:
		return t != 0
	case uint16:
		return t != 0
	case uint32:
		return t != 0
	case uint64:
		return t != 0
	case float32:
		return t != 0
	case float64:
		return t != 0
	case json.Number:
		f, err := strconv.ParseFloat(string(t), 64)
		return err == nil && f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "t":
			return true
		}
		return false
	default:
		return false
	}
}
