package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rancher/svn-action/internal/fieldstore"
	"github.com/rancher/svn-action/internal/orchestrator"
)

func (r *Runner) writeStepSummary(result orchestrator.Result, runErr error) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_STEP_SUMMARY"))
	if path == "" {
		return nil
	}

	ensureParentDir(path, "summary")

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("## SVN %s summary\n\n", result.Operation))
	builder.WriteString(renderResultDetails(result, runErr))

	return appendToFile(path, "step summary", builder.String())
}

// writeGitHubOutputs appends the recorded outputs, the build decision and any
// failure to the GITHUB_OUTPUT file.
func (r *Runner) writeGitHubOutputs(outputs []fieldstore.Output, result orchestrator.Result, runErr error) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_OUTPUT"))
	if path == "" {
		return nil
	}

	ensureParentDir(path, "outputs")

	var builder strings.Builder
	delimiter := "ghadelimiter_" + uuid.NewString()

	for _, output := range outputs {
		writeMultilineOutput(&builder, output.Name, output.Value, delimiter)
	}

	if runErr == nil {
		writeMultilineOutput(&builder, "decision", string(result.Decision), delimiter)
		writeMultilineOutput(&builder, "build_needed", strconv.FormatBool(result.BuildNeeded()), delimiter)
		if result.Reason != "" {
			writeMultilineOutput(&builder, "reason", result.Reason, delimiter)
		}
	} else {
		kind, ok := orchestrator.KindOf(runErr)
		if !ok {
			kind = orchestrator.KindUnexpected
		}
		writeMultilineOutput(&builder, "error_kind", string(kind), delimiter)
		writeMultilineOutput(&builder, "error", runErr.Error(), delimiter)
	}

	return appendToFile(path, "github output", builder.String())
}

func renderResultDetails(result orchestrator.Result, runErr error) string {
	var builder strings.Builder

	if runErr != nil {
		kind, ok := orchestrator.KindOf(runErr)
		if !ok {
			kind = orchestrator.KindUnexpected
		}
		builder.WriteString(fmt.Sprintf("Failed (%s): %s\n\n", kind, sanitizeMarkdownCell(firstLine(runErr.Error()))))
	} else if result.Skipped() {
		builder.WriteString(fmt.Sprintf("Build not needed: %s\n\n", sanitizeMarkdownCell(result.Reason)))
	}

	builder.WriteString("| Field | Value |\n")
	builder.WriteString("| --- | --- |\n")

	rows := [][2]string{{"Command", string(result.Kind)}}
	switch result.Operation {
	case orchestrator.OperationCopy:
		rows = append(rows,
			[2]string{"Source", result.Source},
			[2]string{"Revision", result.Revision},
			[2]string{"Destination", result.Destination},
		)
	default:
		rows = append(rows,
			[2]string{"URL", result.URL},
			[2]string{"Path", result.Path},
			[2]string{"Revision", result.Revision},
			[2]string{"Previous revision", result.PreviousRevision},
			[2]string{"Decision", string(result.Decision)},
		)
	}
	rows = append(rows, [2]string{"Duration", result.Duration.Round(time.Millisecond).String()})

	for _, row := range rows {
		builder.WriteString(fmt.Sprintf("| %s | %s |\n", row[0], sanitizeMarkdownCell(row[1])))
	}

	return builder.String()
}

func writeMultilineOutput(w io.Writer, key, value, delimiter string) {
	_, _ = fmt.Fprintf(w, "%s<<%s\n%s\n%s\n", key, delimiter, value, delimiter)
}

func appendToFile(path, what, content string) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", what, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close %s: %w", what, closeErr))
		}
	}()

	if _, err := file.WriteString(content); err != nil {
		return fmt.Errorf("write %s: %w", what, err)
	}
	return nil
}

// ensureParentDir creates the directory holding path when it is missing.
// GitHub Actions normally sets it up, so failure is only reported.
func ensureParentDir(path, what string) {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			fmt.Fprintf(os.Stderr, "warning: could not create %s directory: %v\n", what, mkErr)
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func sanitizeMarkdownCell(value string) string {
	value = strings.ReplaceAll(value, "|", "\\|")
	value = strings.ReplaceAll(value, "\n", "<br>")
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
