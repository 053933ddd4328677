// Package svn drives the external Subversion command line client: it builds
// invocations, runs them through a shell and interprets their output.
package svn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Masterminds/vcs"
)

// Client runs svn invocations through a Runner.
type Client struct {
	runner Runner
}

// NewClient returns a Client. A nil runner means a ShellRunner.
func NewClient(runner Runner) *Client {
	if runner == nil {
		runner = NewShellRunner()
	}
	return &Client{runner: runner}
}

// ToolVersion runs "<executable> --version" and returns its output.
func (c *Client) ToolVersion(ctx context.Context, envPrefix, executable string) (string, error) {
	inv := BuildVersion(envPrefix, executable)
	outcome, err := c.runner.Run(ctx, inv.Script(), nil)
	if err != nil {
		return "", err
	}
	if !outcome.Success {
		return "", &CommandError{
			Kind:     inv.Kind,
			Script:   inv.Script(),
			Message:  fmt.Sprintf("%s --version failed", inv.Executable),
			Output:   outcome.Output,
			ExitCode: outcome.ExitCode,
		}
	}
	return outcome.Output, nil
}

// Run executes inv, streaming its output to sink.
func (c *Client) Run(ctx context.Context, inv Invocation, sink io.Writer) (Outcome, error) {
	return c.runner.Run(ctx, inv.Script(), sink)
}

// Revision reports the revision of the working copy at path. found is false,
// without running the tool, when path does not exist.
func (c *Client) Revision(ctx context.Context, envPrefix, executable, path string) (revision string, found bool, err error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("stat working copy: %w", err)
	}

	inv := BuildInfo(envPrefix, executable, path)
	outcome, err := c.runner.Run(ctx, inv.Script(), nil)
	if err != nil {
		return "", false, err
	}
	if !outcome.Success {
		return "", false, &CommandError{
			Kind:     inv.Kind,
			Script:   inv.Script(),
			Message:  fmt.Sprintf("Failed To Detect SVN Revision Number From %s", path),
			Output:   outcome.Output,
			ExitCode: outcome.ExitCode,
		}
	}

	revision, err = ExtractRevision(outcome.Output)
	if err != nil {
		return "", false, fmt.Errorf("svn info %s: %w", path, err)
	}
	return revision, true, nil
}

// ForeignVCS reports the version control system of path when it is something
// other than Subversion.
func ForeignVCS(path string) (string, bool) {
	kind, err := vcs.DetectVcsFromFS(path)
	if err != nil || kind == vcs.Svn {
		return "", false
	}
	return string(kind), true
}
