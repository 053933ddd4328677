package svn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

const waitDelay = 5 * time.Second

// Runner executes an assembled command line, streaming its combined output
// to sink while capturing it.
type Runner interface {
	Run(ctx context.Context, script string, sink io.Writer) (Outcome, error)
}

// Outcome reports how a command line finished.
type Outcome struct {
	Success  bool
	ExitCode int
	Output   string
	Duration time.Duration
}

// ShellRunner runs command lines through the system shell.
type ShellRunner struct {
	// Shell is the interpreter invoked with "-c". Defaults to /bin/sh.
	Shell string
}

// NewShellRunner returns a Runner backed by /bin/sh.
func NewShellRunner() *ShellRunner {
	return &ShellRunner{}
}

func (r *ShellRunner) shell() string {
	if strings.TrimSpace(r.Shell) == "" {
		return "/bin/sh"
	}
	return r.Shell
}

// Run executes script. A non-zero exit is reported through Outcome.Success
// with a nil error; the error is reserved for start failures and context
// cancellation. A command that exits cleanly is a success even when the
// context ends afterwards.
func (r *ShellRunner) Run(ctx context.Context, script string, sink io.Writer) (Outcome, error) {
	cmd := exec.CommandContext(ctx, r.shell(), "-c", script)
	setProcessGroup(cmd)
	// svn runs as a child of the shell, so cancellation has to reach the
	// whole group or Wait blocks on the inherited output pipe.
	cmd.Cancel = func() error {
		terminateProcessGroup(cmd)
		return nil
	}
	cmd.WaitDelay = waitDelay

	var captured bytes.Buffer
	var out io.Writer = &captured
	if sink != nil {
		out = io.MultiWriter(&captured, sink)
	}
	// A single writer for both streams keeps output in the order produced.
	cmd.Stdout = out
	cmd.Stderr = out

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Outcome{ExitCode: -1, Output: captured.String()}, fmt.Errorf("start %s: %w", r.shell(), err)
	}

	err := cmd.Wait()
	outcome := Outcome{Output: captured.String(), Duration: time.Since(start)}
	if err == nil {
		outcome.Success = true
		return outcome, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		outcome.ExitCode = -1
		return outcome, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		outcome.ExitCode = exitErr.ExitCode()
		return outcome, nil
	}
	return outcome, fmt.Errorf("wait for %s: %w", r.shell(), err)
}

// CommandError reports a tool invocation that exited unsuccessfully.
type CommandError struct {
	Kind     Kind
	Script   string
	Message  string
	Output   string
	ExitCode int
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if msg == "" {
		msg = fmt.Sprintf("%s exited with status %d", e.Script, e.ExitCode)
	}
	if out := strings.TrimSpace(e.Output); out != "" {
		return msg + "\n" + out
	}
	return msg
}
