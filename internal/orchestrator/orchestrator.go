package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/rancher/svn-action/internal/fieldstore"
	"github.com/rancher/svn-action/internal/metrics"
	"github.com/rancher/svn-action/internal/params"
	"github.com/rancher/svn-action/internal/svn"
)

// Operation names a pipeline task.
type Operation string

const (
	OperationCheckout Operation = "checkout"
	OperationCopy     Operation = "copy"
)

// State is a step of the operation state machine.
type State string

const (
	StateIdle            State = "idle"
	StateValidating      State = "validating"
	StateConfigFailed    State = "config_failed"
	StateBuilding        State = "building"
	StateExecutionFailed State = "execution_failed"
	StateFailed          State = "failed"
	StateRevisionCheck   State = "revision_check"
	StateSkipUnchanged   State = "skip_unchanged"
	StateProceed         State = "proceed"
	StateDone            State = "done"
)

// Output names recorded in the field store.
const (
	OutputRepoPath   = "repo_path"
	OutputSCMPath    = "scm_path"
	OutputSVNPath    = "svn_path"
	OutputSVNVersion = "svn_version"
	OutputRevision   = "revision"
	OutputURL        = "url"
	OutputCommitID   = "commit_id"
)

// VersionControl is the tool facade the orchestrator drives.
type VersionControl interface {
	ToolVersion(ctx context.Context, envPrefix, executable string) (string, error)
	Run(ctx context.Context, inv svn.Invocation, sink io.Writer) (svn.Outcome, error)
	Revision(ctx context.Context, envPrefix, executable, path string) (string, bool, error)
}

// Config captures the runtime controls the orchestrator needs.
type Config struct {
	// WorkspaceRoot is where default working copies are created.
	WorkspaceRoot string
	// Highlight colours the status banners written to the output stream.
	// Nil writes them plain.
	Highlight *color.Color
}

// Result captures the outcome of a single operation.
type Result struct {
	Operation        Operation
	Kind             svn.Kind
	Decision         Decision
	Reason           string
	Revision         string
	PreviousRevision string
	ToolVersion      string
	Path             string
	URL              string
	Source           string
	Destination      string
	Command          string
	Duration         time.Duration
	States           []State
}

// Skipped reports whether the pipeline should stop because nothing changed.
func (r Result) Skipped() bool {
	return r.Decision == DecisionSkipUnchanged
}

// BuildNeeded is the inverse of Skipped.
func (r Result) BuildNeeded() bool {
	return !r.Skipped()
}

// State returns the last state reached.
func (r Result) State() State {
	if len(r.States) == 0 {
		return StateIdle
	}
	return r.States[len(r.States)-1]
}

func (r *Result) transition(s State) {
	r.States = append(r.States, s)
}

// Orchestrator runs checkout and copy operations against a VersionControl.
type Orchestrator struct {
	cfg     Config
	vc      VersionControl
	metrics metrics.Recorder
	log     *slog.Logger
}

// New returns a configured Orchestrator instance.
func New(cfg Config, vc VersionControl, recorder metrics.Recorder, logger *slog.Logger) *Orchestrator {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{cfg: cfg, vc: vc, metrics: recorder, log: logger}
}

func (o *Orchestrator) validator() params.Validator {
	return params.Validator{Probe: o.vc, WorkspaceRoot: o.cfg.WorkspaceRoot}
}

// Checkout brings the working copy up to date and decides whether the build
// should continue. Tool output is streamed to out. A skip is a successful
// result; errors are always *Error.
func (o *Orchestrator) Checkout(ctx context.Context, store fieldstore.Store, out io.Writer) (result Result, err error) {
	result = Result{Operation: OperationCheckout, States: []State{StateIdle}}
	if out == nil {
		out = io.Discard
	}
	start := time.Now()
	defer o.finish(&result, &err, start)

	result.transition(StateValidating)
	req, err := o.validator().Checkout(ctx, store)
	result.Path = req.Path
	if req.Path != "" {
		store.SetOutput(OutputRepoPath, req.Path)
	}
	if err != nil {
		return result, err
	}

	store.SetOutput(OutputSCMPath, req.Path)
	store.SetOutput(OutputSVNPath, req.Path)
	if req.ToolVersion != "" {
		result.ToolVersion = req.ToolVersion
		store.SetOutput(OutputSVNVersion, req.ToolVersion)
	}
	result.URL = req.URL

	result.transition(StateBuilding)
	exists, err := pathExists(req.Path)
	if err != nil {
		return result, err
	}

	inv := svn.BuildCheckout(req, exists)
	result.Kind = inv.Kind
	switch inv.Kind {
	case svn.KindCleanCheckout:
		o.banner(out, "\nDeleting old path - %s\n", req.Path)
		if err := os.RemoveAll(req.Path); err != nil {
			return result, fmt.Errorf("remove %s: %w", req.Path, err)
		}
	case svn.KindUpdate:
		if foreign, ok := svn.ForeignVCS(req.Path); ok {
			o.log.Warn("existing path is not a subversion working copy", "path", req.Path, "vcs", foreign)
		}
	}

	o.banner(out, "\nChecking Out repo - %s to %s\n", req.URL, req.Path)
	outcome, err := o.execute(ctx, &result, inv, out)
	if err != nil {
		return result, err
	}
	if !outcome.Success {
		return result, &svn.CommandError{
			Kind:     inv.Kind,
			Script:   result.Command,
			Message:  fmt.Sprintf("Error Checking Out repo %s", req.URL),
			Output:   outcome.Output,
			ExitCode: outcome.ExitCode,
		}
	}

	result.transition(StateRevisionCheck)
	revision, found, err := o.vc.Revision(ctx, req.EnvPrefix, req.Executable, req.Path)
	if err != nil {
		return result, err
	}

	previous, hasPrevious := store.PreviousOutput(OutputRevision)
	if hasPrevious && !sameTarget(store, req.URL, req.Path) {
		o.log.Info("previous outputs belong to another checkout, ignoring them", "url", req.URL, "path", req.Path)
		previous, hasPrevious = "", false
	}
	result.Revision = revision
	result.PreviousRevision = previous

	if found {
		store.SetOutput(OutputRevision, revision)
	}
	store.SetOutput(OutputURL, req.URL)
	if found {
		store.SetOutput(OutputCommitID, revision)
	}

	result.Decision, result.Reason = Decide(previous, hasPrevious, revision, req.ForceBuild)
	if result.Skipped() {
		result.transition(StateSkipUnchanged)
		o.banner(out, "\n%s\n", result.Reason)
	} else {
		result.transition(StateProceed)
	}
	result.transition(StateDone)

	return result, nil
}

// Copy creates a branch or tag with "svn copy".
func (o *Orchestrator) Copy(ctx context.Context, store fieldstore.Store, out io.Writer) (result Result, err error) {
	result = Result{Operation: OperationCopy, States: []State{StateIdle}}
	if out == nil {
		out = io.Discard
	}
	start := time.Now()
	defer o.finish(&result, &err, start)

	result.transition(StateValidating)
	req, err := o.validator().Copy(ctx, store)
	if err != nil {
		return result, err
	}
	result.Source = req.Source
	result.Destination = req.Destination
	result.Revision = req.Revision

	result.transition(StateBuilding)
	inv := svn.BuildCopy(req)
	result.Kind = inv.Kind

	o.banner(out, "\nsvn copying %s  revision: %s to %s with the message '%s'\n", req.Source, req.Revision, req.Destination, req.Message)
	outcome, err := o.execute(ctx, &result, inv, out)
	if err != nil {
		return result, err
	}
	if !outcome.Success {
		return result, &svn.CommandError{
			Kind:     inv.Kind,
			Script:   result.Command,
			Message:  fmt.Sprintf("Error svn copying %s to %s", req.Source, req.Destination),
			Output:   outcome.Output,
			ExitCode: outcome.ExitCode,
		}
	}

	result.Decision = DecisionProceed
	result.transition(StateDone)
	return result, nil
}

func (o *Orchestrator) execute(ctx context.Context, result *Result, inv svn.Invocation, out io.Writer) (svn.Outcome, error) {
	result.Command = inv.Script()
	o.banner(out, "\nRunning command:\n----------\n%s\n----------\n", result.Command)

	outcome, err := o.vc.Run(ctx, inv, out)
	o.metrics.ObserveCommand(string(inv.Kind), outcome.Duration, err == nil && outcome.Success)
	o.log.Debug("svn command finished", "kind", inv.Kind, "exit_code", outcome.ExitCode, "duration", outcome.Duration, "error", err)
	return outcome, err
}

// finish recovers panics, classifies the terminal error and records the
// outcome.
func (o *Orchestrator) finish(result *Result, errp *error, start time.Time) {
	if r := recover(); r != nil {
		*errp = fmt.Errorf("panic: %v", r)
	}
	result.Duration = time.Since(start)

	if *errp == nil {
		outcome := metrics.OutcomeSuccess
		if result.Skipped() {
			outcome = metrics.OutcomeSkipped
		}
		o.metrics.IncOperation(string(result.Operation), outcome)
		o.log.Info("operation finished",
			"operation", result.Operation,
			"kind", result.Kind,
			"decision", result.Decision,
			"revision", result.Revision,
			"reason", result.Reason,
			"duration", result.Duration,
		)
		return
	}

	oe := classify(result.Operation, *errp)
	*errp = oe

	switch oe.Kind {
	case KindConfiguration:
		result.transition(StateConfigFailed)
		o.metrics.IncOperation(string(result.Operation), metrics.OutcomeConfiguration)
		o.log.Error("operation misconfigured", "operation", result.Operation, "error", oe.Message)
	case KindExecution:
		result.transition(StateExecutionFailed)
		o.metrics.IncOperation(string(result.Operation), metrics.OutcomeExecution)
		o.log.Error("svn command failed", "operation", result.Operation, "kind", result.Kind, "error", oe.Message, "command", result.Command)
	default:
		o.metrics.IncOperation(string(result.Operation), metrics.OutcomeUnexpected)
		o.log.Error("unexpected failure", "operation", result.Operation, "state", result.State(), "error", oe.Err, "error_type", fmt.Sprintf("%T", oe.Err))
		result.transition(StateFailed)
	}
}

func (o *Orchestrator) banner(out io.Writer, format string, args ...any) {
	if o.cfg.Highlight != nil {
		_, _ = o.cfg.Highlight.Fprintf(out, format, args...)
		return
	}
	_, _ = fmt.Fprintf(out, format, args...)
}

// sameTarget reports whether the previous outputs were recorded for url and
// path. Outputs that do not name a url or path are taken to match.
func sameTarget(store fieldstore.Store, url, path string) bool {
	if prev, ok := store.PreviousOutput(OutputURL); ok && prev != url {
		return false
	}
	if prev, ok := store.PreviousOutput(OutputRepoPath); ok && prev != path {
		return false
	}
	return true
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
