package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/rancher/svn-action/internal/fieldstore"
	gh "github.com/rancher/svn-action/internal/github"
	"github.com/rancher/svn-action/internal/metrics"
	"github.com/rancher/svn-action/internal/orchestrator"
	"github.com/rancher/svn-action/internal/svn"
)

// Runner glues together the orchestrator and supporting services to execute a checkout or copy step.
type Runner struct {
	cfg       Config
	log       *slog.Logger
	ghFactory gh.Factory
	vc        orchestrator.VersionControl
	out       io.Writer
}

// NewRunner constructs a Runner with the supplied configuration.
func NewRunner(cfg Config) (*Runner, error) {
	logger, err := NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	return &Runner{
		cfg:       cfg,
		log:       logger,
		ghFactory: gh.NewRESTFactory(cfg.GitHubBaseURL, cfg.GitHubUploadURL),
		vc:        svn.NewClient(&svn.ShellRunner{Shell: cfg.Shell}),
		out:       os.Stdout,
	}, nil
}

// NewRunnerWithDeps constructs a Runner with injected dependencies for testing.
func NewRunnerWithDeps(cfg Config, log *slog.Logger, ghFactory gh.Factory, vc orchestrator.VersionControl, out io.Writer) *Runner {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{cfg: cfg, log: log, ghFactory: ghFactory, vc: vc, out: out}
}

// Run executes op. A skipped build is reported through the result, not the error.
func (r *Runner) Run(ctx context.Context, op orchestrator.Operation) (orchestrator.Result, error) {
	result := orchestrator.Result{Operation: op}
	runID := uuid.NewString()
	log := r.log.With("run_id", runID, "operation", op)

	if op != orchestrator.OperationCheckout && op != orchestrator.OperationCopy {
		return result, fmt.Errorf("unsupported operation %q", op)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	log.Info("starting svn action run", "history_backend", r.cfg.HistoryBackend, "state_key", r.cfg.StateKey)

	fields, err := r.collectFields()
	if err != nil {
		return result, fmt.Errorf("collect fields: %w", err)
	}

	history, err := r.buildHistory(ctx, runID)
	if err != nil {
		return result, fmt.Errorf("configure history: %w", err)
	}

	previous, err := history.Load(ctx, r.cfg.StateKey)
	if err != nil {
		log.Warn("failed to load previous outputs, treating as first run", "error", err)
		previous = nil
	}

	store := fieldstore.NewMemory(fields, previous)

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var prom *metrics.PrometheusRecorder
	if r.cfg.MetricsTextfile != "" {
		prom = metrics.NewPrometheusRecorder(nil)
		recorder = prom
	}

	orch := orchestrator.New(orchestrator.Config{
		WorkspaceRoot: r.cfg.WorkspaceRoot,
		Highlight:     color.New(color.FgCyan),
	}, r.vc, recorder, log)

	var runErr error
	switch op {
	case orchestrator.OperationCheckout:
		result, runErr = orch.Checkout(ctx, store, r.out)
	case orchestrator.OperationCopy:
		result, runErr = orch.Copy(ctx, store, r.out)
	}

	if err := r.writeGitHubOutputs(store.Outputs(), result, runErr); err != nil {
		log.Warn("failed to write action outputs", "error", err)
	}

	if err := r.writeStepSummary(result, runErr); err != nil {
		log.Warn("failed to write step summary", "error", err)
	}

	if runErr == nil && op == orchestrator.OperationCheckout {
		if err := history.Save(ctx, r.cfg.StateKey, store.OutputMap()); err != nil {
			log.Warn("failed to save outputs for the next run", "error", err)
		}
	}

	if prom != nil {
		if err := prom.WriteTextfile(r.cfg.MetricsTextfile); err != nil {
			log.Warn("failed to write metrics textfile", "path", r.cfg.MetricsTextfile, "error", err)
		}
	}

	return result, runErr
}

func (r *Runner) buildHistory(ctx context.Context, runID string) (fieldstore.History, error) {
	switch r.cfg.HistoryBackend {
	case HistoryNone:
		return fieldstore.NoopHistory{}, nil
	case HistoryGitHub:
		owner, repo, err := gh.ParseRepository(r.cfg.Repository)
		if err != nil {
			return nil, err
		}
		if r.ghFactory == nil {
			return nil, fmt.Errorf("github client factory is not configured")
		}
		client, err := r.ghFactory.New(ctx, r.cfg.GitHubToken)
		if err != nil {
			return nil, fmt.Errorf("initialize github client: %w", err)
		}
		return &gh.VariableHistory{
			Client: client,
			Owner:  owner,
			Repo:   repo,
			Prefix: r.cfg.StateVariable,
			RunID:  runID,
		}, nil
	default:
		return &fieldstore.FileHistory{Path: r.cfg.StateFile, RunID: runID}, nil
	}
}
