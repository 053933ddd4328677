package orchestrator_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/svn-action/internal/fieldstore"
	"github.com/rancher/svn-action/internal/metrics"
	"github.com/rancher/svn-action/internal/orchestrator"
	"github.com/rancher/svn-action/internal/svn"
)

type fakeVC struct {
	versionOutput string
	versionErr    error

	outcome svn.Outcome
	runErr  error
	onRun   func(inv svn.Invocation)
	runs    []svn.Invocation

	revision      string
	revisionFound bool
	revisionErr   error
	revisionCalls int
}

func newFakeVC() *fakeVC {
	return &fakeVC{
		versionOutput: "svn, version 1.14.2 (r1899510)\n",
		outcome:       svn.Outcome{Success: true, Output: "A    wc/README\nChecked out revision 7.\n", Duration: 10 * time.Millisecond},
		revision:      "7",
		revisionFound: true,
	}
}

func (f *fakeVC) ToolVersion(context.Context, string, string) (string, error) {
	return f.versionOutput, f.versionErr
}

func (f *fakeVC) Run(_ context.Context, inv svn.Invocation, sink io.Writer) (svn.Outcome, error) {
	f.runs = append(f.runs, inv)
	if f.onRun != nil {
		f.onRun(inv)
	}
	if f.runErr != nil {
		return svn.Outcome{ExitCode: -1}, f.runErr
	}
	_, _ = io.WriteString(sink, f.outcome.Output)
	return f.outcome, nil
}

func (f *fakeVC) Revision(context.Context, string, string, string) (string, bool, error) {
	f.revisionCalls++
	return f.revision, f.revisionFound, f.revisionErr
}

type fakeRecorder struct {
	operations map[string]int
	commands   map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{operations: map[string]int{}, commands: map[string]int{}}
}

func (r *fakeRecorder) IncOperation(operation string, outcome metrics.OutcomeLabel) {
	r.operations[operation+"/"+string(outcome)]++
}

func (r *fakeRecorder) ObserveCommand(kind string, _ time.Duration, success bool) {
	r.commands[fmt.Sprintf("%s/%t", kind, success)]++
}

var _ = Describe("Orchestrator.Checkout", func() {
	var (
		ctx      context.Context
		vc       *fakeVC
		recorder *fakeRecorder
		orch     *orchestrator.Orchestrator
		out      *bytes.Buffer
		wc       string
	)

	BeforeEach(func() {
		ctx = context.Background()
		vc = newFakeVC()
		recorder = newFakeRecorder()
		out = &bytes.Buffer{}
		wc = filepath.Join(GinkgoT().TempDir(), "wc")
		orch = orchestrator.New(orchestrator.Config{}, vc, recorder, nil)
	})

	fields := func(extra map[string]any) map[string]any {
		return fieldstore.Merge(map[string]any{
			"path": wc,
			"url":  "http://svn.example.com/repo/trunk",
		}, extra)
	}

	It("checks out a fresh working copy and records outputs", func() {
		store := fieldstore.NewMemory(fields(nil), nil)

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())

		Expect(vc.runs).To(HaveLen(1))
		Expect(vc.runs[0].Kind).To(Equal(svn.KindCheckout))
		Expect(result.Kind).To(Equal(svn.KindCheckout))
		Expect(result.Decision).To(Equal(orchestrator.DecisionProceed))
		Expect(result.BuildNeeded()).To(BeTrue())
		Expect(result.Revision).To(Equal("7"))
		Expect(result.States).To(Equal([]orchestrator.State{
			orchestrator.StateIdle,
			orchestrator.StateValidating,
			orchestrator.StateBuilding,
			orchestrator.StateRevisionCheck,
			orchestrator.StateProceed,
			orchestrator.StateDone,
		}))

		Expect(store.Outputs()).To(Equal([]fieldstore.Output{
			{Name: "repo_path", Value: wc},
			{Name: "scm_path", Value: wc},
			{Name: "svn_path", Value: wc},
			{Name: "svn_version", Value: "1.14.2"},
			{Name: "revision", Value: "7"},
			{Name: "url", Value: "http://svn.example.com/repo/trunk"},
			{Name: "commit_id", Value: "7"},
		}))

		Expect(out.String()).To(ContainSubstring("Checking Out repo - http://svn.example.com/repo/trunk to " + wc))
		Expect(out.String()).To(ContainSubstring("Running command:\n----------\nsvn checkout --non-interactive --trust-server-cert http://svn.example.com/repo/trunk " + wc + "\n----------\n"))
		Expect(out.String()).To(ContainSubstring("Checked out revision 7."))

		Expect(recorder.operations).To(HaveKeyWithValue("checkout/success", 1))
		Expect(recorder.commands).To(HaveKeyWithValue("checkout/true", 1))
	})

	It("updates an existing working copy in place", func() {
		Expect(os.MkdirAll(wc, 0o755)).To(Succeed())
		store := fieldstore.NewMemory(fields(nil), nil)

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Kind).To(Equal(svn.KindUpdate))
		Expect(vc.runs[0].Script()).To(Equal("svn update --non-interactive --trust-server-cert " + wc))
		Expect(out.String()).NotTo(ContainSubstring("Deleting old path"))
	})

	It("removes the existing tree before a clean checkout", func() {
		Expect(os.MkdirAll(wc, 0o755)).To(Succeed())
		stale := filepath.Join(wc, "stale.txt")
		Expect(os.WriteFile(stale, []byte("old"), 0o600)).To(Succeed())

		var existedDuringRun bool
		vc.onRun = func(svn.Invocation) {
			_, err := os.Stat(stale)
			existedDuringRun = err == nil
		}

		store := fieldstore.NewMemory(fields(map[string]any{"clean_working_copy": true}), nil)
		result, err := orch.Checkout(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Kind).To(Equal(svn.KindCleanCheckout))
		Expect(existedDuringRun).To(BeFalse())
		Expect(out.String()).To(ContainSubstring("Deleting old path - " + wc))
		Expect(vc.runs[0].Command).To(Equal("checkout"))
	})

	It("never deletes an existing tree without the clean flag", func() {
		Expect(os.MkdirAll(wc, 0o755)).To(Succeed())
		keep := filepath.Join(wc, "keep.txt")
		Expect(os.WriteFile(keep, []byte("keep"), 0o600)).To(Succeed())

		store := fieldstore.NewMemory(fields(map[string]any{"clean_working_copy": "no"}), nil)
		_, err := orch.Checkout(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())
		Expect(keep).To(BeAnExistingFile())
	})

	It("signals that the build is not needed when the revision is unchanged", func() {
		store := fieldstore.NewMemory(fields(nil), map[string]string{"revision": "7"})

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Skipped()).To(BeTrue())
		Expect(result.PreviousRevision).To(Equal("7"))
		Expect(result.State()).To(Equal(orchestrator.StateDone))
		Expect(result.States).To(ContainElement(orchestrator.StateSkipUnchanged))
		Expect(out.String()).To(ContainSubstring("Revision From Previous Build 7 Equals Latest From Repo 7 - Build Not Needed"))
		Expect(store.OutputMap()).To(HaveKeyWithValue("revision", "7"))
		Expect(recorder.operations).To(HaveKeyWithValue("checkout/skipped", 1))
	})

	It("ignores previous outputs recorded for another url and path", func() {
		store := fieldstore.NewMemory(fields(nil), map[string]string{
			"revision":  "7",
			"url":       "http://svn.example.com/repo/branches/release",
			"repo_path": filepath.Join(filepath.Dir(wc), "release-wc"),
		})

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(orchestrator.DecisionProceed))
		Expect(result.PreviousRevision).To(BeEmpty())
		Expect(out.String()).NotTo(ContainSubstring("Build Not Needed"))
	})

	It("skips when the previous outputs name the same url and path", func() {
		store := fieldstore.NewMemory(fields(nil), map[string]string{
			"revision":  "7",
			"url":       "http://svn.example.com/repo/trunk",
			"repo_path": wc,
		})

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Skipped()).To(BeTrue())
	})

	It("reports cancellation during validation as unexpected", func() {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		vc.versionErr = context.Canceled
		store := fieldstore.NewMemory(fields(nil), nil)

		result, err := orch.Checkout(cancelled, store, out)
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		kind, _ := orchestrator.KindOf(err)
		Expect(kind).To(Equal(orchestrator.KindUnexpected))
		Expect(result.State()).To(Equal(orchestrator.StateFailed))
		Expect(vc.runs).To(BeEmpty())
	})

	It("proceeds on an unchanged revision when force_build is set", func() {
		store := fieldstore.NewMemory(fields(map[string]any{"force_build": "true"}), map[string]string{"revision": "7"})

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(orchestrator.DecisionProceed))
		Expect(result.Reason).To(ContainSubstring("force_build"))
	})

	It("proceeds when the revision changed", func() {
		store := fieldstore.NewMemory(fields(nil), map[string]string{"revision": "6"})

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Decision).To(Equal(orchestrator.DecisionProceed))
		Expect(store.OutputMap()).To(HaveKeyWithValue("commit_id", "7"))
	})

	It("fails with a configuration error before running anything", func() {
		vc.versionErr = errors.New("exit status 127")
		store := fieldstore.NewMemory(map[string]any{"path": wc}, nil)

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).To(HaveOccurred())
		Expect(err).To(MatchError("Configuration errors: svn not installed (or not on path), no svn url specified"))

		kind, ok := orchestrator.KindOf(err)
		Expect(ok).To(BeTrue())
		Expect(kind).To(Equal(orchestrator.KindConfiguration))

		Expect(vc.runs).To(BeEmpty())
		Expect(result.State()).To(Equal(orchestrator.StateConfigFailed))
		Expect(store.OutputMap()).To(Equal(map[string]string{"repo_path": wc}))
		Expect(recorder.operations).To(HaveKeyWithValue("checkout/configuration_error", 1))
	})

	It("reports a failed checkout as an execution error with the tool output", func() {
		vc.outcome = svn.Outcome{ExitCode: 1, Output: "svn: E170013: Unable to connect\n"}
		store := fieldstore.NewMemory(fields(nil), nil)

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).To(MatchError("Error Checking Out repo http://svn.example.com/repo/trunk\nsvn: E170013: Unable to connect"))

		var oe *orchestrator.Error
		Expect(errors.As(err, &oe)).To(BeTrue())
		Expect(oe.Kind).To(Equal(orchestrator.KindExecution))

		Expect(result.State()).To(Equal(orchestrator.StateExecutionFailed))
		Expect(vc.revisionCalls).To(BeZero())
		Expect(store.OutputMap()).NotTo(HaveKey("revision"))
		Expect(recorder.commands).To(HaveKeyWithValue("checkout/false", 1))
	})

	It("fails the operation when the revision cannot be determined", func() {
		vc.revisionErr = &svn.CommandError{Kind: svn.KindInfo, Message: "Failed To Detect SVN Revision Number From " + wc}
		store := fieldstore.NewMemory(fields(nil), map[string]string{"revision": "7"})

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).To(MatchError("Failed To Detect SVN Revision Number From " + wc))
		kind, _ := orchestrator.KindOf(err)
		Expect(kind).To(Equal(orchestrator.KindExecution))
		Expect(result.Decision).To(BeEmpty())
		Expect(result.State()).To(Equal(orchestrator.StateExecutionFailed))
	})

	It("treats info output without a revision as unexpected", func() {
		vc.revisionErr = fmt.Errorf("svn info %s: %w", wc, svn.ErrRevisionNotFound)
		store := fieldstore.NewMemory(fields(nil), nil)

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).To(MatchError(ContainSubstring("unexpected error during checkout")))
		Expect(errors.Is(err, svn.ErrRevisionNotFound)).To(BeTrue())
		Expect(result.State()).To(Equal(orchestrator.StateFailed))
		Expect(result.States).NotTo(ContainElement(orchestrator.StateExecutionFailed))
		Expect(recorder.operations).To(HaveKeyWithValue("checkout/unexpected_error", 1))
	})

	It("treats runner failures as unexpected", func() {
		vc.runErr = errors.New("start /bin/sh: permission denied")
		store := fieldstore.NewMemory(fields(nil), nil)

		_, err := orch.Checkout(ctx, store, out)
		Expect(err).To(MatchError("unexpected error during checkout: start /bin/sh: permission denied"))
	})

	It("recovers panics as unexpected errors", func() {
		vc.onRun = func(svn.Invocation) { panic("runner exploded") }
		store := fieldstore.NewMemory(fields(nil), nil)

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).To(MatchError(ContainSubstring("runner exploded")))
		kind, _ := orchestrator.KindOf(err)
		Expect(kind).To(Equal(orchestrator.KindUnexpected))
		Expect(result.Operation).To(Equal(orchestrator.OperationCheckout))
		Expect(result.State()).To(Equal(orchestrator.StateFailed))
	})

	It("derives the working copy path from the composition", func() {
		root := GinkgoT().TempDir()
		orch = orchestrator.New(orchestrator.Config{WorkspaceRoot: root}, vc, recorder, nil)
		store := fieldstore.NewMemory(map[string]any{
			"url":            "http://svn.example.com/repo/trunk",
			"composition":    "Nightly Build",
			"composition_id": 12,
		}, nil)

		result, err := orch.Checkout(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Path).To(Equal(filepath.Join(root, "nightly-build-12")))
		Expect(store.OutputMap()).To(HaveKeyWithValue("svn_path", result.Path))
	})
})

var _ = Describe("Orchestrator.Copy", func() {
	var (
		ctx  context.Context
		vc   *fakeVC
		orch *orchestrator.Orchestrator
		out  *bytes.Buffer
	)

	BeforeEach(func() {
		ctx = context.Background()
		vc = newFakeVC()
		vc.outcome = svn.Outcome{Success: true, Output: "Committed revision 8.\n"}
		out = &bytes.Buffer{}
		orch = orchestrator.New(orchestrator.Config{}, vc, nil, nil)
	})

	It("copies the source to the destination", func() {
		store := fieldstore.NewMemory(map[string]any{
			"source":      "http://svn.example.com/repo/trunk",
			"destination": "http://svn.example.com/repo/tags/1.0",
			"revision":    "7",
			"message":     "Tag 1.0",
		}, nil)

		result, err := orch.Copy(ctx, store, out)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.State()).To(Equal(orchestrator.StateDone))
		Expect(result.Command).To(Equal("svn copy http://svn.example.com/repo/trunk -r 7 http://svn.example.com/repo/tags/1.0 -m 'Tag 1.0'"))
		Expect(out.String()).To(ContainSubstring("svn copying http://svn.example.com/repo/trunk  revision: 7 to http://svn.example.com/repo/tags/1.0 with the message 'Tag 1.0'"))
		Expect(store.Outputs()).To(BeEmpty())
	})

	It("rejects an existing destination", func() {
		dest := GinkgoT().TempDir()
		store := fieldstore.NewMemory(map[string]any{"source": "a", "destination": dest}, nil)

		_, err := orch.Copy(ctx, store, out)
		Expect(err).To(MatchError(fmt.Sprintf("Configuration errors: Destination '%s' already exists", dest)))
		Expect(vc.runs).To(BeEmpty())
	})

	It("reports a failed copy as an execution error", func() {
		vc.outcome = svn.Outcome{ExitCode: 1, Output: "svn: E160013: path not found\n"}
		store := fieldstore.NewMemory(map[string]any{"source": "a", "destination": "b"}, nil)

		result, err := orch.Copy(ctx, store, out)
		Expect(err).To(MatchError("Error svn copying a to b\nsvn: E160013: path not found"))
		Expect(result.State()).To(Equal(orchestrator.StateExecutionFailed))
	})
})
