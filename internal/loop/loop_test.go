package loop

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// fakeRunner counts invocations and fails on a configured iteration
// (1-based). failOn 0 means never fail.
type fakeRunner struct {
	calls    int
	failOn   int
	payloads []string
	block    func(ctx context.Context) error
}

func (f *fakeRunner) Run(ctx context.Context, payload string) error {
	f.calls++
	f.payloads = append(f.payloads, payload)
	if f.block != nil {
		if err := f.block(ctx); err != nil {
			return err
		}
	}
	if f.failOn > 0 && f.calls >= f.failOn {
		return errors.New("exit status 1")
	}
	return nil
}

// fakePublisher records publish attempts and returns configured results.
type fakePublisher struct {
	detected    bool
	pending     bool
	pendingErr  error
	publishErr  error
	pendingAsks int
	publishes   int
}

func (f *fakePublisher) Detected() bool { return f.detected }

func (f *fakePublisher) HasPendingChanges(ctx context.Context) (bool, error) {
	f.pendingAsks++
	return f.pending, f.pendingErr
}

func (f *fakePublisher) Publish(ctx context.Context) error {
	f.publishes++
	return f.publishErr
}

func newLoop(cfg Config, runner AgentRunner, pub Publisher) (*Loop, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Loop{
		Config:    cfg,
		Agent:     runner,
		Publisher: pub,
		Out:       &buf,
		sleep:     func(ctx context.Context, d time.Duration) {},
	}, &buf
}

func TestRun_CapPerformsExactlyNInvocations(t *testing.T) {
	for _, n := range []int{1, 3, 5} {
		runner := &fakeRunner{}
		l, _ := newLoop(Config{Mode: ModeBuild, MaxIterations: n}, runner, nil)

		if err := l.Run(context.Background()); err != nil {
			t.Fatalf("Run with cap %d returned error: %v", n, err)
		}
		if runner.calls != n {
			t.Errorf("cap %d: agent invoked %d times, want %d", n, runner.calls, n)
		}
	}
}

func TestRun_AgentFailureStopsLoopImmediately(t *testing.T) {
	runner := &fakeRunner{failOn: 2}
	l, _ := newLoop(Config{Mode: ModeBuild, MaxIterations: 4}, runner, nil)

	err := l.Run(context.Background())
	if err == nil {
		t.Fatal("Run returned nil, want agent failure")
	}
	var agentErr *AgentError
	if !errors.As(err, &agentErr) {
		t.Fatalf("Run error = %T, want *AgentError", err)
	}
	if agentErr.Iteration != 2 {
		t.Errorf("AgentError.Iteration = %d, want 2", agentErr.Iteration)
	}
	if runner.calls != 2 {
		t.Errorf("agent invoked %d times, want exactly 2 (no retry)", runner.calls)
	}
}

func TestRun_FailureOnFirstIteration(t *testing.T) {
	runner := &fakeRunner{failOn: 1}
	l, _ := newLoop(Config{Mode: ModeBuild}, runner, nil)

	if err := l.Run(context.Background()); err == nil {
		t.Fatal("Run returned nil, want error")
	}
	if runner.calls != 1 {
		t.Errorf("agent invoked %d times, want 1", runner.calls)
	}
}

func TestRun_UnlimitedRunsUntilAgentFails(t *testing.T) {
	runner := &fakeRunner{failOn: 17}
	l, _ := newLoop(Config{Mode: ModeBuild, MaxIterations: 0}, runner, nil)

	if err := l.Run(context.Background()); err == nil {
		t.Fatal("Run returned nil, want agent failure")
	}
	if runner.calls != 17 {
		t.Errorf("agent invoked %d times, want 17", runner.calls)
	}
}

func TestRun_PayloadPassedVerbatimEveryIteration(t *testing.T) {
	runner := &fakeRunner{}
	l, _ := newLoop(Config{Mode: ModePlan, MaxIterations: 3, Payload: "plan the work"}, runner, nil)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	for i, p := range runner.payloads {
		if p != "plan the work" {
			t.Errorf("iteration %d payload = %q, want %q", i+1, p, "plan the work")
		}
	}
}

func TestRun_PublishFailureNeverStopsLoop(t *testing.T) {
	runner := &fakeRunner{}
	pub := &fakePublisher{detected: true, pending: true, publishErr: errors.New("remote rejected")}
	l, buf := newLoop(Config{Mode: ModeBuild, MaxIterations: 3}, runner, pub)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v, want nil (publish failures are non-fatal)", err)
	}
	if runner.calls != 3 {
		t.Errorf("agent invoked %d times, want 3", runner.calls)
	}
	if pub.publishes != 3 {
		t.Errorf("publish attempted %d times, want 3", pub.publishes)
	}
	if !strings.Contains(buf.String(), "Warning: publish failed") {
		t.Errorf("output missing publish warning:\n%s", buf.String())
	}
}

func TestRun_PendingCheckErrorIsNonFatal(t *testing.T) {
	runner := &fakeRunner{}
	pub := &fakePublisher{detected: true, pendingErr: errors.New("status failed")}
	l, buf := newLoop(Config{Mode: ModeBuild, MaxIterations: 2}, runner, pub)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if pub.publishes != 0 {
		t.Errorf("publish attempted %d times, want 0", pub.publishes)
	}
	if !strings.Contains(buf.String(), "Warning: could not check for pending changes") {
		t.Errorf("output missing pending-check warning:\n%s", buf.String())
	}
}

func TestRun_NoVersionControlSkipsPublishSilently(t *testing.T) {
	runner := &fakeRunner{}
	pub := &fakePublisher{detected: false}
	l, buf := newLoop(Config{Mode: ModeBuild, MaxIterations: 2}, runner, pub)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if pub.pendingAsks != 0 {
		t.Errorf("HasPendingChanges called %d times, want 0 when not detected", pub.pendingAsks)
	}
	if strings.Contains(buf.String(), "publish") {
		t.Errorf("non-verbose output mentions publish despite missing repo:\n%s", buf.String())
	}
}

func TestRun_NoPendingChangesSkipsPush(t *testing.T) {
	runner := &fakeRunner{}
	pub := &fakePublisher{detected: true, pending: false}
	l, _ := newLoop(Config{Mode: ModeBuild, MaxIterations: 2}, runner, pub)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if pub.pendingAsks != 2 {
		t.Errorf("HasPendingChanges called %d times, want 2", pub.pendingAsks)
	}
	if pub.publishes != 0 {
		t.Errorf("publish attempted %d times, want 0", pub.publishes)
	}
}

func TestRun_PublishHappensAfterEachSuccessfulIteration(t *testing.T) {
	runner := &fakeRunner{failOn: 3}
	pub := &fakePublisher{detected: true, pending: true}
	l, _ := newLoop(Config{Mode: ModeBuild}, runner, pub)

	if err := l.Run(context.Background()); err == nil {
		t.Fatal("Run returned nil, want agent failure on iteration 3")
	}
	// Iterations 1 and 2 succeeded and published; 3 failed before publish.
	if pub.publishes != 2 {
		t.Errorf("publish attempted %d times, want 2", pub.publishes)
	}
}

func TestRun_StopFileEndsLoopNormally(t *testing.T) {
	dir := t.TempDir()
	stop := filepath.Join(dir, "STOP")

	runner := &fakeRunner{}
	l, buf := newLoop(Config{Mode: ModeBuild, StopFile: stop}, runner, nil)
	// Create the stop file after the second iteration.
	l.Observer = func(r IterationResult) {
		if r.Iteration == 2 {
			if err := os.WriteFile(stop, nil, 0644); err != nil {
				t.Fatalf("write stop file: %v", err)
			}
		}
	}

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if runner.calls != 2 {
		t.Errorf("agent invoked %d times, want 2", runner.calls)
	}
	if !strings.Contains(buf.String(), "Stop file") {
		t.Errorf("output missing stop file message:\n%s", buf.String())
	}
}

func TestRun_CancellationBetweenIterationsExitsCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{}
	l, buf := newLoop(Config{Mode: ModeBuild}, runner, nil)
	l.Observer = func(r IterationResult) {
		if r.Iteration == 3 {
			cancel()
		}
	}

	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v, want nil on interrupt", err)
	}
	if runner.calls != 3 {
		t.Errorf("agent invoked %d times, want 3", runner.calls)
	}
	if !strings.Contains(buf.String(), "Interrupted") {
		t.Errorf("output missing interrupt message:\n%s", buf.String())
	}
}

func TestRun_CancellationDuringInvocationIsNotAgentFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{block: func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}}
	l, _ := newLoop(Config{Mode: ModeBuild}, runner, nil)

	var outcomes []Outcome
	l.Observer = func(r IterationResult) { outcomes = append(outcomes, r.Outcome) }

	if err := l.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v, want nil when killed by interrupt", err)
	}
	if len(outcomes) != 1 || outcomes[0] != OutcomeCanceled {
		t.Errorf("outcomes = %v, want [canceled]", outcomes)
	}
}

func TestRun_ObserverSeesPublishResult(t *testing.T) {
	runner := &fakeRunner{}
	pub := &fakePublisher{detected: true, pending: true, publishErr: errors.New("auth failed")}
	l, _ := newLoop(Config{Mode: ModeBuild, MaxIterations: 1}, runner, pub)

	var got IterationResult
	l.Observer = func(r IterationResult) { got = r }

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got.Outcome != OutcomeOK {
		t.Errorf("Outcome = %q, want %q", got.Outcome, OutcomeOK)
	}
	if !got.PublishAttempted {
		t.Error("PublishAttempted = false, want true")
	}
	if !strings.Contains(got.PublishError, "auth failed") {
		t.Errorf("PublishError = %q, want it to mention auth failed", got.PublishError)
	}
}

func TestRun_BannerAndCompletionMessages(t *testing.T) {
	runner := &fakeRunner{}
	l, buf := newLoop(Config{Mode: ModePlan, MaxIterations: 2}, runner, nil)

	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"iteration 1", "iteration 2", "Loop complete"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
