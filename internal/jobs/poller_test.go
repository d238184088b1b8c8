package jobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Epistemic-Technology/academic-reader/internal/backend"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/permission"
	"github.com/Epistemic-Technology/academic-reader/models"
)

const testInterval = 5 * time.Millisecond

type step struct {
	report *models.JobStatusReport
	err    error
	// block, when set, holds the query until closed regardless of ctx,
	// simulating a response already on the wire.
	block chan struct{}
}

type scriptedQuerier struct {
	mu    sync.Mutex
	steps map[string][]step
	calls map[string]int
}

func newScripted() *scriptedQuerier {
	return &scriptedQuerier{steps: map[string][]step{}, calls: map[string]int{}}
}

func (q *scriptedQuerier) script(jobID string, steps ...step) { q.steps[jobID] = steps }

func (q *scriptedQuerier) JobStatus(ctx context.Context, jobID string) (*models.JobStatusReport, error) {
	q.mu.Lock()
	i := q.calls[jobID]
	q.calls[jobID]++
	steps := q.steps[jobID]
	q.mu.Unlock()

	if i >= len(steps) {
		i = len(steps) - 1
	}
	s := steps[i]
	if s.block != nil {
		<-s.block
	}
	return s.report, s.err
}

func (q *scriptedQuerier) count(jobID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls[jobID]
}

func processing(p int) step {
	return step{report: &models.JobStatusReport{Status: models.JobProcessing, Progress: &p}}
}

func completed() step {
	return step{report: &models.JobStatusReport{Status: models.JobCompleted}}
}

func failed(msg string) step {
	return step{report: &models.JobStatusReport{Status: models.JobFailed, ErrorMessage: msg}}
}

func transient() step {
	return step{err: backend.ErrUnavailable}
}

func drain(t *testing.T, w *Watch) ([]models.LifecycleEvent, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var events []models.LifecycleEvent
	for {
		ev, err := w.Next(ctx)
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

func newTestPoller(q StatusQuerier, opts Options) *Poller {
	if opts.Interval == 0 {
		opts.Interval = testInterval
	}
	opts.Logger = logger.NewNoOpLogger()
	return NewPoller(q, opts)
}

func TestWatchProgressThenCompleted(t *testing.T) {
	q := newScripted()
	q.script("job-a", processing(40), processing(90), completed())
	p := newTestPoller(q, Options{})
	defer p.Close()

	w, err := p.Watch("job-a")
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	events, err := drain(t, w)
	if !errors.Is(err, ErrWatchDone) {
		t.Fatalf("drain err = %v, want ErrWatchDone", err)
	}

	want := []models.LifecycleEvent{
		{JobID: "job-a", Kind: models.EventProgress, Percent: 40, Stage: models.JobProcessing},
		{JobID: "job-a", Kind: models.EventProgress, Percent: 90, Stage: models.JobProcessing},
		{JobID: "job-a", Kind: models.EventCompleted, Percent: 100, Stage: models.JobCompleted},
	}
	if len(events) != len(want) {
		t.Fatalf("events = %+v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, events[i], want[i])
		}
	}

	<-w.Done()
	time.Sleep(5 * testInterval)
	if n := q.count("job-a"); n != 3 {
		t.Errorf("queries = %d, want 3 (no polls after completion)", n)
	}
	if len(p.Active()) != 0 {
		t.Errorf("Active() = %v after completion", p.Active())
	}
}

func TestTransientFailuresAreSilent(t *testing.T) {
	q := newScripted()
	q.script("job-b", transient(), transient(), transient(), failed("unsupported format"))
	p := newTestPoller(q, Options{})
	defer p.Close()

	w, _ := p.Watch("job-b")
	events, err := drain(t, w)
	if !errors.Is(err, ErrWatchDone) {
		t.Fatalf("drain err = %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %+v, want exactly the failure", events)
	}
	if events[0].Kind != models.EventFailed || events[0].Message != "unsupported format" {
		t.Errorf("event = %+v", events[0])
	}
	if s := p.Stats(); s.TransientFailures != 3 || s.Queries != 4 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestFailedWithoutMessage(t *testing.T) {
	q := newScripted()
	q.script("j", failed(""))
	p := newTestPoller(q, Options{})
	defer p.Close()

	w, _ := p.Watch("j")
	events, _ := drain(t, w)
	if len(events) != 1 || events[0].Message != "unknown error" {
		t.Errorf("events = %+v", events)
	}
}

func TestCancelWithQueryInFlight(t *testing.T) {
	release := make(chan struct{})
	q := newScripted()
	q.script("job-c", step{report: &models.JobStatusReport{Status: models.JobCompleted}, block: release})
	p := newTestPoller(q, Options{})
	defer p.Close()

	w, _ := p.Watch("job-c")
	for q.count("job-c") == 0 {
		time.Sleep(time.Millisecond)
	}

	w.Cancel()
	close(release)
	<-w.Done()

	ev, err := w.Next(context.Background())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Next() = %+v, %v; want ErrCancelled", ev, err)
	}
	if p.Cancel("job-c") {
		t.Error("Cancel() after exit should report no active watch")
	}
}

func TestCancelDropsBufferedEvents(t *testing.T) {
	q := newScripted()
	q.script("j", processing(10), processing(20), processing(30), processing(30))
	p := newTestPoller(q, Options{})
	defer p.Close()

	w, _ := p.Watch("j")
	for q.count("j") < 3 {
		time.Sleep(time.Millisecond)
	}
	if !p.Cancel("j") {
		t.Fatal("Cancel() should find the active watch")
	}
	if _, err := w.Next(context.Background()); !errors.Is(err, ErrCancelled) {
		t.Errorf("Next() err = %v, want ErrCancelled", err)
	}
}

func TestWatchesAreIndependent(t *testing.T) {
	hold := make(chan struct{})
	defer close(hold)
	q := newScripted()
	q.script("slow", step{report: &models.JobStatusReport{Status: models.JobCompleted}, block: hold})
	q.script("fast", processing(50), completed())
	p := newTestPoller(q, Options{})

	if _, err := p.Watch("slow"); err != nil {
		t.Fatal(err)
	}
	fast, _ := p.Watch("fast")

	events, err := drain(t, fast)
	if !errors.Is(err, ErrWatchDone) || len(events) != 2 {
		t.Fatalf("fast watch blocked behind slow one: %+v, %v", events, err)
	}
	p.Cancel("slow")
}

func TestDuplicateWatchRejected(t *testing.T) {
	q := newScripted()
	q.script("j", processing(1))
	p := newTestPoller(q, Options{})
	defer p.Close()

	if _, err := p.Watch("j"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Watch("j"); !errors.Is(err, ErrAlreadyWatching) {
		t.Errorf("second Watch() err = %v", err)
	}
	if _, err := p.Watch(""); err == nil {
		t.Error("empty job id should be rejected")
	}
}

func TestUnchangedProgressNotRepeated(t *testing.T) {
	q := newScripted()
	q.script("j", processing(40), processing(40), processing(40), completed())
	p := newTestPoller(q, Options{})
	defer p.Close()

	w, _ := p.Watch("j")
	events, _ := drain(t, w)
	if len(events) != 2 {
		t.Errorf("events = %+v, want one progress and one completion", events)
	}
}

func TestMaxTransientFailuresAbandons(t *testing.T) {
	q := newScripted()
	q.script("j", transient())
	p := newTestPoller(q, Options{MaxTransientFailures: 3})
	defer p.Close()

	w, _ := p.Watch("j")
	events, err := drain(t, w)
	if !errors.Is(err, ErrWatchDone) {
		t.Fatalf("drain err = %v", err)
	}
	if len(events) != 1 || events[0].Kind != models.EventAbandoned {
		t.Errorf("events = %+v", events)
	}
	if n := q.count("j"); n != 3 {
		t.Errorf("queries = %d, want 3", n)
	}
}

func TestBackoffDelay(t *testing.T) {
	p := newTestPoller(newScripted(), Options{Interval: time.Second, Backoff: true, MaxInterval: 5 * time.Second})
	defer p.Close()
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 5 * time.Second},
		{40, 5 * time.Second},
	}
	for _, tt := range tests {
		if got := p.delay(tt.failures); got != tt.want {
			t.Errorf("delay(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}

	fixed := newTestPoller(newScripted(), Options{Interval: time.Second})
	defer fixed.Close()
	if got := fixed.delay(10); got != time.Second {
		t.Errorf("fixed delay = %v", got)
	}
}

func TestForbiddenRoutedToGate(t *testing.T) {
	var mu sync.Mutex
	var challenged []string
	gate := permission.NewGate(permission.ChallengerFunc(func(_ context.Context, req permission.Request) (bool, error) {
		mu.Lock()
		challenged = append(challenged, req.Action)
		mu.Unlock()
		return true, nil
	}), logger.NewNoOpLogger())

	q := newScripted()
	q.script("j", step{err: backend.ErrForbidden}, completed())
	p := newTestPoller(q, Options{Gate: gate})
	defer p.Close()

	w, _ := p.Watch("j")
	events, _ := drain(t, w)
	if len(events) != 1 || events[0].Kind != models.EventCompleted {
		t.Errorf("events = %+v; forbidden must not end the watch", events)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(challenged) != 1 || challenged[0] != "watch job j" {
		t.Errorf("challenged = %v", challenged)
	}
}

func TestClosedPollerRejectsWatch(t *testing.T) {
	p := newTestPoller(newScripted(), Options{})
	p.Close()
	if _, err := p.Watch("j"); !errors.Is(err, ErrPollerClosed) {
		t.Errorf("Watch() after Close err = %v", err)
	}
}

func TestRejectedQueriesAreLoggedLouder(t *testing.T) {
	q := newScripted()
	q.script("j", transient(), step{err: &backend.StatusError{Code: 404, Message: "no such task"}}, completed())
	var buf bytes.Buffer
	p := NewPoller(q, Options{Interval: testInterval, Logger: logger.NewWriterLogger(&buf, logger.WarnLevel)})
	defer p.Close()

	w, _ := p.Watch("j")
	events, _ := drain(t, w)
	if len(events) != 1 || events[0].Kind != models.EventCompleted {
		t.Fatalf("events = %+v, want the rejection retried", events)
	}
	out := buf.String()
	if strings.Count(out, "Status query for j") != 1 || !strings.Contains(out, "no such task") {
		t.Errorf("warnings = %q, want only the rejected query", out)
	}
}
