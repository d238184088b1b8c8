package upload

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Epistemic-Technology/academic-reader/internal/backend"
	"github.com/Epistemic-Technology/academic-reader/internal/jobs"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/sources"
	"github.com/Epistemic-Technology/academic-reader/models"
)

type fakeSubmitter struct {
	mu    sync.Mutex
	subs  []models.Submission
	fail  map[string]error
	jobID map[string]string
}

func (f *fakeSubmitter) Submit(_ context.Context, sub models.Submission) (*models.JobHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
	if err := f.fail[sub.FileName]; err != nil {
		return nil, err
	}
	return &models.JobHandle{JobID: models.ID(f.jobID[sub.FileName]), FileName: sub.FileName}, nil
}

type statusScript struct {
	mu      sync.Mutex
	reports map[string][]statusStep
	calls   map[string]int
}

type statusStep struct {
	report *models.JobStatusReport
	err    error
}

func (s *statusScript) JobStatus(_ context.Context, jobID string) (*models.JobStatusReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	steps := s.reports[jobID]
	i := s.calls[jobID]
	s.calls[jobID]++
	if i >= len(steps) {
		i = len(steps) - 1
	}
	return steps[i].report, steps[i].err
}

type recorder struct {
	mu    sync.Mutex
	notes []models.Notification
}

func (r *recorder) Notify(n models.Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
}

func (r *recorder) all() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.notes...)
}

func progress(p int) statusStep {
	return statusStep{report: &models.JobStatusReport{Status: models.JobProcessing, Progress: &p}}
}

func docx(name string) sources.File {
	return sources.FromBytes(name, append([]byte("PK\x03\x04"), []byte("word/document.xml")...))
}

type fixture struct {
	sub       *fakeSubmitter
	status    *statusScript
	notes     *recorder
	completed []models.JobHandle
	mu        sync.Mutex
	coord     *Coordinator
	poller    *jobs.Poller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sub:    &fakeSubmitter{fail: map[string]error{}, jobID: map[string]string{}},
		status: &statusScript{reports: map[string][]statusStep{}, calls: map[string]int{}},
		notes:  &recorder{},
	}
	f.poller = jobs.NewPoller(f.status, jobs.Options{Interval: 2 * time.Millisecond, Logger: logger.NewNoOpLogger()})
	f.coord = NewCoordinator(f.sub, f.poller, Options{
		Notifier: f.notes,
		Logger:   logger.NewNoOpLogger(),
		OnComplete: func(h models.JobHandle) {
			f.mu.Lock()
			f.completed = append(f.completed, h)
			f.mu.Unlock()
		},
	})
	t.Cleanup(func() {
		f.coord.Close()
		f.poller.Close()
	})
	return f
}

func waitFor(t *testing.T, c *Coordinator) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- c.Wait(context.Background()) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("jobs did not finish")
	}
}

func TestSuccessfulUpload(t *testing.T) {
	f := newFixture(t)
	f.sub.jobID["paper.docx"] = "42"
	f.status.reports["42"] = []statusStep{
		progress(40),
		progress(90),
		{report: &models.JobStatusReport{Status: models.JobCompleted}},
	}

	h, err := f.coord.Submit(context.Background(), docx("paper.docx"), SubmitOptions{CollectionID: "c1"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if h.JobID != "42" {
		t.Errorf("JobID = %q", h.JobID)
	}
	waitFor(t, f.coord)

	if len(f.sub.subs) != 1 || f.sub.subs[0].Title != "paper" || f.sub.subs[0].CollectionID != "c1" {
		t.Errorf("submissions = %+v", f.sub.subs)
	}

	notes := f.notes.all()
	if len(notes) != 1 {
		t.Fatalf("notifications = %+v, want exactly one", notes)
	}
	if notes[0].Kind != models.NotifySuccess || notes[0].JobID != "42" {
		t.Errorf("notification = %+v", notes[0])
	}
	if len(f.completed) != 1 {
		t.Errorf("OnComplete calls = %d, want 1", len(f.completed))
	}

	p, ok := f.coord.JobProgress("42")
	if !ok || p.Stage != models.StageCompleted || p.Percent != 100 {
		t.Errorf("JobProgress() = %+v, %v", p, ok)
	}
}

func TestProcessingFailureAfterTransientErrors(t *testing.T) {
	f := newFixture(t)
	f.sub.jobID["scan.docx"] = "7"
	f.status.reports["7"] = []statusStep{
		{err: backend.ErrUnavailable},
		{err: backend.ErrUnavailable},
		{report: &models.JobStatusReport{Status: models.JobFailed, ErrorMessage: "unsupported format"}},
	}

	if _, err := f.coord.Submit(context.Background(), docx("scan.docx"), SubmitOptions{}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, f.coord)

	notes := f.notes.all()
	if len(notes) != 1 {
		t.Fatalf("notifications = %+v, want exactly one", notes)
	}
	if notes[0].Kind != models.NotifyProcessingFailed || notes[0].Text != "unsupported format" {
		t.Errorf("notification = %+v", notes[0])
	}
	if len(f.completed) != 0 {
		t.Error("OnComplete must not run for a failed job")
	}
	if p := f.coord.Progress(); len(p) != 1 || p[0].Stage != models.StageFailed || p[0].Message != "unsupported format" {
		t.Errorf("Progress() = %+v", p)
	}
}

func TestSubmissionFailureIsGeneric(t *testing.T) {
	f := newFixture(t)
	f.sub.fail["big.docx"] = &backend.StatusError{Code: 413, Message: "payload too large"}

	_, err := f.coord.Submit(context.Background(), docx("big.docx"), SubmitOptions{})
	var se *backend.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Submit() err = %v", err)
	}

	notes := f.notes.all()
	if len(notes) != 1 || notes[0].Kind != models.NotifyUploadFailed || notes[0].Text != TextUploadFailed {
		t.Errorf("notifications = %+v", notes)
	}
	if p := f.coord.Progress(); len(p) != 1 || p[0].Stage != models.StageUploadFailed {
		t.Errorf("Progress() = %+v", p)
	}
	if len(f.poller.Active()) != 0 {
		t.Error("a rejected upload must not be polled")
	}
}

func TestUnsupportedFileNeverSubmitted(t *testing.T) {
	f := newFixture(t)
	_, err := f.coord.Submit(context.Background(), sources.FromBytes("notes.txt", []byte("plain notes")), SubmitOptions{})
	var subErr *backend.SubmissionError
	if !errors.As(err, &subErr) || !errors.Is(err, sources.ErrUnsupported) {
		t.Fatalf("Submit() err = %v", err)
	}
	if len(f.sub.subs) != 0 {
		t.Error("unsupported file reached the backend")
	}
	if notes := f.notes.all(); len(notes) != 1 || notes[0].Kind != models.NotifyUploadFailed {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestBatchContinuesAfterFailure(t *testing.T) {
	f := newFixture(t)
	f.sub.fail["a.docx"] = backend.ErrUnavailable
	f.sub.jobID["b.docx"] = "2"
	f.status.reports["2"] = []statusStep{{report: &models.JobStatusReport{Status: models.JobCompleted}}}

	results := f.coord.SubmitBatch(context.Background(), []sources.File{docx("a.docx"), docx("b.docx")}, SubmitOptions{Title: "ignored"})
	if len(results) != 2 || results[0].Err == nil || results[1].Err != nil {
		t.Fatalf("results = %+v", results)
	}
	waitFor(t, f.coord)

	if f.sub.subs[0].Title != "a" || f.sub.subs[1].Title != "b" {
		t.Errorf("batch titles = %q, %q", f.sub.subs[0].Title, f.sub.subs[1].Title)
	}
	kinds := map[models.NotificationKind]int{}
	for _, n := range f.notes.all() {
		kinds[n.Kind]++
	}
	if kinds[models.NotifyUploadFailed] != 1 || kinds[models.NotifySuccess] != 1 {
		t.Errorf("notification kinds = %v", kinds)
	}
}

func TestResumeSkipsTerminalJobs(t *testing.T) {
	f := newFixture(t)
	f.status.reports["9"] = []statusStep{{report: &models.JobStatusReport{Status: models.JobCompleted}}}
	p := 30
	f.coord.Resume([]models.IngestionJob{
		{ID: "8", Title: "done", Status: models.JobCompleted},
		{ID: "9", Title: "running", Status: models.JobTranslating, Progress: &p},
	})
	waitFor(t, f.coord)

	prog := f.coord.Progress()
	if len(prog) != 1 || prog[0].JobID != "9" || prog[0].Stage != models.StageCompleted {
		t.Errorf("Progress() = %+v", prog)
	}

	f.coord.Prune()
	if len(f.coord.Progress()) != 0 {
		t.Error("Prune() should drop finished entries")
	}
}

func TestUnfollowableJobIsReported(t *testing.T) {
	f := newFixture(t)
	f.sub.jobID["paper.docx"] = "7"
	f.poller.Close()

	h, err := f.coord.Submit(context.Background(), docx("paper.docx"), SubmitOptions{})
	if !errors.Is(err, jobs.ErrPollerClosed) {
		t.Fatalf("Submit() = %v, %v, want ErrPollerClosed", h, err)
	}
	if h != nil {
		t.Errorf("Submit() handle = %+v, want nil", h)
	}

	p, ok := f.coord.JobProgress("7")
	if !ok || p.Stage != models.StageFailed {
		t.Errorf("JobProgress() = %+v, %v, want failed", p, ok)
	}
	notes := f.notes.all()
	if len(notes) != 1 || notes[0].Kind != models.NotifyProcessingFailed || notes[0].JobID != "7" {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestResumeOnClosedPollerIsReported(t *testing.T) {
	f := newFixture(t)
	f.poller.Close()
	f.coord.Resume([]models.IngestionJob{{ID: "3", Title: "late", Status: models.JobProcessing}})

	if p, _ := f.coord.JobProgress("3"); p.Stage != models.StageFailed {
		t.Errorf("JobProgress() = %+v, want failed", p)
	}
	if notes := f.notes.all(); len(notes) != 1 || notes[0].Kind != models.NotifyProcessingFailed {
		t.Errorf("notifications = %+v", notes)
	}
}

func TestWaitStopsWhenContextEnds(t *testing.T) {
	f := newFixture(t)
	f.sub.jobID["slow.docx"] = "11"
	f.status.reports["11"] = []statusStep{progress(10)}

	if _, err := f.coord.Submit(context.Background(), docx("slow.docx"), SubmitOptions{}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.coord.Wait(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Wait() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after the context was cancelled")
	}
	if active := f.poller.Active(); len(active) != 0 {
		t.Errorf("still polling %v", active)
	}
	if notes := f.notes.all(); len(notes) != 0 {
		t.Errorf("cancelled job notified: %+v", notes)
	}
}

func TestStatsCountQueries(t *testing.T) {
	f := newFixture(t)
	f.sub.jobID["paper.docx"] = "5"
	f.status.reports["5"] = []statusStep{progress(50), {report: &models.JobStatusReport{Status: models.JobCompleted}}}

	if _, err := f.coord.Submit(context.Background(), docx("paper.docx"), SubmitOptions{}); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	waitFor(t, f.coord)

	if s := f.coord.Stats(); s.Queries != 2 || s.Events != 2 || s.Active != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}
