// Package upload submits files for ingestion and follows each accepted job
// to a terminal state.
package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Epistemic-Technology/academic-reader/internal/backend"
	"github.com/Epistemic-Technology/academic-reader/internal/jobs"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/permission"
	"github.com/Epistemic-Technology/academic-reader/internal/sources"
	"github.com/Epistemic-Technology/academic-reader/models"
)

const (
	TextUploadFailed = "upload failed"
	TextCompleted    = "processing complete"
)

// Submitter is the backend submission operation.
type Submitter interface {
	Submit(ctx context.Context, sub models.Submission) (*models.JobHandle, error)
}

// Notifier receives user-visible notifications.
type Notifier interface {
	Notify(n models.Notification)
}

type NotifierFunc func(models.Notification)

func (f NotifierFunc) Notify(n models.Notification) { f(n) }

type Options struct {
	// OnComplete runs once for each job that reaches COMPLETED, typically to
	// refresh the document list.
	OnComplete func(models.JobHandle)
	Notifier   Notifier
	Gate       *permission.Gate
	Logger     logger.Logger
}

// SubmitOptions apply to one submission.
type SubmitOptions struct {
	// Title defaults to the file name without extension.
	Title        string
	CollectionID string
}

// Result is the outcome of one file in a batch.
type Result struct {
	FileName string
	Handle   *models.JobHandle
	Err      error
}

type Coordinator struct {
	client Submitter
	poller *jobs.Poller
	opts   Options
	log    logger.Logger

	mu    sync.Mutex
	files []*models.FileProgress
	byJob map[string]*models.FileProgress

	group errgroup.Group
}

func NewCoordinator(client Submitter, poller *jobs.Poller, opts Options) *Coordinator {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(models.Notification) {})
	}
	return &Coordinator{
		client: client,
		poller: poller,
		opts:   opts,
		log:    opts.Logger.With("upload"),
		byJob:  make(map[string]*models.FileProgress),
	}
}

// SubmitBatch submits files one after another. A failure never stops the
// remaining files; only ctx cancellation does.
func (c *Coordinator) SubmitBatch(ctx context.Context, files []sources.File, opts SubmitOptions) []Result {
	results := make([]Result, 0, len(files))
	for _, f := range files {
		if ctx.Err() != nil {
			results = append(results, Result{FileName: f.Name, Err: ctx.Err()})
			continue
		}
		perFile := opts
		if len(files) > 1 {
			perFile.Title = ""
		}
		h, err := c.Submit(ctx, f, perFile)
		results = append(results, Result{FileName: f.Name, Handle: h, Err: err})
	}
	return results
}

// Submit validates and uploads f, then attaches the accepted job to the
// poller. Submission errors are terminal and surface as a generic
// upload-failed notification.
func (c *Coordinator) Submit(ctx context.Context, f sources.File, opts SubmitOptions) (*models.JobHandle, error) {
	entry := c.track(f.Name)

	if err := sources.Validate(f); err != nil {
		c.log.Warn("Rejected %s before upload: %v", f.Name, err)
		subErr := &backend.SubmissionError{FileName: f.Name, Reason: err.Error(), Err: err}
		c.uploadFailed(entry, subErr)
		return nil, subErr
	}

	title := opts.Title
	if title == "" {
		title = f.Title()
	}
	sub := models.Submission{
		FileName:     f.Name,
		Title:        title,
		CollectionID: opts.CollectionID,
		ContentType:  f.ContentType(),
		Data:         f.Data,
	}

	var handle *models.JobHandle
	submit := func(ctx context.Context) error {
		h, err := c.client.Submit(ctx, sub)
		handle = h
		return err
	}
	var err error
	if c.opts.Gate != nil {
		err = c.opts.Gate.Do(ctx, "upload "+f.Name, submit)
	} else {
		err = submit(ctx)
	}
	if err != nil {
		c.log.Error("Upload of %s failed: %v", f.Name, err)
		c.uploadFailed(entry, err)
		return nil, err
	}

	c.mu.Lock()
	entry.JobID = handle.JobID.String()
	entry.Stage = models.StageProcessing
	entry.Percent = 0
	c.byJob[entry.JobID] = entry
	c.mu.Unlock()

	if err := c.attach(*handle); err != nil {
		c.log.Error("Job %s accepted but could not be followed: %v", handle.JobID, err)
		c.followFailed(*handle, err)
		return nil, fmt.Errorf("follow job %s: %w", handle.JobID, err)
	}
	return handle, nil
}

// Resume follows jobs that were already running when the collection was
// listed. Terminal jobs are skipped.
func (c *Coordinator) Resume(pending []models.IngestionJob) {
	for _, job := range pending {
		if job.Status.Terminal() || job.ID == "" {
			continue
		}
		id := job.ID.String()
		c.mu.Lock()
		if _, ok := c.byJob[id]; ok {
			c.mu.Unlock()
			continue
		}
		entry := &models.FileProgress{FileName: job.Title, JobID: id, Stage: models.StageProcessing}
		if job.Progress != nil {
			entry.Percent = *job.Progress
		}
		c.files = append(c.files, entry)
		c.byJob[id] = entry
		c.mu.Unlock()

		handle := models.JobHandle{JobID: job.ID, FileName: job.Title}
		if err := c.attach(handle); err != nil {
			c.log.Warn("Could not resume job %s: %v", id, err)
			c.followFailed(handle, err)
		}
	}
}

// Cancel stops following jobID.
func (c *Coordinator) Cancel(jobID string) bool {
	return c.poller.Cancel(jobID)
}

// Progress returns a snapshot of every tracked file, in submission order.
func (c *Coordinator) Progress() []models.FileProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.FileProgress, len(c.files))
	for i, f := range c.files {
		out[i] = *f
	}
	return out
}

// JobProgress returns the tracked state of one job.
func (c *Coordinator) JobProgress(jobID string) (models.FileProgress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.byJob[jobID]
	if !ok {
		return models.FileProgress{}, false
	}
	return *f, true
}

// Stats reports the poller's counters.
func (c *Coordinator) Stats() jobs.Stats {
	return c.poller.Stats()
}

// Prune drops entries that reached a terminal stage.
func (c *Coordinator) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.files[:0]
	for _, f := range c.files {
		if isTerminal(f.Stage) {
			if f.JobID != "" {
				delete(c.byJob, f.JobID)
			}
			continue
		}
		kept = append(kept, f)
	}
	c.files = kept
}

// Wait blocks until every followed job has ended. If ctx ends first the
// remaining watches are cancelled and ctx's error is returned.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- c.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	}
}

// Close cancels the coordinator's watches and waits for them to exit.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.byJob))
	for id, f := range c.byJob {
		if !isTerminal(f.Stage) {
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()
	for _, id := range ids {
		c.poller.Cancel(id)
	}
	return c.group.Wait()
}

func (c *Coordinator) attach(handle models.JobHandle) error {
	w, err := c.poller.Watch(handle.JobID.String())
	if err != nil {
		return err
	}
	c.group.Go(func() error {
		c.follow(w, handle)
		return nil
	})
	return nil
}

func (c *Coordinator) follow(w *jobs.Watch, handle models.JobHandle) {
	jobID := handle.JobID.String()
	for {
		ev, err := w.Next(context.Background())
		if err != nil {
			if errors.Is(err, jobs.ErrCancelled) {
				c.log.Info("Stopped following job %s", jobID)
			}
			return
		}

		switch ev.Kind {
		case models.EventProgress:
			c.update(jobID, func(f *models.FileProgress) {
				f.Stage = models.StageProcessing
				f.Percent = ev.Percent
			})
		case models.EventCompleted:
			c.update(jobID, func(f *models.FileProgress) {
				f.Stage = models.StageCompleted
				f.Percent = 100
				f.Message = ""
			})
			c.opts.Notifier.Notify(models.Notification{
				Kind: models.NotifySuccess, FileName: handle.FileName, JobID: jobID, Text: TextCompleted,
			})
			if c.opts.OnComplete != nil {
				c.opts.OnComplete(handle)
			}
		case models.EventFailed, models.EventAbandoned:
			c.update(jobID, func(f *models.FileProgress) {
				f.Stage = models.StageFailed
				f.Message = ev.Message
			})
			c.opts.Notifier.Notify(models.Notification{
				Kind: models.NotifyProcessingFailed, FileName: handle.FileName, JobID: jobID, Text: ev.Message,
			})
		}
	}
}

func (c *Coordinator) track(name string) *models.FileProgress {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := &models.FileProgress{FileName: name, Stage: models.StageUploading}
	c.files = append(c.files, entry)
	return entry
}

func (c *Coordinator) update(jobID string, fn func(*models.FileProgress)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.byJob[jobID]; ok {
		fn(f)
	}
}

func (c *Coordinator) uploadFailed(entry *models.FileProgress, err error) {
	c.mu.Lock()
	entry.Stage = models.StageUploadFailed
	entry.Message = err.Error()
	c.mu.Unlock()
	c.opts.Notifier.Notify(models.Notification{
		Kind: models.NotifyUploadFailed, FileName: entry.FileName, Text: TextUploadFailed,
	})
}

// followFailed ends an accepted job that has no watch.
func (c *Coordinator) followFailed(handle models.JobHandle, err error) {
	jobID := handle.JobID.String()
	msg := "status unavailable: " + err.Error()
	c.update(jobID, func(f *models.FileProgress) {
		f.Stage = models.StageFailed
		f.Message = msg
	})
	c.opts.Notifier.Notify(models.Notification{
		Kind: models.NotifyProcessingFailed, FileName: handle.FileName, JobID: jobID, Text: msg,
	})
}

func isTerminal(s models.UploadStage) bool {
	return s == models.StageCompleted || s == models.StageFailed || s == models.StageUploadFailed
}
