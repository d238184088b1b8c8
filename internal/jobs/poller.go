// Package jobs polls the backend for the status of ingestion jobs and turns
// raw status reports into lifecycle events.
//
// Each watch runs in its own goroutine with its own timer:
//
//	w, _ := poller.Watch(jobID)
//	for {
//		ev, err := w.Next(ctx)
//		if err != nil {
//			break // ErrWatchDone after a terminal event, ErrCancelled after Cancel
//		}
//		...
//	}
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/academic-reader/internal/backend"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/permission"
	"github.com/Epistemic-Technology/academic-reader/models"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxInterval = 30 * time.Second

	eventBuffer = 8
)

var (
	ErrWatchDone       = errors.New("watch finished")
	ErrCancelled       = errors.New("watch cancelled")
	ErrAlreadyWatching = errors.New("job already watched")
	ErrPollerClosed    = errors.New("poller closed")
)

// StatusQuerier is the one backend operation the poller needs.
type StatusQuerier interface {
	JobStatus(ctx context.Context, jobID string) (*models.JobStatusReport, error)
}

type Options struct {
	// Interval between status queries. Default: 2s.
	Interval time.Duration
	// MaxTransientFailures ends a watch with an abandoned event after that
	// many consecutive failed queries. 0 retries forever.
	MaxTransientFailures int
	// Backoff doubles the wait after each consecutive failure, up to
	// MaxInterval. A successful query restores Interval.
	Backoff     bool
	MaxInterval time.Duration
	// Limiter, when set, is shared by every watch.
	Limiter *rate.Limiter
	// Gate receives forbidden query results.
	Gate   *permission.Gate
	Logger logger.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = DefaultInterval
	}
	if o.MaxInterval < o.Interval {
		o.MaxInterval = DefaultMaxInterval
		if o.MaxInterval < o.Interval {
			o.MaxInterval = o.Interval
		}
	}
	if o.Logger == nil {
		o.Logger = logger.NewNoOpLogger()
	}
}

// Stats are point-in-time counters.
type Stats struct {
	Active            int   `json:"active"`
	Queries           int64 `json:"queries"`
	TransientFailures int64 `json:"transient_failures"`
	Events            int64 `json:"events"`
}

type Poller struct {
	client StatusQuerier
	opts   Options
	log    logger.Logger

	ctx  context.Context
	stop context.CancelFunc

	mu      sync.Mutex
	watches map[string]*Watch
	wg      sync.WaitGroup

	queries  atomic.Int64
	failures atomic.Int64
	events   atomic.Int64
}

func NewPoller(client StatusQuerier, opts Options) *Poller {
	opts.defaults()
	ctx, stop := context.WithCancel(context.Background())
	return &Poller{
		client:  client,
		opts:    opts,
		log:     opts.Logger.With("jobs"),
		ctx:     ctx,
		stop:    stop,
		watches: make(map[string]*Watch),
	}
}

// Watch starts polling jobID. Watches on different jobs are independent.
func (p *Poller) Watch(jobID string) (*Watch, error) {
	if jobID == "" {
		return nil, fmt.Errorf("watch: empty job id")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ctx.Err() != nil {
		return nil, ErrPollerClosed
	}
	if _, ok := p.watches[jobID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyWatching, jobID)
	}

	ctx, cancel := context.WithCancel(p.ctx)
	w := &Watch{
		jobID:  jobID,
		events: make(chan models.LifecycleEvent, eventBuffer),
		done:   make(chan struct{}),
		cancel: cancel,
	}
	p.watches[jobID] = w
	p.wg.Add(1)
	go p.run(ctx, w)

	p.log.Debug("Watching job %s every %s", jobID, p.opts.Interval)
	return w, nil
}

// Cancel stops the watch on jobID. It reports whether a watch was active.
func (p *Poller) Cancel(jobID string) bool {
	p.mu.Lock()
	w, ok := p.watches[jobID]
	p.mu.Unlock()
	if !ok {
		return false
	}
	w.Cancel()
	return true
}

// Active lists the jobs currently being polled.
func (p *Poller) Active() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.watches))
	for id := range p.watches {
		ids = append(ids, id)
	}
	return ids
}

// Close cancels every watch and waits for their goroutines to exit.
func (p *Poller) Close() {
	p.mu.Lock()
	for _, w := range p.watches {
		w.cancelled.Store(true)
	}
	p.mu.Unlock()
	p.stop()
	p.wg.Wait()
}

func (p *Poller) Stats() Stats {
	p.mu.Lock()
	active := len(p.watches)
	p.mu.Unlock()
	return Stats{
		Active:            active,
		Queries:           p.queries.Load(),
		TransientFailures: p.failures.Load(),
		Events:            p.events.Load(),
	}
}

func (p *Poller) forget(w *Watch) {
	p.mu.Lock()
	if p.watches[w.jobID] == w {
		delete(p.watches, w.jobID)
	}
	p.mu.Unlock()
}

func (p *Poller) run(ctx context.Context, w *Watch) {
	defer p.wg.Done()
	defer close(w.done)
	defer close(w.events)
	defer p.forget(w)

	var (
		failures    int
		lastStage   models.JobStatus
		lastPercent = -1
	)

	// first query is immediate
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if p.opts.Limiter != nil {
			if err := p.opts.Limiter.Wait(ctx); err != nil {
				return
			}
		}

		p.queries.Add(1)
		report, err := p.client.JobStatus(ctx, w.jobID)
		if ctx.Err() != nil {
			// cancelled while the query was in flight; drop the result
			return
		}

		if err != nil {
			failures++
			p.failures.Add(1)
			switch {
			case errors.Is(err, backend.ErrForbidden) && p.opts.Gate != nil:
				p.opts.Gate.Check(ctx, "watch job "+w.jobID, err)
			case backend.IsTransient(err):
				p.log.Debug("Status query for %s failed (%d in a row): %v", w.jobID, failures, err)
			default:
				// retried like any other failure, but unlikely to clear up
				p.log.Warn("Status query for %s rejected (%d in a row): %v", w.jobID, failures, err)
			}
			if p.opts.MaxTransientFailures > 0 && failures >= p.opts.MaxTransientFailures {
				p.log.Warn("Giving up on job %s after %d failed status queries", w.jobID, failures)
				p.emit(ctx, w, models.LifecycleEvent{
					JobID:   w.jobID,
					Kind:    models.EventAbandoned,
					Message: fmt.Sprintf("status unavailable after %d attempts: %v", failures, err),
				})
				return
			}
			timer.Reset(p.delay(failures))
			continue
		}
		failures = 0

		switch report.Status {
		case models.JobCompleted:
			p.log.Info("Job %s completed", w.jobID)
			p.emit(ctx, w, models.LifecycleEvent{JobID: w.jobID, Kind: models.EventCompleted, Percent: 100, Stage: report.Status})
			return
		case models.JobFailed:
			msg := report.ErrorMessage
			if msg == "" {
				msg = "unknown error"
			}
			p.log.Info("Job %s failed: %s", w.jobID, msg)
			p.emit(ctx, w, models.LifecycleEvent{JobID: w.jobID, Kind: models.EventFailed, Stage: report.Status, Message: msg})
			return
		}

		percent := lastPercent
		if report.Progress != nil {
			percent = clampPercent(*report.Progress)
		} else if percent < 0 {
			percent = 0
		}
		if percent != lastPercent || report.Status != lastStage {
			lastPercent, lastStage = percent, report.Status
			if !p.emit(ctx, w, models.LifecycleEvent{JobID: w.jobID, Kind: models.EventProgress, Percent: percent, Stage: report.Status}) {
				return
			}
		}
		timer.Reset(p.opts.Interval)
	}
}

func (p *Poller) emit(ctx context.Context, w *Watch, ev models.LifecycleEvent) bool {
	select {
	case w.events <- ev:
		p.events.Add(1)
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Poller) delay(failures int) time.Duration {
	if !p.opts.Backoff {
		return p.opts.Interval
	}
	d := p.opts.Interval
	for i := 1; i < failures && d < p.opts.MaxInterval; i++ {
		d *= 2
	}
	if d > p.opts.MaxInterval {
		d = p.opts.MaxInterval
	}
	return d
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Watch is one job's event stream.
type Watch struct {
	jobID     string
	events    chan models.LifecycleEvent
	done      chan struct{}
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

func (w *Watch) JobID() string { return w.jobID }

// Next blocks for the next event. It returns ErrWatchDone once the terminal
// event has been consumed and ErrCancelled after Cancel. No event is ever
// returned once Cancel has returned, even if a query was in flight.
func (w *Watch) Next(ctx context.Context) (models.LifecycleEvent, error) {
	if w.cancelled.Load() {
		return models.LifecycleEvent{}, ErrCancelled
	}
	select {
	case ev, ok := <-w.events:
		if w.cancelled.Load() {
			return models.LifecycleEvent{}, ErrCancelled
		}
		if !ok {
			return models.LifecycleEvent{}, ErrWatchDone
		}
		return ev, nil
	case <-ctx.Done():
		return models.LifecycleEvent{}, ctx.Err()
	}
}

// Cancel stops polling. It is safe to call more than once and from any
// goroutine.
func (w *Watch) Cancel() {
	w.cancelled.Store(true)
	w.cancel()
}

// Done is closed when the polling goroutine has exited.
func (w *Watch) Done() <-chan struct{} { return w.done }
