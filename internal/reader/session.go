// Package reader ties one open document to its page cursor, derived content
// window and persisted view state.
package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Epistemic-Technology/academic-reader/internal/content"
	"github.com/Epistemic-Technology/academic-reader/internal/cursor"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/permission"
	"github.com/Epistemic-Technology/academic-reader/internal/viewstate"
	"github.com/Epistemic-Technology/academic-reader/models"
)

// ErrOpenFailed is the single user-facing outcome of a failed document fetch.
var ErrOpenFailed = errors.New("failed to open document")

// OpenError keeps the cause for logs and errors.Is while presenting only
// the generic message.
type OpenError struct {
	DocumentID string
	Err        error
}

func (e *OpenError) Error() string   { return ErrOpenFailed.Error() }
func (e *OpenError) Unwrap() []error { return []error{ErrOpenFailed, e.Err} }

// Fetcher loads a processed document.
type Fetcher interface {
	FetchDocument(ctx context.Context, docID string) (*models.Document, error)
}

// OutlineGenerator builds a structured outline from full text.
type OutlineGenerator interface {
	GenerateOutline(ctx context.Context, docID, fullText string) (*models.Outline, error)
}

type Deps struct {
	Fetcher Fetcher
	Views   *viewstate.Store
	// Gate is optional; without it forbidden fetches fail like any other.
	Gate   *permission.Gate
	Logger logger.Logger
	// Mode is the initial language. Default: translated.
	Mode models.LanguageMode
}

type Session struct {
	docID string
	deps  Deps
	log   logger.Logger

	mu      sync.Mutex
	cursor  *cursor.Cursor
	agg     *content.Aggregator
	zoom    float64
	unwatch func()
	closed  bool
}

// Open restores the stored view state for docID and fetches the document.
func Open(ctx context.Context, docID string, deps Deps) (*Session, error) {
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	s := &Session{docID: docID, deps: deps, log: deps.Logger.With("reader")}

	state := deps.Views.Get(ctx, docID)
	doc, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.cursor = cursor.New(doc.PageCount())
	s.cursor.Jump(state.PageNumber)
	s.zoom = state.Zoom
	s.agg = content.NewAggregator(s.cursor, deps.Mode)
	s.agg.SetDocument(doc)

	// registered after the aggregator so the window is current when the
	// page is written
	s.unwatch = s.cursor.OnChange(func(ch cursor.Change) {
		if err := deps.Views.SetPage(context.Background(), docID, ch.New); err != nil {
			s.log.Warn("Failed to record page %d for %s: %v", ch.New, docID, err)
		}
	})

	s.log.Info("Opened %s at page %d of %d", docID, s.cursor.Page(), s.cursor.Total())
	return s, nil
}

func (s *Session) fetch(ctx context.Context) (*models.Document, error) {
	var doc *models.Document
	load := func(ctx context.Context) error {
		d, err := s.deps.Fetcher.FetchDocument(ctx, s.docID)
		doc = d
		return err
	}
	var err error
	if s.deps.Gate != nil {
		err = s.deps.Gate.Do(ctx, "open document "+s.docID, load)
	} else {
		err = load(ctx)
	}
	if err == nil && doc == nil {
		err = fmt.Errorf("empty response for %s", s.docID)
	}
	if err != nil {
		s.log.Error("Failed to fetch %s: %v", s.docID, err)
		return nil, &OpenError{DocumentID: s.docID, Err: err}
	}
	return doc, nil
}

func (s *Session) DocumentID() string { return s.docID }

func (s *Session) Document() *models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Document()
}

// Page returns the current page and the page count.
func (s *Session) Page() (page, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor.Page(), s.cursor.Total()
}

func (s *Session) Zoom() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}

func (s *Session) Mode() models.LanguageMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Mode()
}

func (s *Session) Window() models.ContentWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Window()
}

// SetPage applies a page reported by the viewer.
func (s *Session) SetPage(n int) int {
	return s.move(func(c *cursor.Cursor) { c.SetPage(n) })
}

// Jump applies a page requested by a command.
func (s *Session) Jump(n int) int {
	return s.move(func(c *cursor.Cursor) { c.Jump(n) })
}

func (s *Session) Next() int  { return s.move(func(c *cursor.Cursor) { c.Next() }) }
func (s *Session) Prev() int  { return s.move(func(c *cursor.Cursor) { c.Prev() }) }
func (s *Session) First() int { return s.move(func(c *cursor.Cursor) { c.First() }) }
func (s *Session) Last() int  { return s.move(func(c *cursor.Cursor) { c.Last() }) }

func (s *Session) move(fn func(*cursor.Cursor)) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		fn(s.cursor)
	}
	return s.cursor.Page()
}

// SetZoom records a new zoom level.
func (s *Session) SetZoom(ctx context.Context, zoom float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if zoom == s.zoom {
		return nil
	}
	if err := s.deps.Views.SetZoom(ctx, s.docID, zoom); err != nil {
		return err
	}
	s.zoom = zoom
	return nil
}

// ToggleLanguage switches between translated and original text.
func (s *Session) ToggleLanguage() models.LanguageMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.ToggleMode()
}

func (s *Session) SetLanguage(mode models.LanguageMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agg.SetMode(mode)
}

// SubscribeWindow delivers the current window now and every change after.
// fn runs with the session locked and must not call back into it.
func (s *Session) SubscribeWindow(fn func(models.ContentWindow)) (unsubscribe func()) {
	s.mu.Lock()
	unsub := s.agg.Subscribe(fn)
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		unsub()
		s.mu.Unlock()
	}
}

// Refresh refetches the document. On failure the previous copy stays.
func (s *Session) Refresh(ctx context.Context) error {
	doc, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor.SetTotal(doc.PageCount())
	s.agg.SetDocument(doc)
	return nil
}

// FullText joins every page of the active language.
func (s *Session) FullText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fullText(s.agg.Document(), s.agg.Mode())
}

// Outline asks gen for an outline of the active language's full text.
func (s *Session) Outline(ctx context.Context, gen OutlineGenerator) (*models.Outline, error) {
	text := s.FullText()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document %s has no %s text", s.docID, s.Mode())
	}

	var out *models.Outline
	call := func(ctx context.Context) error {
		o, err := gen.GenerateOutline(ctx, s.docID, text)
		out = o
		return err
	}
	var err error
	if s.deps.Gate != nil {
		err = s.deps.Gate.Do(ctx, "generate outline for "+s.docID, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to generate outline: %w", err)
	}
	return out, nil
}

// Close detaches the session. Further cursor commands are ignored.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.unwatch()
	s.agg.Close()
}

func fullText(doc *models.Document, mode models.LanguageMode) string {
	if doc == nil {
		return ""
	}
	pages := doc.Pages(mode)
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Content); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
