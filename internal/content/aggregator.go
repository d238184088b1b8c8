package content

import (
	"github.com/Epistemic-Technology/academic-reader/internal/cursor"
	"github.com/Epistemic-Technology/academic-reader/models"
)

type windowSub struct {
	id int
	fn func(models.ContentWindow)
}

// Aggregator keeps the current window in sync with a cursor, a language mode
// and the latest document copy, and pushes each changed window to its
// subscribers. Like the cursor it is not safe for concurrent use.
type Aggregator struct {
	cursor *cursor.Cursor
	doc    *models.Document
	mode   models.LanguageMode
	window models.ContentWindow

	subs        []windowSub
	nextID      int
	unsubCursor func()
}

func NewAggregator(c *cursor.Cursor, mode models.LanguageMode) *Aggregator {
	a := &Aggregator{cursor: c, mode: mode}
	a.window = DeriveWindow(nil, c.Page(), mode)
	a.unsubCursor = c.OnChange(func(cursor.Change) { a.recompute() })
	return a
}

func (a *Aggregator) Window() models.ContentWindow { return a.window }
func (a *Aggregator) Mode() models.LanguageMode    { return a.mode }
func (a *Aggregator) Document() *models.Document   { return a.doc }

// SetDocument replaces the local copy after a fresh fetch.
func (a *Aggregator) SetDocument(doc *models.Document) {
	a.doc = doc
	a.recompute()
}

func (a *Aggregator) SetMode(mode models.LanguageMode) {
	if mode == a.mode {
		return
	}
	a.mode = mode
	a.recompute()
}

func (a *Aggregator) ToggleMode() models.LanguageMode {
	a.SetMode(a.mode.Toggle())
	return a.mode
}

// Subscribe registers fn and immediately delivers the current window.
func (a *Aggregator) Subscribe(fn func(models.ContentWindow)) (unsubscribe func()) {
	a.nextID++
	id := a.nextID
	a.subs = append(a.subs, windowSub{id: id, fn: fn})
	fn(a.window)
	return func() {
		for i, s := range a.subs {
			if s.id == id {
				a.subs = append(a.subs[:i:i], a.subs[i+1:]...)
				return
			}
		}
	}
}

// Close detaches the aggregator from its cursor.
func (a *Aggregator) Close() {
	if a.unsubCursor != nil {
		a.unsubCursor()
		a.unsubCursor = nil
	}
}

func (a *Aggregator) recompute() {
	w := DeriveWindow(a.doc, a.cursor.Page(), a.mode)
	if w == a.window {
		return
	}
	a.window = w
	subs := make([]windowSub, len(a.subs))
	copy(subs, a.subs)
	for _, s := range subs {
		s.fn(w)
	}
}
