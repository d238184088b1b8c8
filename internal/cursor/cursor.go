// Package cursor holds the single current-page position shared by every
// reading pane.
package cursor

// Source identifies who moved the cursor.
type Source int

const (
	SourceViewer Source = iota
	SourceCommand
	SourceResize
)

func (s Source) String() string {
	switch s {
	case SourceViewer:
		return "viewer"
	case SourceCommand:
		return "command"
	case SourceResize:
		return "resize"
	default:
		return "unknown"
	}
}

// Change describes one effective cursor move.
type Change struct {
	Old    int
	New    int
	Source Source
}

type subscription struct {
	id int
	fn func(Change)
}

// Cursor is not safe for concurrent use. Callers serialize access, and
// subscribers run synchronously on the goroutine that moved the cursor.
type Cursor struct {
	page   int
	total  int
	subs   []subscription
	nextID int
}

// New returns a cursor on page 1. total <= 0 means the page count is not yet
// known and only the lower bound is enforced.
func New(total int) *Cursor {
	if total < 0 {
		total = 0
	}
	return &Cursor{page: 1, total: total}
}

// Clamp bounds n to [1, total], or to [1, ∞) when total is unknown.
func Clamp(n, total int) int {
	if total > 0 && n > total {
		n = total
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (c *Cursor) Page() int  { return c.page }
func (c *Cursor) Total() int { return c.total }

// SetPage applies a viewer-reported page. It returns whether the page changed.
func (c *Cursor) SetPage(n int) bool { return c.update(n, SourceViewer) }

// Jump applies a command-driven page request through the same path as SetPage.
func (c *Cursor) Jump(n int) bool { return c.update(n, SourceCommand) }

func (c *Cursor) Next() bool  { return c.update(c.page+1, SourceCommand) }
func (c *Cursor) Prev() bool  { return c.update(c.page-1, SourceCommand) }
func (c *Cursor) First() bool { return c.update(1, SourceCommand) }

// Last moves to the final page; without a known total it is a no-op.
func (c *Cursor) Last() bool {
	if c.total <= 0 {
		return false
	}
	return c.update(c.total, SourceCommand)
}

// SetTotal records the page count and re-clamps the current page.
func (c *Cursor) SetTotal(total int) bool {
	if total < 0 {
		total = 0
	}
	c.total = total
	return c.update(c.page, SourceResize)
}

// OnChange registers fn and returns a function that removes it. Subscribers
// are called in registration order.
func (c *Cursor) OnChange(fn func(Change)) (unsubscribe func()) {
	c.nextID++
	id := c.nextID
	c.subs = append(c.subs, subscription{id: id, fn: fn})
	return func() {
		for i, s := range c.subs {
			if s.id == id {
				c.subs = append(c.subs[:i:i], c.subs[i+1:]...)
				return
			}
		}
	}
}

func (c *Cursor) update(n int, src Source) bool {
	n = Clamp(n, c.total)
	if n == c.page {
		return false
	}
	change := Change{Old: c.page, New: n, Source: src}
	c.page = n

	// a subscriber may unsubscribe while we iterate
	subs := make([]subscription, len(c.subs))
	copy(subs, c.subs)
	for _, s := range subs {
		s.fn(change)
	}
	return true
}
