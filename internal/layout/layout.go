// Package layout sizes the reading panes. Each divider is a small idle/dragging
// state machine; the manager routes pointer events to whichever divider is
// being dragged.
package layout

import "github.com/Epistemic-Technology/academic-reader/models"

const (
	MinPercent = 20.0
	MaxPercent = 80.0

	DefaultPrimaryPercent   = 65.0
	DefaultSecondaryPercent = 50.0
)

// Axis is the pointer coordinate a divider follows.
type Axis int

const (
	// AxisX is a vertical divider splitting left/right.
	AxisX Axis = iota
	// AxisY is a horizontal divider splitting top/bottom.
	AxisY
)

type Point struct{ X, Y float64 }

// Rect is the containing box a drag is measured against.
type Rect struct{ X, Y, Width, Height float64 }

func ClampPercent(p float64) float64 {
	if p < MinPercent {
		return MinPercent
	}
	if p > MaxPercent {
		return MaxPercent
	}
	return p
}

// Divider is one draggable split.
type Divider struct {
	axis     Axis
	percent  float64
	dragging bool
	bounds   Rect
}

func NewDivider(axis Axis, percent float64) *Divider {
	return &Divider{axis: axis, percent: ClampPercent(percent)}
}

func (d *Divider) Axis() Axis       { return d.axis }
func (d *Divider) Percent() float64 { return d.percent }
func (d *Divider) Dragging() bool   { return d.dragging }

// BeginDrag enters the dragging state; bounds is the containing box.
func (d *Divider) BeginDrag(bounds Rect) {
	d.bounds = bounds
	d.dragging = true
}

// Move recomputes the percentage from p while dragging. Outside a drag, or
// against a degenerate box, it leaves the divider unchanged.
func (d *Divider) Move(p Point) float64 {
	if !d.dragging {
		return d.percent
	}
	var offset, extent float64
	if d.axis == AxisX {
		offset, extent = p.X-d.bounds.X, d.bounds.Width
	} else {
		offset, extent = p.Y-d.bounds.Y, d.bounds.Height
	}
	if extent <= 0 {
		return d.percent
	}
	d.percent = ClampPercent(offset * 100 / extent)
	return d.percent
}

// EndDrag returns to idle. The last computed value is always kept.
func (d *Divider) EndDrag() float64 {
	d.dragging = false
	return d.percent
}

// SetPercent sets the split directly, e.g. from configuration.
func (d *Divider) SetPercent(p float64) {
	d.percent = ClampPercent(p)
}

// DividerID names one of the manager's dividers.
type DividerID int

const (
	Primary DividerID = iota
	Secondary
)

// Manager holds the primary split (viewer vs companions) and the secondary
// split (companion vs assistant), plus the orientation flag.
type Manager struct {
	dividers    [2]*Divider
	orientation models.Orientation
	active      *Divider
}

func NewManager(primaryPercent, secondaryPercent float64) *Manager {
	m := &Manager{}
	m.dividers[Primary] = NewDivider(AxisX, primaryPercent)
	m.dividers[Secondary] = NewDivider(AxisY, secondaryPercent)
	return m
}

func NewDefaultManager() *Manager {
	return NewManager(DefaultPrimaryPercent, DefaultSecondaryPercent)
}

func (m *Manager) Divider(id DividerID) *Divider { return m.dividers[id] }

// PointerDown starts dragging divider id within bounds.
func (m *Manager) PointerDown(id DividerID, bounds Rect) {
	if m.active != nil {
		m.active.EndDrag()
	}
	m.active = m.dividers[id]
	m.active.BeginDrag(bounds)
}

// PointerMove forwards p to the divider being dragged; ok is false when none is.
func (m *Manager) PointerMove(p Point) (percent float64, ok bool) {
	if m.active == nil {
		return 0, false
	}
	return m.active.Move(p), true
}

// PointerUp commits and ends the active drag.
func (m *Manager) PointerUp() (percent float64, ok bool) {
	if m.active == nil {
		return 0, false
	}
	percent = m.active.EndDrag()
	m.active = nil
	return percent, true
}

func (m *Manager) Dragging() bool { return m.active != nil }

func (m *Manager) ToggleOrientation() models.Orientation {
	if m.orientation == models.SideBySide {
		m.orientation = models.Stacked
	} else {
		m.orientation = models.SideBySide
	}
	// the primary divider follows the split direction
	if m.orientation == models.Stacked {
		m.dividers[Primary].axis = AxisY
	} else {
		m.dividers[Primary].axis = AxisX
	}
	return m.orientation
}

func (m *Manager) Layout() models.PaneLayout {
	return models.PaneLayout{
		PrimaryAxisPercent:   m.dividers[Primary].Percent(),
		SecondaryAxisPercent: m.dividers[Secondary].Percent(),
		Orientation:          m.orientation,
	}
}

// Split divides total cells by percent, giving any rounding remainder to the
// second part. Both parts are at least 1 when total >= 2.
func Split(total int, percent float64) (first, second int) {
	if total <= 0 {
		return 0, 0
	}
	first = int(float64(total)*percent/100 + 0.5)
	if total >= 2 {
		if first < 1 {
			first = 1
		}
		if first > total-1 {
			first = total - 1
		}
	} else if first > total {
		first = total
	}
	return first, total - first
}
