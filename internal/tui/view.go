package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Epistemic-Technology/academic-reader/internal/content"
	"github.com/Epistemic-Technology/academic-reader/internal/layout"
	"github.com/Epistemic-Technology/academic-reader/models"
)

// header row on top, status row at the bottom
const (
	bodyTop     = 1
	chromeLines = 2
)

type box struct{ x, y, w, h int }

func (b box) contains(x, y int) bool {
	return x >= b.x && x < b.x+b.w && y >= b.y && y < b.y+b.h
}

// geometry is the screen placement of the panes and dividers for the current
// size and layout. The primary divider is a column when side by side and a
// row when stacked; the secondary divider is always a row.
type geometry struct {
	stacked   bool
	viewer    box
	companion box
	assistant box
	primary   box
	secondary box

	primaryBounds   layout.Rect
	secondaryBounds layout.Rect
}

func (m *Model) geometry() geometry {
	l := m.panes.Layout()
	bodyH := m.height - chromeLines
	if bodyH < 3 {
		bodyH = 3
	}
	g := geometry{stacked: l.Orientation == models.Stacked}
	g.primaryBounds = layout.Rect{X: 0, Y: bodyTop, Width: float64(m.width), Height: float64(bodyH)}

	var rest box
	if g.stacked {
		vh, rh := layout.Split(bodyH-1, l.PrimaryAxisPercent)
		g.viewer = box{0, bodyTop, m.width, vh}
		g.primary = box{0, bodyTop + vh, m.width, 1}
		rest = box{0, bodyTop + vh + 1, m.width, rh}
	} else {
		vw, rw := layout.Split(m.width-1, l.PrimaryAxisPercent)
		g.viewer = box{0, bodyTop, vw, bodyH}
		g.primary = box{vw, bodyTop, 1, bodyH}
		rest = box{vw + 1, bodyTop, rw, bodyH}
	}

	ch, ah := layout.Split(rest.h-1, l.SecondaryAxisPercent)
	g.companion = box{rest.x, rest.y, rest.w, ch}
	g.secondary = box{rest.x, rest.y + ch, rest.w, 1}
	g.assistant = box{rest.x, rest.y + ch + 1, rest.w, ah}
	g.secondaryBounds = layout.Rect{X: float64(rest.x), Y: float64(rest.y), Width: float64(rest.w), Height: float64(rest.h)}
	return g
}

// handleDividerDrag runs the press/motion/release drag session for the
// divider under the pointer. It reports whether the event was consumed.
func (m *Model) handleDividerDrag(msg tea.MouseMsg) bool {
	switch msg.Type {
	case tea.MouseLeft:
		g := m.geometry()
		switch {
		case g.primary.contains(msg.X, msg.Y):
			m.panes.PointerDown(layout.Primary, g.primaryBounds)
		case g.secondary.contains(msg.X, msg.Y):
			m.panes.PointerDown(layout.Secondary, g.secondaryBounds)
		default:
			return false
		}
		return true
	case tea.MouseMotion:
		_, ok := m.panes.PointerMove(layout.Point{X: float64(msg.X), Y: float64(msg.Y)})
		return ok
	case tea.MouseRelease:
		_, ok := m.panes.PointerUp()
		return ok
	}
	return false
}

func (m *Model) View() string {
	if m.width <= 0 || m.height <= 0 {
		return "Loading..."
	}
	g := m.geometry()

	w := m.session.Window()
	companion := content.DeriveWindow(m.session.Document(), w.Page, w.Mode.Toggle())

	viewer := renderPane(fmt.Sprintf("Page %d · %s", w.Page, w.Mode), w.Current, g.viewer)
	comp := renderPane(fmt.Sprintf("Companion · %s", companion.Mode), companion.Current, g.companion)
	asst := renderPane("Assistant", m.transcript(), g.assistant)
	asst = tailPane(asst, g.assistant.h)

	primaryStyle, secondaryStyle := dividerStyle, dividerStyle
	if d := m.panes.Divider(layout.Primary); d.Dragging() {
		primaryStyle = draggingStyle
	}
	if d := m.panes.Divider(layout.Secondary); d.Dragging() {
		secondaryStyle = draggingStyle
	}

	rest := lipgloss.JoinVertical(lipgloss.Left,
		comp,
		secondaryStyle.Render(strings.Repeat("─", g.secondary.w)),
		asst,
	)
	var body string
	if g.stacked {
		body = lipgloss.JoinVertical(lipgloss.Left,
			viewer,
			primaryStyle.Render(strings.Repeat("─", g.primary.w)),
			rest,
		)
	} else {
		column := strings.TrimSuffix(strings.Repeat("│\n", g.primary.h), "\n")
		body = lipgloss.JoinHorizontal(lipgloss.Top, viewer, primaryStyle.Render(column), rest)
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body, m.renderStatus())
}

func renderPane(title, text string, b box) string {
	if b.w <= 0 || b.h <= 0 {
		return ""
	}
	body := paneTitleStyle.Render(truncate(title, b.w)) + "\n" + textStyle.Render(text)
	return lipgloss.NewStyle().Width(b.w).Height(b.h).MaxHeight(b.h).Render(body)
}

// tailPane keeps the pane title and the last lines of a rendered pane so the
// newest answer stays visible.
func tailPane(rendered string, h int) string {
	lines := strings.Split(rendered, "\n")
	if h <= 1 || len(lines) <= h {
		return rendered
	}
	return strings.Join(append(lines[:1], lines[len(lines)-(h-1):]...), "\n")
}

func (m *Model) transcript() string {
	var b strings.Builder
	for _, turn := range m.assistant.History() {
		b.WriteString(questionStyle.Render(fmt.Sprintf("Q (p.%d): %s", turn.Page, turn.Question)))
		b.WriteString("\n")
		b.WriteString(turn.Answer)
		b.WriteString("\n\n")
	}
	if m.thinking {
		b.WriteString(dimStyle.Render("Thinking..."))
	} else if b.Len() == 0 {
		b.WriteString(dimStyle.Render("Press a to ask about the current page."))
	}
	return b.String()
}

func (m *Model) renderHeader() string {
	page, total := m.session.Page()
	title := m.session.DocumentID()
	if doc := m.session.Document(); doc != nil && doc.Title != "" {
		title = doc.Title
	}
	meta := fmt.Sprintf(" %d/%d · %s · %d%% · %s ", page, total, m.session.Mode(),
		int(m.session.Zoom()*100+0.5), m.panes.Layout().Orientation)
	if up := m.uploadSummary(); up != "" {
		meta = " " + up + " ·" + meta
	}
	avail := m.width - lipgloss.Width(meta)
	left := headerStyle.Render(" " + truncate(title, avail-2) + " ")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(meta)
	if gap < 0 {
		gap = 0
	}
	return left + headerMetaStyle.Render(strings.Repeat(" ", gap)+meta)
}

func (m *Model) uploadSummary() string {
	if m.uploads == nil {
		return ""
	}
	var active []string
	for _, f := range m.uploads.Progress() {
		if f.Stage == models.StageUploading || f.Stage == models.StageProcessing {
			active = append(active, fmt.Sprintf("%s %d%%", f.FileName, f.Percent))
		}
	}
	return strings.Join(active, ", ")
}

func (m *Model) renderStatus() string {
	switch m.mode {
	case modeAsk:
		return promptStyle.Render("ask> ") + m.input
	case modeJump:
		return promptStyle.Render("page> ") + m.input
	}
	if len(m.notifications) > 0 {
		n := m.notifications[0]
		style := successStyle
		if n.Kind != models.NotifySuccess {
			style = errorStyle
		}
		text := fmt.Sprintf("%s: %s", n.FileName, n.Text)
		if more := len(m.notifications) - 1; more > 0 {
			text += fmt.Sprintf(" (+%d)", more)
		}
		return style.Render(truncate(text, m.width-16)) + helpStyle.Render("  x dismiss")
	}
	if m.status != "" {
		if m.statusErr {
			return errorStyle.Render(truncate(m.status, m.width))
		}
		return successStyle.Render(truncate(m.status, m.width))
	}
	return helpStyle.Render(truncate("n/p page · g go to · home/end · t language · +/- zoom · o orientation · c copy · a ask · q quit", m.width))
}

func truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= w {
		return s
	}
	if w == 1 {
		return "…"
	}
	return string(r[:w-1]) + "…"
}
