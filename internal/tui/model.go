// Package tui is the terminal reading surface: the page viewer, a companion
// pane with the other language, and the assistant pane, split by two
// draggable dividers.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Epistemic-Technology/academic-reader/internal/assistant"
	"github.com/Epistemic-Technology/academic-reader/internal/content"
	"github.com/Epistemic-Technology/academic-reader/internal/layout"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/reader"
	"github.com/Epistemic-Technology/academic-reader/internal/upload"
	"github.com/Epistemic-Technology/academic-reader/models"
)

const (
	zoomStep = 0.1
	minZoom  = 0.5
	maxZoom  = 3.0

	progressInterval = time.Second
	notifyBuffer     = 32
)

type inputMode int

const (
	modeNormal inputMode = iota
	modeAsk
	modeJump
)

type answerMsg struct {
	question string
	answer   string
	err      error
}

type notificationMsg models.Notification

type tickMsg time.Time

// Options are the optional collaborators of the reader.
type Options struct {
	// Uploads shows in-flight processing in the header.
	Uploads *upload.Coordinator
	// Notifications are shown in the status line until dismissed.
	Notifications <-chan models.Notification
	Logger        logger.Logger
}

type Model struct {
	ctx       context.Context
	session   *reader.Session
	assistant *assistant.Assistant
	panes     *layout.Manager
	uploads   *upload.Coordinator
	notes     <-chan models.Notification
	log       logger.Logger

	unsubscribe func()

	width  int
	height int

	mode     inputMode
	input    string
	thinking bool

	status        string
	statusErr     bool
	notifications []models.Notification
}

// New builds the reader around an open session. The assistant follows the
// session's window until Close.
func New(ctx context.Context, s *reader.Session, a *assistant.Assistant, panes *layout.Manager, opts Options) *Model {
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if panes == nil {
		panes = layout.NewDefaultManager()
	}
	m := &Model{
		ctx:       ctx,
		session:   s,
		assistant: a,
		panes:     panes,
		uploads:   opts.Uploads,
		notes:     opts.Notifications,
		log:       log.With("tui"),
	}
	m.unsubscribe = s.SubscribeWindow(a.Observe)
	return m
}

// Close detaches the assistant from the session.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) Init() tea.Cmd {
	var cmds []tea.Cmd
	if m.notes != nil {
		cmds = append(cmds, waitForNotification(m.notes))
	}
	if m.uploads != nil {
		cmds = append(cmds, tick())
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		switch m.mode {
		case modeAsk, modeJump:
			return m.updateInput(msg)
		}
		return m.updateNormal(msg)
	case tea.MouseMsg:
		m.handleDividerDrag(msg)
		return m, nil
	case answerMsg:
		m.thinking = false
		if msg.err != nil {
			m.setError(fmt.Sprintf("Assistant failed: %v", msg.err))
			return m, nil
		}
		m.setStatus("Answered.")
		return m, nil
	case notificationMsg:
		m.notifications = append(m.notifications, models.Notification(msg))
		return m, waitForNotification(m.notes)
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m *Model) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "n", "right", "pgdown":
		m.session.Next()
	case "p", "left", "pgup":
		m.session.Prev()
	case "home":
		m.session.First()
	case "end":
		m.session.Last()
	case "g":
		m.mode = modeJump
		m.input = ""
	case "t":
		mode := m.session.ToggleLanguage()
		m.setStatus(fmt.Sprintf("Showing %s text.", mode))
	case "+", "=":
		m.changeZoom(zoomStep)
	case "-":
		m.changeZoom(-zoomStep)
	case "o":
		m.panes.ToggleOrientation()
	case "a":
		if m.thinking {
			m.setError("Still waiting for the previous answer.")
			break
		}
		m.mode = modeAsk
		m.input = ""
	case "c":
		m.copyNearby()
	case "x":
		if len(m.notifications) > 0 {
			m.notifications = m.notifications[1:]
		}
		// finished uploads leave the header once nothing is left to read
		if len(m.notifications) == 0 && m.uploads != nil {
			m.uploads.Prune()
		}
	}
	return m, nil
}

// updateInput edits the ask or jump prompt.
func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input = ""
		return m, nil
	case tea.KeyEnter:
		input := strings.TrimSpace(m.input)
		mode := m.mode
		m.mode = modeNormal
		m.input = ""
		if input == "" {
			return m, nil
		}
		if mode == modeJump {
			m.jump(input)
			return m, nil
		}
		m.thinking = true
		return m, ask(m.ctx, m.assistant, input)
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			r := []rune(m.input)
			m.input = string(r[:len(r)-1])
		}
		return m, nil
	case tea.KeySpace:
		if m.mode == modeAsk {
			m.input += " "
		}
		return m, nil
	case tea.KeyRunes:
		if m.mode == modeJump {
			for _, r := range msg.Runes {
				if r < '0' || r > '9' {
					return m, nil
				}
			}
		}
		m.input += string(msg.Runes)
	}
	return m, nil
}

func (m *Model) jump(input string) {
	n, err := strconv.Atoi(input)
	if err != nil {
		m.setError(fmt.Sprintf("Not a page number: %s", input))
		return
	}
	page := m.session.Jump(n)
	m.setStatus(fmt.Sprintf("Page %d.", page))
}

func (m *Model) changeZoom(delta float64) {
	z := m.session.Zoom() + delta
	if z < minZoom {
		z = minZoom
	}
	if z > maxZoom {
		z = maxZoom
	}
	// keep one decimal so repeated steps do not drift
	z = float64(int(z*10+0.5)) / 10
	if err := m.session.SetZoom(m.ctx, z); err != nil {
		m.setError(fmt.Sprintf("Zoom failed: %v", err))
		return
	}
	m.setStatus(fmt.Sprintf("Zoom %d%%.", int(z*100+0.5)))
}

func (m *Model) copyNearby() {
	w := m.session.Window()
	if err := clipboardWrite(content.Nearby(w)); err != nil {
		m.setError(fmt.Sprintf("Clipboard copy failed: %v", err))
		return
	}
	m.setStatus(fmt.Sprintf("Copied pages around %d.", w.Page))
}

var clipboardWrite = clipboard.WriteAll

func (m *Model) setStatus(s string) {
	m.status = s
	m.statusErr = false
}

func (m *Model) setError(s string) {
	m.status = s
	m.statusErr = true
	m.log.Warn("%s", s)
}

func ask(ctx context.Context, a *assistant.Assistant, question string) tea.Cmd {
	return func() tea.Msg {
		answer, err := a.Ask(ctx, question)
		return answerMsg{question: question, answer: answer, err: err}
	}
}

func waitForNotification(ch <-chan models.Notification) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return notificationMsg(n)
	}
}

func tick() tea.Cmd {
	return tea.Tick(progressInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Notifier forwards upload notifications to the reader. A notification is
// dropped, and logged, when the buffer is full so a stalled screen never
// blocks polling.
type Notifier struct {
	ch  chan models.Notification
	log logger.Logger
}

func NewNotifier(log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Notifier{ch: make(chan models.Notification, notifyBuffer), log: log.With("tui")}
}

func (n *Notifier) Notify(note models.Notification) {
	select {
	case n.ch <- note:
	default:
		n.log.Warn("Dropped %s notification for %s: %s", note.Kind, note.FileName, note.Text)
	}
}

// C is the stream the reader listens on.
func (n *Notifier) C() <-chan models.Notification { return n.ch }
