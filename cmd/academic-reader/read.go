package main

import (
	"context"
	"flag"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Epistemic-Technology/academic-reader/internal/app"
	"github.com/Epistemic-Technology/academic-reader/internal/assistant"
	"github.com/Epistemic-Technology/academic-reader/internal/config"
	"github.com/Epistemic-Technology/academic-reader/internal/layout"
	"github.com/Epistemic-Technology/academic-reader/internal/permission"
	"github.com/Epistemic-Technology/academic-reader/internal/tui"
	"github.com/Epistemic-Technology/academic-reader/models"
)

func runRead(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("read", flag.ContinueOnError)
	page := fs.Int("page", 0, "start at this page instead of the last one read")
	original := fs.Bool("original", false, "show the original text instead of the translation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("read takes exactly one document id")
	}
	docID := fs.Arg(0)

	log, err := newLogger(cfg, true)
	if err != nil {
		return err
	}

	notes := tui.NewNotifier(log)
	// no prompt while the reader owns the screen
	a, err := app.New(ctx, cfg, log, app.Options{Challenger: permission.DenyAll, Notifier: notes})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ResumePending(ctx); err != nil {
		log.Warn("Upload progress unavailable: %v", err)
	}

	s, err := a.Readers.Open(ctx, docID)
	if err != nil {
		return err
	}
	if *page > 0 {
		s.Jump(*page)
	}
	if *original {
		s.SetLanguage(models.ModeOriginal)
	}

	title := docID
	if doc := s.Document(); doc != nil && doc.Title != "" {
		title = doc.Title
	}
	panes := layout.NewManager(cfg.Layout.PrimaryPercent, cfg.Layout.SecondaryPercent)
	model := tui.New(ctx, s, assistant.New(a.Responder, title, log), panes, tui.Options{
		Uploads:       a.Uploads,
		Notifications: notes.C(),
		Logger:        log,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reader failed: %w", err)
	}
	return nil
}
