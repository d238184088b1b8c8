// Package app builds the services shared by the MCP server and the terminal
// reader from configuration.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/Epistemic-Technology/academic-reader/internal/assistant"
	"github.com/Epistemic-Technology/academic-reader/internal/backend"
	"github.com/Epistemic-Technology/academic-reader/internal/config"
	"github.com/Epistemic-Technology/academic-reader/internal/jobs"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/navigation"
	"github.com/Epistemic-Technology/academic-reader/internal/permission"
	"github.com/Epistemic-Technology/academic-reader/internal/reader"
	"github.com/Epistemic-Technology/academic-reader/internal/sources"
	"github.com/Epistemic-Technology/academic-reader/internal/storage"
	"github.com/Epistemic-Technology/academic-reader/internal/upload"
	"github.com/Epistemic-Technology/academic-reader/internal/viewstate"
	"github.com/Epistemic-Technology/academic-reader/models"
)

// Options are the collaborators that differ per surface.
type Options struct {
	// Challenger answers permission challenges. Default: deny.
	Challenger permission.Challenger
	// Notifier receives upload notifications. Default: log them.
	Notifier upload.Notifier
}

type App struct {
	Config     config.Config
	Store      storage.Store
	Backend    *backend.Client
	Gate       *permission.Gate
	Poller     *jobs.Poller
	Views      *viewstate.Store
	Navigation *navigation.Context
	Readers    *reader.Registry
	Uploads    *upload.Coordinator
	Responder  assistant.Responder
	// Zotero is nil without Zotero credentials.
	Zotero sources.FetchFunc

	log logger.Logger
}

func New(ctx context.Context, cfg config.Config, log logger.Logger, opts Options) (*App, error) {
	store, err := initializeStorage(cfg.Storage.Path, log)
	if err != nil {
		return nil, err
	}

	client, err := backend.NewClient(cfg.Backend.BaseURL,
		backend.WithTimeout(cfg.Backend.Timeout),
		backend.WithLogger(log),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &App{Config: cfg, Store: store, Backend: client, log: log}

	a.Gate = permission.NewGate(opts.Challenger, log, permission.WithReplay(cfg.Permission.ReplayOnSuccess))

	var limiter *rate.Limiter
	if cfg.Poll.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Poll.RatePerSecond), 1)
	}
	a.Poller = jobs.NewPoller(client, jobs.Options{
		Interval:             cfg.Poll.Interval,
		MaxTransientFailures: cfg.Poll.MaxTransientFailures,
		Backoff:              cfg.Poll.Backoff,
		MaxInterval:          cfg.Poll.MaxInterval,
		Limiter:              limiter,
		Gate:                 a.Gate,
		Logger:               log,
	})

	a.Views = viewstate.NewStore(store, log)
	a.Navigation = navigation.Load(ctx, store, log)
	a.Readers = reader.NewRegistry(reader.Deps{
		Fetcher: client,
		Views:   a.Views,
		Gate:    a.Gate,
		Logger:  log,
	})

	notifier := opts.Notifier
	if notifier == nil {
		notifier = upload.NotifierFunc(a.logNotification)
	}
	a.Uploads = upload.NewCoordinator(client, a.Poller, upload.Options{
		OnComplete: a.refreshCompleted,
		Notifier:   notifier,
		Gate:       a.Gate,
		Logger:     log,
	})

	if key := cfg.OpenAIKey(); key != "" {
		a.Responder = assistant.NewOpenAIResponder(key, assistant.NewLimiter(), log)
	} else {
		log.Info("%s not set, assistant uses the backend chat endpoint", cfg.Assistant.APIKeyEnv)
		a.Responder = assistant.NewBackendResponder(client, assistant.NewLimiter(), log)
	}

	if libraryID, apiKey, ok := cfg.ZoteroCredentials(); ok {
		a.Zotero = sources.ZoteroFetcher(libraryID, apiKey)
	}
	return a, nil
}

// Close stops polling, closes open documents and the database.
func (a *App) Close() error {
	a.Uploads.Close()
	a.Poller.Close()
	a.Readers.CloseAll()
	return a.Store.Close()
}

// ResumePending follows the jobs still processing in the last opened
// collection. Nothing happens when no collection has been opened.
func (a *App) ResumePending(ctx context.Context) error {
	cur := a.Navigation.Current()
	if cur.LastProjectID == "" || cur.LastCollectionID == "" {
		return nil
	}
	col, err := a.Backend.GetCollection(ctx, cur.LastProjectID, cur.LastCollectionID)
	if err != nil {
		return fmt.Errorf("failed to resume pending jobs: %w", err)
	}
	a.Uploads.Resume(col.ProcessingTasks)
	return nil
}

// refreshCompleted reloads an open document once its job finishes.
func (a *App) refreshCompleted(h models.JobHandle) {
	if h.DocumentID == "" {
		return
	}
	s, ok := a.Readers.Get(h.DocumentID.String())
	if !ok {
		return
	}
	if err := s.Refresh(context.Background()); err != nil {
		a.log.Warn("Failed to refresh %s after processing: %v", h.DocumentID, err)
	}
}

func (a *App) logNotification(n models.Notification) {
	switch n.Kind {
	case models.NotifySuccess:
		a.log.Info("%s: %s", n.FileName, n.Text)
	default:
		a.log.Error("%s: %s", n.FileName, n.Text)
	}
}

func initializeStorage(dbPath string, log logger.Logger) (storage.Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("storage path is empty")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	log.Info("Initializing SQLite database at: %s", dbPath)
	store, err := storage.NewSQLiteStore(dbPath, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite store: %w", err)
	}
	return store, nil
}
