package tools

import (
	"context"
	"fmt"

	"github.com/Epistemic-Technology/academic-reader/internal/assistant"
	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/internal/navigation"
	"github.com/Epistemic-Technology/academic-reader/internal/reader"
	"github.com/Epistemic-Technology/academic-reader/internal/sources"
	"github.com/Epistemic-Technology/academic-reader/internal/upload"
	"github.com/Epistemic-Technology/academic-reader/internal/viewstate"
	"github.com/Epistemic-Technology/academic-reader/models"
)

// Library is the part of the backend the tools call directly.
type Library interface {
	reader.OutlineGenerator
	RemoveDocument(ctx context.Context, docID string) error
	RemoveJob(ctx context.Context, jobID string) error
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListCollections(ctx context.Context, projectID string) ([]models.Collection, error)
	GetCollection(ctx context.Context, projectID, collectionID string) (*models.Collection, error)
}

// Env carries the shared services every handler needs.
type Env struct {
	Library    Library
	Readers    *reader.Registry
	Views      *viewstate.Store
	Uploads    *upload.Coordinator
	Navigation *navigation.Context
	Responder  assistant.Responder
	// Zotero is nil when no Zotero credentials are configured.
	Zotero sources.FetchFunc
	Log    logger.Logger
}

// ReaderState is what every reader tool returns.
type ReaderState struct {
	DocumentID   string   `json:"document_id"`
	Title        string   `json:"title,omitempty"`
	Page         int      `json:"page"`
	TotalPages   int      `json:"total_pages"`
	Zoom         float64  `json:"zoom"`
	Language     string   `json:"language"`
	Previous     string   `json:"previous"`
	Current      string   `json:"current"`
	Next         string   `json:"next"`
	ResourceURIs []string `json:"resource_uris,omitempty"`
}

func stateOf(s *reader.Session) *ReaderState {
	page, total := s.Page()
	w := s.Window()
	title := ""
	if doc := s.Document(); doc != nil {
		title = doc.Title
	}
	return &ReaderState{
		DocumentID: s.DocumentID(),
		Title:      title,
		Page:       page,
		TotalPages: total,
		Zoom:       s.Zoom(),
		Language:   s.Mode().String(),
		Previous:   w.Previous,
		Current:    w.Current,
		Next:       w.Next,
		ResourceURIs: []string{
			fmt.Sprintf("reader://%s/window", s.DocumentID()),
			fmt.Sprintf("reader://%s/pages/%d", s.DocumentID(), page),
		},
	}
}

func (e *Env) session(ctx context.Context, docID string) (*reader.Session, error) {
	if docID == "" {
		return nil, fmt.Errorf("document_id is required")
	}
	return e.Readers.Open(ctx, docID)
}
