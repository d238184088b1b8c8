// Package viewstate restores and records the per-document reading position.
package viewstate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/models"
)

var ErrInvalidUpdate = errors.New("invalid view state update")

// Backend is the persistence the store reads and merges into.
type Backend interface {
	LoadViewState(ctx context.Context, docID string) (models.ViewState, bool, error)
	MergeViewState(ctx context.Context, docID string, update models.ViewStateUpdate) error
	DeleteViewState(ctx context.Context, docID string) error
}

type Store struct {
	backend Backend
	log     logger.Logger
}

func NewStore(backend Backend, log logger.Logger) *Store {
	return &Store{backend: backend, log: log.With("viewstate")}
}

// Get never fails: a missing record, a read error or unusable stored values
// all yield the default, field by field.
func (s *Store) Get(ctx context.Context, docID string) models.ViewState {
	state, found, err := s.backend.LoadViewState(ctx, docID)
	if err != nil {
		s.log.Warn("Failed to load view state for %s, using defaults: %v", docID, err)
		return models.DefaultViewState
	}
	if !found {
		return models.DefaultViewState
	}
	if state.PageNumber < 1 {
		s.log.Warn("Discarding stored page %d for %s", state.PageNumber, docID)
		state.PageNumber = models.DefaultViewState.PageNumber
	}
	if !validZoom(state.Zoom) {
		s.log.Warn("Discarding stored zoom %v for %s", state.Zoom, docID)
		state.Zoom = models.DefaultViewState.Zoom
	}
	return state
}

// Set merges update into the stored record for docID.
func (s *Store) Set(ctx context.Context, docID string, update models.ViewStateUpdate) error {
	if docID == "" {
		return fmt.Errorf("%w: empty document id", ErrInvalidUpdate)
	}
	if update.PageNumber == nil && update.Zoom == nil {
		return nil
	}
	if update.PageNumber != nil && *update.PageNumber < 1 {
		return fmt.Errorf("%w: page %d", ErrInvalidUpdate, *update.PageNumber)
	}
	if update.Zoom != nil && !validZoom(*update.Zoom) {
		return fmt.Errorf("%w: zoom %v", ErrInvalidUpdate, *update.Zoom)
	}
	if err := s.backend.MergeViewState(ctx, docID, update); err != nil {
		return fmt.Errorf("failed to save view state for %s: %w", docID, err)
	}
	return nil
}

// SetPage is shorthand for a page-only update.
func (s *Store) SetPage(ctx context.Context, docID string, page int) error {
	return s.Set(ctx, docID, models.ViewStateUpdate{PageNumber: &page})
}

// SetZoom is shorthand for a zoom-only update.
func (s *Store) SetZoom(ctx context.Context, docID string, zoom float64) error {
	return s.Set(ctx, docID, models.ViewStateUpdate{Zoom: &zoom})
}

// Forget drops the record, used when a document is removed.
func (s *Store) Forget(ctx context.Context, docID string) error {
	if err := s.backend.DeleteViewState(ctx, docID); err != nil {
		return fmt.Errorf("failed to forget view state for %s: %w", docID, err)
	}
	return nil
}

func validZoom(z float64) bool {
	return z > 0 && !math.IsInf(z, 0) && !math.IsNaN(z)
}
