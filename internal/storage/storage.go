package storage

import (
	"context"

	"github.com/Epistemic-Technology/academic-reader/models"
)

// Store persists the reader's local, per-installation state.
type Store interface {
	// LoadViewState returns the stored view state for docID. found is false
	// when no record exists. Values are returned as stored, unvalidated.
	LoadViewState(ctx context.Context, docID string) (state models.ViewState, found bool, err error)

	// MergeViewState atomically merges the non-nil fields of update into the
	// record for docID, creating it from defaults when missing.
	MergeViewState(ctx context.Context, docID string, update models.ViewStateUpdate) error

	// DeleteViewState removes the record for docID
	DeleteViewState(ctx context.Context, docID string) error

	// LoadSessionContext returns the last project and collection, empty when unset
	LoadSessionContext(ctx context.Context) (models.SessionContext, error)

	// SaveSessionContext overwrites the stored project and collection
	SaveSessionContext(ctx context.Context, sc models.SessionContext) error

	// Close closes the database connection
	Close() error
}
