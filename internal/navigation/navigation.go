// Package navigation tracks which project and collection the user is in.
package navigation

import (
	"context"
	"fmt"
	"sync"

	"github.com/Epistemic-Technology/academic-reader/internal/logger"
	"github.com/Epistemic-Technology/academic-reader/models"
)

// Persister stores the selection between runs.
type Persister interface {
	LoadSessionContext(ctx context.Context) (models.SessionContext, error)
	SaveSessionContext(ctx context.Context, sc models.SessionContext) error
}

// Context is the current selection. It is read from storage once and then
// kept in memory; every change is written through.
type Context struct {
	store Persister
	log   logger.Logger

	mu      sync.RWMutex
	current models.SessionContext
}

// Load reads the stored selection. A read failure starts from an empty
// selection rather than failing startup.
func Load(ctx context.Context, store Persister, log logger.Logger) *Context {
	c := &Context{store: store, log: log.With("navigation")}
	sc, err := store.LoadSessionContext(ctx)
	if err != nil {
		c.log.Warn("Failed to load last selection: %v", err)
		return c
	}
	c.current = sc
	return c
}

func (c *Context) Project() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.LastProjectID
}

func (c *Context) Collection() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.LastCollectionID
}

func (c *Context) Current() models.SessionContext {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// SelectProject switches project. The collection belongs to the previous
// project, so it is cleared unless the project is unchanged.
func (c *Context) SelectProject(ctx context.Context, projectID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := c.current
	if next.LastProjectID != projectID {
		next.LastCollectionID = ""
	}
	next.LastProjectID = projectID
	return c.save(ctx, next)
}

// SelectCollection records a collection within projectID.
func (c *Context) SelectCollection(ctx context.Context, projectID, collectionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.save(ctx, models.SessionContext{LastProjectID: projectID, LastCollectionID: collectionID})
}

// Resolve picks the project and collection to show. Explicit identifiers
// win; an explicit project that differs from the stored one does not
// inherit the stored collection.
func (c *Context) Resolve(explicitProject, explicitCollection string) (projectID, collectionID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	projectID = explicitProject
	if projectID == "" {
		projectID = c.current.LastProjectID
	}
	collectionID = explicitCollection
	if collectionID == "" && projectID == c.current.LastProjectID {
		collectionID = c.current.LastCollectionID
	}
	return projectID, collectionID
}

func (c *Context) save(ctx context.Context, next models.SessionContext) error {
	if next == c.current {
		return nil
	}
	if err := c.store.SaveSessionContext(ctx, next); err != nil {
		return fmt.Errorf("failed to save selection: %w", err)
	}
	c.current = next
	c.log.Debug("Selected project %q collection %q", next.LastProjectID, next.LastCollectionID)
	return nil
}
