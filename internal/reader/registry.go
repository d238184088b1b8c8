package reader

import (
	"context"
	"sort"
	"sync"
)

// Registry keeps at most one open session per document.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{deps: deps, sessions: make(map[string]*Session)}
}

// Open returns the existing session for docID or opens a new one.
func (r *Registry) Open(ctx context.Context, docID string) (*Session, error) {
	if s, ok := r.Get(docID); ok {
		return s, nil
	}

	s, err := Open(ctx, docID, r.deps)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[docID]; ok {
		// lost a race with a concurrent Open
		s.Close()
		return existing, nil
	}
	r.sessions[docID] = s
	return s, nil
}

func (r *Registry) Get(docID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[docID]
	return s, ok
}

// IDs lists the documents with an open session, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close closes and forgets the session for docID.
func (r *Registry) Close(docID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[docID]
	delete(r.sessions, docID)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
