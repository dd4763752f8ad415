package api

import (
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"

	"resforge/internal/dsl"
	"resforge/internal/engine"
	"resforge/internal/reference"
)

// Run is one stored generation run.
type Run struct {
	ID       string         `json:"runId"`
	Resource string         `json:"resource"`
	Profile  string         `json:"profile"`
	Result   *engine.Result `json:"-"`
	View     RunView        `json:"run"`
}

// Store keeps the loaded specs and catalogs and the most recent runs. Run
// IDs are ULIDs, so lexical order is creation order.
type Store struct {
	mu       sync.RWMutex
	doc      *dsl.Document
	catalogs map[string]reference.Catalog
	runs     map[string]*Run
	capacity int
}

func NewStore(doc *dsl.Document, catalogs map[string]reference.Catalog, capacity int) *Store {
	if doc == nil {
		doc = &dsl.Document{}
	}
	if capacity <= 0 {
		capacity = 200
	}
	return &Store{doc: doc, catalogs: catalogs, runs: map[string]*Run{}, capacity: capacity}
}

func (s *Store) Document() *dsl.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

func (s *Store) Catalogs() map[string]reference.Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalogs
}

// Replace swaps specs and catalogs at once.
func (s *Store) Replace(doc *dsl.Document, catalogs map[string]reference.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.catalogs = catalogs
}

// Put stores r, dropping the oldest runs beyond capacity.
func (s *Store) Put(r *Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[r.ID] = r
	if len(s.runs) <= s.capacity {
		return
	}
	ids := s.idsLocked()
	for _, id := range ids[:len(ids)-s.capacity] {
		delete(s.runs, id)
	}
}

// Get looks a run up. ok is false for unknown IDs; valid reports whether id
// is a well-formed run ID at all.
func (s *Store) Get(id string) (r *Run, ok, valid bool) {
	if _, err := ulid.ParseStrict(id); err != nil {
		return nil, false, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok = s.runs[id]
	return r, ok, true
}

// Runs returns the stored runs, oldest first.
func (s *Store) Runs() []*Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.idsLocked()
	out := make([]*Run, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.runs[id])
	}
	return out
}

func (s *Store) idsLocked() []string {
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
