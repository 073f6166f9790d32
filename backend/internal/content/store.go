package content

import (
	"context"
	"sort"
	"sync"
)

// Store supplies entries per collection. Implementations are read-only from
// the point of view of the graph and query layers.
type Store interface {
	// Entries returns every entry of a collection. Unknown collections yield
	// no entries and no error.
	Entries(ctx context.Context, collection string) ([]Entry, error)

	// Collections lists the collection names the store knows about.
	Collections(ctx context.Context) ([]string, error)
}

// MemoryStore is an in-memory Store. It is safe for concurrent use and
// intended for tests and for callers that already hold their content.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Entry
}

// NewMemoryStore creates a store pre-populated with the given entries
func NewMemoryStore(entries ...Entry) *MemoryStore {
	s := &MemoryStore{collections: make(map[string][]Entry)}
	s.Add(entries...)
	return s
}

// Add appends entries to their collections. An entry whose id already exists
// in its collection replaces the stored one in place.
func (s *MemoryStore) Add(entries ...Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		list := s.collections[e.Collection]
		replaced := false
		for i := range list {
			if list[i].ID == e.ID {
				list[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, e)
		}
		s.collections[e.Collection] = list
	}
}

// Entries implements Store
func (s *MemoryStore) Entries(_ context.Context, collection string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.collections[collection]
	out := make([]Entry, len(list))
	copy(out, list)
	return out, nil
}

// Collections implements Store
func (s *MemoryStore) Collections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
