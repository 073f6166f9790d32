package menu

import (
	"strconv"
	"sync"
)

// IDRegistry hands out unique ids. The first request for a spelling gets it
// verbatim; later requests get "-2", "-3" and so on.
type IDRegistry struct {
	mu   sync.Mutex
	used map[string]struct{}
	next map[string]int
}

// NewIDRegistry creates an empty registry
func NewIDRegistry() *IDRegistry {
	return &IDRegistry{
		used: make(map[string]struct{}),
		next: make(map[string]int),
	}
}

// Register reserves and returns a unique id derived from base
func (r *IDRegistry) Register(base string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.used[base]; !taken {
		r.used[base] = struct{}{}
		return base
	}
	n := max(r.next[base], 2)
	for {
		candidate := base + "-" + strconv.Itoa(n)
		n++
		if _, taken := r.used[candidate]; !taken {
			r.used[candidate] = struct{}{}
			r.next[base] = n
			return candidate
		}
	}
}

// Has reports whether id is taken
func (r *IDRegistry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.used[id]
	return ok
}

// Clear forgets every id
func (r *IDRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.used)
	clear(r.next)
}
