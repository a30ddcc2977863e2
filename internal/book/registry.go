package book

import (
	"sync"

	"github.com/dexlab-io/matchbook/internal/domain"
)

// Registry is the process-wide mapping from pair name to its order
// book. Books are created when a pair is registered and live for the
// life of the process; bootstrap restores persisted snapshots before
// the first submit is accepted.
type Registry struct {
	mu    sync.RWMutex
	books map[string]*Book
	pairs map[string]*domain.Pair
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		books: make(map[string]*Book),
		pairs: make(map[string]*domain.Pair),
	}
}

// Register creates a fresh empty book for a new pair. Registering the
// same pair twice fails with domain.ErrDuplicatePair.
func (r *Registry) Register(pair *domain.Pair) (*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.books[pair.PairName]; exists {
		return nil, domain.ErrDuplicatePair
	}
	b := New(pair.PairName)
	r.books[pair.PairName] = b
	r.pairs[pair.PairName] = pair
	return b, nil
}

// Get returns the book and pair config for a pair name.
func (r *Registry) Get(pairName string) (*Book, *domain.Pair, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.books[pairName]
	if !ok {
		return nil, nil, domain.ErrPairNotFound
	}
	return b, r.pairs[pairName], nil
}

// Pairs returns the registered pairs. The slice is a copy; the sampler
// iterates it without holding the registry lock.
func (r *Registry) Pairs() []*domain.Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Pair, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, p)
	}
	return out
}
