package compute

import (
	"sort"
	"sync"

	"github.com/aretw0/topolab/pkg/domain"
)

// Registry keeps exactly one proxy per compute id for the controller's lifetime.
type Registry struct {
	mu       sync.RWMutex
	computes map[string]*Compute
	opts     []Option
}

// NewRegistry creates an empty registry. opts are applied to every proxy it creates.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		computes: make(map[string]*Compute),
		opts:     opts,
	}
}

// Add registers an already constructed proxy. A second proxy for the same id is a conflict.
func (r *Registry) Add(c *Compute) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.computes[c.ID()]; exists {
		return domain.ConflictError("add compute", "compute %q already registered", c.ID())
	}
	r.computes[c.ID()] = c
	return nil
}

// Create constructs a proxy with the registry options and registers it.
// An id that is already registered is a conflict.
func (r *Registry) Create(id string, conn Connection) (*Compute, error) {
	c, err := New(id, conn, r.opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Add(c); err != nil {
		return nil, err
	}
	return c, nil
}

// GetOrCreate returns the registered proxy for id, constructing it on first reference.
func (r *Registry) GetOrCreate(id string, conn Connection) (*Compute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.computes[id]; ok {
		return c, nil
	}
	c, err := New(id, conn, r.opts...)
	if err != nil {
		return nil, err
	}
	r.computes[id] = c
	return c, nil
}

// Get returns the proxy for id or domain.ErrComputeNotFound.
func (r *Registry) Get(id string) (*Compute, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.computes[id]
	if !ok {
		return nil, domain.ErrComputeNotFound
	}
	return c, nil
}

// Remove drops the proxy for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.computes, id)
}

// List returns all proxies ordered by id.
func (r *Registry) List() []*Compute {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Compute, 0, len(r.computes))
	for _, c := range r.computes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
