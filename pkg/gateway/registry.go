package gateway

import (
	"fmt"
	"slices"
	"sync"

	"github.com/amirasaad/usdledger/pkg/domain"
)

// Registry resolves gateways by name.
type Registry struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.Register(g)
	}
	return r
}

// Register adds g, replacing any gateway of the same name.
func (r *Registry) Register(g Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[g.Name()] = g
}

func (r *Registry) Get(name string) (Gateway, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownGateway, name)
	}
	return g, nil
}

// Names lists the registered gateways in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for n := range r.gateways {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}
