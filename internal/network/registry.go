package network

import (
	"sync"

	"github.com/eleven-am/poanet/internal/domain"
	"github.com/eleven-am/poanet/internal/node"
)

type member struct {
	node     *node.Node
	identity domain.NodeIdentity
}

// Registry is the live node collection, kept in insertion order. The
// validator set is derived from it so the two cannot drift apart.
type Registry struct {
	mu      sync.RWMutex
	order   []string
	members map[string]member
}

func NewRegistry() *Registry {
	return &Registry{members: make(map[string]member)}
}

func (r *Registry) Add(n *node.Node, id domain.NodeIdentity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[n.Name()]; exists {
		return false
	}
	r.members[n.Name()] = member{node: n, identity: id}
	r.order = append(r.order, n.Name())
	return true
}

func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.members[name]; !exists {
		return false
	}
	delete(r.members, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Get(name string) (*node.Node, domain.NodeIdentity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.members[name]
	return m.node, m.identity, ok
}

func (r *Registry) Nodes() []*node.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*node.Node, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.members[name].node)
	}
	return out
}

// Validators returns validator names in insertion order.
func (r *Registry) Validators() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, name := range r.order {
		if r.members[name].node.IsValidator() {
			out = append(out, name)
		}
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.members = make(map[string]member)
}
