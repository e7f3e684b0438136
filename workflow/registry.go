package workflow

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps node-type strings to their plugin factories. It is populated
// at startup and read-mostly afterwards, but registration may race with
// concurrent runs, so every access goes through the read/write lock.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Definition
}

// NewRegistry creates an empty node registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Definition)}
}

// Register installs a node definition, replacing any previous definition
// for the same type.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[def.Type()] = def
}

// Get returns the definition for a node type.
func (r *Registry) Get(nodeType string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.types[nodeType]
	return def, ok
}

// Instantiate creates a fresh instance for the node type.
func (r *Registry) Instantiate(nodeType string) (Instance, error) {
	def, ok := r.Get(nodeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeTypeUnknown, nodeType)
	}
	return def.CreateInstance()
}

// List returns display info for all registered node types, sorted by type.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]Info, 0, len(r.types))
	for t, def := range r.types {
		info := Info{Type: t}
		if d, ok := def.(Describer); ok {
			info.DisplayName = d.DisplayName()
			info.Description = d.Description()
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Type < infos[j].Type })
	return infos
}
