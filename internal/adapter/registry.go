package adapter

import (
	"fmt"
	"sort"
)

// Registry maps a source kind to its adapter. Built once at startup; lookups
// replace the slug-keyed dispatch chains this design grew out of.
type Registry struct {
	byKind map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{byKind: map[string]Adapter{}}
	for _, a := range adapters {
		if a == nil || a.Kind() == "" {
			continue
		}
		r.byKind[a.Kind()] = a
	}
	return r
}

func (r *Registry) Resolve(kind string) (Adapter, error) {
	if r == nil {
		return nil, fmt.Errorf("adapter registry not initialized")
	}
	a, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for kind %q", kind)
	}
	return a, nil
}

func (r *Registry) Kinds() []string {
	if r == nil {
		return nil
	}
	kinds := make([]string, 0, len(r.byKind))
	for k := range r.byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
