package video

import (
	"sort"
	"strings"

	"telegram-video-gen/internal/domain"
	"telegram-video-gen/internal/domain/ports/adapter"
)

// Registry is the closed set of configured providers, keyed by name.
// Provider selection happens here once, not scattered across call sites.
type Registry struct {
	byName map[string]adapter.VideoGenAdapter
}

func NewRegistry(adapters ...adapter.VideoGenAdapter) *Registry {
	m := make(map[string]adapter.VideoGenAdapter, len(adapters))
	for _, a := range adapters {
		if a != nil {
			m[strings.ToLower(a.Name())] = a
		}
	}
	return &Registry{byName: m}
}

func (r *Registry) Lookup(name string) (adapter.VideoGenAdapter, error) {
	if a := r.byName[strings.ToLower(name)]; a != nil {
		return a, nil
	}
	return nil, domain.ErrUnknownProvider
}

func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
