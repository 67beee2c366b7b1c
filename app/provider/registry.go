package provider

import (
	"sort"
	"strings"
)

type Registry struct {
	providers map[string]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	items := make(map[string]Provider, len(providers))
	for _, p := range providers {
		items[p.Code()] = p
	}
	return &Registry{providers: items}
}

// Get resolves a provider by code. Disabled providers are returned as well so the
// caller can report them as unavailable rather than unknown.
func (r *Registry) Get(code string) (Provider, error) {
	provider, ok := r.providers[strings.ToLower(strings.TrimSpace(code))]
	if !ok {
		return nil, ErrProviderNotSupported
	}
	return provider, nil
}

func (r *Registry) Enabled() []string {
	codes := make([]string, 0, len(r.providers))
	for code, p := range r.providers {
		if p.Enabled() {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}
