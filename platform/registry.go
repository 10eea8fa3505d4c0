package platform

import (
	"context"
	"fmt"
	"strings"
)

// Registry looks adapters up by platform name. An unknown platform yields an
// adapter producing a uniform "platform not supported" result, so the
// processor's fan-out never needs to special-case it.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates a registry over the given adapters
func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Name()] = a
	}
	return &Registry{adapters: m}
}

// Lookup returns the adapter for the platform name, falling back to an
// unsupported-platform stub
func (r *Registry) Lookup(name string) Adapter {
	if a, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]; ok {
		return a
	}
	return &unsupportedAdapter{name: name}
}

// Supports reports whether a real adapter is registered for the name
func (r *Registry) Supports(name string) bool {
	_, ok := r.adapters[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Names lists the registered platform names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	return names
}

type unsupportedAdapter struct {
	name string
}

func (a *unsupportedAdapter) Name() string          { return a.name }
func (a *unsupportedAdapter) MaxContentLength() int { return 0 }

func (a *unsupportedAdapter) PublishPost(ctx context.Context, req PublishRequest) PublishResult {
	return failure(a.name, ErrorKindNotSupported,
		fmt.Sprintf("platform %q is not supported", a.name), 0)
}
