// Package extract holds the source adapter contract, the registry that maps
// source ids to adapters, and the configurable adapter kinds.
//
// Adapters only read pages. They return a fully populated
// domain.ExtractionResult or an error; they never touch the queue, the catalog
// or the object store.
package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"lureingest/internal/domain"
)

// Adapter extracts one product page of a single source.
type Adapter interface {
	Extract(ctx context.Context, rawURL string) (domain.ExtractionResult, error)
}

// AdapterFunc lets a plain function act as an Adapter.
type AdapterFunc func(ctx context.Context, rawURL string) (domain.ExtractionResult, error)

func (f AdapterFunc) Extract(ctx context.Context, rawURL string) (domain.ExtractionResult, error) {
	return f(ctx, rawURL)
}

// Registry is an immutable source id -> adapter table built once at startup.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry copies adapters so later changes to the map have no effect.
func NewRegistry(adapters map[string]Adapter) *Registry {
	m := make(map[string]Adapter, len(adapters))
	for k, v := range adapters {
		if v != nil {
			m[k] = v
		}
	}
	return &Registry{adapters: m}
}

// Lookup returns the adapter for source or an error wrapping
// domain.ErrUnknownSource.
func (r *Registry) Lookup(source string) (Adapter, error) {
	if r != nil {
		if a, ok := r.adapters[source]; ok {
			return a, nil
		}
	}
	return nil, fmt.Errorf("no adapter registered for source %q: %w", source, domain.ErrUnknownSource)
}

// Sources lists registered source ids in sorted order.
func (r *Registry) Sources() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.adapters))
	for k := range r.adapters {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Close releases adapters that hold resources such as a browser.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for _, a := range r.adapters {
		if c, ok := a.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
