package subject

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownKind is returned when no resolver is registered for a kind.
var ErrUnknownKind = errors.New("subject: unknown kind")

// Resolver loads the host entity behind an identifier of one kind.
type Resolver func(ctx context.Context, id string) (Subscribable, error)

// Registry maps subject kinds to the resolvers that load them.
type Registry struct {
	mu        sync.RWMutex
	resolvers map[string]Resolver
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{resolvers: make(map[string]Resolver)}
}

// Register adds or replaces the resolver for kind.
func (r *Registry) Register(kind string, resolve Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolvers[kind] = resolve
}

// Known reports whether kind has a resolver.
func (r *Registry) Known(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.resolvers[kind]

	return ok
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.resolvers))
	for k := range r.resolvers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	return kinds
}

// Resolve loads the entity referenced by ref.
func (r *Registry) Resolve(ctx context.Context, ref Ref) (Subscribable, error) {
	r.mu.RLock()
	resolve, ok := r.resolvers[ref.Kind]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, ref.Kind)
	}

	entity, err := resolve(ctx, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("subject: resolve %s: %w", ref, err)
	}

	return entity, nil
}
