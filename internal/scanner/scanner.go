package scanner

import (
	"context"
	"fmt"
	"sort"

	"CreatorWatch/internal/domain"
)

// Strategy lists items for one kind of source (TikTok profile, RSS feed, etc.).
type Strategy interface {
	Name() string
	List(ctx context.Context, account domain.Account) ([]domain.ItemRef, error)
}

// MetadataStrategy is implemented by strategies that can enrich an item with a
// secondary reference such as a sound link.
type MetadataStrategy interface {
	SecondaryMetadata(ctx context.Context, ref domain.ItemRef) (string, error)
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}

// Names lists registered strategies, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
