// Package source defines the adapter interface for external financial
// providers and the registry that resolves adapters at startup.
package source

import (
	"context"
	"sync"

	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

// Adapter fetches one provider's partial snapshot. Implementations live
// with the embedding application (one per vendor wire format); the core only
// depends on this boundary. Adapters must not retry internally; retry is
// the fetch layer's responsibility.
type Adapter interface {
	// ServiceType returns the provider key this adapter serves.
	ServiceType() model.ServiceType
	// FetchSnapshot returns the provider's current partial snapshot. It may
	// fail with any of the resilience error classes (transient, rate limit,
	// auth); the fetch layer maps failures to fallback behavior.
	FetchSnapshot(ctx context.Context, src model.Source) (*model.PartialSnapshot, error)
}

// AdapterFunc adapts a plain function to the Adapter interface.
type AdapterFunc struct {
	Service model.ServiceType
	Fn      func(ctx context.Context, src model.Source) (*model.PartialSnapshot, error)
}

func (a AdapterFunc) ServiceType() model.ServiceType {
	return a.Service
}

func (a AdapterFunc) FetchSnapshot(ctx context.Context, src model.Source) (*model.PartialSnapshot, error) {
	return a.Fn(ctx, src)
}

// Registry maps service types to adapters. Resolved once at startup; the
// aggregation path never switches on service-type strings.
type Registry struct {
	mu       sync.RWMutex
	adapters map[model.ServiceType]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[model.ServiceType]Adapter),
	}
}

// Register adds an adapter to the registry.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.ServiceType()] = a
}

// Get returns the adapter for a service type, or nil if none is registered.
func (r *Registry) Get(st model.ServiceType) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[st]
}

// List returns all registered service types.
func (r *Registry) List() []model.ServiceType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]model.ServiceType, 0, len(r.adapters))
	for st := range r.adapters {
		types = append(types, st)
	}
	return types
}
