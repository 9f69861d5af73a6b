// Package provider defines the capability interface every calendar
// backend implements, and the registry that maps provider names to
// adapters. The registry replaces per-method switch(provider) branching:
// it is built once at startup and consulted by the aggregator.
package provider

import (
	"context"
	"fmt"
	"time"

	"calmux/internal/models"
)

// Adapter is the uniform capability surface of one calendar provider.
// Each adapter owns its wire protocol and translates to and from the
// canonical models; core logic never sees provider-native shapes.
type Adapter interface {
	// Provider returns the provider this adapter speaks for.
	Provider() models.Provider

	// ListCalendars returns the calendars visible to the token's account.
	ListCalendars(ctx context.Context, token string) ([]models.Calendar, error)

	// ListEvents returns events in [start, end) from one calendar, in the
	// provider's own ordering (chronological for every known backend).
	ListEvents(ctx context.Context, token, calendarID string, start, end time.Time) ([]models.CalendarEvent, error)

	// CreateEvent writes a new event and returns it with provider IDs set.
	CreateEvent(ctx context.Context, token, calendarID string, event models.CalendarEvent) (models.CalendarEvent, error)

	// UpdateEvent replaces an existing event identified by event.ID.
	UpdateEvent(ctx context.Context, token, calendarID string, event models.CalendarEvent) (models.CalendarEvent, error)

	// DeleteEvent removes an event.
	DeleteEvent(ctx context.Context, token, calendarID, eventID string) error

	// Search returns events matching the free-text query within [start, end).
	Search(ctx context.Context, token, query string, start, end time.Time) ([]models.CalendarEvent, error)
}

// Registry maps providers to adapters. Built at startup, read-only after.
type Registry struct {
	adapters map[models.Provider]Adapter
}

// NewRegistry builds a registry from the given adapters. Registering two
// adapters for the same provider is a programming error.
func NewRegistry(adapters ...Adapter) (*Registry, error) {
	r := &Registry{adapters: make(map[models.Provider]Adapter, len(adapters))}
	for _, a := range adapters {
		p := a.Provider()
		if _, dup := r.adapters[p]; dup {
			return nil, fmt.Errorf("duplicate adapter for provider %q", p)
		}
		r.adapters[p] = a
	}
	return r, nil
}

// Adapter returns the adapter for p, or ErrUnsupportedProvider.
func (r *Registry) Adapter(p models.Provider) (Adapter, error) {
	a, ok := r.adapters[p]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnsupportedProvider, p)
	}
	return a, nil
}

// Providers returns the registered providers in enum order.
func (r *Registry) Providers() []models.Provider {
	var out []models.Provider
	for _, p := range models.Providers() {
		if _, ok := r.adapters[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
