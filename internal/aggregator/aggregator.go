// Package aggregator fans out reads across every provider a user is
// authenticated with and merges the results. One provider failing never
// fails the aggregate: its error is collected and the union of the
// remaining providers' data is returned.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"calmux/internal/models"
	"calmux/internal/provider"
	"calmux/internal/token"
)

// defaultTimeout bounds each provider call during aggregate reads. A
// timed-out provider counts as a per-provider failure, not an abort.
const defaultTimeout = 30 * time.Second

// Aggregator coordinates adapters and the token service. Collaborators
// are injected at construction; there is no process-wide instance.
type Aggregator struct {
	registry *provider.Registry
	tokens   *token.Service
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates an aggregator with the default per-provider timeout.
func New(registry *provider.Registry, tokens *token.Service, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		registry: registry,
		tokens:   tokens,
		timeout:  defaultTimeout,
		logger:   logger,
	}
}

// WithTimeout overrides the per-provider timeout.
func (a *Aggregator) WithTimeout(d time.Duration) *Aggregator {
	a.timeout = d
	return a
}

// GetEvents returns the union of events in [start, end) across every
// provider the user holds credentials for. Each provider's own ordering
// is preserved within its chunk; cross-provider order is unspecified.
// When calendarIDs is non-empty only those calendars are read.
func (a *Aggregator) GetEvents(ctx context.Context, userID string, start, end time.Time, calendarIDs ...string) ([]models.CalendarEvent, models.SyncResult) {
	var (
		mu     sync.Mutex
		events []models.CalendarEvent
	)

	result := a.fanOut(ctx, userID, func(ctx context.Context, adapter provider.Adapter, accessToken string) error {
		fetched, err := a.eventsFromProvider(ctx, adapter, accessToken, userID, start, end, calendarIDs)
		mu.Lock()
		events = append(events, fetched...)
		mu.Unlock()
		return err
	})

	result.EventCount = len(events)
	return events, result
}

// GetCalendars returns the union of calendars across providers.
func (a *Aggregator) GetCalendars(ctx context.Context, userID string) ([]models.Calendar, models.SyncResult) {
	var (
		mu        sync.Mutex
		calendars []models.Calendar
	)

	result := a.fanOut(ctx, userID, func(ctx context.Context, adapter provider.Adapter, accessToken string) error {
		found, err := adapter.ListCalendars(ctx, accessToken)
		if err != nil {
			return err
		}
		mu.Lock()
		calendars = append(calendars, found...)
		mu.Unlock()
		return nil
	})

	result.CalendarCount = len(calendars)
	return calendars, result
}

// SearchEvents runs a free-text query across providers.
func (a *Aggregator) SearchEvents(ctx context.Context, userID, query string, start, end time.Time) ([]models.CalendarEvent, models.SyncResult) {
	var (
		mu      sync.Mutex
		matches []models.CalendarEvent
	)

	result := a.fanOut(ctx, userID, func(ctx context.Context, adapter provider.Adapter, accessToken string) error {
		found, err := adapter.Search(ctx, accessToken, query, start, end)
		if err != nil {
			return err
		}
		mu.Lock()
		matches = append(matches, found...)
		mu.Unlock()
		return nil
	})

	result.EventCount = len(matches)
	return matches, result
}

// CreateEvent writes an event to exactly one calendar. Unlike aggregate
// reads there is no other provider to fall back to, so errors propagate.
func (a *Aggregator) CreateEvent(ctx context.Context, userID, calendarID string, event models.CalendarEvent) (models.CalendarEvent, error) {
	adapter, accessToken, err := a.resolveCalendar(ctx, userID, calendarID)
	if err != nil {
		return models.CalendarEvent{}, err
	}
	return adapter.CreateEvent(ctx, accessToken, calendarID, event)
}

// UpdateEvent replaces an event on its calendar.
func (a *Aggregator) UpdateEvent(ctx context.Context, userID, calendarID string, event models.CalendarEvent) (models.CalendarEvent, error) {
	adapter, accessToken, err := a.resolveCalendar(ctx, userID, calendarID)
	if err != nil {
		return models.CalendarEvent{}, err
	}
	return adapter.UpdateEvent(ctx, accessToken, calendarID, event)
}

// DeleteEvent removes an event from its calendar.
func (a *Aggregator) DeleteEvent(ctx context.Context, userID, calendarID, eventID string) error {
	adapter, accessToken, err := a.resolveCalendar(ctx, userID, calendarID)
	if err != nil {
		return err
	}
	return adapter.DeleteEvent(ctx, accessToken, calendarID, eventID)
}

// fanOut runs fn once per authenticated provider, concurrently, and
// waits for all to settle. Failures are collected into the SyncResult.
func (a *Aggregator) fanOut(ctx context.Context, userID string, fn func(context.Context, provider.Adapter, string) error) models.SyncResult {
	providers, err := a.tokens.AuthenticatedProviders(userID)
	if err != nil {
		return models.SyncResult{Errors: []string{fmt.Sprintf("list authenticated providers: %v", err)}}
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		failures []string
		tried    int
	)

	for _, p := range providers {
		adapter, err := a.registry.Adapter(p)
		if err != nil {
			// Credentials for a provider with no registered adapter.
			mu.Lock()
			failures = append(failures, err.Error())
			mu.Unlock()
			continue
		}

		tried++
		wg.Add(1)
		go func(p models.Provider, adapter provider.Adapter) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			accessToken, err := a.tokens.GetValidAccessToken(callCtx, p, userID)
			if err != nil {
				a.logger.Error("Provider skipped, no usable token", "provider", p, "error", err)
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", p, err))
				mu.Unlock()
				return
			}

			if err := fn(callCtx, adapter, accessToken); err != nil {
				a.logger.Error("Provider call failed", "provider", p, "error", err)
				mu.Lock()
				failures = append(failures, fmt.Sprintf("%s: %v", p, err))
				mu.Unlock()
			}
		}(p, adapter)
	}
	wg.Wait()

	return models.SyncResult{
		Success:        tried > 0 && len(failures) < tried,
		ProvidersTried: tried,
		Errors:         failures,
	}
}

// eventsFromProvider reads events from every selected calendar of one
// provider. Calendar selection prefers the stored calendar list and
// falls back to live discovery. One broken calendar does not hide the
// provider's others: its events are skipped and the failure is joined
// into the returned error alongside any partial results.
func (a *Aggregator) eventsFromProvider(ctx context.Context, adapter provider.Adapter, accessToken, userID string, start, end time.Time, filter []string) ([]models.CalendarEvent, error) {
	creds, err := a.tokens.GetCredentials(adapter.Provider(), userID)
	if err != nil {
		return nil, err
	}

	calendarIDs := creds.CalendarIDs
	if len(calendarIDs) == 0 {
		calendars, err := adapter.ListCalendars(ctx, accessToken)
		if err != nil {
			return nil, err
		}
		for _, cal := range calendars {
			calendarIDs = append(calendarIDs, cal.ID)
		}
	}

	var (
		events   []models.CalendarEvent
		failures []error
	)
	for _, calID := range calendarIDs {
		if len(filter) > 0 && !contains(filter, calID) {
			continue
		}
		fetched, err := adapter.ListEvents(ctx, accessToken, calID, start, end)
		if err != nil {
			a.logger.Error("Calendar fetch failed", "provider", adapter.Provider(), "calendarID", calID, "error", err)
			failures = append(failures, err)
			continue
		}
		events = append(events, fetched...)
	}
	return events, errors.Join(failures...)
}

// resolveCalendar maps a calendar id to the adapter and token able to
// mutate it. The stored calendar list is checked first, but credentials
// written by the auth flow carry no calendar ids, so a miss falls back
// to live discovery against the provider before ruling it out.
func (a *Aggregator) resolveCalendar(ctx context.Context, userID, calendarID string) (provider.Adapter, string, error) {
	providers, err := a.tokens.AuthenticatedProviders(userID)
	if err != nil {
		return nil, "", err
	}

	for _, p := range providers {
		creds, err := a.tokens.GetCredentials(p, userID)
		if err != nil {
			continue
		}
		adapter, err := a.registry.Adapter(p)
		if err != nil {
			continue
		}
		accessToken, err := a.tokens.GetValidAccessToken(ctx, p, userID)
		if err != nil {
			continue
		}

		if contains(creds.CalendarIDs, calendarID) {
			return adapter, accessToken, nil
		}
		calendars, err := adapter.ListCalendars(ctx, accessToken)
		if err != nil {
			a.logger.Error("Calendar discovery failed during mutation routing", "provider", p, "error", err)
			continue
		}
		for _, cal := range calendars {
			if cal.ID == calendarID {
				return adapter, accessToken, nil
			}
		}
	}
	return nil, "", fmt.Errorf("%w: no provider owns calendar %q for user %s", models.ErrNoCredentials, calendarID, userID)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
