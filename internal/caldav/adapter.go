// Package caldav adapts any RFC 4791 CalDAV server to the canonical
// model. The same adapter serves iCloud, Fastmail, Radicale and friends;
// only the endpoint differs.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"

	"calmux/internal/models"
)

// basicAuthTransport adds Basic Auth and a stable User-Agent to every
// request.
type basicAuthTransport struct {
	username  string
	password  string
	transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.username, t.password)
	req.Header.Set("User-Agent", "calmux/1.0")
	return t.transport.RoundTrip(req)
}

// Adapter speaks CalDAV against one endpoint. CalDAV has no bearer
// tokens; the access token is "username:password" and is unpacked per
// call.
type Adapter struct {
	endpoint string
	logger   *slog.Logger
}

// NewAdapter creates a CalDAV adapter for the given endpoint, e.g.
// "https://caldav.icloud.com/".
func NewAdapter(logger *slog.Logger, endpoint string) *Adapter {
	return &Adapter{endpoint: endpoint, logger: logger}
}

// Provider implements provider.Adapter.
func (a *Adapter) Provider() models.Provider { return models.ProviderCalDAV }

func (a *Adapter) client(token string) (*caldav.Client, error) {
	username, password, ok := strings.Cut(token, ":")
	if !ok {
		return nil, fmt.Errorf("%w: caldav token must be username:password", models.ErrNoValidToken)
	}
	httpClient := &http.Client{
		Transport: &basicAuthTransport{username: username, password: password, transport: http.DefaultTransport},
		Timeout:   30 * time.Second,
	}
	client, err := caldav.NewClient(httpClient, a.endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: create caldav client: %v", models.ErrProviderUnavailable, err)
	}
	return client, nil
}

// ListCalendars discovers the principal's calendar home set and returns
// its calendars. Calendar IDs are server paths.
func (a *Adapter) ListCalendars(ctx context.Context, token string) ([]models.Calendar, error) {
	client, err := a.client(token)
	if err != nil {
		return nil, err
	}

	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: find principal: %v", models.ErrProviderUnavailable, err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("%w: find calendar home set: %v", models.ErrProviderUnavailable, err)
	}
	found, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("%w: find calendars: %v", models.ErrProviderUnavailable, err)
	}

	calendars := make([]models.Calendar, 0, len(found))
	for i, cal := range found {
		calendars = append(calendars, models.Calendar{
			ID:         cal.Path,
			Name:       cal.Name,
			Provider:   models.ProviderCalDAV,
			IsPrimary:  i == 0,
			IsVisible:  true,
			SyncStatus: models.SyncStatusSynced,
			LastSync:   time.Now().UTC(),
		})
	}
	a.logger.Debug("Listed caldav calendars", "count", len(calendars))
	return calendars, nil
}

// ListEvents runs a calendar-query REPORT limited to [start, end).
func (a *Adapter) ListEvents(ctx context.Context, token, calendarID string, start, end time.Time) ([]models.CalendarEvent, error) {
	client, err := a.client(token)
	if err != nil {
		return nil, err
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     ical.CompCalendar,
			AllProps: true,
			Comps:    []caldav.CalendarCompRequest{{Name: ical.CompEvent, AllProps: true}},
		},
		CompFilter: caldav.CompFilter{
			Name: ical.CompCalendar,
			Comps: []caldav.CompFilter{{
				Name:  ical.CompEvent,
				Start: start,
				End:   end,
			}},
		},
	}

	objects, err := client.QueryCalendar(ctx, calendarID, query)
	if err != nil {
		return nil, fmt.Errorf("%w: caldav query: %v", models.ErrProviderUnavailable, err)
	}

	var events []models.CalendarEvent
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		for _, child := range obj.Data.Children {
			if child.Name != ical.CompEvent {
				continue
			}
			ev, err := toEvent(child, calendarID)
			if err != nil {
				return nil, err
			}
			events = append(events, ev)
		}
	}
	a.logger.Debug("Fetched caldav events", "calendarID", calendarID, "count", len(events))
	return events, nil
}

// CreateEvent puts a new VEVENT resource under the calendar collection.
func (a *Adapter) CreateEvent(ctx context.Context, token, calendarID string, event models.CalendarEvent) (models.CalendarEvent, error) {
	client, err := a.client(token)
	if err != nil {
		return models.CalendarEvent{}, err
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if _, err := client.PutCalendarObject(ctx, a.objectPath(calendarID, event.ID), fromEvent(event)); err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: put caldav object: %v", models.ErrProviderUnavailable, err)
	}
	event.CalendarID = calendarID
	event.Provider = models.ProviderCalDAV
	return event, nil
}

// UpdateEvent overwrites the event's resource; CalDAV updates are puts to
// the same path.
func (a *Adapter) UpdateEvent(ctx context.Context, token, calendarID string, event models.CalendarEvent) (models.CalendarEvent, error) {
	if event.ID == "" {
		return models.CalendarEvent{}, fmt.Errorf("%w: caldav update requires event id", models.ErrInvalidPayload)
	}
	return a.CreateEvent(ctx, token, calendarID, event)
}

// DeleteEvent removes the event's resource.
func (a *Adapter) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	client, err := a.client(token)
	if err != nil {
		return err
	}
	if err := client.RemoveAll(ctx, a.objectPath(calendarID, eventID)); err != nil {
		return fmt.Errorf("%w: remove caldav object: %v", models.ErrProviderUnavailable, err)
	}
	return nil
}

// Search filters a time-bounded listing client-side; CalDAV servers have
// no uniform free-text query.
func (a *Adapter) Search(ctx context.Context, token, query string, start, end time.Time) ([]models.CalendarEvent, error) {
	client, err := a.client(token)
	if err != nil {
		return nil, err
	}
	principal, err := client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: find principal: %v", models.ErrProviderUnavailable, err)
	}
	homeSet, err := client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return nil, fmt.Errorf("%w: find calendar home set: %v", models.ErrProviderUnavailable, err)
	}
	found, err := client.FindCalendars(ctx, homeSet)
	if err != nil {
		return nil, fmt.Errorf("%w: find calendars: %v", models.ErrProviderUnavailable, err)
	}

	needle := strings.ToLower(query)
	var matches []models.CalendarEvent
	for _, cal := range found {
		events, err := a.ListEvents(ctx, token, cal.Path, start, end)
		if err != nil {
			return nil, err
		}
		for _, ev := range events {
			if strings.Contains(strings.ToLower(ev.Title), needle) ||
				strings.Contains(strings.ToLower(ev.Description), needle) {
				matches = append(matches, ev)
			}
		}
	}
	return matches, nil
}

func (a *Adapter) objectPath(calendarID, eventID string) string {
	return path.Join("/", strings.TrimPrefix(calendarID, a.endpoint), eventID+".ics")
}
