// Package google adapts the Google Calendar API to the canonical model.
package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"calmux/internal/models"
)

// Adapter speaks the Google Calendar v3 API.
type Adapter struct {
	logger *slog.Logger
}

// NewAdapter creates a Google Calendar adapter.
func NewAdapter(logger *slog.Logger) *Adapter {
	return &Adapter{logger: logger}
}

// Provider implements provider.Adapter.
func (a *Adapter) Provider() models.Provider { return models.ProviderGoogle }

// service builds a calendar service authenticated with the given access
// token. Construction is cheap; the underlying HTTP client is pooled.
func (a *Adapter) service(ctx context.Context, token string) (*calendar.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(src))
	if err != nil {
		return nil, fmt.Errorf("%w: create calendar service: %v", models.ErrProviderUnavailable, err)
	}
	return svc, nil
}

// ListCalendars returns the account's calendar list.
func (a *Adapter) ListCalendars(ctx context.Context, token string) ([]models.Calendar, error) {
	svc, err := a.service(ctx, token)
	if err != nil {
		return nil, err
	}

	list, err := svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list google calendars: %v", models.ErrProviderUnavailable, err)
	}

	calendars := make([]models.Calendar, 0, len(list.Items))
	for _, item := range list.Items {
		calendars = append(calendars, models.Calendar{
			ID:         item.Id,
			Name:       item.Summary,
			Provider:   models.ProviderGoogle,
			IsPrimary:  item.Primary,
			IsVisible:  !item.Hidden,
			SyncStatus: models.SyncStatusSynced,
			LastSync:   time.Now().UTC(),
		})
	}
	a.logger.Debug("Listed google calendars", "count", len(calendars))
	return calendars, nil
}

// ListEvents fetches events in [start, end) ordered by start time.
func (a *Adapter) ListEvents(ctx context.Context, token, calendarID string, start, end time.Time) ([]models.CalendarEvent, error) {
	svc, err := a.service(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Events.List(calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: list google events: %v", models.ErrProviderUnavailable, err)
	}

	events := make([]models.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		ev, err := toEvent(item, calendarID)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	a.logger.Debug("Fetched google events", "calendarID", calendarID, "count", len(events))
	return events, nil
}

// CreateEvent inserts a new event.
func (a *Adapter) CreateEvent(ctx context.Context, token, calendarID string, event models.CalendarEvent) (models.CalendarEvent, error) {
	svc, err := a.service(ctx, token)
	if err != nil {
		return models.CalendarEvent{}, err
	}

	created, err := svc.Events.Insert(calendarID, fromEvent(event)).Context(ctx).Do()
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: create google event: %v", models.ErrProviderUnavailable, err)
	}
	return toEvent(created, calendarID)
}

// UpdateEvent replaces an existing event.
func (a *Adapter) UpdateEvent(ctx context.Context, token, calendarID string, event models.CalendarEvent) (models.CalendarEvent, error) {
	svc, err := a.service(ctx, token)
	if err != nil {
		return models.CalendarEvent{}, err
	}

	updated, err := svc.Events.Update(calendarID, event.ID, fromEvent(event)).Context(ctx).Do()
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: update google event: %v", models.ErrProviderUnavailable, err)
	}
	return toEvent(updated, calendarID)
}

// DeleteEvent removes an event.
func (a *Adapter) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	svc, err := a.service(ctx, token)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: delete google event: %v", models.ErrProviderUnavailable, err)
	}
	return nil
}

// Search runs a free-text query against the primary calendar.
func (a *Adapter) Search(ctx context.Context, token, query string, start, end time.Time) ([]models.CalendarEvent, error) {
	svc, err := a.service(ctx, token)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Events.List("primary").
		Q(query).
		SingleEvents(true).
		TimeMin(start.Format(time.RFC3339)).
		TimeMax(end.Format(time.RFC3339)).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("%w: search google events: %v", models.ErrProviderUnavailable, err)
	}

	events := make([]models.CalendarEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		ev, err := toEvent(item, "primary")
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// OAuthConfig returns the oauth2 config for the desktop auth flow.
func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{calendar.CalendarScope},
		Endpoint:     googleoauth.Endpoint,
	}
}

// Exchange trades an authorization code for a token.
func Exchange(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}
