// Package outlook adapts the Microsoft Graph calendar API to the
// canonical model. Both Outlook and Exchange Online speak Graph; one
// adapter serves either provider tag.
package outlook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"calmux/internal/models"
)

const (
	graphBaseURL    = "https://graph.microsoft.com/v1.0"
	graphTimeFormat = "2006-01-02T15:04:05"
)

// Adapter speaks Microsoft Graph for one provider tag.
type Adapter struct {
	provider models.Provider
	baseURL  string
	client   *http.Client
	logger   *slog.Logger
}

// NewAdapter creates a Graph adapter tagged as Outlook.
func NewAdapter(logger *slog.Logger) *Adapter {
	return newAdapter(models.ProviderOutlook, logger)
}

// NewExchangeAdapter creates a Graph adapter tagged as Exchange. Exchange
// Online is served by the same Graph endpoints as Outlook; the tag keeps
// credentials and calendars attributed to the right provider.
func NewExchangeAdapter(logger *slog.Logger) *Adapter {
	return newAdapter(models.ProviderExchange, logger)
}

func newAdapter(p models.Provider, logger *slog.Logger) *Adapter {
	return &Adapter{
		provider: p,
		baseURL:  graphBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}
}

// Provider implements provider.Adapter.
func (a *Adapter) Provider() models.Provider { return a.provider }

// do issues one authenticated Graph request and decodes the response into
// out (skipped when out is nil). Non-2xx statuses map to
// ErrProviderUnavailable with the response body for diagnosis.
func (a *Adapter) do(ctx context.Context, token, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode graph request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: graph %s %s: %v", models.ErrProviderUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: graph %s %s: status %d: %s", models.ErrProviderUnavailable, method, path, resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode graph response: %v", models.ErrInvalidPayload, err)
	}
	return nil
}

// ListCalendars returns the account's calendars.
func (a *Adapter) ListCalendars(ctx context.Context, token string) ([]models.Calendar, error) {
	var result struct {
		Value []struct {
			ID                string `json:"id"`
			Name              string `json:"name"`
			IsDefaultCalendar bool   `json:"isDefaultCalendar"`
		} `json:"value"`
	}
	if err := a.do(ctx, token, http.MethodGet, "/me/calendars", nil, &result); err != nil {
		return nil, err
	}

	calendars := make([]models.Calendar, 0, len(result.Value))
	for _, cal := range result.Value {
		calendars = append(calendars, models.Calendar{
			ID:         cal.ID,
			Name:       cal.Name,
			Provider:   a.provider,
			IsPrimary:  cal.IsDefaultCalendar,
			IsVisible:  true,
			SyncStatus: models.SyncStatusSynced,
			LastSync:   time.Now().UTC(),
		})
	}
	a.logger.Debug("Listed graph calendars", "provider", a.provider, "count", len(calendars))
	return calendars, nil
}

// ListEvents fetches events in [start, end) via calendarView, which
// expands recurrences and orders by start time.
func (a *Adapter) ListEvents(ctx context.Context, token, calendarID string, start, end time.Time) ([]models.CalendarEvent, error) {
	path := fmt.Sprintf("/me/calendars/%s/calendarView?startDateTime=%s&endDateTime=%s&$orderby=start/dateTime&$top=250",
		url.PathEscape(calendarID),
		url.QueryEscape(start.UTC().Format(time.RFC3339)),
		url.QueryEscape(end.UTC().Format(time.RFC3339)))

	var result struct {
		Value []graphEvent `json:"value"`
	}
	if err := a.do(ctx, token, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	events := make([]models.CalendarEvent, 0, len(result.Value))
	for i := range result.Value {
		ev, err := toEvent(&result.Value[i], calendarID, a.provider)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	a.logger.Debug("Fetched graph events", "provider", a.provider, "calendarID", calendarID, "count", len(events))
	return events, nil
}

// CreateEvent writes a new event.
func (a *Adapter) CreateEvent(ctx context.Context, token, calendarID string, event models.CalendarEvent) (models.CalendarEvent, error) {
	path := fmt.Sprintf("/me/calendars/%s/events", url.PathEscape(calendarID))
	var created graphEvent
	if err := a.do(ctx, token, http.MethodPost, path, fromEvent(event), &created); err != nil {
		return models.CalendarEvent{}, err
	}
	return toEvent(&created, calendarID, a.provider)
}

// UpdateEvent patches an existing event.
func (a *Adapter) UpdateEvent(ctx context.Context, token, calendarID string, event models.CalendarEvent) (models.CalendarEvent, error) {
	path := fmt.Sprintf("/me/events/%s", url.PathEscape(event.ID))
	var updated graphEvent
	if err := a.do(ctx, token, http.MethodPatch, path, fromEvent(event), &updated); err != nil {
		return models.CalendarEvent{}, err
	}
	return toEvent(&updated, calendarID, a.provider)
}

// DeleteEvent removes an event.
func (a *Adapter) DeleteEvent(ctx context.Context, token, calendarID, eventID string) error {
	path := fmt.Sprintf("/me/events/%s", url.PathEscape(eventID))
	return a.do(ctx, token, http.MethodDelete, path, nil, nil)
}

// Search matches events in the time-bounded calendarView against the
// query client-side; Graph's $search is not supported on event
// collections.
func (a *Adapter) Search(ctx context.Context, token, query string, start, end time.Time) ([]models.CalendarEvent, error) {
	path := fmt.Sprintf("/me/calendarView?startDateTime=%s&endDateTime=%s&$top=250",
		url.QueryEscape(start.UTC().Format(time.RFC3339)),
		url.QueryEscape(end.UTC().Format(time.RFC3339)))

	var result struct {
		Value []graphEvent `json:"value"`
	}
	if err := a.do(ctx, token, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	needle := strings.ToLower(query)
	var matches []models.CalendarEvent
	for i := range result.Value {
		ev, err := toEvent(&result.Value[i], "", a.provider)
		if err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToLower(ev.Title), needle) ||
			strings.Contains(strings.ToLower(ev.Description), needle) {
			matches = append(matches, ev)
		}
	}
	return matches, nil
}
