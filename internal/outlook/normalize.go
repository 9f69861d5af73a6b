package outlook

import (
	"fmt"
	"time"

	"calmux/internal/models"
)

// graphEvent is the subset of the Graph event resource the normalizer
// reads.
type graphEvent struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Body    struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	Start struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	} `json:"start"`
	End struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	} `json:"end"`
	Location struct {
		DisplayName string `json:"displayName"`
	} `json:"location"`
	IsAllDay  bool `json:"isAllDay"`
	Organizer struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"organizer"`
	Attendees []struct {
		Type   string `json:"type"`
		Status struct {
			Response string `json:"response"`
		} `json:"status"`
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"attendees"`
	ShowAs      string   `json:"showAs"`
	IsCancelled bool     `json:"isCancelled"`
	Categories  []string `json:"categories"`
}

// Graph reports confirmation through the showAs free/busy field rather
// than an explicit status enum. The table is exhaustive over documented
// values; anything new falls back to tentative.
var statusFromShowAs = map[string]models.EventStatus{
	"busy":             models.StatusConfirmed,
	"oof":              models.StatusConfirmed,
	"workingElsewhere": models.StatusConfirmed,
	"tentative":        models.StatusTentative,
	"free":             models.StatusTentative,
	"unknown":          models.StatusNeedsAction,
}

var showAsFromStatus = map[models.EventStatus]string{
	models.StatusConfirmed:   "busy",
	models.StatusTentative:   "tentative",
	models.StatusCancelled:   "free",
	models.StatusNeedsAction: "unknown",
}

var responseFromGraph = map[string]models.ResponseStatus{
	"accepted":            models.ResponseAccepted,
	"organizer":           models.ResponseAccepted,
	"declined":            models.ResponseDeclined,
	"tentativelyAccepted": models.ResponseTentative,
	"notResponded":        models.ResponseNeedsAction,
	"none":                models.ResponseNeedsAction,
}

var responseToGraph = map[models.ResponseStatus]string{
	models.ResponseAccepted:    "accepted",
	models.ResponseDeclined:    "declined",
	models.ResponseTentative:   "tentativelyAccepted",
	models.ResponseNeedsAction: "notResponded",
}

// toEvent maps a Graph event to the canonical model.
func toEvent(ev *graphEvent, calendarID string, p models.Provider) (models.CalendarEvent, error) {
	if ev.Start.DateTime == "" || ev.End.DateTime == "" {
		return models.CalendarEvent{}, fmt.Errorf("%w: graph event %q missing start or end", models.ErrInvalidPayload, ev.ID)
	}

	start, err := parseGraphTime(ev.Start.DateTime, ev.Start.TimeZone)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: graph event %q: %v", models.ErrInvalidPayload, ev.ID, err)
	}
	end, err := parseGraphTime(ev.End.DateTime, ev.End.TimeZone)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: graph event %q: %v", models.ErrInvalidPayload, ev.ID, err)
	}

	status := models.StatusTentative
	if ev.IsCancelled {
		status = models.StatusCancelled
	} else if s, ok := statusFromShowAs[ev.ShowAs]; ok {
		status = s
	}

	attendees := make([]models.Attendee, 0, len(ev.Attendees))
	for _, att := range ev.Attendees {
		attendees = append(attendees, models.Attendee{
			Email:          att.EmailAddress.Address,
			Name:           att.EmailAddress.Name,
			ResponseStatus: responseStatus(att.Status.Response),
			IsOrganizer:    att.EmailAddress.Address != "" && att.EmailAddress.Address == ev.Organizer.EmailAddress.Address,
		})
	}

	organizer := models.Attendee{
		Email:          ev.Organizer.EmailAddress.Address,
		Name:           ev.Organizer.EmailAddress.Name,
		ResponseStatus: models.ResponseAccepted,
		IsOrganizer:    true,
	}

	var metadata map[string]string
	if ev.Start.TimeZone != "" {
		metadata = map[string]string{"timeZone": ev.Start.TimeZone}
	}

	return models.CalendarEvent{
		ID:          ev.ID,
		Title:       ev.Subject,
		Description: ev.Body.Content,
		Location:    ev.Location.DisplayName,
		StartTime:   start,
		EndTime:     end,
		IsAllDay:    ev.IsAllDay,
		Attendees:   attendees,
		Organizer:   organizer,
		Status:      status,
		Tags:        ev.Categories,
		CalendarID:  calendarID,
		Provider:    p,
		Metadata:    metadata,
	}, nil
}

// fromEvent maps a canonical event to the Graph request body.
func fromEvent(event models.CalendarEvent) map[string]any {
	body := map[string]any{
		"subject": event.Title,
		"body": map[string]string{
			"contentType": "text",
			"content":     event.Description,
		},
		"start": map[string]string{
			"dateTime": event.StartTime.UTC().Format(graphTimeFormat),
			"timeZone": "UTC",
		},
		"end": map[string]string{
			"dateTime": event.EndTime.UTC().Format(graphTimeFormat),
			"timeZone": "UTC",
		},
		"isAllDay": event.IsAllDay,
		"showAs":   showAsFromStatus[event.Status],
	}

	if event.Location != "" {
		body["location"] = map[string]string{"displayName": event.Location}
	}
	if len(event.Tags) > 0 {
		body["categories"] = event.Tags
	}

	if len(event.Attendees) > 0 {
		attendees := make([]map[string]any, 0, len(event.Attendees))
		for _, att := range event.Attendees {
			attendees = append(attendees, map[string]any{
				"type": "required",
				"status": map[string]string{
					"response": responseToGraph[att.ResponseStatus],
				},
				"emailAddress": map[string]string{
					"address": att.Email,
					"name":    att.Name,
				},
			})
		}
		body["attendees"] = attendees
	}

	return body
}

// parseGraphTime reads Graph's zone-less timestamp in the zone the Prefer
// header requested (UTC unless the event says otherwise).
func parseGraphTime(value, zone string) (time.Time, error) {
	loc := time.UTC
	if zone != "" && zone != "UTC" {
		if l, err := time.LoadLocation(zone); err == nil {
			loc = l
		}
	}
	// Graph appends fractional seconds of varying width.
	for _, layout := range []string{graphTimeFormat, "2006-01-02T15:04:05.9999999"} {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("bad graph time %q", value)
}

func responseStatus(native string) models.ResponseStatus {
	if rs, ok := responseFromGraph[native]; ok {
		return rs
	}
	return models.ResponseNeedsAction
}
