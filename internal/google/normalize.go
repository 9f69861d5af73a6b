package google

import (
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"calmux/internal/models"
)

const dateOnly = "2006-01-02"

// Status vocabularies differ between Google and the canonical model.
// Unrecognized values fall back to the most conservative canonical value
// rather than erroring; providers add vocabulary over time.
var eventStatusFromGoogle = map[string]models.EventStatus{
	"confirmed": models.StatusConfirmed,
	"tentative": models.StatusTentative,
	"cancelled": models.StatusCancelled,
}

var eventStatusToGoogle = map[models.EventStatus]string{
	models.StatusConfirmed:   "confirmed",
	models.StatusTentative:   "tentative",
	models.StatusCancelled:   "cancelled",
	models.StatusNeedsAction: "tentative",
}

var responseFromGoogle = map[string]models.ResponseStatus{
	"accepted":    models.ResponseAccepted,
	"declined":    models.ResponseDeclined,
	"tentative":   models.ResponseTentative,
	"needsAction": models.ResponseNeedsAction,
}

// toEvent maps a Google event to the canonical model. Events without both
// start and end are malformed and rejected with ErrInvalidPayload.
func toEvent(item *calendar.Event, calendarID string) (models.CalendarEvent, error) {
	if item.Start == nil || item.End == nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: google event %q missing start or end", models.ErrInvalidPayload, item.Id)
	}

	start, end, allDay, err := parseEventTimes(item.Start, item.End)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: google event %q: %v", models.ErrInvalidPayload, item.Id, err)
	}

	status, ok := eventStatusFromGoogle[item.Status]
	if !ok {
		status = models.StatusTentative
	}

	attendees := make([]models.Attendee, 0, len(item.Attendees))
	for _, att := range item.Attendees {
		attendees = append(attendees, models.Attendee{
			Email:          att.Email,
			Name:           att.DisplayName,
			ResponseStatus: responseStatus(att.ResponseStatus),
			IsOrganizer:    att.Organizer,
		})
	}

	// Organizer identity fields are non-nullable in the canonical model;
	// absent values map to empty strings.
	var organizer models.Attendee
	organizer.ResponseStatus = models.ResponseAccepted
	organizer.IsOrganizer = true
	if item.Organizer != nil {
		organizer.Email = item.Organizer.Email
		organizer.Name = item.Organizer.DisplayName
	}

	var metadata map[string]string
	if item.ExtendedProperties != nil && len(item.ExtendedProperties.Private) > 0 {
		metadata = make(map[string]string, len(item.ExtendedProperties.Private))
		for k, v := range item.ExtendedProperties.Private {
			metadata[k] = v
		}
	}

	return models.CalendarEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		StartTime:   start,
		EndTime:     end,
		IsAllDay:    allDay,
		Attendees:   attendees,
		Organizer:   organizer,
		Status:      status,
		CalendarID:  calendarID,
		Provider:    models.ProviderGoogle,
		Metadata:    metadata,
	}, nil
}

// fromEvent maps a canonical event back to the Google representation.
func fromEvent(event models.CalendarEvent) *calendar.Event {
	out := &calendar.Event{
		Id:          event.ID,
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Status:      eventStatusToGoogle[event.Status],
	}
	if out.Status == "" {
		out.Status = "tentative"
	}

	if event.IsAllDay {
		out.Start = &calendar.EventDateTime{Date: event.StartTime.Format(dateOnly)}
		out.End = &calendar.EventDateTime{Date: event.EndTime.Format(dateOnly)}
	} else {
		out.Start = &calendar.EventDateTime{DateTime: event.StartTime.Format(time.RFC3339)}
		out.End = &calendar.EventDateTime{DateTime: event.EndTime.Format(time.RFC3339)}
	}

	for _, att := range event.Attendees {
		out.Attendees = append(out.Attendees, &calendar.EventAttendee{
			Email:          att.Email,
			DisplayName:    att.Name,
			ResponseStatus: string(att.ResponseStatus),
			Organizer:      att.IsOrganizer,
		})
	}

	if event.Organizer.Email != "" {
		out.Organizer = &calendar.EventOrganizer{
			Email:       event.Organizer.Email,
			DisplayName: event.Organizer.Name,
		}
	}

	if len(event.Metadata) > 0 {
		private := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			private[k] = v
		}
		out.ExtendedProperties = &calendar.EventExtendedProperties{Private: private}
	}

	return out
}

// parseEventTimes handles both timed (DateTime) and all-day (Date) events.
// All-day bounds land on local midnight.
func parseEventTimes(start, end *calendar.EventDateTime) (time.Time, time.Time, bool, error) {
	if start.DateTime != "" && end.DateTime != "" {
		s, err := time.Parse(time.RFC3339, start.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false, fmt.Errorf("bad start %q", start.DateTime)
		}
		e, err := time.Parse(time.RFC3339, end.DateTime)
		if err != nil {
			return time.Time{}, time.Time{}, false, fmt.Errorf("bad end %q", end.DateTime)
		}
		return s, e, false, nil
	}

	if start.Date != "" && end.Date != "" {
		s, err := time.ParseInLocation(dateOnly, start.Date, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, false, fmt.Errorf("bad start date %q", start.Date)
		}
		e, err := time.ParseInLocation(dateOnly, end.Date, time.Local)
		if err != nil {
			return time.Time{}, time.Time{}, false, fmt.Errorf("bad end date %q", end.Date)
		}
		return s, e, true, nil
	}

	return time.Time{}, time.Time{}, false, fmt.Errorf("missing start or end time")
}

func responseStatus(native string) models.ResponseStatus {
	if rs, ok := responseFromGoogle[native]; ok {
		return rs
	}
	return models.ResponseNeedsAction
}
