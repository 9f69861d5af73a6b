package caldav

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"

	"calmux/internal/models"
)

var statusFromICal = map[string]models.EventStatus{
	"CONFIRMED": models.StatusConfirmed,
	"TENTATIVE": models.StatusTentative,
	"CANCELLED": models.StatusCancelled,
}

var statusToICal = map[models.EventStatus]string{
	models.StatusConfirmed:   "CONFIRMED",
	models.StatusTentative:   "TENTATIVE",
	models.StatusCancelled:   "CANCELLED",
	models.StatusNeedsAction: "TENTATIVE",
}

var responseFromPartStat = map[string]models.ResponseStatus{
	"ACCEPTED":     models.ResponseAccepted,
	"DECLINED":     models.ResponseDeclined,
	"TENTATIVE":    models.ResponseTentative,
	"NEEDS-ACTION": models.ResponseNeedsAction,
}

var partStatFromResponse = map[models.ResponseStatus]string{
	models.ResponseAccepted:    "ACCEPTED",
	models.ResponseDeclined:    "DECLINED",
	models.ResponseTentative:   "TENTATIVE",
	models.ResponseNeedsAction: "NEEDS-ACTION",
}

// toEvent maps a VEVENT component to the canonical model. A VEVENT
// without DTSTART and DTEND is malformed.
func toEvent(comp *ical.Component, calendarID string) (models.CalendarEvent, error) {
	startProp := comp.Props.Get(ical.PropDateTimeStart)
	endProp := comp.Props.Get(ical.PropDateTimeEnd)
	if startProp == nil || endProp == nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: vevent missing DTSTART or DTEND", models.ErrInvalidPayload)
	}

	start, err := startProp.DateTime(time.Local)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: bad DTSTART: %v", models.ErrInvalidPayload, err)
	}
	end, err := endProp.DateTime(time.Local)
	if err != nil {
		return models.CalendarEvent{}, fmt.Errorf("%w: bad DTEND: %v", models.ErrInvalidPayload, err)
	}

	// VALUE=DATE marks date-only events.
	allDay := strings.EqualFold(startProp.Params.Get(ical.ParamValue), "DATE")

	event := models.CalendarEvent{
		ID:          textProp(comp, ical.PropUID),
		Title:       textProp(comp, ical.PropSummary),
		Description: textProp(comp, ical.PropDescription),
		Location:    textProp(comp, ical.PropLocation),
		StartTime:   start,
		EndTime:     end,
		IsAllDay:    allDay,
		Status:      models.StatusTentative,
		CalendarID:  calendarID,
		Provider:    models.ProviderCalDAV,
	}

	if st, ok := statusFromICal[strings.ToUpper(textProp(comp, ical.PropStatus))]; ok {
		event.Status = st
	}

	if org := comp.Props.Get(ical.PropOrganizer); org != nil {
		event.Organizer = models.Attendee{
			Email:          stripMailto(org.Value),
			Name:           org.Params.Get(ical.ParamCommonName),
			ResponseStatus: models.ResponseAccepted,
			IsOrganizer:    true,
		}
	}

	for _, prop := range comp.Props.Values(ical.PropAttendee) {
		email := stripMailto(prop.Value)
		event.Attendees = append(event.Attendees, models.Attendee{
			Email:          email,
			Name:           prop.Params.Get(ical.ParamCommonName),
			ResponseStatus: partStat(prop.Params.Get(ical.ParamParticipationStatus)),
			IsOrganizer:    email != "" && email == event.Organizer.Email,
		})
	}

	for _, prop := range comp.Props.Values(ical.PropCategories) {
		if prop.Value != "" {
			event.Tags = append(event.Tags, prop.Value)
		}
	}

	return event, nil
}

// fromEvent wraps a canonical event in a VCALENDAR ready for PUT.
func fromEvent(event models.CalendarEvent) *ical.Calendar {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.ID)
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetText(ical.PropStatus, statusToICal[event.Status])

	if event.IsAllDay {
		setDateProp(ve, ical.PropDateTimeStart, event.StartTime)
		setDateProp(ve, ical.PropDateTimeEnd, event.EndTime)
	} else {
		ve.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime)
		ve.Props.SetDateTime(ical.PropDateTimeEnd, event.EndTime)
	}

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	if event.Organizer.Email != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.Value = "mailto:" + event.Organizer.Email
		if event.Organizer.Name != "" {
			p.Params.Set(ical.ParamCommonName, event.Organizer.Name)
		}
		ve.Props.Add(p)
	}
	for _, att := range event.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.Value = "mailto:" + att.Email
		p.Params.Set(ical.ParamParticipationStatus, partStatFromResponse[att.ResponseStatus])
		if att.Name != "" {
			p.Params.Set(ical.ParamCommonName, att.Name)
		}
		ve.Props.Add(p)
	}
	for _, tag := range event.Tags {
		p := ical.NewProp(ical.PropCategories)
		p.Value = tag
		ve.Props.Add(p)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//calmux//EN")
	cal.Children = append(cal.Children, ve)
	return cal
}

func setDateProp(comp *ical.Component, name string, t time.Time) {
	p := ical.NewProp(name)
	p.Value = t.Format("20060102")
	p.Params.Set(ical.ParamValue, "DATE")
	comp.Props.Set(p)
}

func textProp(comp *ical.Component, name string) string {
	if p := comp.Props.Get(name); p != nil {
		return p.Value
	}
	return ""
}

func stripMailto(value string) string {
	return strings.TrimPrefix(strings.TrimPrefix(value, "mailto:"), "MAILTO:")
}

func partStat(native string) models.ResponseStatus {
	if rs, ok := responseFromPartStat[strings.ToUpper(native)]; ok {
		return rs
	}
	return models.ResponseNeedsAction
}
