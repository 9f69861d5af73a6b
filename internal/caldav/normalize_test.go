package caldav

import (
	"errors"
	"testing"
	"time"

	"github.com/emersion/go-ical"

	"calmux/internal/models"
)

func sampleVEvent() *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, "uid-1")
	ve.Props.SetText(ical.PropSummary, "Standup")
	ve.Props.SetText(ical.PropDescription, "Daily sync")
	ve.Props.SetText(ical.PropLocation, "Hallway")
	ve.Props.SetText(ical.PropStatus, "CONFIRMED")
	ve.Props.SetDateTime(ical.PropDateTimeStart, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	ve.Props.SetDateTime(ical.PropDateTimeEnd, time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC))

	org := ical.NewProp(ical.PropOrganizer)
	org.Value = "mailto:lead@corp.test"
	org.Params.Set(ical.ParamCommonName, "Lead")
	ve.Props.Add(org)

	att := ical.NewProp(ical.PropAttendee)
	att.Value = "MAILTO:dev@corp.test"
	att.Params.Set(ical.ParamParticipationStatus, "ACCEPTED")
	ve.Props.Add(att)

	cat := ical.NewProp(ical.PropCategories)
	cat.Value = "daily"
	ve.Props.Add(cat)

	return ve
}

func TestToEvent(t *testing.T) {
	ev, err := toEvent(sampleVEvent(), "work")
	if err != nil {
		t.Fatalf("toEvent() error: %v", err)
	}

	if ev.ID != "uid-1" || ev.Title != "Standup" {
		t.Errorf("identity fields = %q / %q", ev.ID, ev.Title)
	}
	if ev.Status != models.StatusConfirmed {
		t.Errorf("status = %q, want confirmed", ev.Status)
	}
	if ev.Provider != models.ProviderCalDAV || ev.CalendarID != "work" {
		t.Errorf("provenance = %q / %q", ev.Provider, ev.CalendarID)
	}
	if !ev.StartTime.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %v", ev.StartTime)
	}
	if ev.Organizer.Email != "lead@corp.test" || ev.Organizer.Name != "Lead" {
		t.Errorf("organizer = %+v", ev.Organizer)
	}
	if len(ev.Attendees) != 1 {
		t.Fatalf("attendees = %d", len(ev.Attendees))
	}
	// Uppercase MAILTO prefix still strips.
	if ev.Attendees[0].Email != "dev@corp.test" {
		t.Errorf("attendee email = %q", ev.Attendees[0].Email)
	}
	if ev.Attendees[0].ResponseStatus != models.ResponseAccepted {
		t.Errorf("partstat mapped to %q", ev.Attendees[0].ResponseStatus)
	}
	if len(ev.Tags) != 1 || ev.Tags[0] != "daily" {
		t.Errorf("tags = %v", ev.Tags)
	}
}

func TestToEvent_MissingTimes(t *testing.T) {
	ve := sampleVEvent()
	ve.Props.Del(ical.PropDateTimeEnd)

	if _, err := toEvent(ve, "work"); !errors.Is(err, models.ErrInvalidPayload) {
		t.Errorf("error = %v, want ErrInvalidPayload", err)
	}
}

func TestToEvent_UnknownStatusAndPartStat(t *testing.T) {
	ve := sampleVEvent()
	ve.Props.SetText(ical.PropStatus, "IN-PROCESS")
	ve.Props.Values(ical.PropAttendee)[0].Params.Set(ical.ParamParticipationStatus, "DELEGATED")

	ev, err := toEvent(ve, "work")
	if err != nil {
		t.Fatalf("toEvent() error: %v", err)
	}
	if ev.Status != models.StatusTentative {
		t.Errorf("unknown STATUS mapped to %q, want tentative", ev.Status)
	}
	if ev.Attendees[0].ResponseStatus != models.ResponseNeedsAction {
		t.Errorf("unknown PARTSTAT mapped to %q, want needsAction", ev.Attendees[0].ResponseStatus)
	}
}

func TestRoundTrip(t *testing.T) {
	original := models.CalendarEvent{
		ID:          "uid-rt",
		Title:       "Design review",
		Description: "Bring sketches",
		Location:    "Studio",
		StartTime:   time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC),
		EndTime:     time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC),
		Status:      models.StatusConfirmed,
		Organizer: models.Attendee{
			Email:          "lead@corp.test",
			Name:           "Lead",
			ResponseStatus: models.ResponseAccepted,
			IsOrganizer:    true,
		},
		Attendees: []models.Attendee{
			{Email: "dev@corp.test", ResponseStatus: models.ResponseTentative},
			{Email: "design@corp.test", ResponseStatus: models.ResponseAccepted},
		},
		Tags: []string{"design"},
	}

	cal := fromEvent(original)
	if len(cal.Children) != 1 {
		t.Fatalf("calendar children = %d", len(cal.Children))
	}

	back, err := toEvent(cal.Children[0], "work")
	if err != nil {
		t.Fatalf("round trip error: %v", err)
	}

	if back.Title != original.Title {
		t.Errorf("title lost: %q", back.Title)
	}
	if !back.StartTime.Equal(original.StartTime) || !back.EndTime.Equal(original.EndTime) {
		t.Errorf("times not preserved: %v / %v", back.StartTime, back.EndTime)
	}
	if len(back.Attendees) != len(original.Attendees) {
		t.Fatalf("attendees lost: %d", len(back.Attendees))
	}
	for i := range original.Attendees {
		if back.Attendees[i].Email != original.Attendees[i].Email {
			t.Errorf("attendee %d email = %q, want %q", i, back.Attendees[i].Email, original.Attendees[i].Email)
		}
		if back.Attendees[i].ResponseStatus != original.Attendees[i].ResponseStatus {
			t.Errorf("attendee %d response = %q, want %q", i, back.Attendees[i].ResponseStatus, original.Attendees[i].ResponseStatus)
		}
	}
	if back.Organizer.Email != "lead@corp.test" {
		t.Errorf("organizer = %+v", back.Organizer)
	}
}

func TestFromEvent_AllDay(t *testing.T) {
	cal := fromEvent(models.CalendarEvent{
		ID:        "uid-allday",
		Title:     "Offsite",
		StartTime: time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local),
		EndTime:   time.Date(2026, 3, 3, 0, 0, 0, 0, time.Local),
		IsAllDay:  true,
		Status:    models.StatusConfirmed,
	})

	ve := cal.Children[0]
	start := ve.Props.Get(ical.PropDateTimeStart)
	if start == nil {
		t.Fatal("DTSTART missing")
	}
	if start.Params.Get(ical.ParamValue) != "DATE" {
		t.Errorf("DTSTART params = %v, want VALUE=DATE", start.Params)
	}
	if start.Value != "20260302" {
		t.Errorf("DTSTART = %q", start.Value)
	}

	back, err := toEvent(ve, "work")
	if err != nil {
		t.Fatalf("toEvent() error: %v", err)
	}
	if !back.IsAllDay {
		t.Error("all-day flag lost through round trip")
	}
}
