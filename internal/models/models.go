package models

import (
	"time"

	"golang.org/x/oauth2"
)

// Provider identifies a calendar backend.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderOutlook  Provider = "outlook"
	ProviderExchange Provider = "exchange"
	ProviderCalDAV   Provider = "caldav"
)

// Providers lists every supported provider, in registration order.
func Providers() []Provider {
	return []Provider{ProviderGoogle, ProviderOutlook, ProviderExchange, ProviderCalDAV}
}

// ResponseStatus is an attendee's reply to an invitation.
type ResponseStatus string

const (
	ResponseAccepted    ResponseStatus = "accepted"
	ResponseDeclined    ResponseStatus = "declined"
	ResponseTentative   ResponseStatus = "tentative"
	ResponseNeedsAction ResponseStatus = "needsAction"
)

// EventStatus is the confirmation state of an event.
type EventStatus string

const (
	StatusConfirmed   EventStatus = "confirmed"
	StatusTentative   EventStatus = "tentative"
	StatusCancelled   EventStatus = "cancelled"
	StatusNeedsAction EventStatus = "needsAction"
)

// Attendee is a participant on an event. Email is never empty for a
// well-formed attendee; Name may be.
type Attendee struct {
	Email          string
	Name           string
	ResponseStatus ResponseStatus
	IsOrganizer    bool
}

// CalendarEvent is the canonical, provider-independent event model.
// StartTime <= EndTime always holds for normalized events; EndTime is
// exclusive. All-day events span whole local days.
type CalendarEvent struct {
	ID          string
	Title       string
	Description string
	Location    string
	StartTime   time.Time
	EndTime     time.Time
	IsAllDay    bool
	Attendees   []Attendee
	Organizer   Attendee
	Status      EventStatus
	Priority    string
	Tags        []string
	ExecutiveID string
	CalendarID  string
	Provider    Provider
	// Metadata carries provider-specific key/values. Core logic never
	// interprets it; adapters round-trip it.
	Metadata map[string]string
}

// Overlaps reports whether two events intersect under half-open interval
// semantics: back-to-back events do not overlap.
func (e CalendarEvent) Overlaps(other CalendarEvent) bool {
	return e.StartTime.Before(other.EndTime) && other.StartTime.Before(e.EndTime)
}

// SyncStatus describes the freshness of a calendar's local view.
type SyncStatus string

const (
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusPending SyncStatus = "pending"
	SyncStatusError   SyncStatus = "error"
)

// Calendar is one calendar owned by a single provider/user pairing.
type Calendar struct {
	ID         string
	Name       string
	Provider   Provider
	IsPrimary  bool
	IsVisible  bool
	SyncStatus SyncStatus
	LastSync   time.Time
}

// CalendarCredentials binds a user to an authenticated provider account.
// The Token is opaque to core logic; only the token service refreshes it.
type CalendarCredentials struct {
	ID          string
	UserID      string
	Provider    Provider
	Email       string
	Token       *oauth2.Token
	CalendarIDs []string
	LastSynced  time.Time
	SyncEnabled bool
}

// ConflictSeverity ranks how disruptive a scheduling conflict is.
type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

// ConflictTypeTimeOverlap is the only conflict type currently detected.
const ConflictTypeTimeOverlap = "time_overlap"

// SchedulingConflict records one detected overlap between exactly two
// events. Conflicts are append-only: they are marked resolved, never
// deleted.
type SchedulingConflict struct {
	ID          string
	Type        string
	Severity    ConflictSeverity
	EventIDs    [2]string
	Executives  []string
	Description string
	Resolved    bool
	ResolvedBy  string
	ResolvedAt  time.Time
}

// ResolutionType names a conflict-resolution strategy.
type ResolutionType string

const (
	ResolutionReschedule ResolutionType = "reschedule"
	ResolutionDelegate   ResolutionType = "delegate"
	ResolutionMerge      ResolutionType = "merge"
)

// ResolutionImpact grades how disruptive applying a resolution would be.
type ResolutionImpact string

const (
	ImpactLow    ResolutionImpact = "low"
	ImpactMedium ResolutionImpact = "medium"
	ImpactHigh   ResolutionImpact = "high"
)

// ConflictResolution is one candidate strategy for settling a conflict.
// Candidates are ephemeral: the best-scoring one is retained, the rest
// discarded.
type ConflictResolution struct {
	ID               string
	Type             ResolutionType
	Description      string
	Impact           ResolutionImpact
	AffectedEventIDs []string
	Confidence       float64
	Reasoning        string
	ProposedSchedule []TimeSlot
}

// SlotPriority grades an availability slot.
type SlotPriority string

const (
	SlotPriorityHigh        SlotPriority = "high"
	SlotPriorityMedium      SlotPriority = "medium"
	SlotPriorityLow         SlotPriority = "low"
	SlotPriorityUnavailable SlotPriority = "unavailable"
)

// TimeSlot is one bounded interval in an availability partition. EndTime
// is exclusive.
type TimeSlot struct {
	StartTime   time.Time
	EndTime     time.Time
	IsAvailable bool
	Priority    SlotPriority
}

// Overlaps reports whether the slot intersects [start, end) under
// half-open semantics.
func (s TimeSlot) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && start.Before(s.EndTime)
}

// WorkingHours bounds the hours and weekdays an actor accepts meetings in.
// Start and End are "HH:MM" wall-clock strings in the preference timezone.
type WorkingHours struct {
	Start      string
	End        string
	DaysOfWeek []time.Weekday
}

// AvailabilityPreferences tunes slot generation per actor.
type AvailabilityPreferences struct {
	WorkingHours             WorkingHours
	Timezone                 string
	BufferTime               time.Duration
	MaxMeetingsPerDay        int
	PreferredMeetingDuration time.Duration
}

// DefaultPreferences returns the stock weekday 09:00-17:00 preferences.
func DefaultPreferences() AvailabilityPreferences {
	return AvailabilityPreferences{
		WorkingHours: WorkingHours{
			Start: "09:00",
			End:   "17:00",
			DaysOfWeek: []time.Weekday{
				time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
			},
		},
		Timezone:                 "UTC",
		BufferTime:               15 * time.Minute,
		MaxMeetingsPerDay:        8,
		PreferredMeetingDuration: 30 * time.Minute,
	}
}

// SyncResult summarizes one aggregate read: how much data arrived and
// which providers failed. Success is false only when every provider
// failed.
type SyncResult struct {
	Success        bool
	EventCount     int
	CalendarCount  int
	ProvidersTried int
	Errors         []string
}
