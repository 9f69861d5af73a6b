// Package conflict detects temporal overlaps between events and proposes
// resolutions for them.
package conflict

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"calmux/internal/models"
)

// priorityClass buckets an event by how many people it binds. Attendee
// count is the deterministic stand-in for importance.
type priorityClass int

const (
	classLow priorityClass = iota
	classMedium
	classHigh
)

func classify(event models.CalendarEvent) priorityClass {
	switch n := len(event.Attendees); {
	case n > 5:
		return classHigh
	case n >= 3:
		return classMedium
	default:
		return classLow
	}
}

// pairSeverity is symmetric in its arguments.
func pairSeverity(a, b priorityClass) models.ConflictSeverity {
	switch {
	case a == classHigh && b == classHigh:
		return models.SeverityCritical
	case a == classHigh || b == classHigh:
		return models.SeverityHigh
	case a == classMedium || b == classMedium:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Detector scans normalized event sets for scheduling conflicts. It is
// stateless and never mutates its input.
type Detector struct{}

// NewDetector creates a conflict detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Detect compares every unordered event pair once and returns one
// conflict per overlapping pair, under half-open interval semantics:
// back-to-back events do not conflict. A fresh conflict id is minted per
// pair on every run; callers wanting persistence deduplicate by pair.
func (d *Detector) Detect(events []models.CalendarEvent) []models.SchedulingConflict {
	var conflicts []models.SchedulingConflict

	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if !events[i].Overlaps(events[j]) {
				continue
			}
			conflicts = append(conflicts, newConflict(events[i], events[j]))
		}
	}
	return conflicts
}

func newConflict(a, b models.CalendarEvent) models.SchedulingConflict {
	return models.SchedulingConflict{
		ID:         uuid.New().String(),
		Type:       models.ConflictTypeTimeOverlap,
		Severity:   pairSeverity(classify(a), classify(b)),
		EventIDs:   [2]string{a.ID, b.ID},
		Executives: executiveUnion(a, b),
		Description: fmt.Sprintf("%q (%s - %s) overlaps %q (%s - %s)",
			a.Title, a.StartTime.Format("15:04"), a.EndTime.Format("15:04"),
			b.Title, b.StartTime.Format("15:04"), b.EndTime.Format("15:04")),
	}
}

// executiveUnion collects the distinct attendee emails of both events,
// sorted for stable output.
func executiveUnion(a, b models.CalendarEvent) []string {
	seen := make(map[string]struct{})
	for _, att := range a.Attendees {
		if att.Email != "" {
			seen[att.Email] = struct{}{}
		}
	}
	for _, att := range b.Attendees {
		if att.Email != "" {
			seen[att.Email] = struct{}{}
		}
	}

	union := make([]string, 0, len(seen))
	for email := range seen {
		union = append(union, email)
	}
	sort.Strings(union)
	return union
}
