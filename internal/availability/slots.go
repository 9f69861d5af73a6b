// Package availability partitions a time range into bounded slots marked
// free or busy against a set of busy intervals.
package availability

import (
	"sort"
	"time"

	"calmux/internal/models"
)

// DefaultSlotDuration is used when callers pass a non-positive duration.
const DefaultSlotDuration = 30 * time.Minute

// BusyInterval is one occupied span, end exclusive.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}

// BusyFromEvents extracts busy intervals from events, skipping cancelled
// ones.
func BusyFromEvents(events []models.CalendarEvent) []BusyInterval {
	intervals := make([]BusyInterval, 0, len(events))
	for _, ev := range events {
		if ev.Status == models.StatusCancelled {
			continue
		}
		intervals = append(intervals, BusyInterval{Start: ev.StartTime, End: ev.EndTime})
	}
	return intervals
}

// MergeBusy coalesces overlapping or adjacent busy intervals so the slot
// scan touches each distinct busy span once. Input is not mutated.
func MergeBusy(intervals []BusyInterval) []BusyInterval {
	if len(intervals) == 0 {
		return nil
	}

	sorted := make([]BusyInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []BusyInterval{sorted[0]}
	for _, cur := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !cur.Start.After(last.End) {
			if cur.End.After(last.End) {
				last.End = cur.End
			}
			continue
		}
		merged = append(merged, cur)
	}
	return merged
}

// GenerateSlots partitions [rangeStart, rangeEnd) into contiguous
// fixed-width slots of slotDuration. A trailing remainder produces a
// final slot clipped to rangeEnd, so the returned slots exactly cover
// the range with no gaps, overlaps, or overshoot. A slot is available
// iff it overlaps no busy interval (half-open test); available slots get
// high priority, the rest unavailable.
func GenerateSlots(rangeStart, rangeEnd time.Time, busy []BusyInterval, slotDuration time.Duration) []models.TimeSlot {
	if slotDuration <= 0 {
		slotDuration = DefaultSlotDuration
	}
	if !rangeStart.Before(rangeEnd) {
		return nil
	}

	merged := MergeBusy(busy)

	var slots []models.TimeSlot
	for cur := rangeStart; cur.Before(rangeEnd); cur = cur.Add(slotDuration) {
		slotEnd := cur.Add(slotDuration)
		if slotEnd.After(rangeEnd) {
			slotEnd = rangeEnd
		}

		slot := models.TimeSlot{StartTime: cur, EndTime: slotEnd}
		if isFree(slot, merged) {
			slot.IsAvailable = true
			slot.Priority = models.SlotPriorityHigh
		} else {
			slot.Priority = models.SlotPriorityUnavailable
		}
		slots = append(slots, slot)
	}
	return slots
}

// ApplyWorkingHours marks slots outside the preferences' working hours
// or weekdays unavailable. It is an explicit second pass: GenerateSlots
// never consults preferences on its own. Input is not mutated.
func ApplyWorkingHours(slots []models.TimeSlot, prefs models.AvailabilityPreferences) []models.TimeSlot {
	loc := time.UTC
	if prefs.Timezone != "" {
		if l, err := time.LoadLocation(prefs.Timezone); err == nil {
			loc = l
		}
	}

	startMinute, okStart := parseWallClock(prefs.WorkingHours.Start)
	endMinute, okEnd := parseWallClock(prefs.WorkingHours.End)

	days := make(map[time.Weekday]bool, len(prefs.WorkingHours.DaysOfWeek))
	for _, d := range prefs.WorkingHours.DaysOfWeek {
		days[d] = true
	}

	out := make([]models.TimeSlot, len(slots))
	for i, slot := range slots {
		out[i] = slot
		local := slot.StartTime.In(loc)

		withinDays := len(days) == 0 || days[local.Weekday()]
		withinHours := true
		if okStart && okEnd {
			minute := local.Hour()*60 + local.Minute()
			withinHours = minute >= startMinute && minute < endMinute
		}

		if !withinDays || !withinHours {
			out[i].IsAvailable = false
			out[i].Priority = models.SlotPriorityUnavailable
		}
	}
	return out
}

func isFree(slot models.TimeSlot, busy []BusyInterval) bool {
	for _, b := range busy {
		if slot.Overlaps(b.Start, b.End) {
			return false
		}
	}
	return true
}

// parseWallClock reads "HH:MM" into minutes since midnight.
func parseWallClock(value string) (int, bool) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
