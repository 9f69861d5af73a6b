package availability

import (
	"testing"
	"time"

	"calmux/internal/models"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, time.March, 2, hour, minute, 0, 0, time.UTC) // a Monday
}

func TestGenerateSlots_MarksBusyOverlaps(t *testing.T) {
	busy := []BusyInterval{{Start: at(9, 30), End: at(10, 0)}}
	slots := GenerateSlots(at(9, 0), at(11, 0), busy, 30*time.Minute)

	want := []struct {
		start     time.Time
		available bool
	}{
		{at(9, 0), true},
		{at(9, 30), false},
		{at(10, 0), true},
		{at(10, 30), true},
	}

	if len(slots) != len(want) {
		t.Fatalf("GenerateSlots() = %d slots, want %d", len(slots), len(want))
	}
	for i, w := range want {
		if !slots[i].StartTime.Equal(w.start) {
			t.Errorf("slot %d start = %v, want %v", i, slots[i].StartTime, w.start)
		}
		if slots[i].IsAvailable != w.available {
			t.Errorf("slot %d available = %v, want %v", i, slots[i].IsAvailable, w.available)
		}
		wantPriority := models.SlotPriorityHigh
		if !w.available {
			wantPriority = models.SlotPriorityUnavailable
		}
		if slots[i].Priority != wantPriority {
			t.Errorf("slot %d priority = %q, want %q", i, slots[i].Priority, wantPriority)
		}
	}
}

func TestGenerateSlots_BusyTouchingBoundaryStaysFree(t *testing.T) {
	// A busy interval ending exactly where a slot starts does not block
	// the slot: half-open semantics.
	busy := []BusyInterval{{Start: at(9, 0), End: at(9, 30)}}
	slots := GenerateSlots(at(9, 30), at(10, 0), busy, 30*time.Minute)

	if len(slots) != 1 {
		t.Fatalf("GenerateSlots() = %d slots, want 1", len(slots))
	}
	if !slots[0].IsAvailable {
		t.Error("slot touching the end of a busy interval must stay available")
	}
}

func TestGenerateSlots_CoversRangeExactly(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		duration time.Duration
		count    int
	}{
		{"exact multiple", at(9, 0), at(11, 0), 30 * time.Minute, 4},
		{"remainder clipped", at(9, 0), at(10, 45), 30 * time.Minute, 4},
		{"single short range", at(9, 0), at(9, 10), 30 * time.Minute, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := GenerateSlots(tt.start, tt.end, nil, tt.duration)
			if len(slots) != tt.count {
				t.Fatalf("GenerateSlots() = %d slots, want %d", len(slots), tt.count)
			}

			// Contiguous, no gaps or overlaps, exact coverage.
			if !slots[0].StartTime.Equal(tt.start) {
				t.Errorf("first slot starts %v, want %v", slots[0].StartTime, tt.start)
			}
			for i := 1; i < len(slots); i++ {
				if !slots[i].StartTime.Equal(slots[i-1].EndTime) {
					t.Errorf("gap between slot %d and %d", i-1, i)
				}
			}
			last := slots[len(slots)-1]
			if !last.EndTime.Equal(tt.end) {
				t.Errorf("last slot ends %v, want clipped to %v", last.EndTime, tt.end)
			}
		})
	}
}

func TestGenerateSlots_DegenerateInputs(t *testing.T) {
	if got := GenerateSlots(at(10, 0), at(10, 0), nil, 30*time.Minute); got != nil {
		t.Errorf("empty range should yield no slots, got %d", len(got))
	}
	if got := GenerateSlots(at(11, 0), at(10, 0), nil, 30*time.Minute); got != nil {
		t.Errorf("inverted range should yield no slots, got %d", len(got))
	}

	// Non-positive duration falls back to the default width.
	slots := GenerateSlots(at(9, 0), at(10, 0), nil, 0)
	if len(slots) != 2 {
		t.Errorf("default duration should yield 2 slots, got %d", len(slots))
	}
}

func TestMergeBusy(t *testing.T) {
	tests := []struct {
		name string
		in   []BusyInterval
		want []BusyInterval
	}{
		{
			name: "overlapping intervals coalesce",
			in: []BusyInterval{
				{at(10, 0), at(11, 0)},
				{at(10, 30), at(11, 30)},
			},
			want: []BusyInterval{{at(10, 0), at(11, 30)}},
		},
		{
			name: "adjacent intervals coalesce",
			in: []BusyInterval{
				{at(10, 0), at(11, 0)},
				{at(11, 0), at(12, 0)},
			},
			want: []BusyInterval{{at(10, 0), at(12, 0)}},
		},
		{
			name: "disjoint intervals stay apart",
			in: []BusyInterval{
				{at(13, 0), at(14, 0)},
				{at(10, 0), at(11, 0)},
			},
			want: []BusyInterval{{at(10, 0), at(11, 0)}, {at(13, 0), at(14, 0)}},
		},
		{
			name: "contained interval disappears",
			in: []BusyInterval{
				{at(10, 0), at(13, 0)},
				{at(11, 0), at(12, 0)},
			},
			want: []BusyInterval{{at(10, 0), at(13, 0)}},
		},
		{name: "empty", in: nil, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MergeBusy(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("MergeBusy() = %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if !got[i].Start.Equal(tt.want[i].Start) || !got[i].End.Equal(tt.want[i].End) {
					t.Errorf("interval %d = %v-%v, want %v-%v", i, got[i].Start, got[i].End, tt.want[i].Start, tt.want[i].End)
				}
			}
		})
	}
}

func TestBusyFromEvents_SkipsCancelled(t *testing.T) {
	events := []models.CalendarEvent{
		{StartTime: at(10, 0), EndTime: at(11, 0), Status: models.StatusConfirmed},
		{StartTime: at(12, 0), EndTime: at(13, 0), Status: models.StatusCancelled},
	}

	busy := BusyFromEvents(events)
	if len(busy) != 1 {
		t.Fatalf("BusyFromEvents() = %d intervals, want 1", len(busy))
	}
	if !busy[0].Start.Equal(at(10, 0)) {
		t.Errorf("interval start = %v, want %v", busy[0].Start, at(10, 0))
	}
}

func TestApplyWorkingHours(t *testing.T) {
	prefs := models.DefaultPreferences() // weekdays 09:00-17:00 UTC

	slots := GenerateSlots(at(8, 0), at(10, 0), nil, 30*time.Minute)
	marked := ApplyWorkingHours(slots, prefs)

	for i, slot := range marked {
		inside := !slot.StartTime.Before(at(9, 0))
		if slot.IsAvailable != inside {
			t.Errorf("slot %d (%v) available = %v, want %v", i, slot.StartTime, slot.IsAvailable, inside)
		}
	}

	// Original slice must stay untouched.
	if !slots[0].IsAvailable {
		t.Error("ApplyWorkingHours mutated its input")
	}
}

func TestApplyWorkingHours_Weekend(t *testing.T) {
	saturday := time.Date(2026, time.March, 7, 10, 0, 0, 0, time.UTC)
	slots := GenerateSlots(saturday, saturday.Add(time.Hour), nil, 30*time.Minute)

	marked := ApplyWorkingHours(slots, models.DefaultPreferences())
	for i, slot := range marked {
		if slot.IsAvailable {
			t.Errorf("slot %d on a Saturday must be unavailable", i)
		}
		if slot.Priority != models.SlotPriorityUnavailable {
			t.Errorf("slot %d priority = %q, want unavailable", i, slot.Priority)
		}
	}
}
