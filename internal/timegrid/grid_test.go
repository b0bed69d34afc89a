package timegrid

import (
	"slices"
	"testing"
	"time"
)

func TestGrid_Slots(t *testing.T) {
	grid := New(nil)

	t.Run("enumerates every ten minute slot of the day", func(t *testing.T) {
		slots := grid.Slots()
		if len(slots) != 144 {
			t.Fatalf("expected 144 slots, got %d", len(slots))
		}
		if slots[0] != (Slot{Hour: 0, Minute: 0}) {
			t.Fatalf("unexpected first slot: %v", slots[0])
		}
		if slots[143] != (Slot{Hour: 23, Minute: 50}) {
			t.Fatalf("unexpected last slot: %v", slots[143])
		}
		for i, slot := range slots {
			if slot.Index() != i {
				t.Fatalf("slot %v reports index %d, want %d", slot, slot.Index(), i)
			}
		}
	})

	t.Run("is restartable and deterministic", func(t *testing.T) {
		first := grid.Slots()
		first[0] = Slot{Hour: 9, Minute: 0}
		second := grid.Slots()
		if second[0] != (Slot{}) {
			t.Fatalf("expected fresh slice, got %v", second[0])
		}
		if !slices.Equal(second, grid.Slots()) {
			t.Fatalf("expected identical enumerations")
		}
	})

	t.Run("hour boundaries cover the day", func(t *testing.T) {
		hours := grid.HourBoundaries()
		if len(hours) != 24 || hours[0] != 0 || hours[23] != 23 {
			t.Fatalf("unexpected hour boundaries: %v", hours)
		}
	})
}

func TestGrid_SlotAt(t *testing.T) {
	grid := New(nil)

	slot, ok := grid.SlotAt(61)
	if !ok || slot != (Slot{Hour: 10, Minute: 10}) {
		t.Fatalf("expected 10:10, got %v (%v)", slot, ok)
	}
	if _, ok := grid.SlotAt(144); ok {
		t.Fatalf("expected index 144 to be off the grid")
	}
	if _, ok := grid.SlotIndex(Slot{Hour: 10, Minute: 5}); ok {
		t.Fatalf("expected misaligned slot to be rejected")
	}
}

func TestGrid_ToInstant(t *testing.T) {
	grid := New(JST())

	t.Run("combines the local calendar day with the slot time", func(t *testing.T) {
		// 2024-01-09T20:00Z is already 2024-01-10 in JST.
		date := time.Date(2024, time.January, 9, 20, 0, 0, 0, time.UTC)
		got := grid.ToInstant(date, Slot{Hour: 10, Minute: 30})
		want := time.Date(2024, time.January, 10, 1, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Fatalf("expected %s, got %s", want, got)
		}
		if got.Second() != 0 || got.Nanosecond() != 0 {
			t.Fatalf("expected zero seconds, got %s", got)
		}
	})

	t.Run("slot of an instant floors to the containing slot", func(t *testing.T) {
		instant := time.Date(2024, time.January, 10, 1, 37, 12, 0, time.UTC)
		if got := grid.SlotOf(instant); got != (Slot{Hour: 10, Minute: 30}) {
			t.Fatalf("expected 10:30, got %v", got)
		}
	})
}

func TestGrid_DayBounds(t *testing.T) {
	grid := New(JST())
	date, err := grid.ParseDate("2024-01-10")
	if err != nil {
		t.Fatalf("ParseDate failed: %v", err)
	}

	start, end := grid.DayBounds(date)
	if want := time.Date(2024, time.January, 9, 15, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, start)
	}
	if want := time.Date(2024, time.January, 10, 15, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Fatalf("expected end %s, got %s", want, end)
	}
	if key := grid.DateKey(start); key != "2024-01-10" {
		t.Fatalf("expected date key 2024-01-10, got %s", key)
	}
}

func TestGrid_FormatRange(t *testing.T) {
	grid := New(JST())
	start := time.Date(2024, time.January, 10, 1, 0, 0, 0, time.UTC)
	end := start.Add(30 * time.Minute)

	if got := grid.FormatRange(start, end); got != "10:00～10:30" {
		t.Fatalf("unexpected range: %q", got)
	}
	if got := grid.FormatRange(time.Time{}, end); got != "" {
		t.Fatalf("expected empty range for zero start, got %q", got)
	}
}

func TestLoadLocation(t *testing.T) {
	for _, name := range []string{"", "JST", "Asia/Tokyo"} {
		loc, err := LoadLocation(name)
		if err != nil {
			t.Fatalf("LoadLocation(%q) failed: %v", name, err)
		}
		if _, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone(); offset != 9*60*60 {
			t.Fatalf("LoadLocation(%q) offset %d, want JST", name, offset)
		}
	}
	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Fatalf("expected error for unknown zone")
	}
}
