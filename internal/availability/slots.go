package availability

import (
	"time"
)

// SlotDuration is the fixed consultation length. It is a system-wide
// constant, not a per-schedule setting.
const SlotDuration = 10 * time.Minute

type SlotStatus string

const (
	SlotAvailable SlotStatus = "Available"
	SlotReserved  SlotStatus = "Reserved"
	SlotOverdue   SlotStatus = "Overdue"
)

// Slot is one bookable interval derived for a single date. Slots are never
// persisted; they are recomputed per request.
type Slot struct {
	Start  time.Time
	End    time.Time
	Status SlotStatus
}

// Window is an occupied [Start, End) interval, typically an active
// appointment's time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// ScheduleEntry is one weekly recurring availability window for a
// (doctor, hospital) pair. ValidFrom/ValidUntil are carried through from the
// store but not enforced by the engine.
type ScheduleEntry struct {
	ScheduleID int64
	DoctorID   int64
	HospitalID int64
	DayOfWeek  time.Weekday
	Start      TimeOfDay
	End        TimeOfDay
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// Anchor pins a calendar date to local noon in loc. Deriving the weekday or
// day bounds from an anchored time cannot slip across a date boundary no
// matter what zone the input timestamp carried.
func Anchor(date time.Time, loc *time.Location) time.Time {
	local := date.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
}

// DayBounds returns the [start, end) of the calendar day containing date,
// in loc.
func DayBounds(date time.Time, loc *time.Location) (time.Time, time.Time) {
	local := date.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and
// [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// ComputeSlots generates the ordered candidate slots for one date.
//
// A nil entry means the doctor is not scheduled that day and yields no
// slots; this is a valid empty result, not an error. A malformed window
// (end at or before start) also yields no slots. Slots that would overhang
// the end of the window are dropped, not truncated.
//
// booked must contain only active (non-cancelled) appointment windows.
// now is injected rather than read from the ambient clock so that Overdue
// classification is deterministic under test.
func ComputeSlots(entry *ScheduleEntry, booked []Window, date time.Time, now time.Time, loc *time.Location) []Slot {
	if entry == nil {
		return nil
	}

	anchored := Anchor(date, loc)
	windowStart := entry.Start.On(anchored, loc)
	windowEnd := entry.End.On(anchored, loc)
	if !windowStart.Before(windowEnd) {
		return nil
	}

	var slots []Slot
	for cur := windowStart; ; cur = cur.Add(SlotDuration) {
		end := cur.Add(SlotDuration)
		if end.After(windowEnd) {
			break
		}
		slots = append(slots, Slot{Start: cur, End: end, Status: SlotAvailable})
	}

	for i := range slots {
		// Overdue takes precedence over any booking state.
		if slots[i].Start.Before(now) {
			slots[i].Status = SlotOverdue
			continue
		}
		for _, b := range booked {
			if Overlaps(slots[i].Start, slots[i].End, b.Start, b.End) {
				slots[i].Status = SlotReserved
				break
			}
		}
	}

	return slots
}
