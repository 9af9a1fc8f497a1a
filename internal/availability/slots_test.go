package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var colombo = time.FixedZone("Asia/Colombo", 5*3600+1800)

// A Sunday 14:00-17:00 schedule, the shape used throughout these tests.
func sundayAfternoon() *ScheduleEntry {
	return &ScheduleEntry{
		ScheduleID: 1,
		DoctorID:   10,
		HospitalID: 20,
		DayOfWeek:  time.Sunday,
		Start:      TimeOfDay{Hour: 14},
		End:        TimeOfDay{Hour: 17},
	}
}

// A future Sunday, well after any plausible test run date.
var futureSunday = time.Date(2030, time.June, 2, 0, 0, 0, 0, time.UTC)

func at(t *testing.T, date time.Time, hhmm string) time.Time {
	t.Helper()
	tod, err := ParseTimeOfDay(hhmm)
	require.NoError(t, err)
	return tod.On(Anchor(date, colombo), colombo)
}

func TestComputeSlotsFullDay(t *testing.T) {
	now := time.Date(2026, time.January, 1, 9, 0, 0, 0, colombo)

	slots := ComputeSlots(sundayAfternoon(), nil, futureSunday, now, colombo)

	require.Len(t, slots, 18, "180 minutes / 10 per slot")

	assert.Equal(t, at(t, futureSunday, "14:00"), slots[0].Start)
	assert.Equal(t, at(t, futureSunday, "14:10"), slots[0].End)
	assert.Equal(t, at(t, futureSunday, "16:50"), slots[17].Start)
	assert.Equal(t, at(t, futureSunday, "17:00"), slots[17].End)

	for i, s := range slots {
		assert.Equal(t, SlotAvailable, s.Status, "slot %d", i)
		assert.Equal(t, SlotDuration, s.End.Sub(s.Start))
		if i > 0 {
			assert.Equal(t, slots[i-1].End, s.Start, "slots must be contiguous")
			assert.True(t, slots[i-1].Start.Before(s.Start), "slots must be ordered")
		}
	}
}

func TestComputeSlotsNotScheduled(t *testing.T) {
	now := time.Now()
	assert.Nil(t, ComputeSlots(nil, nil, futureSunday, now, colombo))
}

func TestComputeSlotsMalformedWindow(t *testing.T) {
	entry := sundayAfternoon()
	entry.Start = TimeOfDay{Hour: 17}
	entry.End = TimeOfDay{Hour: 14}

	assert.Nil(t, ComputeSlots(entry, nil, futureSunday, time.Now(), colombo))

	entry.End = entry.Start
	assert.Nil(t, ComputeSlots(entry, nil, futureSunday, time.Now(), colombo))
}

func TestComputeSlotsDropsOverhangingSlot(t *testing.T) {
	entry := sundayAfternoon()
	entry.End = TimeOfDay{Hour: 14, Minute: 25}

	slots := ComputeSlots(entry, nil, futureSunday, time.Time{}, colombo)

	// 25 minutes yields two whole slots; the 14:20-14:30 candidate overhangs
	// and is dropped entirely.
	require.Len(t, slots, 2)
	assert.Equal(t, at(t, futureSunday, "14:20"), slots[1].End)
}

func TestComputeSlotsMarksReserved(t *testing.T) {
	now := time.Date(2026, time.January, 1, 9, 0, 0, 0, colombo)
	booked := []Window{{
		Start: at(t, futureSunday, "14:30"),
		End:   at(t, futureSunday, "14:40"),
	}}

	slots := ComputeSlots(sundayAfternoon(), booked, futureSunday, now, colombo)
	require.Len(t, slots, 18)

	for _, s := range slots {
		if s.Start.Equal(at(t, futureSunday, "14:30")) {
			assert.Equal(t, SlotReserved, s.Status)
		} else {
			assert.Equal(t, SlotAvailable, s.Status)
		}
	}
}

func TestComputeSlotsPartialOverlapReservesBothSlots(t *testing.T) {
	now := time.Date(2026, time.January, 1, 9, 0, 0, 0, colombo)
	booked := []Window{{
		Start: at(t, futureSunday, "14:35"),
		End:   at(t, futureSunday, "14:45"),
	}}

	slots := ComputeSlots(sundayAfternoon(), booked, futureSunday, now, colombo)

	reserved := map[string]bool{}
	for _, s := range slots {
		if s.Status == SlotReserved {
			reserved[s.Start.In(colombo).Format("15:04")] = true
		}
	}
	assert.Equal(t, map[string]bool{"14:30": true, "14:40": true}, reserved)
}

func TestComputeSlotsOverduePrecedence(t *testing.T) {
	// Clock sits mid-window; a booking overlaps an already-past slot.
	now := at(t, futureSunday, "15:05")
	booked := []Window{{
		Start: at(t, futureSunday, "14:30"),
		End:   at(t, futureSunday, "14:40"),
	}}

	slots := ComputeSlots(sundayAfternoon(), booked, futureSunday, now, colombo)

	for _, s := range slots {
		switch {
		case s.Start.Before(now):
			assert.Equal(t, SlotOverdue, s.Status, "past slots are Overdue even when booked")
		default:
			assert.Equal(t, SlotAvailable, s.Status)
		}
	}

	// 14:00 through 15:00 starts are in the past: 7 slots.
	var overdue int
	for _, s := range slots {
		if s.Status == SlotOverdue {
			overdue++
		}
	}
	assert.Equal(t, 7, overdue)
}

func TestComputeSlotsIdempotent(t *testing.T) {
	now := time.Date(2026, time.January, 1, 9, 0, 0, 0, colombo)
	booked := []Window{{
		Start: at(t, futureSunday, "16:00"),
		End:   at(t, futureSunday, "16:10"),
	}}

	first := ComputeSlots(sundayAfternoon(), booked, futureSunday, now, colombo)
	second := ComputeSlots(sundayAfternoon(), booked, futureSunday, now, colombo)
	assert.Equal(t, first, second)
}

func TestAnchorKeepsLocalDate(t *testing.T) {
	// Midnight UTC on June 2 is already 05:30 June 2 in Colombo; midnight
	// Colombo time is still June 1 in UTC. Anchoring must land on the local
	// calendar date either way.
	utcMidnight := time.Date(2030, time.June, 2, 0, 0, 0, 0, time.UTC)
	anchored := Anchor(utcMidnight, colombo)
	assert.Equal(t, time.Sunday, anchored.Weekday())
	assert.Equal(t, 2, anchored.Day())
	assert.Equal(t, 12, anchored.Hour())

	dayStart, dayEnd := DayBounds(utcMidnight, colombo)
	assert.Equal(t, 24*time.Hour, dayEnd.Sub(dayStart))
	assert.Equal(t, 0, dayStart.Hour())
	assert.Equal(t, 2, dayStart.Day())
}

func TestOverlapsHalfOpen(t *testing.T) {
	base := at(t, futureSunday, "14:00")
	tenPast := base.Add(10 * time.Minute)
	twentyPast := base.Add(20 * time.Minute)

	assert.False(t, Overlaps(base, tenPast, tenPast, twentyPast), "adjacent intervals do not overlap")
	assert.True(t, Overlaps(base, twentyPast, tenPast, twentyPast))
	assert.True(t, Overlaps(tenPast, twentyPast, base, twentyPast))
	assert.False(t, Overlaps(base, base, base, twentyPast), "empty interval overlaps nothing")
}
