package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tod, err := ParseTimeOfDay("09:05")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 9, Minute: 5}, tod)
	assert.Equal(t, "09:05", tod.String())

	tod, err = ParseTimeOfDay("23:59")
	require.NoError(t, err)
	assert.Equal(t, TimeOfDay{Hour: 23, Minute: 59}, tod)
}

func TestParseTimeOfDayRejectsGarbage(t *testing.T) {
	for _, in := range []string{
		"", "noon", "24:00", "12:60", "-1:30",
		"14:30xyz", "14:300", "9:30", "14:5", "+9:30", "14 30",
	} {
		_, err := ParseTimeOfDay(in)
		assert.Error(t, err, "input %q", in)
	}
}

func TestTimeOfDayOn(t *testing.T) {
	loc := time.FixedZone("Asia/Colombo", 5*3600+1800)
	ref := time.Date(2030, time.June, 2, 12, 0, 0, 0, loc)

	got := TimeOfDay{Hour: 14, Minute: 30}.On(ref, loc)
	assert.Equal(t, time.Date(2030, time.June, 2, 14, 30, 0, 0, loc), got)

	// A reference carried in another zone still lands on the local date.
	utcRef := ref.UTC()
	assert.Equal(t, got, TimeOfDay{Hour: 14, Minute: 30}.On(utcRef, loc))
}

func TestTimeOfDayBefore(t *testing.T) {
	assert.True(t, TimeOfDay{Hour: 9}.Before(TimeOfDay{Hour: 17}))
	assert.True(t, TimeOfDay{Hour: 9, Minute: 10}.Before(TimeOfDay{Hour: 9, Minute: 20}))
	assert.False(t, TimeOfDay{Hour: 9}.Before(TimeOfDay{Hour: 9}))
}
