package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func starts(slots []TimeSlot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Start
	}
	return out
}

func TestGenerateSlots(t *testing.T) {
	d := mustDate(t, "2024-01-08")

	tests := []struct {
		name        string
		intervals   []TimeWindow
		granularity int
		want        []string
	}{
		{"default granularity", []TimeWindow{{"09:00", "10:30"}}, 0, []string{"09:00", "09:30", "10:00"}},
		{"trailing remainder dropped", []TimeWindow{{"09:00", "10:45"}}, 30, []string{"09:00", "09:30", "10:00"}},
		{"interval shorter than a slot", []TimeWindow{{"09:00", "09:20"}}, 30, []string{}},
		{"hour slots across two intervals", []TimeWindow{{"09:00", "12:00"}, {"14:00", "15:30"}}, 60, []string{"09:00", "10:00", "11:00", "14:00"}},
		{"odd start", []TimeWindow{{"09:10", "10:00"}}, 15, []string{"09:10", "09:25", "09:40"}},
		{"invalid interval skipped", []TimeWindow{{"xx", "10:00"}, {"11:00", "10:00"}, {"12:00", "12:30"}}, 30, []string{"12:00"}},
		{"duplicate starts emitted once", []TimeWindow{{"09:00", "10:00"}, {"09:00", "09:30"}}, 30, []string{"09:00", "09:30"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateSlots(d, time.UTC, tt.intervals, tt.granularity)
			assert.Equal(t, tt.want, starts(got))
		})
	}
}

func TestGenerateSlotsBoundsAndLength(t *testing.T) {
	d := mustDate(t, "2024-01-08")
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	intervals := []TimeWindow{{"08:15", "12:00"}, {"13:30", "19:05"}}
	for _, g := range []int{10, 15, 20, 30, 45, 60, 90} {
		slots := GenerateSlots(d, paris, intervals, g)
		require.NotEmpty(t, slots)
		for _, s := range slots {
			iv, err := s.Window().Interval(d, paris)
			require.NoError(t, err)
			assert.Equal(t, time.Duration(g)*time.Minute, iv.End.Sub(iv.Start))

			var inside bool
			for _, w := range intervals {
				bounds, err := w.Interval(d, paris)
				require.NoError(t, err)
				if !iv.Start.Before(bounds.Start) && !iv.End.After(bounds.End) {
					inside = true
				}
			}
			assert.True(t, inside, "slot %s escapes its interval at granularity %d", s.Window(), g)
			assert.False(t, s.Available, "availability is set by conflict annotation")
		}
	}
}

func TestGenerateSlotsEndOfDay(t *testing.T) {
	d := mustDate(t, "2024-01-08")
	slots := GenerateSlots(d, time.UTC, []TimeWindow{{"23:00", "24:00"}}, 30)
	assert.Equal(t, []TimeSlot{{Start: "23:00", End: "23:30"}, {Start: "23:30", End: "24:00"}}, slots)
}

func TestGenerateSlotsAcrossDaylightSaving(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	spring := GenerateSlots(mustDate(t, "2024-03-31"), paris, []TimeWindow{{"01:00", "04:00"}}, 30)
	assert.Equal(t, []TimeSlot{
		{Start: "01:00", End: "01:30"},
		{Start: "03:00", End: "03:30"},
		{Start: "03:30", End: "04:00"},
	}, spring)

	autumn := GenerateSlots(mustDate(t, "2024-10-27"), paris, []TimeWindow{{"01:00", "04:00"}}, 30)
	assert.Equal(t, []string{"01:00", "01:30", "02:00", "02:30", "03:00", "03:30"}, starts(autumn))
	for _, s := range autumn {
		m, err := s.Window().Minutes()
		require.NoError(t, err)
		assert.Equal(t, 30, m, "slot %s", s.Window())
	}
}
