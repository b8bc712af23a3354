package scheduling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectionAddRequiresContiguousTail(t *testing.T) {
	s := NewSelection(30)
	require.NoError(t, s.Add(TimeWindow{"09:00", "09:30"}))
	require.NoError(t, s.Add(TimeWindow{"09:30", "10:00"}))

	assert.ErrorIs(t, s.Add(TimeWindow{"10:30", "11:00"}), ErrNotContiguous)
	assert.ErrorIs(t, s.Add(TimeWindow{"08:30", "09:00"}), ErrNotContiguous)
	assert.ErrorIs(t, s.Add(TimeWindow{"09:30", "10:00"}), ErrAlreadySelected)
	require.NoError(t, s.Add(TimeWindow{"10:00", "10:30"}))

	p, ok := s.Primary()
	require.True(t, ok)
	assert.Equal(t, "09:00", p.Start)
	assert.Equal(t, 3, s.Len())
	assert.True(t, s.Validate(morningIndex(t)).Valid)
}

func TestSelectionRemoveHeadPromotesNext(t *testing.T) {
	s := NewSelection(30)
	for _, w := range []TimeWindow{{"09:00", "09:30"}, {"09:30", "10:00"}, {"10:00", "10:30"}} {
		require.NoError(t, s.Add(w))
	}

	assert.True(t, s.Remove("09:00"))
	p, _ := s.Primary()
	assert.Equal(t, TimeWindow{"09:30", "10:00"}, p)
	assert.Equal(t, []TimeWindow{{"10:00", "10:30"}}, s.Additional())
	assert.True(t, s.Validate(morningIndex(t)).Valid)
}

func TestSelectionRemoveMiddleKeepsRemainder(t *testing.T) {
	s := NewSelection(30)
	for _, w := range []TimeWindow{{"09:00", "09:30"}, {"09:30", "10:00"}, {"10:00", "10:30"}} {
		require.NoError(t, s.Add(w))
	}

	assert.True(t, s.Remove("09:30"))
	assert.Equal(t, []TimeWindow{{"09:00", "09:30"}, {"10:00", "10:30"}}, s.Chain())

	v := s.Validate(morningIndex(t))
	assert.False(t, v.Valid)
	assert.Equal(t, CodeNonContiguous, v.Code)

	assert.False(t, s.Remove("15:00"))
}

func TestSelectionRemoveLastMemberEmpties(t *testing.T) {
	s := NewSelection(30)
	require.NoError(t, s.Add(TimeWindow{"09:00", "09:30"}))
	assert.True(t, s.Remove("09:00"))
	assert.Equal(t, 0, s.Len())
	assert.Nil(t, s.Chain())
	assert.Equal(t, CodeEmptySelection, s.Validate(morningIndex(t)).Code)
}

func TestSelectionDurationChangeClears(t *testing.T) {
	s := NewSelection(30)
	require.NoError(t, s.Add(TimeWindow{"09:00", "09:30"}))
	require.NoError(t, s.Add(TimeWindow{"09:30", "10:00"}))

	assert.False(t, s.SetDuration(30))
	assert.Equal(t, 2, s.Len())

	assert.True(t, s.SetDuration(60))
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 60, s.Duration())

	var zero Selection
	assert.Equal(t, DefaultGranularityMinutes, zero.Duration())
}
