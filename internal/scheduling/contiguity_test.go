package scheduling

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func morningIndex(t *testing.T, appts ...Appointment) SlotIndex {
	t.Helper()
	d := mustDate(t, "2024-01-10")
	slots := GenerateSlots(d, time.UTC, []TimeWindow{{"09:00", "12:00"}}, 30)
	return IndexSlots(AnnotateConflicts(d, time.UTC, slots, appts, ConflictFilter{}))
}

func TestValidateContiguous(t *testing.T) {
	idx := morningIndex(t)

	assert.True(t, ValidateContiguous(TimeWindow{"09:00", "09:30"}, []TimeWindow{{"09:30", "10:00"}, {"10:00", "10:30"}}, idx))
	assert.True(t, ValidateContiguous(TimeWindow{"11:30", "12:00"}, nil, idx))
	assert.False(t, ValidateContiguous(TimeWindow{"09:00", "09:30"}, []TimeWindow{{"10:00", "10:30"}}, idx), "gap")
	assert.False(t, ValidateContiguous(TimeWindow{"09:00", "09:30"}, []TimeWindow{{"09:15", "09:45"}}, idx), "overlap")
}

func TestValidateChainReasons(t *testing.T) {
	d := mustDate(t, "2024-01-10")
	booked := appt(uuid.New(), d, "10:00", "10:30")
	idx := morningIndex(t, booked)

	// Index with quarter-hour starts so an overlapping "next" slot exists.
	quarter := IndexSlots(AnnotateConflicts(d, time.UTC,
		GenerateSlots(d, time.UTC, []TimeWindow{{"09:00", "09:30"}, {"09:15", "09:45"}}, 30), nil, ConflictFilter{}))

	tests := []struct {
		name       string
		primary    TimeWindow
		additional []TimeWindow
		index      SlotIndex
		code       ValidationCode
	}{
		{"nothing selected", TimeWindow{}, nil, idx, CodeEmptySelection},
		{"never open", TimeWindow{"13:00", "13:30"}, nil, idx, CodeSlotUnavailable},
		{"occupied primary", TimeWindow{"10:00", "10:30"}, nil, idx, CodeSlotUnavailable},
		{"occupied member", TimeWindow{"09:30", "10:00"}, []TimeWindow{{"10:00", "10:30"}}, idx, CodeSlotUnavailable},
		{"end does not match slot", TimeWindow{"09:00", "10:00"}, nil, idx, CodeSlotUnavailable},
		{"gap", TimeWindow{"09:00", "09:30"}, []TimeWindow{{"11:00", "11:30"}}, idx, CodeNonContiguous},
		{"reversed order", TimeWindow{"09:30", "10:00"}, []TimeWindow{{"09:00", "09:30"}}, idx, CodeNonContiguous},
		{"overlapping next", TimeWindow{"09:00", "09:30"}, []TimeWindow{{"09:15", "09:45"}}, quarter, CodeNonContiguous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValidateChain(tt.primary, tt.additional, tt.index)
			assert.False(t, v.Valid)
			assert.Equal(t, tt.code, v.Code)
			assert.NotEmpty(t, v.Reason)

			var verr *ValidationError
			require.True(t, errors.As(v.Err(), &verr))
			assert.Equal(t, tt.code, verr.Code)
		})
	}
	assert.NoError(t, ValidateChain(TimeWindow{"09:00", ""}, nil, idx).Err(), "end may be omitted")
}

func TestValidateChainAllowsOwnSlotsWhenEditing(t *testing.T) {
	d := mustDate(t, "2024-01-10")
	a := appt(uuid.New(), d, "09:00", "09:30", TimeWindow{"09:30", "10:00"})
	slots := GenerateSlots(d, time.UTC, []TimeWindow{{"09:00", "12:00"}}, 30)

	plain := IndexSlots(AnnotateConflicts(d, time.UTC, slots, []Appointment{a}, ConflictFilter{}))
	assert.False(t, ValidateContiguous(a.Primary(), a.AdditionalSlots, plain))

	editing := IndexSlots(AnnotateConflicts(d, time.UTC, slots, []Appointment{a}, ConflictFilter{ExcludeAppointmentID: a.ID}))
	assert.True(t, ValidateContiguous(a.Primary(), a.AdditionalSlots, editing))
}
