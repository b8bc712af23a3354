package scheduling

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func appt(practitioner uuid.UUID, date Date, start, end string, extra ...TimeWindow) Appointment {
	return Appointment{
		ID:              uuid.New(),
		PatientID:       uuid.New(),
		PractitionerID:  practitioner,
		Date:            date,
		StartTime:       start,
		EndTime:         end,
		Duration:        30,
		AdditionalSlots: extra,
		Status:          StatusConfirmed,
		Priority:        PriorityNormal,
	}
}

func occupiedStarts(slots []TimeSlot) []string {
	var out []string
	for _, s := range slots {
		if s.Occupied {
			out = append(out, s.Start)
		}
	}
	return out
}

func TestAnnotateConflicts(t *testing.T) {
	d := mustDate(t, "2024-01-08")
	doc := uuid.New()
	slots := GenerateSlots(d, time.UTC, []TimeWindow{{"09:00", "12:00"}}, 30)

	cancelled := appt(doc, d, "09:00", "09:30")
	cancelled.Status = StatusCancelled
	deleted := appt(doc, d, "09:30", "10:00")
	deleted.Deleted = true
	otherDay := appt(doc, d.AddDays(1), "11:00", "11:30")
	otherDoctor := appt(uuid.New(), d, "11:30", "12:00")
	multi := appt(doc, d, "10:00", "10:30", TimeWindow{"10:30", "11:00"})

	got := AnnotateConflicts(d, time.UTC, slots, []Appointment{cancelled, deleted, otherDay, otherDoctor, multi}, ConflictFilter{PractitionerID: doc})

	assert.Equal(t, []string{"10:00", "10:30"}, occupiedStarts(got))
	for _, s := range got {
		assert.Equal(t, !s.Occupied, s.Available, s.Start)
	}
	assert.False(t, slots[2].Occupied, "input slice is not mutated")
}

func TestAnnotateConflictsWithoutPractitionerFilter(t *testing.T) {
	d := mustDate(t, "2024-01-08")
	slots := GenerateSlots(d, time.UTC, []TimeWindow{{"09:00", "10:00"}}, 30)
	got := AnnotateConflicts(d, time.UTC, slots, []Appointment{appt(uuid.New(), d, "09:15", "09:45")}, ConflictFilter{})
	assert.Equal(t, []string{"09:00", "09:30"}, occupiedStarts(got))
}

func TestAnnotateConflictsExcludesEditedAppointment(t *testing.T) {
	d := mustDate(t, "2024-01-10")
	doc := uuid.New()
	a := appt(doc, d, "09:00", "09:30")
	slots := GenerateSlots(d, time.UTC, []TimeWindow{{"09:00", "10:00"}}, 30)

	blocked := AnnotateConflicts(d, time.UTC, slots, []Appointment{a}, ConflictFilter{PractitionerID: doc})
	assert.True(t, blocked[0].Occupied)

	editing := AnnotateConflicts(d, time.UTC, slots, []Appointment{a}, ConflictFilter{PractitionerID: doc, ExcludeAppointmentID: a.ID})
	assert.True(t, editing[0].Available)
	assert.False(t, editing[0].Occupied)
}

func TestHasConflict(t *testing.T) {
	d := mustDate(t, "2024-01-10")
	a := appt(uuid.New(), d, "09:30", "10:00", TimeWindow{"10:00", "10:30"})

	tests := []struct {
		name       string
		start, end string
		exclude    uuid.UUID
		want       bool
	}{
		{"touching before", "09:00", "09:30", uuid.Nil, false},
		{"overlap start", "09:15", "09:45", uuid.Nil, true},
		{"overlap additional slot", "10:15", "10:45", uuid.Nil, true},
		{"touching after", "10:30", "11:00", uuid.Nil, false},
		{"own slot when editing", "09:30", "10:00", a.ID, false},
		{"unparseable", "soon", "later", uuid.Nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HasConflict(d, time.UTC, tt.start, tt.end, []Appointment{a}, tt.exclude))
		})
	}
}

func TestChainConflicts(t *testing.T) {
	d := mustDate(t, "2024-01-10")
	doc := uuid.New()
	existing := []Appointment{appt(doc, d, "10:00", "10:30")}
	chain := []TimeWindow{{"09:30", "10:00"}, {"10:00", "10:30"}, {"10:30", "11:00"}}

	got := ChainConflicts(d, time.UTC, chain, existing, ConflictFilter{PractitionerID: doc})
	assert.Equal(t, []TimeWindow{{"10:00", "10:30"}}, got)
	assert.Empty(t, ChainConflicts(d, time.UTC, chain[:1], existing, ConflictFilter{PractitionerID: doc}))
}
