package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// ConflictFilter narrows which appointments can block a slot. Zero values
// disable the corresponding filter.
type ConflictFilter struct {
	// PractitionerID limits blocking appointments to one practitioner.
	PractitionerID uuid.UUID
	// ExcludeAppointmentID drops the appointment being edited so it does not
	// conflict with itself.
	ExcludeAppointmentID uuid.UUID
}

// blockingIntervals collects every interval on d held by a blocking
// appointment that passes the filter.
func blockingIntervals(d Date, loc *time.Location, appts []Appointment, f ConflictFilter) []Interval {
	var busy []Interval
	for _, a := range appts {
		if !a.Blocks() || a.Date != d {
			continue
		}
		if f.ExcludeAppointmentID != uuid.Nil && a.ID == f.ExcludeAppointmentID {
			continue
		}
		if f.PractitionerID != uuid.Nil && a.PractitionerID != f.PractitionerID {
			continue
		}
		for _, w := range a.Windows() {
			iv, err := w.Interval(d, loc)
			if err != nil {
				continue
			}
			busy = append(busy, iv)
		}
	}
	return busy
}

func overlapsAny(iv Interval, busy []Interval) bool {
	for _, b := range busy {
		if iv.Overlaps(b) {
			return true
		}
	}
	return false
}

// AnnotateConflicts returns a copy of slots with Available and Occupied set
// against appts. A slot that cannot be parsed is reported unavailable but not
// occupied.
func AnnotateConflicts(d Date, loc *time.Location, slots []TimeSlot, appts []Appointment, f ConflictFilter) []TimeSlot {
	if loc == nil {
		loc = time.UTC
	}
	busy := blockingIntervals(d, loc, appts, f)
	out := make([]TimeSlot, len(slots))
	for i, s := range slots {
		out[i] = TimeSlot{Start: s.Start, End: s.End}
		iv, err := s.Window().Interval(d, loc)
		if err != nil {
			continue
		}
		occupied := overlapsAny(iv, busy)
		out[i].Available = !occupied
		out[i].Occupied = occupied
	}
	return out
}

// HasConflict reports whether [start, end) on d overlaps any blocking
// appointment other than excludeID. A window that cannot be parsed always
// conflicts since it can never be booked.
func HasConflict(d Date, loc *time.Location, start, end string, appts []Appointment, excludeID uuid.UUID) bool {
	if loc == nil {
		loc = time.UTC
	}
	iv, err := TimeWindow{Start: start, End: end}.Interval(d, loc)
	if err != nil {
		return true
	}
	return overlapsAny(iv, blockingIntervals(d, loc, appts, ConflictFilter{ExcludeAppointmentID: excludeID}))
}

// ChainConflicts returns the windows of chain that overlap a blocking
// appointment. Used by the write path to re-check a booking just before it
// is persisted.
func ChainConflicts(d Date, loc *time.Location, chain []TimeWindow, appts []Appointment, f ConflictFilter) []TimeWindow {
	if loc == nil {
		loc = time.UTC
	}
	busy := blockingIntervals(d, loc, appts, f)
	var out []TimeWindow
	for _, w := range chain {
		iv, err := w.Interval(d, loc)
		if err != nil || overlapsAny(iv, busy) {
			out = append(out, w)
		}
	}
	return out
}
