package scheduling

import "github.com/google/uuid"

// OpenIntervals returns the windows during which the practitioner described
// by weekly can be booked on d, before conflicts are considered. Clinic
// closure overrides any practitioner configuration. A missing or disabled
// day yields an empty, non-nil result.
func OpenIntervals(calendar *CalendarPolicy, weekly WeeklyAvailability, d Date) []TimeWindow {
	if calendar.IsClinicClosed(d) {
		return []TimeWindow{}
	}
	day, ok := weekly[d.Weekday()]
	if !ok || !day.Enabled {
		return []TimeWindow{}
	}
	out := append([]TimeWindow{}, day.Slots...)
	sortWindows(out)
	return out
}

// Resolver holds loaded availability for several practitioners.
type Resolver struct {
	calendar     *CalendarPolicy
	availability map[uuid.UUID]WeeklyAvailability
}

func NewResolver(calendar *CalendarPolicy, availability map[uuid.UUID]WeeklyAvailability) *Resolver {
	if availability == nil {
		availability = map[uuid.UUID]WeeklyAvailability{}
	}
	return &Resolver{calendar: calendar, availability: availability}
}

// OpenIntervals resolves a practitioner's open intervals for d. Unknown
// practitioners have no availability.
func (r *Resolver) OpenIntervals(practitionerID uuid.UUID, d Date) []TimeWindow {
	return OpenIntervals(r.calendar, r.availability[practitionerID], d)
}
