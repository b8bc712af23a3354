package scheduling

import "sort"

// DayStatus says whether the clinic opens on a weekday at all.
type DayStatus struct {
	Enabled bool `json:"enabled"`
}

// ClosedDate is an explicit exception such as a public holiday.
type ClosedDate struct {
	Date   Date   `json:"date"`
	Reason string `json:"reason,omitempty"`
}

// ClinicSettings is the clinic-wide calendar: which weekdays it opens and
// which specific dates it is closed regardless of weekday.
type ClinicSettings struct {
	OperatingHours map[Weekday]DayStatus `json:"operatingHours"`
	ClosedDates    []ClosedDate          `json:"closedDates"`
}

// DefaultClinicSettings opens monday to friday with no closed dates.
func DefaultClinicSettings() *ClinicSettings {
	hours := make(map[Weekday]DayStatus, 7)
	for _, d := range weekOrder {
		hours[d] = DayStatus{Enabled: d != Saturday && d != Sunday}
	}
	return &ClinicSettings{OperatingHours: hours, ClosedDates: []ClosedDate{}}
}

// ClosedOn returns the closed-date entry matching d.
func (s *ClinicSettings) ClosedOn(d Date) (ClosedDate, bool) {
	for _, cd := range s.ClosedDates {
		if cd.Date == d {
			return cd, true
		}
	}
	return ClosedDate{}, false
}

// AddClosedDate inserts cd keeping the list sorted. An existing entry for the
// same day has its reason replaced.
func (s *ClinicSettings) AddClosedDate(cd ClosedDate) {
	for i := range s.ClosedDates {
		if s.ClosedDates[i].Date == cd.Date {
			s.ClosedDates[i].Reason = cd.Reason
			return
		}
	}
	s.ClosedDates = append(s.ClosedDates, cd)
	sort.Slice(s.ClosedDates, func(i, j int) bool {
		return s.ClosedDates[i].Date.Before(s.ClosedDates[j].Date)
	})
}

// RemoveClosedDate reports whether d was present.
func (s *ClinicSettings) RemoveClosedDate(d Date) bool {
	for i, cd := range s.ClosedDates {
		if cd.Date == d {
			s.ClosedDates = append(s.ClosedDates[:i], s.ClosedDates[i+1:]...)
			return true
		}
	}
	return false
}

// Validate rejects operating-hours keys that are not weekday names.
func (s *ClinicSettings) Validate() error {
	for d := range s.OperatingHours {
		if !d.Valid() {
			return ErrUnknownWeekday
		}
	}
	return nil
}

// ClinicState is the open/closed answer used when no settings are loaded.
type ClinicState int

const (
	ClinicOpen ClinicState = iota
	ClinicClosed
)

// UnknownClinicState is the answer given while clinic settings are missing.
// Availability wins over strictness: the clinic is treated as open.
const UnknownClinicState = ClinicOpen

// ClosureReason explains why IsClinicClosed returned true.
type ClosureReason string

const (
	ClosureNone                ClosureReason = ""
	ClosureWeekday             ClosureReason = "weekday_closed"
	ClosureClosedDate          ClosureReason = "closed_date"
	ClosureSettingsUnavailable ClosureReason = "settings_unavailable"
)

// CalendarPolicy answers clinic-level open/closed questions for a date.
type CalendarPolicy struct {
	settings *ClinicSettings
	unknown  ClinicState
}

// NewCalendarPolicy accepts nil settings; the policy then applies
// UnknownClinicState.
func NewCalendarPolicy(settings *ClinicSettings) *CalendarPolicy {
	return &CalendarPolicy{settings: settings, unknown: UnknownClinicState}
}

// WithUnknownState overrides the state applied while settings are missing.
func (p *CalendarPolicy) WithUnknownState(state ClinicState) *CalendarPolicy {
	p.unknown = state
	return p
}

// Loaded reports whether clinic settings are present.
func (p *CalendarPolicy) Loaded() bool {
	return p != nil && p.settings != nil
}

// Closure returns why the clinic is closed on d, or ClosureNone. A weekday
// explicitly disabled closes the clinic; a weekday with no entry does not.
func (p *CalendarPolicy) Closure(d Date) ClosureReason {
	if !p.Loaded() {
		if p != nil && p.unknown == ClinicClosed {
			return ClosureSettingsUnavailable
		}
		return ClosureNone
	}
	if status, ok := p.settings.OperatingHours[d.Weekday()]; ok && !status.Enabled {
		return ClosureWeekday
	}
	if _, ok := p.settings.ClosedOn(d); ok {
		return ClosureClosedDate
	}
	return ClosureNone
}

// IsClinicClosed reports whether no practitioner can be booked on d.
func (p *CalendarPolicy) IsClinicClosed(d Date) bool {
	return p.Closure(d) != ClosureNone
}
