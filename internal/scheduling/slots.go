package scheduling

import "time"

// DefaultGranularityMinutes is the slot length when none is requested.
const DefaultGranularityMinutes = 30

// TimeSlot is one bookable unit. Occupied is set only when an appointment
// blocks the slot; it never says which one.
type TimeSlot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
	Occupied  bool   `json:"occupied,omitempty"`
}

func (s TimeSlot) Window() TimeWindow {
	return TimeWindow{Start: s.Start, End: s.End}
}

// GenerateSlots cuts each open interval into consecutive slots of
// granularityMinutes, walking absolute instants built from d and the HH:MM
// bounds in loc. A trailing remainder shorter than one slot is dropped.
// Unparseable or empty intervals are skipped and a start already emitted by
// an earlier interval is not emitted twice. On daylight-saving transition
// days a slot whose HH:MM labels do not span exactly granularityMinutes is
// skipped, so every label pair satisfies end = start + duration.
// Availability is left unset.
func GenerateSlots(d Date, loc *time.Location, intervals []TimeWindow, granularityMinutes int) []TimeSlot {
	if granularityMinutes <= 0 {
		granularityMinutes = DefaultGranularityMinutes
	}
	if loc == nil {
		loc = time.UTC
	}
	step := time.Duration(granularityMinutes) * time.Minute

	slots := []TimeSlot{}
	seen := make(map[string]struct{})
	for _, iv := range intervals {
		span, err := iv.Interval(d, loc)
		if err != nil {
			continue
		}
		for t := span.Start; !t.Add(step).After(span.End); t = t.Add(step) {
			start := clockLabel(t, d, loc)
			if _, dup := seen[start]; dup {
				continue
			}
			w := TimeWindow{Start: start, End: clockLabel(t.Add(step), d, loc)}
			if m, err := w.Minutes(); err != nil || m != granularityMinutes {
				continue
			}
			seen[start] = struct{}{}
			slots = append(slots, TimeSlot{Start: w.Start, End: w.End})
		}
	}
	return slots
}
