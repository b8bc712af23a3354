package scheduling

import "errors"

var (
	ErrNotContiguous   = errors.New("scheduling: slot is not contiguous with the selection")
	ErrAlreadySelected = errors.New("scheduling: slot already selected")
)

// Selection is the slot chain a user is assembling for one appointment.
// The zero value is an empty selection with the default duration.
type Selection struct {
	duration   int
	primary    *TimeWindow
	additional []TimeWindow
}

func NewSelection(durationMinutes int) *Selection {
	return &Selection{duration: durationMinutes}
}

func (s *Selection) Duration() int {
	if s.duration <= 0 {
		return DefaultGranularityMinutes
	}
	return s.duration
}

// SetDuration changes the slot length. Slot boundaries differ between
// durations, so any change clears the selection. Reports whether it cleared.
func (s *Selection) SetDuration(minutes int) bool {
	if minutes == s.Duration() {
		return false
	}
	s.duration = minutes
	s.Clear()
	return true
}

// Add selects w. The first slot becomes the primary; later slots must start
// where the current tail ends.
func (s *Selection) Add(w TimeWindow) error {
	if s.primary == nil {
		p := w
		s.primary = &p
		return nil
	}
	for _, m := range s.Chain() {
		if m.Start == w.Start {
			return ErrAlreadySelected
		}
	}
	if s.tail().End != w.Start {
		return ErrNotContiguous
	}
	s.additional = append(s.additional, w)
	return nil
}

// Remove drops the member starting at start and reports whether it was
// selected. Removing the primary promotes the next member; removing any other
// member drops only that member, even if the chain is no longer contiguous.
func (s *Selection) Remove(start string) bool {
	if s.primary == nil {
		return false
	}
	if s.primary.Start == start {
		if len(s.additional) == 0 {
			s.primary = nil
			return true
		}
		next := s.additional[0]
		s.primary = &next
		s.additional = append([]TimeWindow(nil), s.additional[1:]...)
		return true
	}
	for i, m := range s.additional {
		if m.Start == start {
			rest := make([]TimeWindow, 0, len(s.additional)-1)
			rest = append(rest, s.additional[:i]...)
			s.additional = append(rest, s.additional[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Selection) Clear() {
	s.primary = nil
	s.additional = nil
}

func (s *Selection) Len() int {
	if s.primary == nil {
		return 0
	}
	return 1 + len(s.additional)
}

func (s *Selection) Primary() (TimeWindow, bool) {
	if s.primary == nil {
		return TimeWindow{}, false
	}
	return *s.primary, true
}

func (s *Selection) Additional() []TimeWindow {
	return append([]TimeWindow(nil), s.additional...)
}

// Chain returns primary followed by the additional slots.
func (s *Selection) Chain() []TimeWindow {
	if s.primary == nil {
		return nil
	}
	return append([]TimeWindow{*s.primary}, s.additional...)
}

func (s *Selection) tail() TimeWindow {
	if n := len(s.additional); n > 0 {
		return s.additional[n-1]
	}
	return *s.primary
}

// Validate checks the current chain against index.
func (s *Selection) Validate(index SlotIndex) Validation {
	p, ok := s.Primary()
	if !ok {
		return invalid(CodeEmptySelection, "no slot selected")
	}
	return ValidateChain(p, s.additional, index)
}
