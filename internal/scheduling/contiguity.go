package scheduling

import "fmt"

// ValidationCode identifies why a booking was refused. Each code has a
// different remedy for the caller.
type ValidationCode string

const (
	CodeSlotUnavailable ValidationCode = "slot_unavailable"
	CodeNonContiguous   ValidationCode = "non_contiguous"
	CodeClinicClosed    ValidationCode = "clinic_closed"
	CodeEmptySelection  ValidationCode = "empty_selection"
)

// Validation is the outcome of checking a proposed booking.
type Validation struct {
	Valid  bool           `json:"valid"`
	Code   ValidationCode `json:"code,omitempty"`
	Reason string         `json:"reason,omitempty"`
}

func valid() Validation { return Validation{Valid: true} }

func invalid(code ValidationCode, format string, args ...any) Validation {
	return Validation{Code: code, Reason: fmt.Sprintf(format, args...)}
}

// ValidationError carries a failed Validation across an error return.
type ValidationError struct {
	Validation
}

func (e *ValidationError) Error() string {
	return "scheduling: " + string(e.Code) + ": " + e.Reason
}

// Err returns nil for a valid outcome and a *ValidationError otherwise.
func (v Validation) Err() error {
	if v.Valid {
		return nil
	}
	return &ValidationError{Validation: v}
}

// SlotIndex maps slot start (HH:MM) to the annotated slot.
type SlotIndex map[string]TimeSlot

func IndexSlots(slots []TimeSlot) SlotIndex {
	idx := make(SlotIndex, len(slots))
	for _, s := range slots {
		idx[s.Start] = s
	}
	return idx
}

// ValidateChain checks the chain [primary, additional...] against index.
// Every member must be a currently available slot, then each adjacent pair
// must satisfy current.end == next.start. Availability is reported before
// contiguity. Exclusion of the appointment being edited happens when index
// is built.
func ValidateChain(primary TimeWindow, additional []TimeWindow, index SlotIndex) Validation {
	if primary.Start == "" {
		return invalid(CodeEmptySelection, "no slot selected")
	}
	chain := make([]TimeWindow, 0, 1+len(additional))
	chain = append(chain, primary)
	chain = append(chain, additional...)

	resolved := make([]TimeSlot, len(chain))
	for i, w := range chain {
		s, ok := index[w.Start]
		if !ok || !s.Available || (w.End != "" && w.End != s.End) {
			return invalid(CodeSlotUnavailable, "slot %s is not available", w)
		}
		resolved[i] = s
	}
	for i := 0; i+1 < len(resolved); i++ {
		cur, next := resolved[i], resolved[i+1]
		if cur.End != next.Start {
			return invalid(CodeNonContiguous, "slots must be contiguous: %s is followed by %s", cur.Window(), next.Window())
		}
	}
	return valid()
}

// ValidateContiguous is the boolean form of ValidateChain.
func ValidateContiguous(primary TimeWindow, additional []TimeWindow, index SlotIndex) bool {
	return ValidateChain(primary, additional, index).Valid
}
