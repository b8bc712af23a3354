package scheduling

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInvalidWindow     = errors.New("scheduling: invalid time window")
	ErrOverlappingWindow = errors.New("scheduling: time window overlaps another window")
	ErrWindowIndex       = errors.New("scheduling: time window index out of range")
)

// DayAvailability is one practitioner's configuration for one weekday.
type DayAvailability struct {
	Enabled bool         `json:"enabled"`
	Slots   []TimeWindow `json:"slots"`
}

func (d DayAvailability) clone() DayAvailability {
	return DayAvailability{Enabled: d.Enabled, Slots: append([]TimeWindow{}, d.Slots...)}
}

// WeeklyAvailability maps weekday to the practitioner's bookable windows.
// Windows of one day never overlap; order is not guaranteed.
type WeeklyAvailability map[Weekday]DayAvailability

// NewWeeklyAvailability returns a week with every day disabled and empty.
func NewWeeklyAvailability() WeeklyAvailability {
	w := make(WeeklyAvailability, 7)
	for _, d := range weekOrder {
		w[d] = DayAvailability{Slots: []TimeWindow{}}
	}
	return w
}

func (w WeeklyAvailability) Clone() WeeklyAvailability {
	if w == nil {
		return nil
	}
	out := make(WeeklyAvailability, len(w))
	for d, day := range w {
		out[d] = day.clone()
	}
	return out
}

// SetDayEnabled toggles a day without touching its windows.
func (w WeeklyAvailability) SetDayEnabled(day Weekday, enabled bool) error {
	if !day.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownWeekday, day)
	}
	d := w[day]
	d.Enabled = enabled
	w[day] = d
	return nil
}

// AddWindow appends win to day after checking it against the day's windows.
func (w WeeklyAvailability) AddWindow(day Weekday, win TimeWindow) error {
	if !day.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownWeekday, day)
	}
	d := w[day]
	if err := checkWindow(d.Slots, -1, win); err != nil {
		return err
	}
	d.Slots = append(d.Slots, win)
	w[day] = d
	return nil
}

// UpdateWindow replaces the window at index.
func (w WeeklyAvailability) UpdateWindow(day Weekday, index int, win TimeWindow) error {
	if !day.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownWeekday, day)
	}
	d := w[day]
	if index < 0 || index >= len(d.Slots) {
		return fmt.Errorf("%w: %s[%d]", ErrWindowIndex, day, index)
	}
	if err := checkWindow(d.Slots, index, win); err != nil {
		return err
	}
	slots := append([]TimeWindow{}, d.Slots...)
	slots[index] = win
	d.Slots = slots
	w[day] = d
	return nil
}

// RemoveWindow deletes the window at index.
func (w WeeklyAvailability) RemoveWindow(day Weekday, index int) error {
	if !day.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownWeekday, day)
	}
	d := w[day]
	if index < 0 || index >= len(d.Slots) {
		return fmt.Errorf("%w: %s[%d]", ErrWindowIndex, day, index)
	}
	slots := make([]TimeWindow, 0, len(d.Slots)-1)
	slots = append(slots, d.Slots[:index]...)
	d.Slots = append(slots, d.Slots[index+1:]...)
	w[day] = d
	return nil
}

// Validate checks every day: known weekday names, well formed windows and no
// overlap within a day.
func (w WeeklyAvailability) Validate() error {
	for day, d := range w {
		if !day.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownWeekday, day)
		}
		for i, win := range d.Slots {
			if err := checkWindow(d.Slots[:i], -1, win); err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
		}
	}
	return nil
}

// checkWindow validates win and its overlap with existing, ignoring the
// entry at skip.
func checkWindow(existing []TimeWindow, skip int, win TimeWindow) error {
	if err := win.Validate(); err != nil {
		return err
	}
	start, end, _ := win.minutes()
	for i, other := range existing {
		if i == skip {
			continue
		}
		otherStart, otherEnd, err := other.minutes()
		if err != nil {
			continue
		}
		if start < otherEnd && end > otherStart {
			return fmt.Errorf("%w: %s and %s", ErrOverlappingWindow, win, other)
		}
	}
	return nil
}

// sortWindows orders by start; unparseable windows go last in input order.
func sortWindows(windows []TimeWindow) {
	key := func(w TimeWindow) int {
		m, err := parseClock(w.Start)
		if err != nil {
			return minutesPerDay + 1
		}
		return m
	}
	sort.SliceStable(windows, func(i, j int) bool {
		return key(windows[i]) < key(windows[j])
	})
}
