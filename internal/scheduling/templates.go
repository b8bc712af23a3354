package scheduling

import (
	"errors"
	"fmt"
	"sort"
)

var ErrUnknownTemplate = errors.New("scheduling: unknown availability template")

// DefaultTemplate is applied to practitioners with no explicit configuration
// by the seed tool and the admin "apply template" operation.
const DefaultTemplate = "default"

type templateDay struct {
	days    []Weekday
	windows []TimeWindow
}

var weekdaysOnly = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var templates = map[string][]templateDay{
	DefaultTemplate: {
		{days: weekdaysOnly, windows: []TimeWindow{{"09:00", "12:00"}, {"14:00", "18:00"}}},
	},
	"mornings": {
		{days: weekdaysOnly, windows: []TimeWindow{{"08:00", "12:00"}}},
	},
	"extended": {
		{days: weekdaysOnly, windows: []TimeWindow{{"08:00", "20:00"}}},
		{days: []Weekday{Saturday}, windows: []TimeWindow{{"09:00", "13:00"}}},
	},
}

// TemplateNames lists the available templates alphabetically.
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Template builds a fresh WeeklyAvailability from a named template. Days the
// template does not mention are disabled.
func Template(name string) (WeeklyAvailability, error) {
	layout, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	w := NewWeeklyAvailability()
	for _, td := range layout {
		for _, d := range td.days {
			w[d] = DayAvailability{Enabled: true, Slots: append([]TimeWindow{}, td.windows...)}
		}
	}
	return w, nil
}
