// Package scheduling turns clinic operating hours, practitioner weekly
// availability and the appointment book into bookable slots, and validates
// single and multi-slot bookings against them.
//
// Everything in this package is synchronous and free of I/O except Planner,
// which fetches its inputs through the source interfaces before running the
// resolve, generate and annotate pipeline.
package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"

	minutesPerDay = 24 * 60
	endOfDay      = "24:00"
)

var (
	ErrInvalidDate    = errors.New("scheduling: invalid date")
	ErrInvalidClock   = errors.New("scheduling: invalid HH:MM time")
	ErrUnknownWeekday = errors.New("scheduling: unknown weekday")
)

// Weekday is the lowercase English day name used as the key of weekly
// configuration maps.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

var weekOrder = [...]Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// Weekdays returns monday..sunday in order.
func Weekdays() []Weekday {
	return append([]Weekday(nil), weekOrder[:]...)
}

// ParseWeekday accepts a day name in any case.
func ParseWeekday(s string) (Weekday, error) {
	w := Weekday(strings.ToLower(strings.TrimSpace(s)))
	if !w.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownWeekday, s)
	}
	return w, nil
}

// WeekdayFromNumber maps ISO numbering (1 = monday, 7 = sunday).
func WeekdayFromNumber(n int) (Weekday, error) {
	if n < 1 || n > 7 {
		return "", fmt.Errorf("%w: number %d", ErrUnknownWeekday, n)
	}
	return weekOrder[n-1], nil
}

// WeekdayOf converts a time.Weekday.
func WeekdayOf(d time.Weekday) Weekday {
	if d == time.Sunday {
		return Sunday
	}
	return weekOrder[int(d)-1]
}

// Number returns the ISO weekday number, or 0 for an invalid value.
func (w Weekday) Number() int {
	for i, d := range weekOrder {
		if d == w {
			return i + 1
		}
	}
	return 0
}

func (w Weekday) Valid() bool { return w.Number() != 0 }

// Date is a calendar day with no time-of-day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalises out-of-range values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Time returns midnight UTC of d. Used for DATE columns.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) Weekday() Weekday { return WeekdayOf(d.Time().Weekday()) }

func (d Date) AddDays(n int) Date { return DateOf(d.Time().AddDate(0, 0, n)) }

func (d Date) Before(o Date) bool { return d.Time().Before(o.Time()) }

// At combines d with an HH:MM clock reading into an absolute instant in loc.
// "24:00" is midnight at the end of d.
func (d Date) At(hhmm string, loc *time.Location) (time.Time, error) {
	minutes, err := parseClock(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(d.Year, d.Month, d.Day, 0, minutes, 0, 0, loc), nil
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// parseClock returns minutes since midnight for an HH:MM string.
func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == endOfDay {
		return minutesPerDay, nil
	}
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	if minutes == minutesPerDay {
		return endOfDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// clockLabel renders t as HH:MM relative to day d, using 24:00 for the
// midnight that closes d.
func clockLabel(t time.Time, d Date, loc *time.Location) string {
	local := t.In(loc)
	if DateOf(local) != d && local.Hour() == 0 && local.Minute() == 0 {
		return endOfDay
	}
	return local.Format(clockLayout)
}

// TimeWindow is a [Start, End) range of HH:MM clock readings on one day.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func (w TimeWindow) String() string { return w.Start + "-" + w.End }

func (w TimeWindow) minutes() (int, int, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err := parseClock(w.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// Validate requires parseable clocks with start strictly before end.
func (w TimeWindow) Validate() error {
	start, end, err := w.minutes()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWindow, err)
	}
	if start >= end {
		return fmt.Errorf("%w: %s ends before it starts", ErrInvalidWindow, w)
	}
	return nil
}

// Minutes returns the wall-clock length of a valid window.
func (w TimeWindow) Minutes() (int, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	start, end, _ := w.minutes()
	return end - start, nil
}

// WithLength fills an empty End with Start plus minutes. Windows that
// already have an End, or whose Start does not parse, are returned as is.
func (w TimeWindow) WithLength(minutes int) TimeWindow {
	if w.End != "" || minutes <= 0 {
		return w
	}
	start, err := parseClock(w.Start)
	if err != nil || start+minutes > minutesPerDay {
		return w
	}
	w.End = formatClock(start + minutes)
	return w
}

// Interval resolves w to absolute instants on d.
func (w TimeWindow) Interval(d Date, loc *time.Location) (Interval, error) {
	start, err := d.At(w.Start, loc)
	if err != nil {
		return Interval{}, err
	}
	end, err := d.At(w.End, loc)
	if err != nil {
		return Interval{}, err
	}
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: %s", ErrInvalidWindow, w)
	}
	return Interval{Start: start, End: end}, nil
}

// Interval is a half-open [Start, End) span of absolute time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether a and b share any instant. Touching endpoints do
// not overlap.
func (a Interval) Overlaps(b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}
