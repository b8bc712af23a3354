package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdavido74/medical-pro/pkg/logging"
)

type stubClinic struct {
	settings *ClinicSettings
	err      error
}

func (s stubClinic) ClinicSettings(context.Context) (*ClinicSettings, error) {
	return s.settings, s.err
}

type stubAvailability struct {
	weekly map[uuid.UUID]WeeklyAvailability
	err    error
	calls  int
}

func (s *stubAvailability) DayAvailability(_ context.Context, id uuid.UUID, wd Weekday) (*DayAvailability, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	day, ok := s.weekly[id][wd]
	if !ok {
		return nil, nil
	}
	return &day, nil
}

type stubAppointments struct {
	appts     []Appointment
	err       error
	lastScope Scope
	calls     int
}

func (s *stubAppointments) ListAppointments(_ context.Context, _ uuid.UUID, _ Date, scope Scope) ([]Appointment, error) {
	s.calls++
	s.lastScope = scope
	return s.appts, s.err
}

type recordingObserver struct {
	outcomes    []string
	validations []string
}

func (r *recordingObserver) ObservePlan(outcome string, _ int, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func (r *recordingObserver) ObserveValidation(result string) {
	r.validations = append(r.validations, result)
}

type plannerFixture struct {
	doctor       uuid.UUID
	availability *stubAvailability
	appointments *stubAppointments
	observer     *recordingObserver
	planner      *Planner
}

func newPlannerFixture(t *testing.T, clinic ClinicSettingsSource, appts ...Appointment) *plannerFixture {
	t.Helper()
	doctor := uuid.New()
	weekly, err := Template(DefaultTemplate)
	require.NoError(t, err)

	f := &plannerFixture{
		doctor:       doctor,
		availability: &stubAvailability{weekly: map[uuid.UUID]WeeklyAvailability{doctor: weekly}},
		appointments: &stubAppointments{appts: appts},
		observer:     &recordingObserver{},
	}
	f.planner = NewPlanner(clinic, f.availability, f.appointments,
		WithLogger(logging.Discard()),
		WithObserver(f.observer),
	)
	return f
}

func TestPlannerDefaultTemplateScenario(t *testing.T) {
	monday := mustDate(t, "2024-01-08")
	f := newPlannerFixture(t, stubClinic{settings: DefaultClinicSettings()})
	f.appointments.appts = []Appointment{appt(f.doctor, monday, "10:00", "10:30")}

	plan, err := f.planner.DaySlots(context.Background(), Query{PractitionerID: f.doctor, Date: monday, DurationMinutes: 30})
	require.NoError(t, err)

	assert.False(t, plan.ClinicClosed)
	assert.Equal(t, []string{
		"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
		"14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00", "17:30",
	}, starts(plan.Slots))
	assert.Equal(t, []string{"10:00"}, occupiedStarts(plan.Slots))
	for _, s := range plan.Slots {
		assert.Equal(t, s.Start != "10:00", s.Available, s.Start)
	}
	assert.Equal(t, ScopeAll, f.appointments.lastScope)
	assert.Equal(t, []string{OutcomeOpen}, f.observer.outcomes)
}

func TestPlannerIsIdempotent(t *testing.T) {
	monday := mustDate(t, "2024-01-08")
	f := newPlannerFixture(t, stubClinic{settings: DefaultClinicSettings()})
	f.appointments.appts = []Appointment{
		appt(f.doctor, monday, "09:30", "10:00", TimeWindow{"10:00", "10:30"}),
		appt(f.doctor, monday, "15:00", "16:00"),
	}
	q := Query{PractitionerID: f.doctor, Date: monday, DurationMinutes: 30, Scope: ScopeVisible}

	first, err := f.planner.DaySlots(context.Background(), q)
	require.NoError(t, err)
	second, err := f.planner.DaySlots(context.Background(), q)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Equal(t, ScopeVisible, f.appointments.lastScope)
}

func TestPlannerClinicClosed(t *testing.T) {
	settings := DefaultClinicSettings()
	settings.AddClosedDate(ClosedDate{Date: NewDate(2024, 1, 9)})
	f := newPlannerFixture(t, stubClinic{settings: settings})

	tests := []struct {
		date   string
		reason ClosureReason
	}{
		{"2024-01-09", ClosureClosedDate},
		{"2024-01-13", ClosureWeekday},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			plan, err := f.planner.DaySlots(context.Background(), Query{PractitionerID: f.doctor, Date: mustDate(t, tt.date)})
			require.NoError(t, err)
			assert.True(t, plan.ClinicClosed)
			assert.Equal(t, tt.reason, plan.ClosureReason)
			assert.NotNil(t, plan.Slots)
			assert.Empty(t, plan.Slots)
		})
	}
	assert.Zero(t, f.availability.calls, "closure short-circuits practitioner lookups")
	assert.Zero(t, f.appointments.calls)
}

func TestPlannerFailsOpenWhenSettingsUnavailable(t *testing.T) {
	saturday := mustDate(t, "2024-01-13")
	for name, clinic := range map[string]ClinicSettingsSource{
		"not found":   stubClinic{err: ErrSettingsNotFound},
		"redis error": stubClinic{err: errors.New("connection refused")},
		"no source":   nil,
	} {
		t.Run(name, func(t *testing.T) {
			f := newPlannerFixture(t, clinic)
			require.NoError(t, f.availability.weekly[f.doctor].AddWindow(Saturday, TimeWindow{"09:00", "10:00"}))
			require.NoError(t, f.availability.weekly[f.doctor].SetDayEnabled(Saturday, true))

			plan, err := f.planner.DaySlots(context.Background(), Query{PractitionerID: f.doctor, Date: saturday})
			require.NoError(t, err)
			assert.False(t, plan.ClinicClosed)
			assert.Equal(t, []string{"09:00", "09:30"}, starts(plan.Slots))
		})
	}
}

func TestPlannerNoAvailability(t *testing.T) {
	f := newPlannerFixture(t, stubClinic{settings: DefaultClinicSettings()})

	plan, err := f.planner.DaySlots(context.Background(), Query{PractitionerID: uuid.New(), Date: mustDate(t, "2024-01-08")})
	require.NoError(t, err)
	assert.False(t, plan.ClinicClosed)
	assert.Empty(t, plan.Slots)
	assert.Zero(t, f.appointments.calls)
	assert.Equal(t, []string{OutcomeNoAvailability}, f.observer.outcomes)
}

func TestPlannerSourceErrors(t *testing.T) {
	monday := mustDate(t, "2024-01-08")

	f := newPlannerFixture(t, stubClinic{settings: DefaultClinicSettings()})
	f.availability.err = errors.New("db down")
	_, err := f.planner.DaySlots(context.Background(), Query{PractitionerID: f.doctor, Date: monday})
	assert.ErrorContains(t, err, "load availability")

	f = newPlannerFixture(t, stubClinic{settings: DefaultClinicSettings()})
	f.appointments.err = errors.New("timeout")
	_, err = f.planner.DaySlots(context.Background(), Query{PractitionerID: f.doctor, Date: monday})
	assert.ErrorContains(t, err, "load appointments")
}

func TestPlannerDurationChangesGranularity(t *testing.T) {
	monday := mustDate(t, "2024-01-08")
	f := newPlannerFixture(t, stubClinic{settings: DefaultClinicSettings()})

	plan, err := f.planner.DaySlots(context.Background(), Query{PractitionerID: f.doctor, Date: monday, DurationMinutes: 60})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "11:00", "14:00", "15:00", "16:00", "17:00"}, starts(plan.Slots))
	assert.Equal(t, 60, plan.Duration)
}

func TestPlannerValidateBooking(t *testing.T) {
	wednesday := mustDate(t, "2024-01-10")
	f := newPlannerFixture(t, stubClinic{settings: DefaultClinicSettings()})
	own := appt(f.doctor, wednesday, "09:00", "09:30")
	f.appointments.appts = []Appointment{own, appt(f.doctor, wednesday, "11:00", "11:30")}

	t.Run("edit keeps own slot", func(t *testing.T) {
		v, plan, err := f.planner.ValidateBooking(context.Background(), BookingRequest{
			PractitionerID:       f.doctor,
			Date:                 wednesday,
			DurationMinutes:      30,
			Primary:              own.Primary(),
			ExcludeAppointmentID: own.ID,
		})
		require.NoError(t, err)
		assert.True(t, v.Valid)
		assert.NotNil(t, plan)
	})
	t.Run("new booking on own slot conflicts", func(t *testing.T) {
		v, _, err := f.planner.ValidateBooking(context.Background(), BookingRequest{
			PractitionerID: f.doctor, Date: wednesday, Primary: own.Primary(),
		})
		require.NoError(t, err)
		assert.Equal(t, CodeSlotUnavailable, v.Code)
	})
	t.Run("multi slot chain", func(t *testing.T) {
		v, _, err := f.planner.ValidateBooking(context.Background(), BookingRequest{
			PractitionerID: f.doctor, Date: wednesday,
			Primary:    TimeWindow{"09:30", "10:00"},
			Additional: []TimeWindow{{"10:00", "10:30"}, {"10:30", "11:00"}},
		})
		require.NoError(t, err)
		assert.True(t, v.Valid)
	})
	t.Run("chain runs into a booking", func(t *testing.T) {
		v, _, err := f.planner.ValidateBooking(context.Background(), BookingRequest{
			PractitionerID: f.doctor, Date: wednesday,
			Primary:    TimeWindow{"10:30", "11:00"},
			Additional: []TimeWindow{{"11:00", "11:30"}},
		})
		require.NoError(t, err)
		assert.Equal(t, CodeSlotUnavailable, v.Code)
	})
	t.Run("clinic closed", func(t *testing.T) {
		v, _, err := f.planner.ValidateBooking(context.Background(), BookingRequest{
			PractitionerID: f.doctor, Date: mustDate(t, "2024-01-14"), Primary: TimeWindow{"09:00", "09:30"},
		})
		require.NoError(t, err)
		assert.Equal(t, CodeClinicClosed, v.Code)
	})

	assert.Equal(t, []string{"valid", "slot_unavailable", "valid", "slot_unavailable", "clinic_closed"}, f.observer.validations)
}
