package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdavido74/medical-pro/pkg/logging"
)

var plannerTracer = otel.Tracer("medicalpro.internal.scheduling.planner")

// ErrSettingsNotFound is returned by a ClinicSettingsSource that has no
// settings stored yet.
var ErrSettingsNotFound = errors.New("scheduling: clinic settings not found")

// ClinicSettingsSource loads the clinic calendar.
type ClinicSettingsSource interface {
	ClinicSettings(ctx context.Context) (*ClinicSettings, error)
}

// AvailabilitySource loads one practitioner's configuration for one weekday.
// A nil result with a nil error means nothing is configured.
type AvailabilitySource interface {
	DayAvailability(ctx context.Context, practitionerID uuid.UUID, weekday Weekday) (*DayAvailability, error)
}

// Scope declares whether appointments are permission filtered.
type Scope string

const (
	// ScopeVisible returns only appointments the caller may see.
	ScopeVisible Scope = "visible"
	// ScopeAll returns every appointment. Slots blocked by appointments the
	// caller cannot see are still reported occupied.
	ScopeAll Scope = "all"
)

// AppointmentSource lists a practitioner's appointments on one day.
type AppointmentSource interface {
	ListAppointments(ctx context.Context, practitionerID uuid.UUID, d Date, scope Scope) ([]Appointment, error)
}

// PlanObserver receives pipeline outcomes. The metrics package implements it.
type PlanObserver interface {
	ObservePlan(outcome string, slots int, elapsed time.Duration)
	ObserveValidation(result string)
}

// Plan outcomes reported to PlanObserver.
const (
	OutcomeOpen           = "open"
	OutcomeClinicClosed   = "clinic_closed"
	OutcomeNoAvailability = "no_availability"
)

// Query asks for the slots of one practitioner on one day.
type Query struct {
	PractitionerID       uuid.UUID
	Date                 Date
	DurationMinutes      int
	ExcludeAppointmentID uuid.UUID
	Scope                Scope
}

// DayPlan is the annotated slot list for a Query.
type DayPlan struct {
	PractitionerID uuid.UUID     `json:"practitionerId"`
	Date           Date          `json:"date"`
	Duration       int           `json:"duration"`
	ClinicClosed   bool          `json:"clinicClosed"`
	ClosureReason  ClosureReason `json:"closureReason,omitempty"`
	Slots          []TimeSlot    `json:"slots"`
}

// Index returns the plan's slots keyed by start.
func (p *DayPlan) Index() SlotIndex { return IndexSlots(p.Slots) }

// BookingRequest is a proposed chain of slots for one appointment.
type BookingRequest struct {
	PractitionerID       uuid.UUID    `json:"practitionerId"`
	Date                 Date         `json:"date"`
	DurationMinutes      int          `json:"duration"`
	Primary              TimeWindow   `json:"primary"`
	Additional           []TimeWindow `json:"additionalSlots"`
	ExcludeAppointmentID uuid.UUID    `json:"excludeAppointmentId"`
}

// Chain returns the primary window followed by the additional ones.
func (r BookingRequest) Chain() []TimeWindow {
	return append([]TimeWindow{r.Primary}, r.Additional...)
}

type PlannerOption func(*Planner)

// WithLocation sets the zone slot instants are built in. Defaults to UTC.
func WithLocation(loc *time.Location) PlannerOption {
	return func(p *Planner) {
		if loc != nil {
			p.loc = loc
		}
	}
}

// WithGranularity sets the duration used when a query does not give one.
func WithGranularity(minutes int) PlannerOption {
	return func(p *Planner) {
		if minutes > 0 {
			p.granularity = minutes
		}
	}
}

func WithLogger(logger *logging.Logger) PlannerOption {
	return func(p *Planner) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithObserver(o PlanObserver) PlannerOption {
	return func(p *Planner) { p.observer = o }
}

// Planner fetches clinic settings, availability and appointments, then runs
// the resolve, generate and annotate pipeline. Each call is independent; a
// newer call simply supersedes an older one.
type Planner struct {
	clinic       ClinicSettingsSource
	availability AvailabilitySource
	appointments AppointmentSource

	loc         *time.Location
	granularity int
	logger      *logging.Logger
	observer    PlanObserver
}

func NewPlanner(clinic ClinicSettingsSource, availability AvailabilitySource, appointments AppointmentSource, opts ...PlannerOption) *Planner {
	p := &Planner{
		clinic:       clinic,
		availability: availability,
		appointments: appointments,
		loc:          time.UTC,
		granularity:  DefaultGranularityMinutes,
		logger:       logging.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Location returns the zone the planner builds slot instants in.
func (p *Planner) Location() *time.Location { return p.loc }

// Granularity returns the default slot length in minutes.
func (p *Planner) Granularity() int { return p.granularity }

// DaySlots computes the slot list for q. Missing clinic settings fail open;
// missing practitioner configuration yields an empty plan. Only source
// failures for availability or appointments are returned as errors.
func (p *Planner) DaySlots(ctx context.Context, q Query) (*DayPlan, error) {
	ctx, span := plannerTracer.Start(ctx, "scheduling.day_slots")
	defer span.End()
	began := time.Now()

	duration := q.DurationMinutes
	if duration <= 0 {
		duration = p.granularity
	}
	span.SetAttributes(
		attribute.String("medicalpro.practitioner_id", q.PractitionerID.String()),
		attribute.String("medicalpro.date", q.Date.String()),
		attribute.Int("medicalpro.duration_minutes", duration),
	)
	plan := &DayPlan{PractitionerID: q.PractitionerID, Date: q.Date, Duration: duration, Slots: []TimeSlot{}}

	policy := NewCalendarPolicy(p.loadSettings(ctx))
	if reason := policy.Closure(q.Date); reason != ClosureNone {
		plan.ClinicClosed = true
		plan.ClosureReason = reason
		p.finish(span, OutcomeClinicClosed, plan, began)
		return plan, nil
	}

	weekday := q.Date.Weekday()
	day, err := p.availability.DayAvailability(ctx, q.PractitionerID, weekday)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scheduling: load availability: %w", err)
	}
	weekly := WeeklyAvailability{}
	if day != nil {
		weekly[weekday] = *day
	}
	intervals := OpenIntervals(policy, weekly, q.Date)
	if len(intervals) == 0 {
		p.finish(span, OutcomeNoAvailability, plan, began)
		return plan, nil
	}

	scope := q.Scope
	if scope == "" {
		scope = ScopeAll
	}
	appts, err := p.appointments.ListAppointments(ctx, q.PractitionerID, q.Date, scope)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("scheduling: load appointments: %w", err)
	}

	slots := GenerateSlots(q.Date, p.loc, intervals, duration)
	plan.Slots = AnnotateConflicts(q.Date, p.loc, slots, appts, ConflictFilter{
		PractitionerID:       q.PractitionerID,
		ExcludeAppointmentID: q.ExcludeAppointmentID,
	})
	p.finish(span, OutcomeOpen, plan, began)
	return plan, nil
}

// ValidateBooking recomputes the day against the unfiltered appointment set
// and checks req's chain. The plan used is returned alongside the outcome.
func (p *Planner) ValidateBooking(ctx context.Context, req BookingRequest) (Validation, *DayPlan, error) {
	plan, err := p.DaySlots(ctx, Query{
		PractitionerID:       req.PractitionerID,
		Date:                 req.Date,
		DurationMinutes:      req.DurationMinutes,
		ExcludeAppointmentID: req.ExcludeAppointmentID,
		Scope:                ScopeAll,
	})
	if err != nil {
		return Validation{}, nil, err
	}
	var v Validation
	if plan.ClinicClosed {
		v = invalid(CodeClinicClosed, "clinic is closed on %s", req.Date)
	} else {
		v = ValidateChain(req.Primary, req.Additional, plan.Index())
	}
	if p.observer != nil {
		result := "valid"
		if !v.Valid {
			result = string(v.Code)
		}
		p.observer.ObserveValidation(result)
	}
	return v, plan, nil
}

func (p *Planner) loadSettings(ctx context.Context) *ClinicSettings {
	if p.clinic == nil {
		return nil
	}
	settings, err := p.clinic.ClinicSettings(ctx)
	if err != nil {
		if !errors.Is(err, ErrSettingsNotFound) {
			p.logger.FromContext(ctx).Warn("clinic settings unavailable, treating clinic as open", "error", err)
		}
		return nil
	}
	return settings
}

func (p *Planner) finish(span trace.Span, outcome string, plan *DayPlan, began time.Time) {
	span.SetAttributes(
		attribute.String("medicalpro.plan_outcome", outcome),
		attribute.Int("medicalpro.slot_count", len(plan.Slots)),
	)
	if p.observer != nil {
		p.observer.ObservePlan(outcome, len(plan.Slots), time.Since(began))
	}
}
