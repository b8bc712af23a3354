package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdavido74/medical-pro/internal/audit"
	"github.com/jdavido74/medical-pro/internal/events"
	"github.com/jdavido74/medical-pro/internal/scheduling"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

var tracer = otel.Tracer("medicalpro.internal.appointments")

var (
	ErrInvalidInput = errors.New("appointments: invalid input")
	ErrNotEditable  = errors.New("appointments: appointment can no longer be changed")
)

// Store is the persistence the service writes through.
type Store interface {
	Create(ctx context.Context, appt *scheduling.Appointment) error
	Update(ctx context.Context, appt *scheduling.Appointment, prev Revision) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
	Get(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error)
	ListAppointments(ctx context.Context, practitionerID uuid.UUID, d scheduling.Date, scope scheduling.Scope) ([]scheduling.Appointment, error)
}

// Validator re-runs the slot pipeline. *scheduling.Planner implements it.
type Validator interface {
	ValidateBooking(ctx context.Context, req scheduling.BookingRequest) (scheduling.Validation, *scheduling.DayPlan, error)
	Location() *time.Location
	Granularity() int
}

type EventAppender interface {
	Append(ctx context.Context, aggregate, eventType string, payload any) error
}

type Auditor interface {
	LogBooking(ctx context.Context, eventType audit.EventType, appt scheduling.Appointment) error
	LogRejection(ctx context.Context, req scheduling.BookingRequest, v scheduling.Validation, conflicting []scheduling.TimeWindow) error
}

type BookingObserver interface {
	ObserveBooking(operation string, err error)
}

// BookInput is a new booking: one primary slot plus optional contiguous
// additional slots of the same length.
type BookInput struct {
	PatientID       uuid.UUID               `json:"patientId"`
	PractitionerID  uuid.UUID               `json:"practitionerId"`
	Date            scheduling.Date         `json:"date"`
	Duration        int                     `json:"duration"`
	Primary         scheduling.TimeWindow   `json:"primary"`
	AdditionalSlots []scheduling.TimeWindow `json:"additionalSlots"`
	Priority        string                  `json:"priority"`
	Notes           string                  `json:"notes"`
}

// RescheduleInput moves an appointment. A zero Date keeps the current day.
type RescheduleInput struct {
	Date            scheduling.Date         `json:"date"`
	Duration        int                     `json:"duration"`
	Primary         scheduling.TimeWindow   `json:"primary"`
	AdditionalSlots []scheduling.TimeWindow `json:"additionalSlots"`
	Priority        string                  `json:"priority"`
	Notes           *string                 `json:"notes"`
}

type ServiceOption func(*Service)

func WithEvents(e EventAppender) ServiceOption { return func(s *Service) { s.events = e } }

func WithAuditor(a Auditor) ServiceOption { return func(s *Service) { s.auditor = a } }

func WithTracker(t *Tracker) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracker = t
		}
	}
}

func WithObserver(o BookingObserver) ServiceOption { return func(s *Service) { s.observer = o } }

func WithLogger(logger *logging.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) ServiceOption { return func(s *Service) { s.now = now } }

// Service owns every appointment write.
type Service struct {
	store     Store
	validator Validator
	locker    Locker
	events    EventAppender
	auditor   Auditor
	tracker   *Tracker
	observer  BookingObserver
	logger    *logging.Logger
	now       func() time.Time
}

// NewService builds the write path. A nil locker runs without a day lock.
func NewService(store Store, validator Validator, locker Locker, opts ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		validator: validator,
		locker:    locker,
		tracker:   NewTracker(nil),
		logger:    logging.Default(),
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, practitionerID uuid.UUID, d scheduling.Date, scope scheduling.Scope) ([]scheduling.Appointment, error) {
	return s.store.ListAppointments(ctx, practitionerID, d, scope)
}

// Book validates the chain against the live appointment set under the day
// lock and persists it. A refused chain returns *scheduling.ValidationError.
func (s *Service) Book(ctx context.Context, in BookInput) (appt *scheduling.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointments.book")
	defer func() { s.finish(span, "book", err) }()

	switch {
	case in.PatientID == uuid.Nil:
		return nil, fmt.Errorf("%w: patientId is required", ErrInvalidInput)
	case in.PractitionerID == uuid.Nil:
		return nil, fmt.Errorf("%w: practitionerId is required", ErrInvalidInput)
	case in.Date.IsZero():
		return nil, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	priority, err := scheduling.ParsePriority(in.Priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	span.SetAttributes(
		attribute.String("medicalpro.practitioner_id", in.PractitionerID.String()),
		attribute.String("medicalpro.date", in.Date.String()),
		attribute.Int("medicalpro.chain_length", 1+len(in.AdditionalSlots)),
	)

	req := scheduling.BookingRequest{
		PractitionerID:  in.PractitionerID,
		Date:            in.Date,
		DurationMinutes: slotMinutes(in.Duration, in.Primary),
		Primary:         in.Primary,
		Additional:      in.AdditionalSlots,
	}
	err = s.withLock(ctx, in.PractitionerID, in.Date, func(ctx context.Context) error {
		chain, err := s.check(ctx, req)
		if err != nil {
			return err
		}
		now := s.now()
		draft := scheduling.Appointment{
			ID:              uuid.New(),
			PatientID:       in.PatientID,
			PractitionerID:  in.PractitionerID,
			Date:            in.Date,
			StartTime:       chain[0].Start,
			EndTime:         chain[0].End,
			Duration:        totalMinutes(chain),
			AdditionalSlots: chain[1:],
			Status:          scheduling.InitialStatus(),
			Priority:        priority,
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		appt, err = s.tracker.Create(ctx, draft, func(ctx context.Context) (*scheduling.Appointment, error) {
			if err := s.store.Create(ctx, &draft); err != nil {
				return nil, err
			}
			return &draft, nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordChange(ctx, events.TypeAppointmentBooked, *appt, appt.Date)
	s.audit(ctx, audit.EventBooked, *appt)
	return appt, nil
}

// Reschedule moves a live appointment. Its own current slots never count as
// a conflict. The appointment is re-read under the day lock and written only
// against that revision.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, in RescheduleInput) (appt *scheduling.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointments.reschedule")
	defer func() { s.finish(span, "reschedule", err) }()
	span.SetAttributes(attribute.String("medicalpro.appointment_id", id.String()))

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !editable(existing.Status) {
		return nil, fmt.Errorf("%w: status is %s", ErrNotEditable, existing.Status)
	}
	var priority scheduling.Priority
	if in.Priority != "" {
		if priority, err = scheduling.ParsePriority(in.Priority); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	day := in.Date
	if day.IsZero() {
		day = existing.Date
	}
	req := scheduling.BookingRequest{
		PractitionerID:       existing.PractitionerID,
		Date:                 day,
		DurationMinutes:      slotMinutes(in.Duration, in.Primary),
		Primary:              in.Primary,
		Additional:           in.AdditionalSlots,
		ExcludeAppointmentID: id,
	}
	from := existing.Date
	err = s.withLock(ctx, existing.PractitionerID, day, func(ctx context.Context) error {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if !editable(current.Status) {
			return fmt.Errorf("%w: status is %s", ErrNotEditable, current.Status)
		}
		if in.Date.IsZero() && current.Date != day {
			return ErrStale
		}
		chain, err := s.check(ctx, req)
		if err != nil {
			return err
		}
		from = current.Date
		next := *current
		next.Date = day
		next.StartTime, next.EndTime = chain[0].Start, chain[0].End
		next.AdditionalSlots = chain[1:]
		next.Duration = totalMinutes(chain)
		if priority != "" {
			next.Priority = priority
		}
		if in.Notes != nil {
			next.Notes = *in.Notes
		}
		next.UpdatedAt = s.now()
		appt, err = s.commitUpdate(ctx, current, next)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordChange(ctx, events.TypeAppointmentRescheduled, *appt, from, appt.Date)
	s.audit(ctx, audit.EventRescheduled, *appt)
	return appt, nil
}

// ChangeStatus applies a lifecycle transition. Cancelling frees the slots.
// The transition is checked against a fresh read under the day lock.
func (s *Service) ChangeStatus(ctx context.Context, id uuid.UUID, to scheduling.Status) (appt *scheduling.Appointment, err error) {
	ctx, span := tracer.Start(ctx, "appointments.change_status")
	defer func() { s.finish(span, "change_status", err) }()
	span.SetAttributes(
		attribute.String("medicalpro.appointment_id", id.String()),
		attribute.String("medicalpro.status", string(to)),
	)

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := scheduling.CanTransition(existing.Status, to); err != nil {
		return nil, err
	}
	err = s.withLock(ctx, existing.PractitionerID, existing.Date, func(ctx context.Context) error {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return err
		}
		if err := scheduling.CanTransition(current.Status, to); err != nil {
			return err
		}
		next := *current
		next.Status = to
		next.UpdatedAt = s.now()
		appt, err = s.commitUpdate(ctx, current, next)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.recordChange(ctx, events.TypeAppointmentStatusChanged, *appt, appt.Date)
	if to == scheduling.StatusCancelled {
		s.audit(ctx, audit.EventReleased, *appt)
	}
	return appt, nil
}

// commitUpdate writes next through the tracker, conditional on current
// still being the stored revision.
func (s *Service) commitUpdate(ctx context.Context, current *scheduling.Appointment, next scheduling.Appointment) (*scheduling.Appointment, error) {
	prev := RevisionOf(current)
	if !next.UpdatedAt.After(prev.UpdatedAt) {
		next.UpdatedAt = prev.UpdatedAt.Add(time.Microsecond)
	}
	return s.tracker.Update(ctx, next, func(ctx context.Context) (*scheduling.Appointment, error) {
		if err := s.store.Update(ctx, &next, prev); err != nil {
			return nil, err
		}
		return &next, nil
	})
}

// Cancel moves the appointment to cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	return s.ChangeStatus(ctx, id, scheduling.StatusCancelled)
}

// Delete soft-deletes the appointment.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "appointments.delete")
	defer func() { s.finish(span, "delete", err) }()
	span.SetAttributes(attribute.String("medicalpro.appointment_id", id.String()))

	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	err = s.tracker.Remove(ctx, id, func(ctx context.Context) error {
		return s.store.SoftDelete(ctx, id, s.now())
	})
	if err != nil {
		return err
	}
	existing.Deleted = true
	s.recordChange(ctx, events.TypeAppointmentDeleted, *existing, existing.Date)
	s.audit(ctx, audit.EventReleased, *existing)
	return nil
}

// check validates req and returns the chain with every End resolved from
// the slot grid.
func (s *Service) check(ctx context.Context, req scheduling.BookingRequest) ([]scheduling.TimeWindow, error) {
	v, plan, err := s.validator.ValidateBooking(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("appointments: validate: %w", err)
	}
	if !v.Valid {
		var conflicting []scheduling.TimeWindow
		if v.Code == scheduling.CodeSlotUnavailable {
			conflicting = s.conflicting(ctx, req)
		}
		if s.auditor != nil {
			if err := s.auditor.LogRejection(ctx, req, v, conflicting); err != nil {
				s.logger.FromContext(ctx).Warn("failed to audit rejected booking", "practitioner_id", req.PractitionerID, "error", err)
			}
		}
		return nil, v.Err()
	}
	index := plan.Index()
	chain := req.Chain()
	for i, w := range chain {
		chain[i].End = index[w.Start].End
	}
	return chain, nil
}

func (s *Service) conflicting(ctx context.Context, req scheduling.BookingRequest) []scheduling.TimeWindow {
	appts, err := s.store.ListAppointments(ctx, req.PractitionerID, req.Date, scheduling.ScopeAll)
	if err != nil {
		s.logger.FromContext(ctx).Warn("failed to list conflicting appointments", "practitioner_id", req.PractitionerID, "error", err)
		return nil
	}
	minutes := req.DurationMinutes
	if minutes <= 0 {
		minutes = s.validator.Granularity()
	}
	chain := req.Chain()
	for i := range chain {
		chain[i] = chain[i].WithLength(minutes)
	}
	return scheduling.ChainConflicts(req.Date, s.validator.Location(), chain, appts, scheduling.ConflictFilter{
		PractitionerID:       req.PractitionerID,
		ExcludeAppointmentID: req.ExcludeAppointmentID,
	})
}

func (s *Service) withLock(ctx context.Context, practitionerID uuid.UUID, d scheduling.Date, fn func(context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	return s.locker.WithDayLock(ctx, practitionerID, d, fn)
}

func (s *Service) recordChange(ctx context.Context, eventType string, appt scheduling.Appointment, dates ...scheduling.Date) {
	if s.events == nil {
		return
	}
	id := appt.ID
	change := events.ScheduleChange{
		PractitionerID: appt.PractitionerID,
		AppointmentID:  &id,
		Dates:          uniqueDates(dates),
		Status:         appt.Status,
	}
	if err := s.events.Append(ctx, "appointment", eventType, change); err != nil {
		s.logger.FromContext(ctx).Error("failed to record schedule change", "appointment_id", appt.ID, "type", eventType, "error", err)
	}
}

func (s *Service) audit(ctx context.Context, eventType audit.EventType, appt scheduling.Appointment) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.LogBooking(ctx, eventType, appt); err != nil {
		s.logger.FromContext(ctx).Warn("failed to audit booking", "appointment_id", appt.ID, "error", err)
	}
}

func (s *Service) finish(span trace.Span, operation string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	if s.observer != nil {
		s.observer.ObserveBooking(operation, err)
	}
}

// editable reports whether an appointment in status may still move.
func editable(status scheduling.Status) bool {
	switch status {
	case scheduling.StatusScheduled, scheduling.StatusConfirmed:
		return true
	}
	return false
}

// slotMinutes prefers an explicit duration, then the primary window length.
// Zero lets the planner apply its default granularity.
func slotMinutes(duration int, primary scheduling.TimeWindow) int {
	if duration > 0 {
		return duration
	}
	if m, err := primary.Minutes(); err == nil {
		return m
	}
	return 0
}

func totalMinutes(chain []scheduling.TimeWindow) int {
	total := 0
	for _, w := range chain {
		if m, err := w.Minutes(); err == nil {
			total += m
		}
	}
	return total
}

func uniqueDates(dates []scheduling.Date) []scheduling.Date {
	out := make([]scheduling.Date, 0, len(dates))
	for _, d := range dates {
		dup := false
		for _, seen := range out {
			if seen == d {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, d)
		}
	}
	return out
}
