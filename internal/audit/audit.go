// Package audit keeps an append-only trail of booking decisions.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jdavido74/medical-pro/internal/scheduling"
)

// EventType names a booking decision.
type EventType string

const (
	// EventBooked is logged when an appointment is persisted.
	EventBooked EventType = "booking.created"
	// EventRescheduled is logged when an appointment moves.
	EventRescheduled EventType = "booking.rescheduled"
	// EventRejected is logged when the write path refuses a chain.
	EventRejected EventType = "booking.rejected"
	// EventReleased is logged when cancellation or deletion frees slots.
	EventReleased EventType = "booking.released"
)

// Event is one immutable audit row. Intervals are "HH:MM-HH:MM" strings.
type Event struct {
	ID             int64      `json:"id"`
	EventType      EventType  `json:"eventType"`
	AppointmentID  *uuid.UUID `json:"appointmentId,omitempty"`
	PractitionerID uuid.UUID  `json:"practitionerId"`
	Date           time.Time  `json:"date"`
	Intervals      []string   `json:"intervals"`
	Reason         string     `json:"reason,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// Service writes and reads booking_audit_events.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// LogEvent records event. CreatedAt defaults to now.
func (s *Service) LogEvent(ctx context.Context, event Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	var appointmentID uuid.NullUUID
	if event.AppointmentID != nil {
		appointmentID = uuid.NullUUID{UUID: *event.AppointmentID, Valid: true}
	}

	query := `
		INSERT INTO booking_audit_events (
			event_type, appointment_id, practitioner_id, date, intervals, reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		string(event.EventType),
		appointmentID,
		event.PractitionerID,
		event.Date,
		pq.Array(event.Intervals),
		nullString(event.Reason),
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: failed to log %s: %w", event.EventType, err)
	}
	return nil
}

// LogBooking records a successful write of appt.
func (s *Service) LogBooking(ctx context.Context, eventType EventType, appt scheduling.Appointment) error {
	id := appt.ID
	return s.LogEvent(ctx, Event{
		EventType:      eventType,
		AppointmentID:  &id,
		PractitionerID: appt.PractitionerID,
		Date:           appt.Date.Time(),
		Intervals:      Intervals(appt.Windows()),
		Reason:         string(appt.Status),
	})
}

// LogRejection records a refused chain. appointmentID is nil for new bookings.
func (s *Service) LogRejection(ctx context.Context, req scheduling.BookingRequest, v scheduling.Validation, conflicting []scheduling.TimeWindow) error {
	var appointmentID *uuid.UUID
	if req.ExcludeAppointmentID != uuid.Nil {
		id := req.ExcludeAppointmentID
		appointmentID = &id
	}
	intervals := conflicting
	if len(intervals) == 0 {
		intervals = req.Chain()
	}
	return s.LogEvent(ctx, Event{
		EventType:      EventRejected,
		AppointmentID:  appointmentID,
		PractitionerID: req.PractitionerID,
		Date:           req.Date.Time(),
		Intervals:      Intervals(intervals),
		Reason:         string(v.Code) + ": " + v.Reason,
	})
}

// Recent returns the newest events for a practitioner.
func (s *Service) Recent(ctx context.Context, practitionerID uuid.UUID, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, appointment_id, practitioner_id, date, intervals, reason, created_at
		FROM booking_audit_events
		WHERE practitioner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, practitionerID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e             Event
			eventType     string
			appointmentID uuid.NullUUID
			reason        sql.NullString
		)
		if err := rows.Scan(&e.ID, &eventType, &appointmentID, &e.PractitionerID, &e.Date, pq.Array(&e.Intervals), &reason, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.EventType = EventType(eventType)
		if appointmentID.Valid {
			id := appointmentID.UUID
			e.AppointmentID = &id
		}
		e.Reason = reason.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Intervals formats windows as "HH:MM-HH:MM".
func Intervals(windows []scheduling.TimeWindow) []string {
	out := make([]string, 0, len(windows))
	for _, w := range windows {
		out = append(out, w.String())
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
