// Package appointments is the authoritative appointment store. Writes take a
// per-day slot lock and re-run the scheduling pipeline before persisting.
package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jdavido74/medical-pro/internal/scheduling"
)

var (
	ErrNotFound = errors.New("appointments: not found")
	// ErrStale means the row was changed or deleted after it was read.
	ErrStale = errors.New("appointments: appointment changed concurrently")
)

// Revision is the stored state a conditional update expects to replace.
type Revision struct {
	Status    scheduling.Status
	UpdatedAt time.Time
}

// RevisionOf captures the revision of a row as it was read.
func RevisionOf(appt *scheduling.Appointment) Revision {
	return Revision{Status: appt.Status, UpdatedAt: appt.UpdatedAt}
}

// DB abstracts the pgx pool for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores appointments in Postgres.
type Repository struct {
	db DB
}

func NewRepository(db DB) *Repository {
	if db == nil {
		panic("appointments: db required")
	}
	return &Repository{db: db}
}

const selectColumns = `
	SELECT id, patient_id, practitioner_id, date, start_time, end_time, duration,
	       additional_slots, status, priority, COALESCE(notes, ''), deleted, created_at, updated_at
	FROM appointments`

// Create inserts appt. ID, CreatedAt and UpdatedAt must already be set.
func (r *Repository) Create(ctx context.Context, appt *scheduling.Appointment) error {
	slots, err := encodeSlots(appt.AdditionalSlots)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO appointments (
			id, patient_id, practitioner_id, date, start_time, end_time, duration,
			additional_slots, status, priority, notes, deleted, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false, $12, $13)
	`
	_, err = r.db.Exec(ctx, query,
		appt.ID, appt.PatientID, appt.PractitionerID, appt.Date.Time(),
		appt.StartTime, appt.EndTime, appt.Duration, slots,
		string(appt.Status), string(appt.Priority), appt.Notes,
		appt.CreatedAt, appt.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

// Update rewrites the schedule, status and notes of a live appointment. The
// write only applies while the row still carries prev; a row changed or
// deleted in between yields ErrStale.
func (r *Repository) Update(ctx context.Context, appt *scheduling.Appointment, prev Revision) error {
	slots, err := encodeSlots(appt.AdditionalSlots)
	if err != nil {
		return err
	}
	query := `
		UPDATE appointments
		SET date = $2, start_time = $3, end_time = $4, duration = $5,
		    additional_slots = $6, status = $7, priority = $8, notes = $9, updated_at = $10
		WHERE id = $1 AND NOT deleted AND status = $11 AND updated_at = $12
	`
	ct, err := r.db.Exec(ctx, query,
		appt.ID, appt.Date.Time(), appt.StartTime, appt.EndTime, appt.Duration,
		slots, string(appt.Status), string(appt.Priority), appt.Notes, appt.UpdatedAt,
		string(prev.Status), prev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("appointments: update: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// SoftDelete flags the appointment deleted; its slots become free.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE appointments
		SET deleted = true, deleted_at = $2, updated_at = $2
		WHERE id = $1 AND NOT deleted
	`
	ct, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("appointments: delete: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get returns a live appointment.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*scheduling.Appointment, error) {
	row := r.db.QueryRow(ctx, selectColumns+` WHERE id = $1 AND NOT deleted`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("appointments: get: %w", err)
	}
	return appt, nil
}

// ListAppointments implements scheduling.AppointmentSource. Deleted rows are
// never returned. There is no per-caller permission model, so the visible
// scope only hides cancelled appointments from calendar views.
func (r *Repository) ListAppointments(ctx context.Context, practitionerID uuid.UUID, d scheduling.Date, scope scheduling.Scope) ([]scheduling.Appointment, error) {
	query := selectColumns + `
		WHERE practitioner_id = $1 AND date = $2 AND NOT deleted`
	if scope == scheduling.ScopeVisible {
		query += ` AND status <> 'cancelled'`
	}
	query += ` ORDER BY start_time`

	rows, err := r.db.Query(ctx, query, practitionerID, d.Time())
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	out := []scheduling.Appointment{}
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan: %w", err)
		}
		out = append(out, *appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate: %w", err)
	}
	return out, nil
}

func scanAppointment(row pgx.Row) (*scheduling.Appointment, error) {
	var (
		appt     scheduling.Appointment
		day      time.Time
		slots    []byte
		status   string
		priority string
	)
	if err := row.Scan(
		&appt.ID, &appt.PatientID, &appt.PractitionerID, &day,
		&appt.StartTime, &appt.EndTime, &appt.Duration, &slots,
		&status, &priority, &appt.Notes, &appt.Deleted, &appt.CreatedAt, &appt.UpdatedAt,
	); err != nil {
		return nil, err
	}
	appt.Date = scheduling.DateOf(day)
	appt.Status = scheduling.Status(status)
	appt.Priority = scheduling.Priority(priority)
	appt.AdditionalSlots = []scheduling.TimeWindow{}
	if len(slots) > 0 {
		if err := json.Unmarshal(slots, &appt.AdditionalSlots); err != nil {
			return nil, fmt.Errorf("decode additional slots: %w", err)
		}
	}
	return &appt, nil
}

func encodeSlots(slots []scheduling.TimeWindow) ([]byte, error) {
	if slots == nil {
		slots = []scheduling.TimeWindow{}
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("appointments: encode additional slots: %w", err)
	}
	return raw, nil
}
