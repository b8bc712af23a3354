// Package availability persists practitioners' weekly availability and
// serves the endpoints that edit it.
package availability

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

// DB abstracts the pgx pool for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store reads and writes practitioner_availability, one row per
// (practitioner, ISO weekday).
type Store struct {
	db  DB
	now func() time.Time
}

func NewStore(db DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const upsertDay = `
	INSERT INTO practitioner_availability (practitioner_id, weekday, enabled, time_slots, updated_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (practitioner_id, weekday)
	DO UPDATE SET enabled = EXCLUDED.enabled, time_slots = EXCLUDED.time_slots, updated_at = EXCLUDED.updated_at`

// DayAvailability implements scheduling.AvailabilitySource. A practitioner
// with no row for the weekday yields nil, nil.
func (s *Store) DayAvailability(ctx context.Context, practitionerID uuid.UUID, weekday scheduling.Weekday) (*scheduling.DayAvailability, error) {
	var (
		enabled bool
		raw     []byte
	)
	err := s.db.QueryRow(ctx, `
		SELECT enabled, time_slots
		FROM practitioner_availability
		WHERE practitioner_id = $1 AND weekday = $2`,
		practitionerID, int16(weekday.Number()),
	).Scan(&enabled, &raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("availability: get day: %w", err)
	}
	slots, err := decodeSlots(raw)
	if err != nil {
		return nil, err
	}
	return &scheduling.DayAvailability{Enabled: enabled, Slots: slots}, nil
}

// Weekly returns the full week. Days without a row are disabled and empty.
func (s *Store) Weekly(ctx context.Context, practitionerID uuid.UUID) (scheduling.WeeklyAvailability, error) {
	rows, err := s.db.Query(ctx, `
		SELECT weekday, enabled, time_slots
		FROM practitioner_availability
		WHERE practitioner_id = $1
		ORDER BY weekday`, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("availability: list week: %w", err)
	}
	defer rows.Close()

	week := scheduling.NewWeeklyAvailability()
	for rows.Next() {
		var (
			number  int16
			enabled bool
			raw     []byte
		)
		if err := rows.Scan(&number, &enabled, &raw); err != nil {
			return nil, fmt.Errorf("availability: scan day: %w", err)
		}
		day, err := scheduling.WeekdayFromNumber(int(number))
		if err != nil {
			continue
		}
		slots, err := decodeSlots(raw)
		if err != nil {
			return nil, err
		}
		week[day] = scheduling.DayAvailability{Enabled: enabled, Slots: slots}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: iterate week: %w", err)
	}
	return week, nil
}

// SaveDay upserts one weekday.
func (s *Store) SaveDay(ctx context.Context, practitionerID uuid.UUID, weekday scheduling.Weekday, day scheduling.DayAvailability) error {
	raw, err := encodeSlots(day.Slots)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, upsertDay, practitionerID, int16(weekday.Number()), day.Enabled, raw, s.now()); err != nil {
		return fmt.Errorf("availability: save %s: %w", weekday, err)
	}
	return nil
}

// SaveWeekly replaces all seven days in one transaction.
func (s *Store) SaveWeekly(ctx context.Context, practitionerID uuid.UUID, week scheduling.WeeklyAvailability) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("availability: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := s.now()
	for _, wd := range scheduling.Weekdays() {
		day := week[wd]
		raw, err := encodeSlots(day.Slots)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, upsertDay, practitionerID, int16(wd.Number()), day.Enabled, raw, now); err != nil {
			return fmt.Errorf("availability: save %s: %w", wd, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("availability: commit: %w", err)
	}
	return nil
}

func encodeSlots(slots []scheduling.TimeWindow) ([]byte, error) {
	if slots == nil {
		slots = []scheduling.TimeWindow{}
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return nil, fmt.Errorf("availability: encode time slots: %w", err)
	}
	return raw, nil
}

func decodeSlots(raw []byte) ([]scheduling.TimeWindow, error) {
	slots := []scheduling.TimeWindow{}
	if len(raw) == 0 {
		return slots, nil
	}
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, fmt.Errorf("availability: decode time slots: %w", err)
	}
	return slots, nil
}
