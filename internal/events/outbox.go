// Package events records scheduling changes in a transactional outbox and
// delivers them to in-process and remote consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Event types appended by the scheduling write paths.
const (
	TypeAppointmentBooked        = "appointment.booked"
	TypeAppointmentRescheduled   = "appointment.rescheduled"
	TypeAppointmentStatusChanged = "appointment.status_changed"
	TypeAppointmentDeleted       = "appointment.deleted"
	TypeAvailabilityUpdated      = "availability.updated"
)

// OutboxEntry is one pending event. Attempts counts earlier failed
// deliveries.
type OutboxEntry struct {
	ID        uuid.UUID
	Aggregate string
	Type      string
	Payload   json.RawMessage
	Attempts  int
	CreatedAt time.Time
}

// DeliveryHandler emits events to downstream transports.
type DeliveryHandler interface {
	Handle(ctx context.Context, entry OutboxEntry) error
}

// HandlerFunc adapts a function to DeliveryHandler.
type HandlerFunc func(ctx context.Context, entry OutboxEntry) error

func (f HandlerFunc) Handle(ctx context.Context, entry OutboxEntry) error {
	return f(ctx, entry)
}

// DB is the subset of pgxpool.Pool the outbox uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxStore persists events in scheduling_outbox.
type OutboxStore struct {
	db DB
}

func NewOutboxStore(db DB) *OutboxStore {
	if db == nil {
		panic("events: db required")
	}
	return &OutboxStore{db: db}
}

// Insert stores payload as JSON and returns the new event id.
func (s *OutboxStore) Insert(ctx context.Context, aggregate, eventType string, payload any) (uuid.UUID, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.New()
	query := `
		INSERT INTO scheduling_outbox (id, aggregate, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := s.db.Exec(ctx, query, id, aggregate, eventType, data); err != nil {
		return uuid.Nil, fmt.Errorf("events: insert outbox: %w", err)
	}
	return id, nil
}

// Append is Insert without the id, for callers that only record.
func (s *OutboxStore) Append(ctx context.Context, aggregate, eventType string, payload any) error {
	_, err := s.Insert(ctx, aggregate, eventType, payload)
	return err
}

// FetchPending returns the oldest entries that are due. Entries waiting out
// a retry backoff or given up on are skipped.
func (s *OutboxStore) FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error) {
	query := `
		SELECT id, aggregate, event_type, payload, attempts, created_at
		FROM scheduling_outbox
		WHERE dispatched_at IS NULL AND failed_at IS NULL AND next_attempt_at <= now()
		ORDER BY created_at
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("events: fetch pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEntry
	for rows.Next() {
		var entry OutboxEntry
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.Aggregate, &entry.Type, &payload, &entry.Attempts, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkDelivered reports whether this call was the one that dispatched id.
func (s *OutboxStore) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE scheduling_outbox
		SET dispatched_at = now()
		WHERE id = $1 AND dispatched_at IS NULL
	`
	ct, err := s.db.Exec(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("events: mark delivered: %w", err)
	}
	return ct.RowsAffected() == 1, nil
}

// MarkFailed records a failed attempt and defers the entry until retryAt.
// A dead entry is parked with failed_at set and never fetched again.
func (s *OutboxStore) MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryAt time.Time, dead bool) error {
	query := `
		UPDATE scheduling_outbox
		SET attempts = attempts + 1,
		    last_error = $2,
		    next_attempt_at = $3,
		    failed_at = CASE WHEN $4::boolean THEN now() ELSE NULL END
		WHERE id = $1 AND dispatched_at IS NULL
	`
	if _, err := s.db.Exec(ctx, query, id, reason, retryAt, dead); err != nil {
		return fmt.Errorf("events: mark failed: %w", err)
	}
	return nil
}
