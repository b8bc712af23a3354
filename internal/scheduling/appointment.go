package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidStatus     = errors.New("scheduling: invalid appointment status")
	ErrInvalidTransition = errors.New("scheduling: invalid status transition")
	ErrInvalidPriority   = errors.New("scheduling: invalid appointment priority")
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// CanTransition checks a status change against the appointment lifecycle.
// Completed, cancelled and no-show are terminal.
func CanTransition(from, to Status) error {
	for _, next := range transitions[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// InitialStatus is the status of a freshly booked appointment.
func InitialStatus() Status {
	return StatusScheduled
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ParsePriority defaults an empty value to normal.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case "":
		return PriorityNormal, nil
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
}

// Appointment is a booked visit. StartTime/EndTime plus AdditionalSlots
// describe every interval it occupies, in chain order.
type Appointment struct {
	ID              uuid.UUID    `json:"id"`
	PatientID       uuid.UUID    `json:"patientId"`
	PractitionerID  uuid.UUID    `json:"practitionerId"`
	Date            Date         `json:"date"`
	StartTime       string       `json:"startTime"`
	EndTime         string       `json:"endTime"`
	Duration        int          `json:"duration"`
	AdditionalSlots []TimeWindow `json:"additionalSlots"`
	Status          Status       `json:"status"`
	Priority        Priority     `json:"priority"`
	Notes           string       `json:"notes,omitempty"`
	Deleted         bool         `json:"deleted"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Primary returns the first occupied window.
func (a Appointment) Primary() TimeWindow {
	return TimeWindow{Start: a.StartTime, End: a.EndTime}
}

// Windows returns the primary window followed by the additional slots.
func (a Appointment) Windows() []TimeWindow {
	out := make([]TimeWindow, 0, 1+len(a.AdditionalSlots))
	out = append(out, a.Primary())
	return append(out, a.AdditionalSlots...)
}

// Blocks reports whether the appointment holds its slots. Cancelled and
// soft-deleted appointments do not.
func (a Appointment) Blocks() bool {
	return !a.Deleted && a.Status != StatusCancelled
}

// LastEnd is the end of the final window of the chain.
func (a Appointment) LastEnd() string {
	if n := len(a.AdditionalSlots); n > 0 {
		return a.AdditionalSlots[n-1].End
	}
	return a.EndTime
}
