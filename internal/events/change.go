package events

import (
	"github.com/google/uuid"

	"github.com/jdavido74/medical-pro/internal/scheduling"
)

// ScheduleChange is the payload of every scheduling event. Dates lists the
// days whose slot grids changed; it is empty for availability updates,
// which affect every future day.
type ScheduleChange struct {
	PractitionerID uuid.UUID         `json:"practitionerId"`
	AppointmentID  *uuid.UUID        `json:"appointmentId,omitempty"`
	Dates          []scheduling.Date `json:"dates,omitempty"`
	Status         scheduling.Status `json:"status,omitempty"`
}
