package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jdavido74/medical-pro/internal/appointments"
	"github.com/jdavido74/medical-pro/internal/events"
)

// Notifier turns outbox entries into slots.changed broadcasts. It implements
// events.DeliveryHandler.
type Notifier struct {
	hub *Hub
	now func() time.Time
}

func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub, now: time.Now}
}

func (n *Notifier) Handle(_ context.Context, entry events.OutboxEntry) error {
	var change events.ScheduleChange
	if err := json.Unmarshal(entry.Payload, &change); err != nil {
		return fmt.Errorf("realtime: decode %s payload: %w", entry.Type, err)
	}
	topics := []string{PractitionerTopic(change.PractitionerID)}
	for _, d := range change.Dates {
		topics = append(topics, DayTopic(change.PractitionerID, d))
	}
	for _, topic := range topics {
		n.hub.Broadcast(Event{
			Type:      EventSlotsChanged,
			Topic:     topic,
			Cause:     entry.Type,
			Timestamp: n.now().UTC(),
			Data:      entry.Payload,
		})
	}
	return nil
}

// EventAppointmentPrefix prefixes the tracker events, e.g.
// "appointment.provisional".
const EventAppointmentPrefix = "appointment."

// TrackerListener publishes appointment tracker changes on the day topic so
// open calendars can show a booking before it is committed.
func TrackerListener(hub *Hub) func(appointments.RecordChange) {
	return func(change appointments.RecordChange) {
		appt := change.Record.Appointment
		data, err := json.Marshal(appt)
		if err != nil {
			return
		}
		hub.Broadcast(Event{
			Type:      EventAppointmentPrefix + string(change.Kind),
			Topic:     DayTopic(appt.PractitionerID, appt.Date),
			Cause:     change.Record.State.String(),
			Timestamp: time.Now().UTC(),
			Data:      data,
		})
	}
}
