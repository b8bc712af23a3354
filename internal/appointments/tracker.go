package appointments

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jdavido74/medical-pro/internal/scheduling"
)

// RecordState tags a tracked appointment as awaiting or past its
// authoritative write.
type RecordState int

const (
	Provisional RecordState = iota
	Confirmed
)

func (s RecordState) String() string {
	if s == Provisional {
		return "provisional"
	}
	return "confirmed"
}

// Record is one tracked appointment.
type Record struct {
	Appointment scheduling.Appointment
	State       RecordState
}

// ChangeKind describes what happened to a record.
type ChangeKind string

const (
	ChangeProvisional ChangeKind = "provisional"
	ChangeConfirmed   ChangeKind = "confirmed"
	ChangeRolledBack  ChangeKind = "rolled_back"
	ChangeRemoved     ChangeKind = "removed"
)

// RecordChange is passed to the tracker's listener.
type RecordChange struct {
	Kind   ChangeKind
	Record Record
}

// Tracker is an in-memory view of appointments that applies writes in two
// phases: a provisional record is published immediately, then replaced by
// the confirmed result or rolled back to the prior snapshot when the
// authoritative write fails. By default only in-flight writes are held;
// RetainConfirmed keeps confirmed records as well.
type Tracker struct {
	mu       sync.RWMutex
	records  map[uuid.UUID]Record
	listener func(RecordChange)
	retain   bool
}

// NewTracker builds a tracker. listener runs synchronously and may be nil.
func NewTracker(listener func(RecordChange)) *Tracker {
	return &Tracker{records: make(map[uuid.UUID]Record), listener: listener}
}

func (t *Tracker) RetainConfirmed() *Tracker {
	t.retain = true
	return t
}

// Pending counts records still awaiting their authoritative write.
func (t *Tracker) Pending() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, rec := range t.records {
		if rec.State == Provisional {
			n++
		}
	}
	return n
}

func (t *Tracker) notify(kind ChangeKind, rec Record) {
	if t.listener != nil {
		t.listener(RecordChange{Kind: kind, Record: rec})
	}
}

// Get returns the tracked record for id.
func (t *Tracker) Get(id uuid.UUID) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	return rec, ok
}

// Day returns the records of one practitioner day ordered by start.
func (t *Tracker) Day(practitionerID uuid.UUID, d scheduling.Date) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []Record
	for _, rec := range t.records {
		if rec.Appointment.PractitionerID == practitionerID && rec.Appointment.Date == d {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Appointment.StartTime < out[j].Appointment.StartTime
	})
	return out
}

// Create tracks draft provisionally, then runs commit. On success the
// provisional record is replaced by the committed one.
func (t *Tracker) Create(ctx context.Context, draft scheduling.Appointment, commit func(context.Context) (*scheduling.Appointment, error)) (*scheduling.Appointment, error) {
	if draft.ID == uuid.Nil {
		draft.ID = uuid.New()
	}
	localID := draft.ID
	t.put(ChangeProvisional, Record{Appointment: draft, State: Provisional})

	saved, err := commit(ctx)
	t.mu.Lock()
	delete(t.records, localID)
	t.mu.Unlock()
	if err != nil {
		t.notify(ChangeRolledBack, Record{Appointment: draft, State: Provisional})
		return nil, err
	}
	t.confirm(*saved)
	return saved, nil
}

// Update applies next provisionally and restores the prior snapshot if
// commit fails.
func (t *Tracker) Update(ctx context.Context, next scheduling.Appointment, commit func(context.Context) (*scheduling.Appointment, error)) (*scheduling.Appointment, error) {
	prior, hadPrior := t.Get(next.ID)
	t.put(ChangeProvisional, Record{Appointment: next, State: Provisional})

	saved, err := commit(ctx)
	if err != nil {
		t.restore(next.ID, prior, hadPrior, next)
		return nil, err
	}
	t.confirm(*saved)
	return saved, nil
}

// Remove drops id provisionally and restores it if commit fails.
func (t *Tracker) Remove(ctx context.Context, id uuid.UUID, commit func(context.Context) error) error {
	t.mu.Lock()
	prior, hadPrior := t.records[id]
	delete(t.records, id)
	t.mu.Unlock()

	if err := commit(ctx); err != nil {
		if hadPrior {
			t.restore(id, prior, true, prior.Appointment)
		}
		return err
	}
	if hadPrior {
		t.notify(ChangeRemoved, prior)
	}
	return nil
}

func (t *Tracker) put(kind ChangeKind, rec Record) {
	t.mu.Lock()
	t.records[rec.Appointment.ID] = rec
	t.mu.Unlock()
	t.notify(kind, rec)
}

func (t *Tracker) confirm(appt scheduling.Appointment) {
	rec := Record{Appointment: appt, State: Confirmed}
	t.mu.Lock()
	if t.retain {
		t.records[appt.ID] = rec
	} else {
		delete(t.records, appt.ID)
	}
	t.mu.Unlock()
	t.notify(ChangeConfirmed, rec)
}

// restore puts prior back. The listener sees the restored record, or the
// abandoned attempt when there was nothing to restore.
func (t *Tracker) restore(id uuid.UUID, prior Record, hadPrior bool, attempted scheduling.Appointment) {
	t.mu.Lock()
	if hadPrior {
		t.records[id] = prior
	} else {
		delete(t.records, id)
	}
	t.mu.Unlock()
	if hadPrior {
		t.notify(ChangeRolledBack, prior)
		return
	}
	t.notify(ChangeRolledBack, Record{Appointment: attempted, State: Provisional})
}
