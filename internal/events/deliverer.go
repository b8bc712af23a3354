package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jdavido74/medical-pro/pkg/logging"
)

// Source is what the Deliverer drains.
type Source interface {
	FetchPending(ctx context.Context, limit int32) ([]OutboxEntry, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, retryAt time.Time, dead bool) error
}

const maxRetryBackoff = 10 * time.Minute

// DeliveryObserver is told about every delivery attempt.
type DeliveryObserver interface {
	ObserveDelivery(eventType string, err error)
}

// Deliverer polls the outbox and invokes the handler. A failed entry is
// retried with exponential backoff so it does not hold back newer entries,
// and is parked after maxAttempts failures.
type Deliverer struct {
	store       Source
	handler     DeliveryHandler
	observer    DeliveryObserver
	logger      *logging.Logger
	batchSize   int32
	interval    time.Duration
	maxAttempts int
	backoff     time.Duration
	now         func() time.Time
}

func NewDeliverer(store Source, handler DeliveryHandler, logger *logging.Logger) *Deliverer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Deliverer{
		store:       store,
		handler:     handler,
		logger:      logger,
		batchSize:   25,
		interval:    2 * time.Second,
		maxAttempts: 10,
		backoff:     5 * time.Second,
		now:         time.Now,
	}
}

func (d *Deliverer) WithBatchSize(size int32) *Deliverer {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Deliverer) WithInterval(interval time.Duration) *Deliverer {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

// WithRetry sets how many failed deliveries an entry gets and the base of
// its exponential backoff.
func (d *Deliverer) WithRetry(maxAttempts int, backoff time.Duration) *Deliverer {
	if maxAttempts > 0 {
		d.maxAttempts = maxAttempts
	}
	if backoff > 0 {
		d.backoff = backoff
	}
	return d
}

func (d *Deliverer) WithObserver(o DeliveryObserver) *Deliverer {
	d.observer = o
	return d
}

// Start blocks until ctx is cancelled.
func (d *Deliverer) Start(ctx context.Context) {
	if d.store == nil || d.handler == nil {
		return
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Drain(ctx)
		}
	}
}

// Drain delivers one batch and returns how many entries were dispatched.
func (d *Deliverer) Drain(ctx context.Context) int {
	entries, err := d.store.FetchPending(ctx, d.batchSize)
	if err != nil {
		d.logger.Error("outbox fetch failed", "error", err)
		return 0
	}
	delivered := 0
	for _, entry := range entries {
		err := d.handler.Handle(ctx, entry)
		if d.observer != nil {
			d.observer.ObserveDelivery(entry.Type, err)
		}
		if err != nil {
			d.fail(ctx, entry, err)
			continue
		}
		if ok, err := d.store.MarkDelivered(ctx, entry.ID); err != nil {
			d.logger.Error("failed to mark outbox delivered", "error", err, "event_id", entry.ID)
		} else if ok {
			delivered++
			d.logger.Debug("outbox delivered", "event_id", entry.ID, "type", entry.Type)
		}
	}
	return delivered
}

func (d *Deliverer) fail(ctx context.Context, entry OutboxEntry, cause error) {
	attempt := entry.Attempts + 1
	dead := attempt >= d.maxAttempts
	retryAt := d.now().Add(d.retryDelay(attempt))
	if dead {
		d.logger.Error("outbox entry parked after repeated failures", "error", cause, "event_id", entry.ID, "type", entry.Type, "attempts", attempt)
	} else {
		d.logger.Warn("outbox delivery failed", "error", cause, "event_id", entry.ID, "type", entry.Type, "attempt", attempt, "retry_at", retryAt)
	}
	if err := d.store.MarkFailed(ctx, entry.ID, cause.Error(), retryAt, dead); err != nil {
		d.logger.Error("failed to record outbox failure", "error", err, "event_id", entry.ID)
	}
}

// retryDelay doubles the base backoff per attempt, capped at maxRetryBackoff.
func (d *Deliverer) retryDelay(attempt int) time.Duration {
	delay := d.backoff
	for i := 1; i < attempt && delay < maxRetryBackoff; i++ {
		delay *= 2
	}
	if delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	return delay
}
