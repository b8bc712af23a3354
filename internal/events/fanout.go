package events

import (
	"context"
	"errors"
)

// Fanout delivers each entry to every handler. An entry counts as delivered
// only when all handlers succeed. A retried entry reaches every handler
// again, so handlers must tolerate redelivery.
type Fanout []DeliveryHandler

func (f Fanout) Handle(ctx context.Context, entry OutboxEntry) error {
	var errs []error
	for _, h := range f {
		if h == nil {
			continue
		}
		if err := h.Handle(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ForTypes restricts h to the listed event types; others are acknowledged.
func ForTypes(h DeliveryHandler, types ...string) DeliveryHandler {
	allowed := make(map[string]struct{}, len(types))
	for _, t := range types {
		allowed[t] = struct{}{}
	}
	return HandlerFunc(func(ctx context.Context, entry OutboxEntry) error {
		if _, ok := allowed[entry.Type]; !ok {
			return nil
		}
		return h.Handle(ctx, entry)
	})
}
