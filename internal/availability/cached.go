package availability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jdavido74/medical-pro/internal/cache"
	"github.com/jdavido74/medical-pro/internal/events"
	"github.com/jdavido74/medical-pro/internal/scheduling"
)

const cacheType = "availability"

// CacheKey names the entry for one practitioner weekday.
func CacheKey(practitionerID uuid.UUID, weekday scheduling.Weekday) string {
	return cache.Key(cacheType, practitionerID.String()+":"+string(weekday))
}

// InvalidatePractitioner drops every cached weekday of one practitioner.
func InvalidatePractitioner(c *cache.Cache, practitionerID uuid.UUID) {
	if c == nil {
		return
	}
	for _, wd := range scheduling.Weekdays() {
		c.Invalidate(CacheKey(practitionerID, wd))
	}
}

// cachedDay distinguishes "not configured" from a cache miss.
type cachedDay struct {
	day *scheduling.DayAvailability
}

// CachedSource is a read-through cache in front of an AvailabilitySource.
type CachedSource struct {
	source scheduling.AvailabilitySource
	cache  *cache.Cache
	ttl    time.Duration
}

func NewCachedSource(source scheduling.AvailabilitySource, c *cache.Cache, ttl time.Duration) *CachedSource {
	return &CachedSource{source: source, cache: c, ttl: ttl}
}

func (s *CachedSource) DayAvailability(ctx context.Context, practitionerID uuid.UUID, weekday scheduling.Weekday) (*scheduling.DayAvailability, error) {
	entry, err := cache.Remember(ctx, s.cache, CacheKey(practitionerID, weekday), s.ttl, func(ctx context.Context) (cachedDay, error) {
		day, err := s.source.DayAvailability(ctx, practitionerID, weekday)
		return cachedDay{day: day}, err
	})
	if err != nil {
		return nil, err
	}
	if entry.day == nil {
		return nil, nil
	}
	out := *entry.day
	out.Slots = append([]scheduling.TimeWindow{}, out.Slots...)
	return &out, nil
}

// Invalidator drops a practitioner's cached week when an availability event
// is delivered from the outbox. Other event types pass through untouched.
func Invalidator(c *cache.Cache) events.DeliveryHandler {
	return events.ForTypes(events.HandlerFunc(func(_ context.Context, entry events.OutboxEntry) error {
		var change events.ScheduleChange
		if err := json.Unmarshal(entry.Payload, &change); err != nil {
			return fmt.Errorf("availability: decode %s: %w", entry.Type, err)
		}
		InvalidatePractitioner(c, change.PractitionerID)
		return nil
	}), events.TypeAvailabilityUpdated)
}
