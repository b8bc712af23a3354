// Package clinic stores the clinic calendar (operating weekdays and closed
// dates) and serves its admin endpoints.
package clinic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jdavido74/medical-pro/internal/scheduling"
)

const settingsKey = "clinic:settings"

// Store persists clinic settings as JSON in Redis.
type Store struct {
	redis *redis.Client
}

// NewStore creates a new clinic settings store.
func NewStore(redisClient *redis.Client) *Store {
	return &Store{redis: redisClient}
}

// Get returns scheduling.ErrSettingsNotFound when nothing has been saved.
func (s *Store) Get(ctx context.Context) (*scheduling.ClinicSettings, error) {
	data, err := s.redis.Get(ctx, settingsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, scheduling.ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: get settings: %w", err)
	}

	var settings scheduling.ClinicSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("clinic: unmarshal settings: %w", err)
	}
	if settings.OperatingHours == nil {
		settings.OperatingHours = map[scheduling.Weekday]scheduling.DayStatus{}
	}
	if settings.ClosedDates == nil {
		settings.ClosedDates = []scheduling.ClosedDate{}
	}
	return &settings, nil
}

// ClinicSettings implements scheduling.ClinicSettingsSource.
func (s *Store) ClinicSettings(ctx context.Context) (*scheduling.ClinicSettings, error) {
	return s.Get(ctx)
}

// Set saves settings.
func (s *Store) Set(ctx context.Context, settings *scheduling.ClinicSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("clinic: marshal settings: %w", err)
	}
	if err := s.redis.Set(ctx, settingsKey, data, 0).Err(); err != nil {
		return fmt.Errorf("clinic: set settings: %w", err)
	}
	return nil
}
