package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/jdavido74/medical-pro/internal/scheduling"
)

// fixture is the JSON document the offline commands read.
type fixture struct {
	Timezone     string                                      `json:"timezone"`
	Granularity  int                                         `json:"granularity"`
	Clinic       *scheduling.ClinicSettings                  `json:"clinic"`
	Availability map[uuid.UUID]scheduling.WeeklyAvailability `json:"availability"`
	Appointments []scheduling.Appointment                    `json:"appointments"`
}

func loadFixture(path string) (*fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", path, err)
	}
	return &fx, nil
}

func (fx *fixture) location() (*time.Location, error) {
	if fx.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(fx.Timezone)
}

func (fx *fixture) planner() (*scheduling.Planner, error) {
	loc, err := fx.location()
	if err != nil {
		return nil, fmt.Errorf("fixture timezone: %w", err)
	}
	return scheduling.NewPlanner(fx, fx, fx,
		scheduling.WithLocation(loc),
		scheduling.WithGranularity(fx.Granularity),
	), nil
}

// ClinicSettings fails open when the fixture has no clinic block.
func (fx *fixture) ClinicSettings(context.Context) (*scheduling.ClinicSettings, error) {
	if fx.Clinic == nil {
		return nil, scheduling.ErrSettingsNotFound
	}
	return fx.Clinic, nil
}

func (fx *fixture) DayAvailability(_ context.Context, practitionerID uuid.UUID, weekday scheduling.Weekday) (*scheduling.DayAvailability, error) {
	week, ok := fx.Availability[practitionerID]
	if !ok {
		return nil, nil
	}
	day, ok := week[weekday]
	if !ok {
		return nil, nil
	}
	return &day, nil
}

func (fx *fixture) ListAppointments(_ context.Context, practitionerID uuid.UUID, d scheduling.Date, scope scheduling.Scope) ([]scheduling.Appointment, error) {
	var out []scheduling.Appointment
	for _, a := range fx.Appointments {
		if a.PractitionerID != practitionerID || a.Date != d || a.Deleted {
			continue
		}
		if scope == scheduling.ScopeVisible && a.Status == scheduling.StatusCancelled {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}
