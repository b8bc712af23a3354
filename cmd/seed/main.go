package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/jdavido74/medical-pro/internal/appointments"
	"github.com/jdavido74/medical-pro/internal/availability"
	"github.com/jdavido74/medical-pro/internal/clinic"
	appconfig "github.com/jdavido74/medical-pro/internal/config"
	"github.com/jdavido74/medical-pro/internal/scheduling"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

var priorities = []string{"low", "normal", "normal", "normal", "high", "urgent"}

func main() {
	practitioners := flag.Int("practitioners", 5, "practitioners to create")
	days := flag.Int("days", 7, "days to fill, starting tomorrow")
	perDay := flag.Int("per-day", 6, "appointments attempted per practitioner day")
	flag.Parse()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		logger.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid clinic timezone", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	defer func() { _ = redisClient.Close() }()

	s := &seeder{
		faker:        gofakeit.New(0),
		clinic:       clinic.NewStore(redisClient),
		availability: availability.NewStore(pool),
		logger:       logger,
	}
	repo := appointments.NewRepository(pool)
	planner := scheduling.NewPlanner(s.clinic, s.availability, repo,
		scheduling.WithLocation(loc),
		scheduling.WithGranularity(cfg.SlotGranularityMinutes),
		scheduling.WithLogger(logger),
	)
	s.planner = planner
	s.booker = appointments.NewService(repo, planner, appointments.NewRedisLocker(redisClient, cfg.SlotLockTTL),
		appointments.WithLogger(logger))

	start := scheduling.DateOf(time.Now().In(loc)).AddDays(1)
	if err := s.run(ctx, *practitioners, start, *days, *perDay); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}
	logger.Info("seed complete", "practitioners", *practitioners, "days", *days)
}

type booker interface {
	Book(ctx context.Context, in appointments.BookInput) (*scheduling.Appointment, error)
}

type seeder struct {
	faker        *gofakeit.Faker
	clinic       *clinic.Store
	availability *availability.Store
	planner      *scheduling.Planner
	booker       booker
	logger       *logging.Logger
}

func (s *seeder) run(ctx context.Context, practitioners int, start scheduling.Date, days, perDay int) error {
	if _, err := s.clinic.Get(ctx); errors.Is(err, scheduling.ErrSettingsNotFound) {
		if err := s.clinic.Set(ctx, scheduling.DefaultClinicSettings()); err != nil {
			return err
		}
		s.logger.Info("stored default clinic settings")
	} else if err != nil {
		return err
	}

	names := scheduling.TemplateNames()
	for i := 0; i < practitioners; i++ {
		id := uuid.New()
		name := s.faker.RandomString(names)
		week, err := scheduling.Template(name)
		if err != nil {
			return err
		}
		if err := s.availability.SaveWeekly(ctx, id, week); err != nil {
			return err
		}

		booked := 0
		for d := 0; d < days; d++ {
			booked += s.fillDay(ctx, id, start.AddDays(d), perDay)
		}
		s.logger.Info("seeded practitioner", "practitioner_id", id, "doctor", "Dr. "+s.faker.LastName(), "template", name, "appointments", booked)
	}
	return nil
}

// fillDay books up to attempts appointments and returns how many succeeded.
// Rejections are expected once the day fills up.
func (s *seeder) fillDay(ctx context.Context, practitionerID uuid.UUID, d scheduling.Date, attempts int) int {
	booked := 0
	for i := 0; i < attempts; i++ {
		plan, err := s.planner.DaySlots(ctx, scheduling.Query{PractitionerID: practitionerID, Date: d})
		if err != nil {
			s.logger.Warn("plan failed", "practitioner_id", practitionerID, "date", d, "error", err)
			return booked
		}
		chain := pickChain(s.faker, plan.Slots, s.faker.Number(1, 2))
		if len(chain) == 0 {
			return booked
		}
		_, err = s.booker.Book(ctx, appointments.BookInput{
			PatientID:       uuid.New(),
			PractitionerID:  practitionerID,
			Date:            d,
			Duration:        plan.Duration,
			Primary:         chain[0],
			AdditionalSlots: chain[1:],
			Priority:        s.faker.RandomString(priorities),
			Notes:           "Follow-up with " + s.faker.Name(),
		})
		if err != nil {
			s.logger.Debug("booking skipped", "date", d, "error", err)
			continue
		}
		booked++
	}
	return booked
}

// pickChain picks a random free slot and extends it with up to length-1
// following free slots that touch it.
func pickChain(f *gofakeit.Faker, slots []scheduling.TimeSlot, length int) []scheduling.TimeWindow {
	var free []int
	for i, slot := range slots {
		if slot.Available && !slot.Occupied {
			free = append(free, i)
		}
	}
	if len(free) == 0 || length < 1 {
		return nil
	}
	i := free[f.Number(0, len(free)-1)]
	chain := []scheduling.TimeWindow{slots[i].Window()}
	for j := i + 1; j < len(slots) && len(chain) < length; j++ {
		next := slots[j]
		if !next.Available || next.Occupied || next.Start != chain[len(chain)-1].End {
			break
		}
		chain = append(chain, next.Window())
	}
	return chain
}
