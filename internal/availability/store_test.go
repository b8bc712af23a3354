package availability

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdavido74/medical-pro/internal/scheduling"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewStore(mock), mock
}

func TestStoreDayAvailability(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT enabled, time_slots").
		WithArgs(id, int16(1)).
		WillReturnRows(pgxmock.NewRows([]string{"enabled", "time_slots"}).
			AddRow(true, []byte(`[{"start":"09:00","end":"12:00"},{"start":"14:00","end":"18:00"}]`)))

	day, err := store.DayAvailability(context.Background(), id, scheduling.Monday)
	require.NoError(t, err)
	require.NotNil(t, day)
	assert.True(t, day.Enabled)
	assert.Equal(t, []scheduling.TimeWindow{{Start: "09:00", End: "12:00"}, {Start: "14:00", End: "18:00"}}, day.Slots)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDayAvailabilityMissingIsNotAnError(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT enabled, time_slots").
		WithArgs(id, int16(7)).
		WillReturnError(pgx.ErrNoRows)

	day, err := store.DayAvailability(context.Background(), id, scheduling.Sunday)
	require.NoError(t, err)
	assert.Nil(t, day)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreDayAvailabilityErrors(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT enabled, time_slots").
		WithArgs(id, int16(2)).
		WillReturnError(errors.New("connection reset"))
	_, err := store.DayAvailability(context.Background(), id, scheduling.Tuesday)
	assert.ErrorContains(t, err, "availability: get day")

	mock.ExpectQuery("SELECT enabled, time_slots").
		WithArgs(id, int16(3)).
		WillReturnRows(pgxmock.NewRows([]string{"enabled", "time_slots"}).AddRow(true, []byte(`{`)))
	_, err = store.DayAvailability(context.Background(), id, scheduling.Wednesday)
	assert.ErrorContains(t, err, "decode time slots")
}

func TestStoreWeekly(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("SELECT weekday, enabled, time_slots").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"weekday", "enabled", "time_slots"}).
			AddRow(int16(1), true, []byte(`[{"start":"09:00","end":"12:00"}]`)).
			AddRow(int16(6), false, []byte(`[]`)).
			AddRow(int16(9), true, []byte(`[]`)))

	week, err := store.Weekly(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, week, 7)
	assert.True(t, week[scheduling.Monday].Enabled)
	assert.Equal(t, []scheduling.TimeWindow{{Start: "09:00", End: "12:00"}}, week[scheduling.Monday].Slots)
	assert.False(t, week[scheduling.Saturday].Enabled)
	assert.False(t, week[scheduling.Tuesday].Enabled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSaveDay(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("INSERT INTO practitioner_availability").
		WithArgs(id, int16(5), true, []byte(`[{"start":"08:00","end":"12:00"}]`), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.SaveDay(context.Background(), id, scheduling.Friday, scheduling.DayAvailability{
		Enabled: true,
		Slots:   []scheduling.TimeWindow{{Start: "08:00", End: "12:00"}},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSaveWeeklyWritesAllDaysInOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	week, err := scheduling.Template(scheduling.DefaultTemplate)
	require.NoError(t, err)

	mock.ExpectBegin()
	for n := 1; n <= 7; n++ {
		mock.ExpectExec("INSERT INTO practitioner_availability").
			WithArgs(id, int16(n), n <= 5, pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.SaveWeekly(context.Background(), id, week))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSaveWeeklyRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO practitioner_availability").
		WithArgs(id, int16(1), false, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := store.SaveWeekly(context.Background(), id, scheduling.NewWeeklyAvailability())
	assert.ErrorContains(t, err, "availability: save monday")
	assert.NoError(t, mock.ExpectationsWereMet())
}
