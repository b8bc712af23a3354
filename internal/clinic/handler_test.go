package clinic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdavido74/medical-pro/internal/cache"
	"github.com/jdavido74/medical-pro/internal/scheduling"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

func newTestHandler(t *testing.T) (http.Handler, *Store, *cache.Cache) {
	t.Helper()
	store, _ := newTestStore(t)
	c := cache.New()
	return NewHandler(store, c, logging.Discard()).Routes(), store, c
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetSettingsDefaultsWhenUnset(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := do(t, h, http.MethodGet, "/settings", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got scheduling.ClinicSettings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.OperatingHours[scheduling.Monday].Enabled)
	assert.False(t, got.OperatingHours[scheduling.Sunday].Enabled)
}

func TestUpdateSettings(t *testing.T) {
	h, store, c := newTestHandler(t)
	c.Set(CacheKey, scheduling.DefaultClinicSettings(), time.Hour)

	rec := do(t, h, http.MethodPut, "/settings", `{
		"operatingHours": {"monday": {"enabled": false}, "saturday": {"enabled": true}},
		"closedDates": [{"date": "2024-05-01"}, {"date": "2024-01-01", "reason": "New year"}]
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, saved.OperatingHours[scheduling.Monday].Enabled)
	assert.True(t, saved.OperatingHours[scheduling.Saturday].Enabled)
	require.Len(t, saved.ClosedDates, 2)
	assert.Equal(t, scheduling.NewDate(2024, 1, 1), saved.ClosedDates[0].Date)

	_, cached := c.Get(CacheKey)
	assert.False(t, cached, "update invalidates the cached settings")
}

func TestUpdateSettingsValidation(t *testing.T) {
	h, _, _ := newTestHandler(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"operatingHours":`},
		{"unknown weekday", `{"operatingHours": {"caturday": {"enabled": true}}}`},
		{"bad date", `{"closedDates": [{"date": "01/05/2024"}]}`},
		{"unknown field", `{"timezone": "UTC"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPut, "/settings", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error"`)
		})
	}
}

func TestClosedDateLifecycle(t *testing.T) {
	h, store, _ := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/closed-dates", `{"date": "2024-12-25", "reason": "Christmas"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	saved, err := store.Get(context.Background())
	require.NoError(t, err)
	cd, ok := saved.ClosedOn(scheduling.NewDate(2024, 12, 25))
	require.True(t, ok)
	assert.Equal(t, "Christmas", cd.Reason)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/closed-dates", `{"reason": "no date"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/closed-dates/christmas", "").Code)
	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/closed-dates/2024-12-25", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/closed-dates/2024-12-25", "").Code)
}
