package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdavido74/medical-pro/internal/cache"
	appconfig "github.com/jdavido74/medical-pro/internal/config"
	"github.com/jdavido74/medical-pro/internal/events"
	"github.com/jdavido74/medical-pro/internal/realtime"
	"github.com/jdavido74/medical-pro/pkg/logging"
)

func TestSetupMetricsExposesSchedulingMetrics(t *testing.T) {
	handler, m := setupMetrics()
	require.NotNil(t, handler)
	require.NotNil(t, m)

	m.ObserveValidation("slot_unavailable")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "medicalpro_scheduling_booking_validations_total")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	assert.Nil(t, connectPostgresPool(context.Background(), "", logging.Discard()))
}

func TestNewRedisClientTLS(t *testing.T) {
	plain := newRedisClient(&appconfig.Config{RedisAddr: "localhost:6379"})
	defer plain.Close()
	assert.Nil(t, plain.Options().TLSConfig)

	secure := newRedisClient(&appconfig.Config{RedisAddr: "cache.internal:6380", RedisTLS: true})
	defer secure.Close()
	require.NotNil(t, secure.Options().TLSConfig)
	assert.Equal(t, "cache.internal:6380", secure.Options().Addr)
}

func TestBuildDeliveryHandlerWithoutQueueStaysLocal(t *testing.T) {
	hub := realtime.NewHub(logging.Discard())
	h := buildDeliveryHandler(context.Background(), &appconfig.Config{}, cache.New(), hub, logging.Discard())

	fanout, ok := h.(events.Fanout)
	require.True(t, ok)
	assert.Len(t, fanout, 2)
}

func TestBuildDeliveryHandlerAddsSQSPublisher(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		AWSRegion:              "us-east-1",
		AWSAccessKeyID:         "test",
		AWSSecretAccessKey:     "test",
		AWSEndpointOverride:    "http://localhost:4566",
		ScheduleEventsQueueURL: "http://localhost:4566/000000000000/schedule-events",
	}
	h := buildDeliveryHandler(context.Background(), cfg, cache.New(), realtime.NewHub(logging.Discard()), logging.Discard())

	fanout, ok := h.(events.Fanout)
	require.True(t, ok)
	require.Len(t, fanout, 3)
	_, isSQS := fanout[2].(*events.SQSPublisher)
	assert.True(t, isSQS)
}
