package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/store/memstore"
)

func TestRun_MongoDownWithoutStore(t *testing.T) {
	svc := New(nil, nil, "", zap.NewNop())
	report := svc.Run(context.Background())
	assert.Equal(t, HealthDown, report.Status)

	var mongo Check
	for _, c := range report.Checks {
		if c.Name == "MongoDB Atlas" {
			mongo = c
		}
	}
	assert.Equal(t, HealthDown, mongo.Status)
}

func TestRun_MongoOperationalWithStore(t *testing.T) {
	st := memstore.New()
	_, err := st.InsertOne(context.Background(), store.CollLocations, map[string]any{"name": "Harare"})
	require.NoError(t, err)

	svc := New(st, nil, "", zap.NewNop())
	report := svc.Run(context.Background())

	var mongo Check
	for _, c := range report.Checks {
		if c.Name == "MongoDB Atlas" {
			mongo = c
		}
	}
	assert.Equal(t, HealthOperational, mongo.Status)
}

func TestRun_TomorrowIODegradedWithoutKey(t *testing.T) {
	svc := New(memstore.New(), nil, "", zap.NewNop())
	report := svc.Run(context.Background())

	var check Check
	for _, c := range report.Checks {
		if c.Name == "Tomorrow.io API" {
			check = c
		}
	}
	assert.Equal(t, HealthDegraded, check.Status)
}

func TestRun_TomorrowIODownOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := New(memstore.New(), nil, "test-key", zap.NewNop(), WithTomorrowBaseURL(srv.URL))
	report := svc.Run(context.Background())

	var check Check
	for _, c := range report.Checks {
		if c.Name == "Tomorrow.io API" {
			check = c
		}
	}
	assert.Equal(t, HealthDown, check.Status)
}

func TestRun_OpenMeteoOperationalOnSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc := New(memstore.New(), nil, "", zap.NewNop(), WithOpenMeteoBaseURL(srv.URL))
	report := svc.Run(context.Background())

	var check Check
	for _, c := range report.Checks {
		if c.Name == "Open-Meteo API" {
			check = c
		}
	}
	assert.Equal(t, HealthOperational, check.Status)
}

func TestRun_AnthropicDegradedWithoutClient(t *testing.T) {
	svc := New(memstore.New(), nil, "", zap.NewNop())
	report := svc.Run(context.Background())

	var check Check
	for _, c := range report.Checks {
		if c.Name == "Anthropic AI" {
			check = c
		}
	}
	assert.Equal(t, HealthDegraded, check.Status)
}

func TestRun_CacheFreshnessReflectsUnexpiredEntries(t *testing.T) {
	st := memstore.New()
	_, err := st.InsertOne(context.Background(), store.CollWeatherCache, map[string]any{
		"locationSlug": "harare",
		"expiresAt":    time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	svc := New(st, nil, "", zap.NewNop())
	report := svc.Run(context.Background())

	var check Check
	for _, c := range report.Checks {
		if c.Name == "Weather Cache" {
			check = c
		}
	}
	assert.Equal(t, HealthOperational, check.Status)
	assert.Contains(t, check.Message, "1")
}

func TestRun_OverallStatusDownWhenAnyCheckDown(t *testing.T) {
	svc := New(nil, nil, "", zap.NewNop())
	report := svc.Run(context.Background())
	assert.Equal(t, HealthDown, report.Status)
	assert.Len(t, report.Checks, 6)
}
