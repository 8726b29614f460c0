package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/store/memstore"
)

func newTestPipeline(t *testing.T, opts ...Option) (*Pipeline, store.Gateway) {
	t.Helper()
	fake := memstore.New()
	breakers := breaker.NewRegistry(zap.NewNop(), nil)
	p := New(fake, nil, breakers, nil, zap.NewNop(), opts...)
	return p, fake
}

func TestPipeline_FetchFallsBackToSeasonalSynthesis(t *testing.T) {
	deadSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer deadSrv.Close()

	p, _ := newTestPipeline(t, WithOpenMeteoBaseURL(deadSrv.URL))

	result, err := p.Fetch(context.Background(), -17.82, 31.05)
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Provider)
	assert.False(t, result.CacheHit)
	assert.NotZero(t, result.Data.Current.Temperature2m)
	assert.Len(t, result.Data.Hourly.Time, 24)
	assert.Len(t, result.Data.Daily.Time, 7)
}

func TestPipeline_FetchRejectsInvalidCoordinates(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.Fetch(context.Background(), 200, 0)
	assert.Error(t, err)
}

func TestPipeline_FetchUsesOpenMeteoWhenNoTomorrowKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openMeteoResponse{
			Current: Current{Time: "2026-07-30T12:00:00Z", Temperature2m: 24.5, WeatherCode: 2, WindSpeed10m: 10},
			Hourly:  Hourly{Time: []string{"2026-07-30T12:00:00Z"}, Temperature2m: []float64{24.5}},
			Daily:   Daily{Time: []string{"2026-07-30"}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, WithOpenMeteoBaseURL(srv.URL))

	result, err := p.Fetch(context.Background(), -17.82, 31.05)
	require.NoError(t, err)
	assert.Equal(t, "open-meteo", result.Provider)
	assert.Equal(t, 24.5, result.Data.Current.Temperature2m)
	require.NotNil(t, result.Data.Insights)
	assert.Equal(t, 10.0, *result.Data.Insights.WindSpeed)
}

func TestPipeline_FetchUsesTomorrowIOWhenKeyPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]interface{}{
			"timelines": map[string]interface{}{
				"hourly": []map[string]interface{}{
					{"time": "2026-07-30T12:00:00Z", "values": map[string]interface{}{
						"temperature": 26.0, "humidity": 55.0, "weatherCode": 1000.0,
					}},
				},
				"daily": []map[string]interface{}{
					{"time": "2026-07-30", "values": map[string]interface{}{
						"temperatureMax": 30.0, "temperatureMin": 18.0, "weatherCodeMax": 1000.0,
					}},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	p, _ := newTestPipeline(t, WithTomorrowIOKey("test-key"), WithTomorrowBaseURL(srv.URL))

	result, err := p.Fetch(context.Background(), -17.82, 31.05)
	require.NoError(t, err)
	assert.Equal(t, "tomorrow", result.Provider)
	assert.Equal(t, 26.0, result.Data.Current.Temperature2m)
	assert.Equal(t, 0, result.Data.Current.WeatherCode) // tomorrow code 1000 -> WMO 0
}

func TestPipeline_FetchFallsBackWhenTomorrowFails(t *testing.T) {
	tomorrowSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer tomorrowSrv.Close()

	meteoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := openMeteoResponse{Current: Current{Temperature2m: 19.0}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer meteoSrv.Close()

	p, _ := newTestPipeline(t,
		WithTomorrowIOKey("test-key"),
		WithTomorrowBaseURL(tomorrowSrv.URL),
		WithOpenMeteoBaseURL(meteoSrv.URL),
	)

	result, err := p.Fetch(context.Background(), -17.82, 31.05)
	require.NoError(t, err)
	assert.Equal(t, "open-meteo", result.Provider)
	assert.Equal(t, 19.0, result.Data.Current.Temperature2m)
}

func TestPipeline_FetchCachesSuccessfulResult(t *testing.T) {
	calls := 0
	meteoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		resp := openMeteoResponse{Current: Current{Temperature2m: 21.0}}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer meteoSrv.Close()

	p, _ := newTestPipeline(t, WithOpenMeteoBaseURL(meteoSrv.URL))

	first, err := p.Fetch(context.Background(), -17.82, 31.05)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)

	second, err := p.Fetch(context.Background(), -17.82, 31.05)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	assert.Equal(t, 1, calls)
}

func TestIsStale(t *testing.T) {
	assert.False(t, IsStale(25.0, 0, 27.0, 0))
	assert.True(t, IsStale(25.0, 0, 32.0, 0))
	assert.True(t, IsStale(25.0, 61, 25.0, 0))
	assert.True(t, IsStale(25.0, 61, 25.0, 63))
	assert.False(t, IsStale(25.0, 3, 25.0, 3))
}

func TestSynthesizeFallback_ElevationAdjustment(t *testing.T) {
	sea := synthesizeFallback(-17.82, 31.05, 0)
	highveld := synthesizeFallback(-17.82, 31.05, 2000)

	assert.Less(t, highveld.Current.Temperature2m, sea.Current.Temperature2m)
}
