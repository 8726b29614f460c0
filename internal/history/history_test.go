package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/internal/season"
	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/store/memstore"
	"github.com/nyuchitech/mukoko-weather/internal/weather"
)

func newTestService(st store.Gateway) *Service {
	logger := zap.NewNop()
	return New(st, ratelimit.New(st), nil, nil, season.New(st), breaker.NewRegistry(logger, nil), logger)
}

func seedHistoryLocation(t *testing.T, st store.Gateway) {
	t.Helper()
	_, err := st.InsertOne(context.Background(), store.CollLocations, locationDoc{
		Slug: "harare", Name: "Harare", Elevation: 1490, Country: "ZW",
	})
	require.NoError(t, err)
}

func seedHistoryRecords(t *testing.T, st store.Gateway, slug string, n int) {
	t.Helper()
	now := time.Now()
	for i := 0; i < n; i++ {
		rec := historyRecord{
			LocationSlug: slug,
			RecordedAt:   now.Add(-time.Duration(n-i) * 24 * time.Hour),
			Current: weatherCurrent(
				20.0+float64(i)*0.3, // temperature trend upward
				60, 5, 10, 1013, 40, 61,
			),
		}
		_, err := st.InsertOne(context.Background(), store.CollWeatherHistory, rec)
		require.NoError(t, err)
	}
}

func TestAnalyze_RejectsMissingLocation(t *testing.T) {
	st := memstore.New()
	svc := newTestService(st)

	_, err := svc.Analyze(context.Background(), "1.2.3.4", AnalyzeRequest{Location: ""})
	assert.Error(t, err)
}

func TestAnalyze_RejectsUnknownLocation(t *testing.T) {
	st := memstore.New()
	svc := newTestService(st)

	_, err := svc.Analyze(context.Background(), "1.2.3.4", AnalyzeRequest{Location: "nowhere", Days: 30})
	assert.Error(t, err)
}

func TestAnalyze_RejectsWhenNoHistoryRecorded(t *testing.T) {
	st := memstore.New()
	seedHistoryLocation(t, st)
	svc := newTestService(st)

	_, err := svc.Analyze(context.Background(), "1.2.3.4", AnalyzeRequest{Location: "harare", Days: 30})
	assert.Error(t, err)
}

func TestAnalyze_FallsBackToStatsOnlyWithoutLLM(t *testing.T) {
	st := memstore.New()
	seedHistoryLocation(t, st)
	seedHistoryRecords(t, st, "harare", 10)
	svc := newTestService(st)

	result, err := svc.Analyze(context.Background(), "1.2.3.4", AnalyzeRequest{Location: "harare", Days: 30})
	require.NoError(t, err)
	assert.True(t, result.Error)
	assert.Equal(t, 10, result.DataPoints)
	assert.Contains(t, result.Stats, "Period:")
	assert.NotEmpty(t, result.Analysis)
}

func TestAnalyze_ClampsDaysToRange(t *testing.T) {
	st := memstore.New()
	seedHistoryLocation(t, st)
	seedHistoryRecords(t, st, "harare", 5)
	svc := newTestService(st)

	result, err := svc.Analyze(context.Background(), "1.2.3.4", AnalyzeRequest{Location: "harare", Days: 1000})
	require.NoError(t, err)
	assert.Equal(t, 5, result.DataPoints)
}

func TestAnalyze_RateLimitExceeded(t *testing.T) {
	st := memstore.New()
	seedHistoryLocation(t, st)
	seedHistoryRecords(t, st, "harare", 5)
	svc := newTestService(st)

	for i := 0; i < RateLimitMax; i++ {
		_, err := svc.Analyze(context.Background(), "9.9.9.9", AnalyzeRequest{Location: "harare", Days: 30})
		require.NoError(t, err)
	}

	_, err := svc.Analyze(context.Background(), "9.9.9.9", AnalyzeRequest{Location: "harare", Days: 30})
	assert.Error(t, err)
}

// Without an LLM configured, Analyze always takes the stats-only fallback
// branch and never persists to the cache — matching the original service,
// which only caches after a successful model call, never the circuit-open
// or client-unavailable branches.
func TestAnalyze_FallbackResponsesAreNeverCached(t *testing.T) {
	st := memstore.New()
	seedHistoryLocation(t, st)
	seedHistoryRecords(t, st, "harare", 8)
	svc := newTestService(st)

	first, err := svc.Analyze(context.Background(), "1.2.3.4", AnalyzeRequest{Location: "harare", Days: 30})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Analyze(context.Background(), "5.5.5.5", AnalyzeRequest{Location: "harare", Days: 30})
	require.NoError(t, err)
	assert.False(t, second.Cached)
}

func TestCached_ReturnsStoredAnalysisWithinTTL(t *testing.T) {
	st := memstore.New()
	svc := newTestService(st)

	svc.persist(context.Background(), "harare:30:abc123", "harare", 30, "Temperatures have been stable.", "Period: ...")

	doc, ok := svc.cached(context.Background(), "harare:30:abc123")
	require.True(t, ok)
	assert.Equal(t, "Temperatures have been stable.", doc.Analysis)
}

func TestCached_MissesOnDifferentKey(t *testing.T) {
	st := memstore.New()
	svc := newTestService(st)

	svc.persist(context.Background(), "harare:30:abc123", "harare", 30, "Temperatures have been stable.", "Period: ...")

	_, ok := svc.cached(context.Background(), "harare:30:different")
	assert.False(t, ok)
}

func TestAggregateStats_EmptyRecordsReturnsMessage(t *testing.T) {
	assert.Equal(t, "No data available for the selected period.", aggregateStats(nil))
}

func TestAggregateStats_IncludesPeriodAndTemperature(t *testing.T) {
	now := time.Now()
	records := []historyRecord{
		{RecordedAt: now.Add(-48 * time.Hour), Current: weatherCurrent(20, 50, 5, 10, 1010, 30, 0)},
		{RecordedAt: now.Add(-24 * time.Hour), Current: weatherCurrent(22, 55, 6, 12, 1012, 35, 1)},
		{RecordedAt: now, Current: weatherCurrent(24, 60, 7, 14, 1014, 40, 2)},
	}
	stats := aggregateStats(records)
	assert.Contains(t, stats, "Period:")
	assert.Contains(t, stats, "Temperature:")
	assert.Contains(t, stats, "Most common conditions:")
}

func TestTopConditions_PicksTopThreeByFrequency(t *testing.T) {
	codes := map[int]int{0: 1, 1: 5, 61: 3, 95: 2}
	result := topConditions(codes)
	assert.Contains(t, result, "Mainly clear (5d)")
	assert.Contains(t, result, "Slight rain (3d)")
	assert.Contains(t, result, "Thunderstorm (2d)")
	assert.NotContains(t, result, "Clear (1d)")
}

func TestTrendNote_DetectsWarming(t *testing.T) {
	temps := []float64{10, 10, 10, 10, 15, 15, 15, 15}
	note := trendNote(temps)
	assert.Contains(t, note, "warming")
}

func TestTrendNote_EmptyWhenTooFewPoints(t *testing.T) {
	assert.Equal(t, "", trendNote([]float64{10, 11, 12}))
}

func TestList_RejectsMissingLocation(t *testing.T) {
	svc := newTestService(memstore.New())
	_, err := svc.List(context.Background(), ListRequest{Location: "", Days: 30})
	assert.Error(t, err)
}

func TestList_RejectsDaysOutOfRange(t *testing.T) {
	svc := newTestService(memstore.New())
	_, err := svc.List(context.Background(), ListRequest{Location: "harare", Days: 0})
	assert.Error(t, err)

	_, err = svc.List(context.Background(), ListRequest{Location: "harare", Days: 366})
	assert.Error(t, err)
}

func TestList_RejectsUnknownLocation(t *testing.T) {
	svc := newTestService(memstore.New())
	_, err := svc.List(context.Background(), ListRequest{Location: "nowhere", Days: 30})
	assert.Error(t, err)
}

func TestList_ReturnsRecordsNewestFirst(t *testing.T) {
	st := memstore.New()
	seedHistoryLocation(t, st)
	seedHistoryRecords(t, st, "harare", 5)
	svc := newTestService(st)

	result, err := svc.List(context.Background(), ListRequest{Location: "harare", Days: 30})
	require.NoError(t, err)
	assert.Equal(t, "harare", result.Location)
	assert.Equal(t, 30, result.Days)
	assert.Equal(t, 5, result.Records)
	require.Len(t, result.Data, 5)
	for i := 1; i < len(result.Data); i++ {
		assert.True(t, result.Data[i-1].RecordedAt.After(result.Data[i].RecordedAt))
	}
}

func TestList_ExcludesRecordsOutsideWindow(t *testing.T) {
	st := memstore.New()
	seedHistoryLocation(t, st)
	seedHistoryRecords(t, st, "harare", 10)
	svc := newTestService(st)

	result, err := svc.List(context.Background(), ListRequest{Location: "harare", Days: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, result.Records, 3)
}

// weatherCurrent builds a weather.Current with only the fields aggregateStats
// reads, to keep test setup terse.
func weatherCurrent(temp, humidity, wind, gusts, pressure, cloud float64, code int) weather.Current {
	return weather.Current{
		Temperature2m:      temp,
		RelativeHumidity2m: humidity,
		WindSpeed10m:       wind,
		WindGusts10m:       gusts,
		SurfacePressure:    pressure,
		CloudCover:         cloud,
		WeatherCode:        code,
	}
}
