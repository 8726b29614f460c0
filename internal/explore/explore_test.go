package explore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/store/memstore"
)

func seedExploreLocations(t *testing.T, st store.Gateway) {
	t.Helper()
	ctx := context.Background()
	locs := []locationDoc{
		{Slug: "harare", Name: "Harare", Province: "Harare", Country: "ZW", Tags: []string{"city", "farming"}},
		{Slug: "bulawayo", Name: "Bulawayo", Province: "Bulawayo", Country: "ZW", Tags: []string{"city", "mining"}},
		{Slug: "victoria-falls", Name: "Victoria Falls", Province: "Matabeleland North", Country: "ZW", Tags: []string{"tourism"}},
	}
	for _, l := range locs {
		_, err := st.InsertOne(ctx, store.CollLocations, l)
		require.NoError(t, err)
	}
}

func newTestExploreService(t *testing.T, st store.Gateway) *Service {
	t.Helper()
	logger := zap.NewNop()
	return New(st, nil, nil, ratelimit.New(st), breaker.NewRegistry(logger, nil), logger)
}

func TestExecSearch_MatchesByNameSubstring(t *testing.T) {
	st := memstore.New()
	seedExploreLocations(t, st)
	docs, err := loadLocationContext(context.Background(), st)
	require.NoError(t, err)

	out := execSearch(docs, "vic", "")
	assert.Contains(t, out, "victoria-falls")
	assert.NotContains(t, out, "harare")
}

func TestExecSearch_MatchesByTag(t *testing.T) {
	st := memstore.New()
	seedExploreLocations(t, st)
	docs, err := loadLocationContext(context.Background(), st)
	require.NoError(t, err)

	out := execSearch(docs, "", "mining")
	assert.Contains(t, out, "bulawayo")
	assert.NotContains(t, out, "harare")
}

func TestExecSearch_EmptyQueryAndTagReturnsAll(t *testing.T) {
	st := memstore.New()
	seedExploreLocations(t, st)
	docs, err := loadLocationContext(context.Background(), st)
	require.NoError(t, err)

	out := execSearch(docs, "", "")
	assert.Contains(t, out, "harare")
	assert.Contains(t, out, "bulawayo")
	assert.Contains(t, out, "victoria-falls")
}

func TestExecWeather_InvalidSlugRejected(t *testing.T) {
	st := memstore.New()
	_, result := execWeather(context.Background(), st, "not a slug!!")
	assert.Equal(t, "Invalid location slug", result.Error)
}

func TestExecWeather_NoDataForSlug(t *testing.T) {
	st := memstore.New()
	_, result := execWeather(context.Background(), st, "harare")
	assert.Contains(t, result.Error, "No weather data")
}

func TestExecWeather_ReturnsCachedData(t *testing.T) {
	st := memstore.New()
	doc := weatherCacheDoc{LocationSlug: "harare"}
	doc.Data.Current.Temperature2m = 24.5
	doc.Data.Current.WeatherCode = 1
	_, err := st.InsertOne(context.Background(), store.CollWeatherCache, doc)
	require.NoError(t, err)

	_, result := execWeather(context.Background(), st, "harare")
	require.Empty(t, result.Error)
	require.NotNil(t, result.Temperature)
	assert.Equal(t, 24.5, *result.Temperature)
	require.NotNil(t, result.WeatherCode)
	assert.Equal(t, 1, *result.WeatherCode)
}

func TestSearch_EmptyQueryErrors(t *testing.T) {
	st := memstore.New()
	svc := newTestExploreService(t, st)

	_, err := svc.Search(context.Background(), "client-1", "   ")
	assert.Error(t, err)
}

func TestSearch_FallsBackToTextSearchWithoutLLM(t *testing.T) {
	st := memstore.New()
	seedExploreLocations(t, st)
	svc := newTestExploreService(t, st)

	resp, err := svc.Search(context.Background(), "client-2", "falls")
	require.NoError(t, err)
	require.Len(t, resp.Locations, 1)
	assert.Equal(t, "victoria-falls", resp.Locations[0].Slug)
}

func TestSearch_RateLimitExceeded(t *testing.T) {
	st := memstore.New()
	seedExploreLocations(t, st)
	svc := newTestExploreService(t, st)

	for i := 0; i < 15; i++ {
		_, err := svc.Search(context.Background(), "client-3", "harare")
		require.NoError(t, err)
	}

	_, err := svc.Search(context.Background(), "client-3", "harare")
	assert.Error(t, err)
}

func TestMergeToolResult_SearchThenWeatherMerge(t *testing.T) {
	var collected []Result

	searchJSON := `[{"slug":"harare","name":"Harare","province":"Harare","country":"ZW","tags":["city"]}]`
	mergeToolResult(&collected, "search_locations", searchJSON)
	require.Len(t, collected, 1)
	assert.Nil(t, collected[0].Temperature)

	weatherJSON := `{"slug":"harare","temperature":22.1,"humidity":60,"windSpeed":5,"weatherCode":2}`
	mergeToolResult(&collected, "get_weather", weatherJSON)
	require.Len(t, collected, 1)
	require.NotNil(t, collected[0].Temperature)
	assert.Equal(t, 22.1, *collected[0].Temperature)
}

func TestMergeToolResult_SearchDedupesBySlug(t *testing.T) {
	var collected []Result

	first := `[{"slug":"harare","name":"Harare"}]`
	second := `[{"slug":"harare","name":"Harare"},{"slug":"bulawayo","name":"Bulawayo"}]`
	mergeToolResult(&collected, "search_locations", first)
	mergeToolResult(&collected, "search_locations", second)

	require.Len(t, collected, 2)
}

func TestCachedContext_ServesWithinTTL(t *testing.T) {
	st := memstore.New()
	seedExploreLocations(t, st)
	svc := newTestExploreService(t, st)

	first := svc.cachedContext(context.Background())
	require.Len(t, first, 3)

	_, err := st.InsertOne(context.Background(), store.CollLocations, locationDoc{Slug: "new-city", Name: "New City"})
	require.NoError(t, err)

	second := svc.cachedContext(context.Background())
	assert.Len(t, second, 3, "cache should not reflect inserts within the TTL window")
}
