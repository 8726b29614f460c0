package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/llmclient"
	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/store/memstore"
	"github.com/nyuchitech/mukoko-weather/internal/suitability"
	"github.com/nyuchitech/mukoko-weather/internal/tags"
)

func seedLocations(t *testing.T, st store.Gateway) {
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

func TestSearchLocations_PrefixMatch(t *testing.T) {
	st := memstore.New()
	seedLocations(t, st)

	docs, err := searchLocations(context.Background(), st, "Harare")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "harare", docs[0].Slug)
}

func TestSearchLocations_SubstringFallback(t *testing.T) {
	st := memstore.New()
	seedLocations(t, st)

	docs, err := searchLocations(context.Background(), st, "falls")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "victoria-falls", docs[0].Slug)
}

func TestSearchLocations_EmptyQueryReturnsNothing(t *testing.T) {
	st := memstore.New()
	seedLocations(t, st)

	docs, err := searchLocations(context.Background(), st, "   ")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestListLocationsByTag_FiltersByTag(t *testing.T) {
	st := memstore.New()
	seedLocations(t, st)

	docs, ok := listLocationsByTag(context.Background(), st, "city")
	require.True(t, ok)
	assert.Len(t, docs, 2)
}

func TestExecuteTool_ListLocationsByTagRejectsUnknownTag(t *testing.T) {
	st := memstore.New()
	seedLocations(t, st)
	_, err := st.InsertOne(context.Background(), store.CollTags, map[string]string{"slug": "city"})
	require.NoError(t, err)

	o := New(st, nil, suitability.New(st, zap.NewNop()), tags.New(st, zap.NewNop()), nil, zap.NewNop())
	body, refs := o.executeTool(context.Background(), llmclient.ToolUse{
		Name:  "list_locations_by_tag",
		Input: map[string]interface{}{"tag": "nonexistent"},
	}, map[string]cachedWeatherSummary{}, map[string]suitability.Rule{}, &sync.Mutex{})

	assert.Contains(t, body, "Unknown tag")
	assert.Empty(t, refs)
}

func TestExecuteTool_ListLocationsByTagAllowsKnownTag(t *testing.T) {
	st := memstore.New()
	seedLocations(t, st)
	_, err := st.InsertOne(context.Background(), store.CollTags, map[string]string{"slug": "city"})
	require.NoError(t, err)

	o := New(st, nil, suitability.New(st, zap.NewNop()), tags.New(st, zap.NewNop()), nil, zap.NewNop())
	body, refs := o.executeTool(context.Background(), llmclient.ToolUse{
		Name:  "list_locations_by_tag",
		Input: map[string]interface{}{"tag": "city"},
	}, map[string]cachedWeatherSummary{}, map[string]suitability.Rule{}, &sync.Mutex{})

	assert.Contains(t, body, "harare")
	assert.Len(t, refs, 2)
}

func TestRunTools_WeatherBeforeLocationStillPrefersLocation(t *testing.T) {
	st := memstore.New()
	seedLocations(t, st)
	cache := map[string]cachedWeatherSummary{
		"harare": {Location: "harare", Current: weatherCurrent{Temperature: 25}},
	}

	o := New(st, nil, suitability.New(st, zap.NewNop()), tags.New(st, zap.NewNop()), nil, zap.NewNop())
	_, refs := o.runTools(context.Background(), []llmclient.ToolUse{
		{ID: "1", Name: "get_weather", Input: map[string]interface{}{"location_slug": "harare"}},
		{ID: "2", Name: "search_locations", Input: map[string]interface{}{"query": "Harare"}},
	}, cache, map[string]suitability.Rule{})

	out := dedupeReferences(refs)
	require.Len(t, out, 1)
	assert.Equal(t, "location", out[0].Type)
}

func TestGetCachedWeather_InvalidSlugRejected(t *testing.T) {
	st := memstore.New()
	cache := map[string]cachedWeatherSummary{}

	_, ok, errMsg := getCachedWeather(context.Background(), st, "not a slug!", cache)
	assert.False(t, ok)
	assert.Contains(t, errMsg, "invalid slug")
}

func TestGetCachedWeather_MissingEntryReportsUnavailable(t *testing.T) {
	st := memstore.New()
	cache := map[string]cachedWeatherSummary{}

	_, ok, errMsg := getCachedWeather(context.Background(), st, "harare", cache)
	assert.False(t, ok)
	assert.Contains(t, errMsg, "no cached weather")
}

func TestGetCachedWeather_ReusesPerRequestCache(t *testing.T) {
	st := memstore.New()
	cache := map[string]cachedWeatherSummary{
		"harare": {Location: "harare", Current: weatherCurrent{Temperature: 25}},
	}

	summary, ok, _ := getCachedWeather(context.Background(), st, "harare", cache)
	require.True(t, ok)
	assert.Equal(t, 25.0, summary.Current.Temperature)
}

func TestGetActivityAdvice_NoInsightsReturnsMessage(t *testing.T) {
	st := memstore.New()
	cache := map[string]cachedWeatherSummary{
		"harare": {Location: "harare"},
	}
	eval := suitability.New(st, zap.NewNop())

	advice, errMsg := getActivityAdvice(context.Background(), st, eval, "harare", []string{"running"}, cache, map[string]suitability.Rule{})
	assert.Empty(t, errMsg)
	msg, ok := advice.(map[string]string)
	require.True(t, ok)
	assert.Contains(t, msg["message"], "No detailed insights")
}

func TestGetActivityAdvice_PropagatesWeatherError(t *testing.T) {
	st := memstore.New()
	eval := suitability.New(st, zap.NewNop())

	_, errMsg := getActivityAdvice(context.Background(), st, eval, "harare", []string{"running"}, map[string]cachedWeatherSummary{}, map[string]suitability.Rule{})
	assert.Contains(t, errMsg, "no cached weather")
}

func TestDedupeReferences_PrefersLocationOverWeather(t *testing.T) {
	refs := []Reference{
		{Slug: "harare", Name: "Harare", Type: "weather"},
		{Slug: "harare", Name: "Harare", Type: "location"},
		{Slug: "bulawayo", Name: "Bulawayo", Type: "location"},
	}

	out := dedupeReferences(refs)
	require.Len(t, out, 2)
	assert.Equal(t, "location", out[0].Type)
}

func TestDedupeReferences_CapsAtMaxReferences(t *testing.T) {
	var refs []Reference
	for i := 0; i < 10; i++ {
		refs = append(refs, Reference{Slug: string(rune('a' + i)), Type: "location"})
	}

	out := dedupeReferences(refs)
	assert.Len(t, out, maxReferences)
}

func TestOrchestrator_SystemPrompt_IncludesLocationsAndActivities(t *testing.T) {
	st := memstore.New()
	seedLocations(t, st)
	ctx := context.Background()
	_, err := st.InsertOne(ctx, store.CollActivities, activityDoc{ID: "running", Label: "Running", Category: "casual"})
	require.NoError(t, err)

	o := New(st, nil, suitability.New(st, zap.NewNop()), nil, nil, zap.NewNop())

	prompt := o.systemPrompt(ctx, nil)
	assert.Contains(t, prompt, "Harare (harare)")
	assert.Contains(t, prompt, "Running (running)")
}

func TestOrchestrator_SystemPrompt_IncludesUserActivitySection(t *testing.T) {
	st := memstore.New()
	o := New(st, nil, suitability.New(st, zap.NewNop()), nil, nil, zap.NewNop())

	prompt := o.systemPrompt(context.Background(), []string{"running", "drone-flying"})
	assert.Contains(t, prompt, "running, drone-flying")
	assert.Contains(t, prompt, "get_activity_advice tool")
}

func TestOrchestrator_SystemPrompt_CachesLocationContextAcrossCalls(t *testing.T) {
	st := memstore.New()
	seedLocations(t, st)
	o := New(st, nil, suitability.New(st, zap.NewNop()), nil, nil, zap.NewNop())
	ctx := context.Background()

	first := o.cachedLocationContext(ctx)
	require.Len(t, first, 3)

	_, err := st.InsertOne(ctx, store.CollLocations, locationDoc{Slug: "mutare", Name: "Mutare"})
	require.NoError(t, err)

	second := o.cachedLocationContext(ctx)
	assert.Len(t, second, 3, "cached context should not pick up the new location until the TTL elapses")
}
