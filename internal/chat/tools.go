package chat

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nyuchitech/mukoko-weather/internal/llmclient"
	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/suitability"
	"github.com/nyuchitech/mukoko-weather/internal/weather"
)

// slugPattern validates a location slug before it's used in a query.
var slugPattern = regexp.MustCompile(`^[a-z0-9-]{1,80}$`)

// tools describes the 4 tools exposed to the model.
var tools = []llmclient.Tool{
	{
		Name:        "search_locations",
		Description: "Search for locations by name, province, or keyword. Returns matching locations with slugs.",
		InputSchema: map[string]interface{}{
			"properties": map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (e.g. 'Harare', 'farming areas', 'Victoria Falls')",
				},
			},
			"required": []string{"query"},
		},
	},
	{
		Name:        "get_weather",
		Description: "Get current weather conditions and forecast for a specific location by its slug.",
		InputSchema: map[string]interface{}{
			"properties": map[string]interface{}{
				"location_slug": map[string]interface{}{
					"type":        "string",
					"description": "Location slug (e.g. 'harare', 'victoria-falls')",
				},
			},
			"required": []string{"location_slug"},
		},
	},
	{
		Name:        "get_activity_advice",
		Description: "Get weather suitability advice for specific activities at a location.",
		InputSchema: map[string]interface{}{
			"properties": map[string]interface{}{
				"location_slug": map[string]interface{}{"type": "string", "description": "Location slug"},
				"activities": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Activity IDs to evaluate (e.g. ['running', 'drone-flying'])",
				},
			},
			"required": []string{"location_slug", "activities"},
		},
	},
	{
		Name:        "list_locations_by_tag",
		Description: "List locations that have a specific tag (e.g. 'farming', 'mining', 'tourism').",
		InputSchema: map[string]interface{}{
			"properties": map[string]interface{}{
				"tag": map[string]interface{}{
					"type":        "string",
					"description": "Tag to filter by (e.g. 'farming', 'mining', 'city', 'tourism')",
				},
			},
			"required": []string{"tag"},
		},
	},
}

// locationDoc is the projection of a locations document used by search and
// tag listing.
type locationDoc struct {
	Slug     string   `bson:"slug" json:"slug"`
	Name     string   `bson:"name" json:"name"`
	Province string   `bson:"province" json:"province"`
	Country  string   `bson:"country" json:"country"`
	Tags     []string `bson:"tags" json:"tags"`
}

// weatherCacheDoc mirrors the weather_cache collection's document shape.
type weatherCacheDoc struct {
	LocationSlug string       `bson:"locationSlug"`
	Data         weather.Data `bson:"data"`
	ExpiresAt    time.Time    `bson:"expiresAt"`
}

// searchLocations performs up to a 3-tier search: an autocomplete-style
// case-insensitive name prefix match, falling back to a full-text search,
// falling back to a case-insensitive substring match across name, province,
// and slug.
func searchLocations(ctx context.Context, st store.Gateway, query string) ([]locationDoc, error) {
	q := strings.TrimSpace(query)
	if len(q) > 200 {
		q = q[:200]
	}
	if q == "" {
		return nil, nil
	}

	var docs []locationDoc
	prefixFilter := bson.M{"name": bson.M{"$regex": "^" + regexp.QuoteMeta(q), "$options": "i"}}
	opts := options.Find().SetLimit(10)
	if err := st.Find(ctx, store.CollLocations, prefixFilter, &docs, opts); err == nil && len(docs) > 0 {
		return docs, nil
	}

	textFilter := bson.M{"$text": bson.M{"$search": q}}
	if err := st.Find(ctx, store.CollLocations, textFilter, &docs, opts); err == nil && len(docs) > 0 {
		return docs, nil
	}

	substringFilter := bson.M{"$or": []bson.M{
		{"name": bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}},
		{"province": bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}},
		{"slug": bson.M{"$regex": regexp.QuoteMeta(q), "$options": "i"}},
	}}
	if err := st.Find(ctx, store.CollLocations, substringFilter, &docs, opts); err != nil {
		return nil, err
	}
	return docs, nil
}

// cachedWeatherSummary is the compact weather projection the chat tools
// return to the model, mirroring the original service's reduced payload.
type cachedWeatherSummary struct {
	Location string              `json:"location"`
	Current  weatherCurrent      `json:"current"`
	Forecast weatherForecast     `json:"forecast"`
	Insights map[string]float64 `json:"insights,omitempty"`
}

type weatherCurrent struct {
	Temperature   float64 `json:"temperature"`
	Humidity      float64 `json:"humidity"`
	WindSpeed     float64 `json:"windSpeed"`
	WeatherCode   int     `json:"weatherCode"`
	Precipitation float64 `json:"precipitation"`
	CloudCover    float64 `json:"cloudCover"`
	UVIndex       float64 `json:"uvIndex"`
	Pressure      float64 `json:"pressure"`
}

type weatherForecast struct {
	MaxTemps     []float64 `json:"maxTemps"`
	MinTemps     []float64 `json:"minTemps"`
	WeatherCodes []int     `json:"weatherCodes"`
}

// getCachedWeather reads the cached normalized weather for slug directly
// from the weather_cache collection (written by internal/weather), reusing
// a per-request cache so a single conversation never queries twice for the
// same slug.
func getCachedWeather(ctx context.Context, st store.Gateway, slug string, weatherCache map[string]cachedWeatherSummary) (cachedWeatherSummary, bool, string) {
	if !slugPattern.MatchString(slug) {
		return cachedWeatherSummary{}, false, "invalid slug: " + slug
	}
	if cached, ok := weatherCache[slug]; ok {
		return cached, true, ""
	}

	var doc weatherCacheDoc
	filter := bson.M{"locationSlug": slug, "expiresAt": bson.M{"$gt": time.Now()}}
	if err := st.FindOne(ctx, store.CollWeatherCache, filter, &doc); err != nil {
		return cachedWeatherSummary{}, false, "no cached weather for " + slug + "; weather data may not be available yet"
	}

	summary := cachedWeatherSummary{
		Location: slug,
		Current: weatherCurrent{
			Temperature: doc.Data.Current.Temperature2m, Humidity: doc.Data.Current.RelativeHumidity2m,
			WindSpeed: doc.Data.Current.WindSpeed10m, WeatherCode: doc.Data.Current.WeatherCode,
			Precipitation: doc.Data.Current.Precipitation, CloudCover: doc.Data.Current.CloudCover,
			UVIndex: doc.Data.Current.UVIndex, Pressure: doc.Data.Current.SurfacePressure,
		},
		Forecast: weatherForecast{
			MaxTemps: capFloat64(doc.Data.Daily.Temperature2mMax, 3), MinTemps: capFloat64(doc.Data.Daily.Temperature2mMin, 3),
			WeatherCodes: capInt(doc.Data.Daily.WeatherCode, 3),
		},
	}
	if doc.Data.Insights != nil {
		summary.Insights = insightsMap(doc.Data.Insights)
	}

	weatherCache[slug] = summary
	return summary, true, ""
}

func insightsMap(in *weather.Insights) map[string]float64 {
	m := map[string]float64{}
	add := func(key string, v *float64) {
		if v != nil {
			m[key] = *v
		}
	}
	add("heatStressIndex", in.HeatStressIndex)
	add("thunderstormProbability", in.ThunderstormProbability)
	add("uvHealthConcern", in.UVHealthConcern)
	add("visibility", in.Visibility)
	add("windSpeed", in.WindSpeed)
	add("windGust", in.WindGust)
	add("dewPoint", in.DewPoint)
	if len(m) == 0 {
		return nil
	}
	return m
}

func capFloat64(s []float64, n int) []float64 {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func capInt(s []int, n int) []int {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// getActivityAdvice evaluates suitability rules against the slug's cached
// weather insights, server-side, so the model can't invent a rating.
func getActivityAdvice(ctx context.Context, st store.Gateway, eval *suitability.Evaluator, slug string, activityIDs []string, weatherCache map[string]cachedWeatherSummary, rulesCache map[string]suitability.Rule) (interface{}, string) {
	summary, ok, errMsg := getCachedWeather(ctx, st, slug, weatherCache)
	if !ok {
		return nil, errMsg
	}
	if summary.Insights == nil {
		return map[string]string{"message": "No detailed insights available for suitability evaluation at this location."}, ""
	}

	ratings := eval.Evaluate(ctx, summary.Insights, activityIDs, rulesCache)
	return map[string]interface{}{"ratings": ratings}, ""
}

// listLocationsByTag lists up to 20 locations carrying tag, rejecting tags
// outside the known whitelist.
func listLocationsByTag(ctx context.Context, st store.Gateway, tag string) ([]locationDoc, bool) {
	var docs []locationDoc
	opts := options.Find().SetLimit(20)
	if err := st.Find(ctx, store.CollLocations, bson.M{"tags": tag}, &docs, opts); err != nil {
		return nil, false
	}
	return docs, true
}
