package explore

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/nyuchitech/mukoko-weather/internal/store"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]{1,80}$`)

// execSearch filters the cached location context in Go, matching the
// original's linear scan rather than issuing a store query per call —
// the context is already a bounded, cached 200-location snapshot.
func execSearch(locations []locationDoc, query, tag string) string {
	q := strings.ToLower(strings.TrimSpace(query))
	t := strings.ToLower(strings.TrimSpace(tag))

	var results []Result
	for _, loc := range locations {
		name := strings.ToLower(loc.Name)
		province := strings.ToLower(loc.Province)

		match := (q == "" && t == "")
		if q != "" && (strings.Contains(name, q) || strings.Contains(province, q)) {
			match = true
		}
		if t != "" && containsTag(loc.Tags, t) {
			match = true
		}
		if match {
			results = append(results, Result{Slug: loc.Slug, Name: loc.Name, Province: loc.Province, Country: loc.Country, Tags: loc.Tags})
		}
		if len(results) >= maxResults*2 {
			break
		}
	}

	out, _ := json.Marshal(capResults(results, maxResults*2))
	return string(out)
}

func containsTag(tags []string, want string) bool {
	for _, t := range tags {
		if strings.ToLower(t) == want {
			return true
		}
	}
	return false
}

func capResults(results []Result, n int) []Result {
	if len(results) > n {
		return results[:n]
	}
	return results
}

type weatherToolResult struct {
	Slug        string   `json:"slug,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	WindSpeed   *float64 `json:"windSpeed,omitempty"`
	WeatherCode *int     `json:"weatherCode,omitempty"`
	Error       string   `json:"error,omitempty"`
}

func execWeather(ctx context.Context, st store.Gateway, slug string) (string, weatherToolResult) {
	if !slugPattern.MatchString(slug) {
		r := weatherToolResult{Error: "Invalid location slug"}
		out, _ := json.Marshal(r)
		return string(out), r
	}

	var doc weatherCacheDoc
	if err := st.FindOne(ctx, store.CollWeatherCache, bson.M{"locationSlug": slug}, &doc); err != nil {
		r := weatherToolResult{Error: "No weather data for " + slug}
		out, _ := json.Marshal(r)
		return string(out), r
	}

	temp := doc.Data.Current.Temperature2m
	humidity := doc.Data.Current.RelativeHumidity2m
	wind := doc.Data.Current.WindSpeed10m
	code := doc.Data.Current.WeatherCode

	r := weatherToolResult{Slug: slug, Temperature: &temp, Humidity: &humidity, WindSpeed: &wind, WeatherCode: &code}
	out, _ := json.Marshal(r)
	return string(out), r
}

// execTool dispatches a tool_use block to its handler, returning the
// encoded tool_result content string for the model.
func execTool(ctx context.Context, st store.Gateway, locations []locationDoc, name string, input map[string]interface{}) string {
	switch name {
	case "search_locations":
		query, _ := input["query"].(string)
		tag, _ := input["tag"].(string)
		return execSearch(locations, query, tag)
	case "get_weather":
		slug, _ := input["slug"].(string)
		content, _ := execWeather(ctx, st, slug)
		return content
	default:
		return `{"error": "Unknown tool"}`
	}
}

// loadLocationContext fetches up to 200 locations, cached by the caller.
func loadLocationContext(ctx context.Context, st store.Gateway) ([]locationDoc, error) {
	var docs []locationDoc
	if err := st.Find(ctx, store.CollLocations, bson.M{}, &docs, options.Find().SetLimit(200)); err != nil {
		return nil, err
	}
	return docs, nil
}
