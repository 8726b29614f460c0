// Package explore implements AI-assisted single-turn location search: a
// lighter sibling of internal/chat with no conversation history, a 2-tool
// toolset, and a substring-search fallback for when the LLM is unavailable.
package explore

import (
	"time"

	"github.com/nyuchitech/mukoko-weather/internal/llmclient"
)

const (
	maxQueryLen       = 500
	maxToolIterations = 3
	maxTokens         = 400
	contextTTL        = 5 * time.Minute
	maxResults        = 10
	promptKey         = "system:explore_search"
)

// tools describes the 2 tools exposed to the model, mirroring the
// original's smaller explore-search toolset (search accepts an optional
// tag, unlike chat's dedicated list_locations_by_tag tool).
var tools = []llmclient.Tool{
	{
		Name:        "search_locations",
		Description: "Search for locations by name, tag, or province. Returns matching locations.",
		InputSchema: map[string]interface{}{
			"properties": map[string]interface{}{
				"query": map[string]interface{}{"type": "string", "description": "Search query (location name, province, or keyword)"},
				"tag":   map[string]interface{}{"type": "string", "description": "Filter by tag (city, farming, mining, tourism, etc.)"},
			},
			"required": []string{},
		},
	},
	{
		Name:        "get_weather",
		Description: "Get current weather for a specific location by slug.",
		InputSchema: map[string]interface{}{
			"properties": map[string]interface{}{
				"slug": map[string]interface{}{"type": "string", "description": "Location slug (e.g. 'harare', 'victoria-falls')"},
			},
			"required": []string{"slug"},
		},
	},
}

type locationDoc struct {
	Slug     string   `bson:"slug" json:"slug"`
	Name     string   `bson:"name" json:"name"`
	Province string   `bson:"province" json:"province"`
	Country  string   `bson:"country" json:"country"`
	Tags     []string `bson:"tags" json:"tags"`
}

type weatherCacheDoc struct {
	LocationSlug string `bson:"locationSlug"`
	Data         struct {
		Current struct {
			Temperature2m      float64 `bson:"temperature_2m"`
			RelativeHumidity2m float64 `bson:"relative_humidity_2m"`
			WindSpeed10m       float64 `bson:"wind_speed_10m"`
			WeatherCode        int     `bson:"weather_code"`
			Precipitation      float64 `bson:"precipitation"`
			CloudCover         float64 `bson:"cloud_cover"`
			UVIndex            float64 `bson:"uv_index"`
		} `bson:"current"`
	} `bson:"data"`
}

// Result is a single location, optionally merged with weather fields once
// a get_weather tool call resolves for its slug.
type Result struct {
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Province    string   `json:"province"`
	Country     string   `json:"country"`
	Tags        []string `json:"tags"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	WindSpeed   *float64 `json:"windSpeed,omitempty"`
	WeatherCode *int     `json:"weatherCode,omitempty"`
}

// Response is the explore-search endpoint's reply, whether AI-assisted or
// substring fallback.
type Response struct {
	Locations []Result `json:"locations"`
	Summary   string   `json:"summary"`
}
