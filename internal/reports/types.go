// Package reports implements community weather reporting — Waze-style
// observations submitted by users, cross-validated against the cached
// provider data, deduplicated per-IP on upvote, and AI-clarified with a
// couple of follow-up questions when the reporter wants to add detail.
package reports

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nyuchitech/mukoko-weather/internal/weather"
)

// Types is the set of report categories accepted by Submit.
var Types = map[string]bool{
	"light-rain": true, "heavy-rain": true, "thunderstorm": true, "hail": true,
	"flooding": true, "strong-wind": true, "clear-skies": true, "fog": true,
	"dust": true, "frost": true,
}

// Severities is the set of accepted severity levels.
var Severities = map[string]bool{"mild": true, "moderate": true, "severe": true}

// SeverityTTL maps severity to how long a report stays visible.
var SeverityTTL = map[string]time.Duration{
	"mild":     24 * time.Hour,
	"moderate": 48 * time.Hour,
	"severe":   72 * time.Hour,
}

const defaultSeverityTTL = 48 * time.Hour

// reportDoc is the weather_reports collection's document shape.
type reportDoc struct {
	LocationSlug    string    `bson:"locationSlug"`
	LocationName    string    `bson:"locationName"`
	Lat             float64   `bson:"lat"`
	Lon             float64   `bson:"lon"`
	ReportType      string    `bson:"reportType"`
	Severity        string    `bson:"severity"`
	Description     string    `bson:"description"`
	WeatherSnapshot Snapshot  `bson:"weatherSnapshot"`
	ReportedBy      string    `bson:"reportedBy"`
	ReportedAt      time.Time `bson:"reportedAt"`
	ExpiresAt       time.Time `bson:"expiresAt"`
	Upvotes         int       `bson:"upvotes"`
	UpvotedBy       []string  `bson:"upvotedBy"`
	Verified        bool      `bson:"verified"`
}

// Snapshot is the cached weather reading captured alongside a report, used
// to cross-validate the user's observation against provider data.
type Snapshot struct {
	Temperature   *float64 `json:"temperature,omitempty" bson:"temperature,omitempty"`
	WeatherCode   *int     `json:"weatherCode,omitempty" bson:"weatherCode,omitempty"`
	Precipitation *float64 `json:"precipitation,omitempty" bson:"precipitation,omitempty"`
	WindSpeed     *float64 `json:"windSpeed,omitempty" bson:"windSpeed,omitempty"`
	Humidity      *float64 `json:"humidity,omitempty" bson:"humidity,omitempty"`
}

// reportDocWithID is reportDoc plus its store-assigned identifier, used by
// List which needs to return each report's id.
type reportDocWithID struct {
	ID        bson.ObjectID `bson:"_id"`
	reportDoc `bson:",inline"`
}

type weatherCacheDoc struct {
	LocationSlug string       `bson:"locationSlug"`
	Data         weather.Data `bson:"data"`
}

type locationDoc struct {
	Slug string  `bson:"slug"`
	Name string  `bson:"name"`
	Lat  float64 `bson:"lat"`
	Lon  float64 `bson:"lon"`
}

// SubmitRequest is the body of POST /reports.
type SubmitRequest struct {
	LocationSlug string
	ReportType   string
	Severity     string
	Description  string
	Lat          *float64
	Lon          *float64
}

// SubmitResult is the response of a successful submission.
type SubmitResult struct {
	ID        string `json:"id"`
	Verified  bool   `json:"verified"`
	ExpiresIn int    `json:"expiresIn"`
}

// Report is a single report as surfaced by List.
type Report struct {
	ID           string    `json:"id"`
	LocationName string    `json:"locationName"`
	ReportType   string    `json:"reportType"`
	Severity     string    `json:"severity"`
	Description  string    `json:"description"`
	ReportedAt   time.Time `json:"reportedAt"`
	Upvotes      int       `json:"upvotes"`
	Verified     bool      `json:"verified"`
}

// ListResult is the response of GET /reports.
type ListResult struct {
	Reports  []Report `json:"reports"`
	Location string   `json:"location"`
}

// UpvoteResult is the response of POST /reports/upvote.
type UpvoteResult struct {
	Upvoted bool   `json:"upvoted"`
	Reason  string `json:"reason,omitempty"`
}

// ClarifyRequest is the body of POST /reports/clarify.
type ClarifyRequest struct {
	LocationSlug string
	ReportType   string
}

// ClarifyResult is the response of POST /reports/clarify.
type ClarifyResult struct {
	Questions []string `json:"questions"`
}
