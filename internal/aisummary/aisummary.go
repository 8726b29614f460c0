// Package aisummary generates short natural-language weather summaries,
// caching them per location with a TTL tiered by how often the location's
// weather is expected to matter to users, and degrading to a deterministic
// template when the language model is unavailable or rate limited.
package aisummary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/llmclient"
	"github.com/nyuchitech/mukoko-weather/internal/prompts"
	"github.com/nyuchitech/mukoko-weather/internal/season"
	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/tokenbudget"
	"github.com/nyuchitech/mukoko-weather/internal/weather"
)

// tier1Slugs are named Zimbabwe cities whose weather changes matter often
// enough to warrant the shortest cache TTL.
var tier1Slugs = map[string]bool{
	"harare": true, "bulawayo": true, "mutare": true, "gweru": true,
	"masvingo": true, "kwekwe": true, "kadoma": true, "marondera": true,
	"chinhoyi": true, "victoria-falls": true,
}

// tier2Tags mark locations (farms, mines, schools, border posts) with a
// medium-length cache TTL between the named cities and everything else.
var tier2Tags = map[string]bool{
	"farming": true, "mining": true, "education": true, "border": true,
}

const (
	ttlTier1 = 30 * time.Minute
	ttlTier2 = 60 * time.Minute
	ttlTier3 = 120 * time.Minute

	staleThreshold = 5.0

	maxTokens = 300

	promptKeySystem = "weather_summary_system"
	promptKeyUser   = "weather_summary_user"
)

const fallbackSystemPrompt = `You are Shamwari, a friendly Zimbabwean weather assistant. ` +
	`Give short, practical weather summaries in plain language, mentioning what ` +
	`to wear or carry and any precautions for the current season.`

// Summary is a generated weather summary, cached alongside the observation
// it was derived from so staleness can be detected on the next read.
type Summary struct {
	LocationSlug string    `json:"locationSlug" bson:"locationSlug"`
	Text         string    `json:"text" bson:"text"`
	Source       string    `json:"source" bson:"source"` // "llm" or "fallback"
	RefTemp      float64   `json:"-" bson:"refTemp"`
	RefCode      int       `json:"-" bson:"refCode"`
	GeneratedAt  time.Time `json:"generatedAt" bson:"generatedAt"`
	ExpiresAt    time.Time `json:"-" bson:"expiresAt"`
}

// Generator produces and caches weather summaries.
type Generator struct {
	store   store.Gateway
	llm     *llmclient.Client
	prompts *prompts.Library
	seasons *season.Resolver
	tokens  *tokenbudget.Counter
	logger  *zap.Logger
}

// New creates a summary Generator. model selects the token-budget counter
// used to keep the assembled prompt within the LLM's context window.
func New(st store.Gateway, llm *llmclient.Client, pr *prompts.Library, seasons *season.Resolver, model string, logger *zap.Logger) *Generator {
	return &Generator{
		store: st, llm: llm, prompts: pr, seasons: seasons,
		tokens: tokenbudget.New(model),
		logger: logger.With(zap.String("component", "aisummary")),
	}
}

// Generate returns a summary for slug, reusing a cached one when it exists
// and is not stale relative to the current observation. countryCode
// resolves the location's season for the prompt.
func (g *Generator) Generate(ctx context.Context, slug, countryCode string, tags []string, data weather.Data) (Summary, error) {
	if cached, ok := g.cached(ctx, slug); ok {
		if !weather.IsStale(cached.RefTemp, cached.RefCode, data.Current.Temperature2m, data.Current.WeatherCode) {
			return cached, nil
		}
	}

	s := g.seasons.Current(ctx, countryCode)

	text, source := g.generateText(ctx, slug, s, data)

	summary := Summary{
		LocationSlug: slug,
		Text:         text,
		Source:       source,
		RefTemp:      data.Current.Temperature2m,
		RefCode:      data.Current.WeatherCode,
		GeneratedAt:  time.Now(),
	}
	summary.ExpiresAt = summary.GeneratedAt.Add(ttlFor(slug, tags))

	if err := g.persist(ctx, summary); err != nil {
		g.logger.Warn("failed to persist ai summary", zap.String("slug", slug), zap.Error(err))
	}

	return summary, nil
}

// ttlFor reproduces the original service's tiered cache duration: named
// cities refresh most often, tagged locations (farms, mines, schools,
// borders) next, everything else least often.
func ttlFor(slug string, tags []string) time.Duration {
	if tier1Slugs[slug] {
		return ttlTier1
	}
	for _, tag := range tags {
		if tier2Tags[strings.ToLower(tag)] {
			return ttlTier2
		}
	}
	return ttlTier3
}

func (g *Generator) cached(ctx context.Context, slug string) (Summary, bool) {
	var s Summary
	filter := bson.M{"locationSlug": slug, "expiresAt": bson.M{"$gt": time.Now()}}
	if err := g.store.FindOne(ctx, store.CollAISummaries, filter, &s); err != nil {
		return Summary{}, false
	}
	return s, true
}

func (g *Generator) persist(ctx context.Context, s Summary) error {
	filter := bson.M{"locationSlug": s.LocationSlug}
	update := bson.M{"$set": bson.M{
		"text": s.Text, "source": s.Source, "refTemp": s.RefTemp, "refCode": s.RefCode,
		"generatedAt": s.GeneratedAt, "expiresAt": s.ExpiresAt,
	}}
	return g.store.UpdateOne(ctx, store.CollAISummaries, filter, update, true)
}

// generateText calls the language model, falling back to a deterministic
// template whenever the client is unconfigured, the breaker is open, or the
// call otherwise fails.
func (g *Generator) generateText(ctx context.Context, slug string, s season.Season, data weather.Data) (string, string) {
	if g.llm == nil {
		return fallbackSummary(s, data), "fallback"
	}

	system := g.systemPrompt(ctx)
	user := g.userPrompt(ctx, slug, s, data)

	resp, err := g.llm.Complete(ctx, system, []llmclient.Message{{Role: "user", Text: user}}, nil, maxTokens)
	if err != nil {
		g.logger.Warn("llm summary generation failed, using fallback", zap.String("slug", slug), zap.Error(err))
		return fallbackSummary(s, data), "fallback"
	}
	if strings.TrimSpace(resp.Text) == "" {
		return fallbackSummary(s, data), "fallback"
	}
	return resp.Text, "llm"
}

func (g *Generator) systemPrompt(ctx context.Context) string {
	if p, ok := g.prompts.Get(ctx, promptKeySystem); ok && p.Template != "" {
		return p.Template
	}
	return fallbackSystemPrompt
}

func (g *Generator) userPrompt(ctx context.Context, slug string, s season.Season, data weather.Data) string {
	template := defaultUserTemplate
	if p, ok := g.prompts.Get(ctx, promptKeyUser); ok && p.Template != "" {
		template = p.Template
	}

	insights := insightsSection(data.Insights)
	prefix := renderUserPrompt(template, slug, s, data, "")
	insights = g.tokens.TruncateToFit(prefix, insights, maxTokens)

	return renderUserPrompt(template, slug, s, data, insights)
}

// renderUserPrompt fills the user prompt template, substituting insights
// separately so callers can measure the prompt's size with and without it.
func renderUserPrompt(template, slug string, s season.Season, data weather.Data, insights string) string {
	r := strings.NewReplacer(
		"{slug}", slug,
		"{season}", s.Name,
		"{season_local}", s.LocalName,
		"{temperature}", fmt.Sprintf("%.1f", data.Current.Temperature2m),
		"{conditions}", weatherDescription(data.Current.WeatherCode),
		"{humidity}", fmt.Sprintf("%.0f", data.Current.RelativeHumidity2m),
		"{wind_speed}", fmt.Sprintf("%.1f", data.Current.WindSpeed10m),
		"{insights}", insights,
	)
	return r.Replace(template)
}

const defaultUserTemplate = `Location: {slug}
Season: {season} ({season_local})
Current temperature: {temperature}°C, feels like conditions: {conditions}
Humidity: {humidity}%, wind: {wind_speed} km/h
{insights}
Write a short, friendly weather summary for a resident heading out today.`

// insightsSection renders the Tomorrow.io enriched fields present on data,
// mirroring the original service's field_map prompt section. Returns an
// empty string when no insights are available.
func insightsSection(insights *weather.Insights) string {
	if insights == nil {
		return ""
	}

	var lines []string
	if insights.HeatStressIndex != nil {
		lines = append(lines, fmt.Sprintf("Heat stress index: %.1f", *insights.HeatStressIndex))
	}
	if insights.ThunderstormProbability != nil {
		lines = append(lines, fmt.Sprintf("Thunderstorm probability: %.0f%%", *insights.ThunderstormProbability))
	}
	if insights.UVHealthConcern != nil {
		lines = append(lines, fmt.Sprintf("UV health concern level: %.1f", *insights.UVHealthConcern))
	}
	if insights.Visibility != nil {
		lines = append(lines, fmt.Sprintf("Visibility: %.1f km", *insights.Visibility))
	}
	if insights.WindGust != nil {
		lines = append(lines, fmt.Sprintf("Wind gusts: %.1f km/h", *insights.WindGust))
	}
	if insights.DewPoint != nil {
		lines = append(lines, fmt.Sprintf("Dew point: %.1f°C", *insights.DewPoint))
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// fallbackSummary builds a deterministic summary when the language model
// can't be reached, using the same season-and-temperature framing the
// prompt itself would have produced.
func fallbackSummary(s season.Season, data weather.Data) string {
	desc := weatherDescription(data.Current.WeatherCode)
	return fmt.Sprintf(
		"It's %s season (%s) with %s and a temperature of %.1f°C. %s",
		s.LocalName, s.Name, desc, data.Current.Temperature2m, s.Description,
	)
}

func weatherDescription(code int) string {
	switch {
	case code == 0:
		return "clear skies"
	case code >= 1 && code <= 3:
		return "partly cloudy conditions"
	case code >= 45 && code <= 48:
		return "foggy conditions"
	case code >= 51 && code <= 67:
		return "rain"
	case code >= 71 && code <= 77:
		return "snow"
	case code >= 80 && code <= 82:
		return "rain showers"
	case code >= 95:
		return "thunderstorms"
	default:
		return "changeable conditions"
	}
}
