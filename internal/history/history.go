package history

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/llmclient"
	"github.com/nyuchitech/mukoko-weather/internal/prompts"
	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/internal/season"
	"github.com/nyuchitech/mukoko-weather/internal/store"
)

const fallbackSystemPrompt = `You are Shamwari Weather, analyzing historical weather data for {locationName}.

You have been given a statistical summary of weather data over {days} days. Provide a clear, actionable analysis.

Structure your response:
1. **Trend Summary** — Key temperature and precipitation trends (1-2 sentences)
2. **Notable Patterns** — Any anomalies, clusters, or significant events (1-2 bullet points)
3. **Activity Recommendations** — How these patterns affect the user's activities (1-2 bullet points)
4. **Outlook** — What these trends suggest for the coming days (1 sentence)

Rules:
- Be specific with numbers and dates
- Connect patterns to real-world impact
- Never use emoji
- Keep the total response under 200 words
- If user activities are provided, tailor recommendations to them`

// Service implements POST /history/analyze: server-side stats aggregation
// over recorded weather, then an LLM pass for a narrative analysis, cached
// by location + window + a hash of the underlying data.
type Service struct {
	store   store.Gateway
	limiter *ratelimit.Limiter
	llm     *llmclient.Client
	prompts *prompts.Library
	seasons *season.Resolver
	breaker *breaker.Registry
	logger  *zap.Logger
}

// New creates a history Service.
func New(st store.Gateway, limiter *ratelimit.Limiter, llm *llmclient.Client, pr *prompts.Library, seasons *season.Resolver, breakers *breaker.Registry, logger *zap.Logger) *Service {
	return &Service{
		store: st, limiter: limiter, llm: llm, prompts: pr, seasons: seasons, breaker: breakers,
		logger: logger.With(zap.String("component", "history")),
	}
}

// Analyze aggregates recorded weather for a location over the requested
// window and asks the model for a narrative summary, caching the result for
// an hour against a hash of the underlying data so a repeated query with
// identical history is served instantly.
func (s *Service) Analyze(ctx context.Context, identity string, req AnalyzeRequest) (AnalyzeResult, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Location))
	if slug == "" {
		return AnalyzeResult{}, fmt.Errorf("history: location is required")
	}

	days := req.Days
	switch {
	case days == 0:
		days = defaultDays
	case days < minDays:
		days = minDays
	case days > maxDays:
		days = maxDays
	}

	result, err := s.limiter.Check(ctx, identity, "history_analyze", RateLimitMax, RateLimitWindow)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("history: rate limit check: %w", err)
	}
	if !result.Allowed {
		return AnalyzeResult{}, fmt.Errorf("history: rate limit exceeded")
	}

	var loc locationDoc
	if err := s.store.FindOne(ctx, store.CollLocations, bson.M{"slug": slug}, &loc); err != nil {
		return AnalyzeResult{}, fmt.Errorf("history: unknown location %q", slug)
	}
	locationName := loc.Name
	if locationName == "" {
		locationName = slug
	}
	country := loc.Country
	if country == "" {
		country = "ZW"
	}

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	filter := bson.M{"locationSlug": slug, "recordedAt": bson.M{"$gte": cutoff}}

	var records []historyRecord
	if err := s.store.Find(ctx, store.CollWeatherHistory, filter, &records); err != nil {
		return AnalyzeResult{}, fmt.Errorf("history: query: %w", err)
	}
	if len(records) == 0 {
		return AnalyzeResult{}, fmt.Errorf("history: no history data available for this period")
	}
	sort.Slice(records, func(i, j int) bool { return records[i].RecordedAt.Before(records[j].RecordedAt) })

	cacheKey := fmt.Sprintf("%s:%d:%s", slug, days, dataHash(records))
	if cached, ok := s.cached(ctx, cacheKey); ok {
		return AnalyzeResult{Analysis: cached.Analysis, Stats: cached.Stats, Cached: true, DataPoints: len(records)}, nil
	}

	stats := aggregateStats(records)

	if s.llm == nil || (s.breaker != nil && !s.breaker.Get("anthropic").IsAllowed()) {
		return AnalyzeResult{
			Analysis:   "AI analysis is temporarily unavailable while the service recovers. The statistical summary is available above.",
			Stats:      stats,
			DataPoints: len(records),
			Error:      true,
		}, nil
	}

	se := s.seasons.Current(ctx, country)
	user := s.buildUserPrompt(locationName, loc.Elevation, se, req.Activities, stats)
	system := s.buildSystemPrompt(ctx, locationName, days)

	resp, err := s.llm.Complete(ctx, system, []llmclient.Message{{Role: "user", Text: user}}, nil, maxTokens)
	if err != nil {
		s.logger.Warn("llm history analysis failed, returning stats only", zap.String("location", slug), zap.Error(err))
		return AnalyzeResult{
			Analysis:   "AI analysis is temporarily unavailable. The statistical summary is available above.",
			Stats:      stats,
			DataPoints: len(records),
			Error:      true,
		}, nil
	}

	analysis := strings.TrimSpace(resp.Text)
	if analysis == "" {
		analysis = "Unable to generate analysis."
	}

	s.persist(ctx, cacheKey, slug, days, analysis, stats)

	return AnalyzeResult{Analysis: analysis, Stats: stats, DataPoints: len(records)}, nil
}

// List returns the raw recorded history for a location, newest first. Unlike
// Analyze it performs no LLM call or rate limiting — it's a plain read over
// data the weather fetch pipeline already recorded.
func (s *Service) List(ctx context.Context, req ListRequest) (ListResult, error) {
	slug := strings.ToLower(strings.TrimSpace(req.Location))
	if slug == "" {
		return ListResult{}, fmt.Errorf("history: location is required")
	}

	days := req.Days
	if days < 1 || days > 365 {
		return ListResult{}, fmt.Errorf("history: days must be between 1 and 365")
	}

	var loc locationDoc
	if err := s.store.FindOne(ctx, store.CollLocations, bson.M{"slug": slug}, &loc); err != nil {
		return ListResult{}, fmt.Errorf("history: unknown location %q", slug)
	}

	cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
	filter := bson.M{"locationSlug": slug, "recordedAt": bson.M{"$gte": cutoff}}

	var records []historyRecord
	if err := s.store.Find(ctx, store.CollWeatherHistory, filter, &records); err != nil {
		return ListResult{}, fmt.Errorf("history: query: %w", err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].RecordedAt.After(records[j].RecordedAt) })

	return ListResult{Location: slug, Days: days, Records: len(records), Data: records}, nil
}

func (s *Service) cached(ctx context.Context, cacheKey string) (analysisDoc, bool) {
	var doc analysisDoc
	filter := bson.M{"cacheKey": cacheKey, "expiresAt": bson.M{"$gt": time.Now()}}
	if err := s.store.FindOne(ctx, store.CollHistoryAnalysis, filter, &doc); err != nil || doc.Analysis == "" {
		return analysisDoc{}, false
	}
	return doc, true
}

// persist is best-effort — a caching failure shouldn't break the response
// that already rendered.
func (s *Service) persist(ctx context.Context, cacheKey, slug string, days int, analysis, stats string) {
	now := time.Now()
	filter := bson.M{"cacheKey": cacheKey}
	update := bson.M{"$set": bson.M{
		"cacheKey": cacheKey, "locationSlug": slug, "days": days,
		"analysis": analysis, "stats": stats,
		"expiresAt": now.Add(CacheTTL), "analyzedAt": now,
	}}
	if err := s.store.UpdateOne(ctx, store.CollHistoryAnalysis, filter, update, true); err != nil {
		s.logger.Warn("failed to cache history analysis", zap.String("location", slug), zap.Error(err))
	}
}

func (s *Service) buildSystemPrompt(ctx context.Context, locationName string, days int) string {
	template := fallbackSystemPrompt
	if p, ok := s.prompts.Get(ctx, promptKeyAnalysis); ok && p.Template != "" {
		template = p.Template
	}
	r := strings.NewReplacer("{locationName}", locationName, "{days}", fmt.Sprintf("%d", days))
	return r.Replace(template)
}

func (s *Service) buildUserPrompt(locationName string, elevation float64, se season.Season, activities []string, stats string) string {
	var activitiesNote string
	if len(activities) > 0 {
		acts := activities
		if len(acts) > maxActivities {
			acts = acts[:maxActivities]
		}
		activitiesNote = fmt.Sprintf("\nUser activities: %s. Focus recommendations on these.", strings.Join(acts, ", "))
	}

	return fmt.Sprintf(
		"Analyze this weather history for %s (elevation: %.0fm).\nSeason: %s (%s) — %s\n%s\n\nStatistical summary:\n%s",
		locationName, elevation, se.LocalName, se.Name, se.Description, activitiesNote, stats,
	)
}

// dataHash fingerprints the records actually fed into the summary so an
// identical re-query with no new data is served from cache, while a newly
// recorded observation invalidates it.
func dataHash(records []historyRecord) string {
	h := md5.New()
	for _, r := range records {
		fmt.Fprintf(h, "%s:%.2f;", r.RecordedAt.Format("2006-01-02"), r.Current.Temperature2m)
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}
