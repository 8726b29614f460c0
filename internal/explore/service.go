package explore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/llmclient"
	"github.com/nyuchitech/mukoko-weather/internal/prompts"
	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/internal/store"
)

const fallbackSystemPrompt = `You are Shamwari Weather, helping users find locations based on weather conditions.

The user is searching for: "{query}"

Use your tools to find locations that match their criteria. Return a brief summary of your findings.

Rules:
- Search for relevant locations using the available tools
- Fetch weather for the top matches to verify they meet the criteria
- Be concise — summarize in 2-3 sentences
- Never use emoji
- If no locations match, suggest alternatives`

// Service implements POST /explore/search.
type Service struct {
	store   store.Gateway
	llm     *llmclient.Client
	prompts *prompts.Library
	limiter *ratelimit.Limiter
	breaker *breaker.Registry
	logger  *zap.Logger

	mu        sync.Mutex
	context   []locationDoc
	contextAt time.Time
}

// New creates an explore Service.
func New(st store.Gateway, llm *llmclient.Client, pr *prompts.Library, limiter *ratelimit.Limiter, breakers *breaker.Registry, logger *zap.Logger) *Service {
	return &Service{
		store:   st,
		llm:     llm,
		prompts: pr,
		limiter: limiter,
		breaker: breakers,
		logger:  logger.With(zap.String("component", "explore")),
	}
}

// Search resolves query to a small set of matching locations, using the
// LLM's tool-use loop when the anthropic circuit is closed, falling back
// to a plain substring scan otherwise.
func (s *Service) Search(ctx context.Context, identity, query string) (Response, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Response{}, fmt.Errorf("explore: query is required")
	}
	if len(query) > maxQueryLen {
		query = query[:maxQueryLen]
	}

	result, err := s.limiter.Check(ctx, identity, "explore_search", 15, time.Hour)
	if err != nil {
		return Response{}, fmt.Errorf("explore: rate limit check: %w", err)
	}
	if !result.Allowed {
		return Response{}, fmt.Errorf("explore: rate limit exceeded")
	}

	if s.llm == nil || !s.breaker.Get("anthropic").IsAllowed() {
		return s.textSearchFallback(ctx, query), nil
	}

	resp, err := s.aiSearch(ctx, query)
	if err != nil {
		s.logger.Warn("ai search failed, falling back to substring search", zap.Error(err))
		return s.textSearchFallback(ctx, query), nil
	}
	return resp, nil
}

func (s *Service) aiSearch(ctx context.Context, query string) (Response, error) {
	locations := s.cachedContext(ctx)

	system := s.buildSystemPrompt(ctx, query, locations)
	messages := []llmclient.Message{{Role: "user", Text: query}}

	var collected []Result
	var finalText string

	for i := 0; i < maxToolIterations; i++ {
		resp, err := s.llm.Complete(ctx, system, messages, tools, int64(maxTokens))
		if err != nil {
			return Response{}, err
		}
		if resp.Text != "" {
			finalText = resp.Text
		}
		if len(resp.ToolUses) == 0 {
			break
		}

		messages = append(messages, llmclient.Message{Role: "assistant", Text: resp.Text, ToolUses: resp.ToolUses})

		for _, call := range resp.ToolUses {
			content := execTool(ctx, s.store, locations, call.Name, call.Input)
			messages = append(messages, llmclient.Message{ToolResult: &llmclient.ToolResult{ToolUseID: call.ID, Content: content}})
			mergeToolResult(&collected, call.Name, content)
		}
	}

	if len(collected) > maxResults {
		collected = collected[:maxResults]
	}
	summary := finalText
	if summary == "" {
		summary = fmt.Sprintf("Found %d locations matching your search.", len(collected))
	}
	return Response{Locations: collected, Summary: summary}, nil
}

// mergeToolResult folds a tool's JSON result into collected: a
// search_locations result appends new unseen slugs; a get_weather result
// attaches its fields onto the matching already-collected location.
func mergeToolResult(collected *[]Result, toolName, content string) {
	switch toolName {
	case "search_locations":
		var results []Result
		if err := json.Unmarshal([]byte(content), &results); err != nil {
			return
		}
		seen := make(map[string]bool, len(*collected))
		for _, c := range *collected {
			seen[c.Slug] = true
		}
		for _, r := range results {
			if r.Slug != "" && !seen[r.Slug] {
				*collected = append(*collected, r)
				seen[r.Slug] = true
			}
		}
	case "get_weather":
		var w weatherToolResult
		if err := json.Unmarshal([]byte(content), &w); err != nil || w.Error != "" || w.Slug == "" {
			return
		}
		for i := range *collected {
			if (*collected)[i].Slug == w.Slug {
				(*collected)[i].Temperature = w.Temperature
				(*collected)[i].Humidity = w.Humidity
				(*collected)[i].WindSpeed = w.WindSpeed
				(*collected)[i].WeatherCode = w.WeatherCode
				return
			}
		}
	}
}

// textSearchFallback scans the cached location context for a simple
// substring match when the LLM is unavailable, merging in cached weather
// for each hit the same way the AI path does.
func (s *Service) textSearchFallback(ctx context.Context, query string) Response {
	locations := s.cachedContext(ctx)
	q := strings.ToLower(query)

	var results []Result
	for _, loc := range locations {
		name := strings.ToLower(loc.Name)
		province := strings.ToLower(loc.Province)
		tagBlob := strings.ToLower(strings.Join(loc.Tags, " "))

		if strings.Contains(name, q) || strings.Contains(province, q) || strings.Contains(tagBlob, q) {
			r := Result{Slug: loc.Slug, Name: loc.Name, Province: loc.Province, Country: loc.Country, Tags: loc.Tags}
			if _, w := execWeather(ctx, s.store, loc.Slug); w.Error == "" {
				r.Temperature, r.Humidity, r.WindSpeed, r.WeatherCode = w.Temperature, w.Humidity, w.WindSpeed, w.WeatherCode
			}
			results = append(results, r)
		}
	}
	results = capResults(results, maxResults)

	summary := fmt.Sprintf("No locations found matching %q. Try a different search term.", query)
	if len(results) > 0 {
		summary = fmt.Sprintf("Found %d locations matching %q.", len(results), query)
	}
	return Response{Locations: results, Summary: summary}
}

func (s *Service) buildSystemPrompt(ctx context.Context, query string, locations []locationDoc) string {
	template := fallbackSystemPrompt
	if p, ok := s.prompts.Get(ctx, promptKey); ok && p.Template != "" {
		template = p.Template
	}
	system := strings.ReplaceAll(template, "{query}", query)

	var names []string
	for i, l := range locations {
		if i >= 50 {
			break
		}
		names = append(names, fmt.Sprintf("%s (%s)", l.Name, l.Slug))
	}
	return system + "\n\nAvailable locations include: " + strings.Join(names, ", ")
}

func (s *Service) cachedContext(ctx context.Context) []locationDoc {
	s.mu.Lock()
	if s.context != nil && time.Since(s.contextAt) < contextTTL {
		defer s.mu.Unlock()
		return s.context
	}
	s.mu.Unlock()

	docs, err := loadLocationContext(ctx, s.store)
	if err != nil {
		s.logger.Warn("failed to load location context, serving stale cache", zap.Error(err))
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.context
	}

	s.mu.Lock()
	s.context = docs
	s.contextAt = time.Now()
	s.mu.Unlock()
	return docs
}
