package reports

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/llmclient"
	"github.com/nyuchitech/mukoko-weather/internal/prompts"
	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/internal/store"
)

const (
	submitRateLimit  = 5
	submitRateWindow = time.Hour
	clarifyRateLimit = 10
	clarifyWindow    = time.Hour
	maxDescription   = 300
	maxListReports   = 20
	minListHours     = 1
	maxListHours     = 72
	maxClarifyTokens = 150
	promptKeyClarify = "system:report_clarification"
)

const fallbackClarificationPrompt = `You are helping a user submit a weather report for {locationName}. They selected: {reportType}.

Ask 1-2 brief follow-up questions to clarify the severity and specifics of what they're experiencing. Use simple, conversational language.

Rules:
- Ask maximum 2 questions
- Use simple language accessible to all literacy levels
- Never use emoji
- Format as a numbered list
- Keep questions under 15 words each`

// Service implements the community weather-reporting endpoints.
type Service struct {
	store   store.Gateway
	limiter *ratelimit.Limiter
	llm     *llmclient.Client
	prompts *prompts.Library
	logger  *zap.Logger
}

// New creates a reports Service.
func New(st store.Gateway, limiter *ratelimit.Limiter, llm *llmclient.Client, pr *prompts.Library, logger *zap.Logger) *Service {
	return &Service{
		store:   st,
		limiter: limiter,
		llm:     llm,
		prompts: pr,
		logger:  logger.With(zap.String("component", "reports")),
	}
}

// Submit records a community weather observation, cross-validated against
// the cached provider snapshot for the location.
func (s *Service) Submit(ctx context.Context, identity string, req SubmitRequest) (SubmitResult, error) {
	result, err := s.limiter.Check(ctx, identity, "weather_report", submitRateLimit, submitRateWindow)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("reports: rate limit check: %w", err)
	}
	if !result.Allowed {
		return SubmitResult{}, fmt.Errorf("reports: rate limit exceeded")
	}

	if !Types[req.ReportType] {
		return SubmitResult{}, fmt.Errorf("reports: invalid report type %q", req.ReportType)
	}

	severity := req.Severity
	if !Severities[severity] {
		severity = "moderate"
	}

	var loc locationDoc
	if err := s.store.FindOne(ctx, store.CollLocations, bson.M{"slug": req.LocationSlug}, &loc); err != nil {
		return SubmitResult{}, fmt.Errorf("reports: unknown location %q", req.LocationSlug)
	}

	snapshot := s.weatherSnapshot(ctx, req.LocationSlug)
	verified := crossValidate(req.ReportType, snapshot)

	ttl := defaultSeverityTTL
	if d, ok := SeverityTTL[severity]; ok {
		ttl = d
	}

	description := req.Description
	if len(description) > maxDescription {
		description = description[:maxDescription]
	}

	lat, lon := loc.Lat, loc.Lon
	if req.Lat != nil {
		lat = *req.Lat
	}
	if req.Lon != nil {
		lon = *req.Lon
	}

	now := time.Now()
	doc := reportDoc{
		LocationSlug:    req.LocationSlug,
		LocationName:    loc.Name,
		Lat:             lat,
		Lon:             lon,
		ReportType:      req.ReportType,
		Severity:        severity,
		Description:     description,
		WeatherSnapshot: snapshot,
		ReportedBy:      hashIdentity(identity),
		ReportedAt:      now,
		ExpiresAt:       now.Add(ttl),
		Upvotes:         0,
		UpvotedBy:       []string{},
		Verified:        verified,
	}

	id, err := s.store.InsertOne(ctx, store.CollWeatherReports, doc)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("reports: insert: %w", err)
	}

	return SubmitResult{ID: id, Verified: verified, ExpiresIn: int(ttl.Seconds())}, nil
}

func (s *Service) weatherSnapshot(ctx context.Context, slug string) Snapshot {
	var cached weatherCacheDoc
	if err := s.store.FindOne(ctx, store.CollWeatherCache, bson.M{"locationSlug": slug}, &cached); err != nil {
		return Snapshot{}
	}
	curr := cached.Data.Current
	temp, code, precip, wind, humidity := curr.Temperature2m, curr.WeatherCode, curr.Precipitation, curr.WindSpeed10m, curr.RelativeHumidity2m
	return Snapshot{
		Temperature:   &temp,
		WeatherCode:   &code,
		Precipitation: &precip,
		WindSpeed:     &wind,
		Humidity:      &humidity,
	}
}

// List returns recent, unexpired reports for a location.
func (s *Service) List(ctx context.Context, location string, hours int) (ListResult, error) {
	if location == "" {
		return ListResult{}, fmt.Errorf("reports: location is required")
	}
	if hours < minListHours {
		hours = minListHours
	}
	if hours > maxListHours {
		hours = maxListHours
	}

	now := time.Now()
	cutoff := now.Add(-time.Duration(hours) * time.Hour)
	filter := bson.M{
		"locationSlug": location,
		"reportedAt":   bson.M{"$gte": cutoff},
		"expiresAt":    bson.M{"$gt": now},
	}

	var docs []reportDocWithID
	if err := s.store.Find(ctx, store.CollWeatherReports, filter, &docs, options.Find().SetLimit(maxListReports)); err != nil {
		return ListResult{}, fmt.Errorf("reports: list: %w", err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].ReportedAt.After(docs[j].ReportedAt) })

	reports := make([]Report, 0, len(docs))
	for _, d := range docs {
		reports = append(reports, Report{
			ID:           d.ID.Hex(),
			LocationName: d.LocationName,
			ReportType:   d.ReportType,
			Severity:     d.Severity,
			Description:  d.Description,
			ReportedAt:   d.ReportedAt,
			Upvotes:      d.Upvotes,
			Verified:     d.Verified,
		})
	}

	return ListResult{Reports: reports, Location: location}, nil
}

// Upvote records one vote per identity per report, atomically guarding
// against double-voting via the upvotedBy array.
func (s *Service) Upvote(ctx context.Context, identity, reportID string) (UpvoteResult, error) {
	oid, err := bson.ObjectIDFromHex(reportID)
	if err != nil {
		return UpvoteResult{}, fmt.Errorf("reports: invalid report id %q", reportID)
	}

	ipHash := hashIdentity(identity)
	filter := bson.M{"_id": oid, "upvotedBy": bson.M{"$ne": ipHash}}
	update := bson.M{"$inc": bson.M{"upvotes": 1}, "$push": bson.M{"upvotedBy": ipHash}}

	var updated reportDoc
	if err := s.store.FindOneAndUpdate(ctx, store.CollWeatherReports, filter, update, false, &updated); err != nil {
		return UpvoteResult{Upvoted: false, Reason: "Already upvoted or report not found"}, nil
	}
	return UpvoteResult{Upvoted: true}, nil
}

// Clarify returns 1-2 AI-generated follow-up questions for a report type,
// falling back to a hardcoded question set when the model is unavailable.
func (s *Service) Clarify(ctx context.Context, identity string, req ClarifyRequest) (ClarifyResult, error) {
	result, err := s.limiter.Check(ctx, identity, "report_clarify", clarifyRateLimit, clarifyWindow)
	if err != nil {
		return ClarifyResult{}, fmt.Errorf("reports: rate limit check: %w", err)
	}
	if !result.Allowed {
		return ClarifyResult{}, fmt.Errorf("reports: rate limit exceeded")
	}

	if !Types[req.ReportType] {
		return ClarifyResult{}, fmt.Errorf("reports: invalid report type %q", req.ReportType)
	}

	locationName := req.LocationSlug
	var loc locationDoc
	if err := s.store.FindOne(ctx, store.CollLocations, bson.M{"slug": req.LocationSlug}, &loc); err == nil && loc.Name != "" {
		locationName = loc.Name
	}

	if s.llm == nil {
		return ClarifyResult{Questions: fallbackQuestions(req.ReportType)}, nil
	}

	system := s.clarificationPrompt(ctx, locationName, req.ReportType)
	user := "I'm reporting: " + req.ReportType

	resp, err := s.llm.Complete(ctx, system, []llmclient.Message{{Role: "user", Text: user}}, nil, maxClarifyTokens)
	if err != nil {
		s.logger.Warn("llm clarification failed, using fallback questions", zap.Error(err))
		return ClarifyResult{Questions: fallbackQuestions(req.ReportType)}, nil
	}

	questions := parseNumberedQuestions(resp.Text)
	if len(questions) == 0 {
		questions = fallbackQuestions(req.ReportType)
	}
	if len(questions) > 2 {
		questions = questions[:2]
	}
	return ClarifyResult{Questions: questions}, nil
}

func (s *Service) clarificationPrompt(ctx context.Context, locationName, reportType string) string {
	template := fallbackClarificationPrompt
	if p, ok := s.prompts.Get(ctx, promptKeyClarify); ok && p.Template != "" {
		template = p.Template
	}
	r := strings.NewReplacer("{locationName}", locationName, "{reportType}", reportType)
	return r.Replace(template)
}

// parseNumberedQuestions extracts lines that begin with a digit (the
// model's numbered-list format) and strips the leading ordinal.
func parseNumberedQuestions(text string) []string {
	var questions []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] < '0' || line[0] > '9' {
			continue
		}
		questions = append(questions, strings.TrimSpace(strings.TrimLeft(line, "0123456789.")))
	}
	return questions
}

var fallbackQuestionSets = map[string][2]string{
	"light-rain":   {"Is it a drizzle or steady light rain?", "Can you see across the street clearly?"},
	"heavy-rain":   {"Can you hear the rain hitting the roof loudly?", "Is water pooling on the ground?"},
	"thunderstorm": {"How close are the lightning flashes?", "Is there hail or just rain?"},
	"hail":         {"How large are the hailstones — pea, marble, or larger?", "Is the hail causing damage?"},
	"flooding":     {"How deep is the water on the road?", "Are vehicles able to pass?"},
	"strong-wind":  {"Are tree branches bending or breaking?", "Is it hard to walk against the wind?"},
	"clear-skies":  {"Is the sun fully visible?", "Are there any clouds at all?"},
	"fog":          {"How far can you see ahead?", "Is the fog getting thicker or thinner?"},
	"dust":         {"Can you taste the dust in the air?", "How far can you see?"},
	"frost":        {"Is the frost visible on surfaces?", "Are your car windows frosted over?"},
}

func fallbackQuestions(reportType string) []string {
	if qs, ok := fallbackQuestionSets[reportType]; ok {
		return []string{qs[0], qs[1]}
	}
	return []string{"How severe would you rate it?", "Is it affecting your plans?"}
}
