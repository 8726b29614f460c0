// Package suitability evaluates weather-based activity ratings from
// database-defined rules, keeping the actual thresholds server-side so
// clients and the chat orchestrator can't hallucinate suitability advice.
package suitability

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/store"
)

// KeyPattern matches a rule key: "activity:<id>" or "category:<id>".
var KeyPattern = regexp.MustCompile(`^(activity|category):[a-z0-9-]+$`)

// Condition is a single threshold check within a rule, evaluated in
// declared order; the first one that matches produces the rating.
type Condition struct {
	Field          string  `json:"field" bson:"field"`
	Operator       string  `json:"operator" bson:"operator"` // gt, gte, lt, lte, eq
	Value          float64 `json:"value" bson:"value"`
	Level          string  `json:"level" bson:"level"`
	Label          string  `json:"label" bson:"label"`
	Detail         string  `json:"detail" bson:"detail"`
	MetricTemplate string  `json:"metricTemplate" bson:"metricTemplate"`
}

// Fallback is the rating returned when no condition matches.
type Fallback struct {
	Level  string `json:"level" bson:"level"`
	Label  string `json:"label" bson:"label"`
	Detail string `json:"detail" bson:"detail"`
}

// Rule is a single suitability rule document, keyed by "activity:<id>" or
// "category:<id>".
type Rule struct {
	Key        string      `json:"key" bson:"key"`
	Conditions []Condition `json:"conditions" bson:"conditions"`
	Fallback   Fallback    `json:"fallback" bson:"fallback"`
}

// Rating is the evaluated suitability of one activity at one location.
type Rating struct {
	Activity string `json:"activity"`
	Level    string `json:"level"`
	Label    string `json:"label"`
	Detail   string `json:"detail"`
	Metric   string `json:"metric,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Activity is a user-facing activity definition.
type Activity struct {
	ID       string `json:"id" bson:"id"`
	Label    string `json:"label" bson:"label"`
	Category string `json:"category" bson:"category"`
}

// Evaluator evaluates activity suitability against weather insights.
type Evaluator struct {
	store  store.Gateway
	logger *zap.Logger
}

// New creates an Evaluator backed by st.
func New(st store.Gateway, logger *zap.Logger) *Evaluator {
	return &Evaluator{store: st, logger: logger.With(zap.String("component", "suitability"))}
}

// Rules returns every suitability rule, or a single rule by key when key is
// non-empty. Callers must validate key against KeyPattern before calling
// with an untrusted key.
func (e *Evaluator) Rules(ctx context.Context, key string) ([]Rule, error) {
	if key != "" {
		var r Rule
		if err := e.store.FindOne(ctx, store.CollSuitabilityRules, bson.M{"key": key}, &r); err != nil {
			return nil, err
		}
		return []Rule{r}, nil
	}

	var rules []Rule
	if err := e.store.Find(ctx, store.CollSuitabilityRules, bson.M{}, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Evaluate rates each activity at a location given its weather insights
// (field name -> current value), capped at 10 activities per call. An
// activity unknown to the activities collection produces an error rating
// rather than aborting the whole batch.
func (e *Evaluator) Evaluate(ctx context.Context, insights map[string]float64, activityIDs []string, rulesCache map[string]Rule) []Rating {
	if len(activityIDs) > 10 {
		activityIDs = activityIDs[:10]
	}

	ratings := make([]Rating, 0, len(activityIDs))
	for _, id := range activityIDs {
		ratings = append(ratings, e.evaluateOne(ctx, insights, id, rulesCache))
	}
	return ratings
}

func (e *Evaluator) evaluateOne(ctx context.Context, insights map[string]float64, activityID string, rulesCache map[string]Rule) Rating {
	var activity Activity
	if err := e.store.FindOne(ctx, store.CollActivities, bson.M{"id": activityID}, &activity); err != nil {
		return Rating{Activity: activityID, Error: "Unknown activity"}
	}

	category := activity.Category
	if category == "" {
		category = "casual"
	}
	label := activity.Label
	if label == "" {
		label = activityID
	}

	rule, ok := e.lookupRule(ctx, activityID, category, rulesCache)
	if !ok {
		return Rating{Activity: label, Level: "good", Label: "Generally suitable", Detail: "No specific weather concerns for this activity."}
	}

	for _, cond := range rule.Conditions {
		value, present := insights[cond.Field]
		if !present {
			continue
		}
		if !matches(cond.Operator, value, cond.Value) {
			continue
		}
		metric := ""
		if cond.MetricTemplate != "" {
			metric = formatMetric(cond.MetricTemplate, value)
		}
		return Rating{Activity: label, Level: cond.Level, Label: cond.Label, Detail: cond.Detail, Metric: metric}
	}

	return Rating{
		Activity: label,
		Level:    orDefault(rule.Fallback.Level, "good"),
		Label:    orDefault(rule.Fallback.Label, "Generally suitable"),
		Detail:   rule.Fallback.Detail,
	}
}

// lookupRule tries "activity:<id>" then "category:<category>", consulting
// and populating rulesCache so a single request never queries the same key
// twice.
func (e *Evaluator) lookupRule(ctx context.Context, activityID, category string, rulesCache map[string]Rule) (Rule, bool) {
	for _, key := range []string{"activity:" + activityID, "category:" + category} {
		if r, ok := rulesCache[key]; ok {
			return r, true
		}
		var r Rule
		if err := e.store.FindOne(ctx, store.CollSuitabilityRules, bson.M{"key": key}, &r); err == nil {
			rulesCache[key] = r
			return r, true
		}
	}
	return Rule{}, false
}

func matches(operator string, value, threshold float64) bool {
	switch operator {
	case "gt":
		return value > threshold
	case "gte":
		return value >= threshold
	case "lt":
		return value < threshold
	case "lte":
		return value <= threshold
	case "eq":
		return value == threshold
	default:
		return false
	}
}

func formatMetric(template string, value float64) string {
	return strings.ReplaceAll(template, "{value}", fmt.Sprintf("%.1f", value))
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
