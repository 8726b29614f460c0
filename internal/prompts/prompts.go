// Package prompts serves database-driven AI prompt templates (system
// prompts, suggested-question rules, clarification templates). The bulk
// lists returned by All and SuggestedRules are held in a short
// process-local cache; single-key lookups through Get always query the
// store.
package prompts

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/store"
)

const cacheTTL = 5 * time.Minute

// Prompt is a single named prompt template.
type Prompt struct {
	PromptKey string `json:"promptKey" bson:"promptKey"`
	Template  string `json:"template" bson:"template"`
	Active    bool   `json:"active" bson:"active"`
	Order     int    `json:"order" bson:"order"`
}

// SuggestedRule is a suggested-question rule surfaced in the chat UI,
// grouped by category (weather/activity/generic) and ordered within it.
type SuggestedRule struct {
	Category string `json:"category" bson:"category"`
	Text     string `json:"text" bson:"text"`
	Active   bool   `json:"active" bson:"active"`
	Order    int    `json:"order" bson:"order"`
}

// categoryRank orders suggested rules by category priority before order,
// matching the documented weather > activity > generic precedence.
var categoryRank = map[string]int{"weather": 0, "activity": 1, "generic": 2}

// Library serves prompts and suggested rules, caching each for 5 minutes.
type Library struct {
	store  store.Gateway
	mu     sync.RWMutex
	logger *zap.Logger

	prompts     []Prompt
	promptsAt   time.Time
	suggested   []SuggestedRule
	suggestedAt time.Time
}

// New creates a prompt Library backed by st.
func New(st store.Gateway, logger *zap.Logger) *Library {
	return &Library{store: st, logger: logger.With(zap.String("component", "prompts"))}
}

// Get returns a single active prompt by key, or ok=false if none is active
// under that key. Single-key lookups always hit the store; only the bulk
// list is cached, matching the original service's behaviour.
func (l *Library) Get(ctx context.Context, key string) (Prompt, bool) {
	var p Prompt
	err := l.store.FindOne(ctx, store.CollAIPrompts, bson.M{"promptKey": key, "active": true}, &p)
	if err != nil {
		return Prompt{}, false
	}
	return p, true
}

// All returns every active prompt, ordered by their Order field, refreshing
// from the store at most once per cacheTTL.
func (l *Library) All(ctx context.Context) []Prompt {
	l.mu.RLock()
	if l.prompts != nil && time.Since(l.promptsAt) < cacheTTL {
		defer l.mu.RUnlock()
		return l.prompts
	}
	l.mu.RUnlock()

	var docs []Prompt
	if err := l.store.Find(ctx, store.CollAIPrompts, bson.M{"active": true}, &docs); err != nil {
		l.logger.Warn("failed to load prompts, serving stale cache", zap.Error(err))
		l.mu.RLock()
		defer l.mu.RUnlock()
		return l.prompts
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Order < docs[j].Order })

	l.mu.Lock()
	l.prompts = docs
	l.promptsAt = time.Now()
	l.mu.Unlock()

	return docs
}

// SuggestedRules returns every active suggested-question rule, sorted by
// category priority then order, refreshing at most once per cacheTTL.
func (l *Library) SuggestedRules(ctx context.Context) []SuggestedRule {
	l.mu.RLock()
	if l.suggested != nil && time.Since(l.suggestedAt) < cacheTTL {
		defer l.mu.RUnlock()
		return l.suggested
	}
	l.mu.RUnlock()

	var docs []SuggestedRule
	if err := l.store.Find(ctx, store.CollAISuggestedRules, bson.M{"active": true}, &docs); err != nil {
		l.logger.Warn("failed to load suggested rules, serving stale cache", zap.Error(err))
		l.mu.RLock()
		defer l.mu.RUnlock()
		return l.suggested
	}
	sort.Slice(docs, func(i, j int) bool {
		if categoryRank[docs[i].Category] != categoryRank[docs[j].Category] {
			return categoryRank[docs[i].Category] < categoryRank[docs[j].Category]
		}
		return docs[i].Order < docs[j].Order
	})

	l.mu.Lock()
	l.suggested = docs
	l.suggestedAt = time.Now()
	l.mu.Unlock()

	return docs
}
