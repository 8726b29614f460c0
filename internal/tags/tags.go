// Package tags serves the known location-tag whitelist, used by the chat
// orchestrator's list_locations_by_tag tool to reject arbitrary tags.
package tags

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/store"
)

const cacheTTL = 5 * time.Minute

// fallback is used when the store is unavailable and no cached value
// exists yet, matching the seed tag set.
var fallback = map[string]bool{
	"city": true, "farming": true, "mining": true, "tourism": true,
	"education": true, "border": true, "travel": true, "national-park": true,
}

type tagDoc struct {
	Slug string `bson:"slug"`
}

// Registry serves the known-tag set, refreshed at most once per cacheTTL.
type Registry struct {
	store store.Gateway

	mu      sync.RWMutex
	known   map[string]bool
	knownAt time.Time
	logger  *zap.Logger
}

// New creates a tag Registry backed by st.
func New(st store.Gateway, logger *zap.Logger) *Registry {
	return &Registry{store: st, logger: logger.With(zap.String("component", "tags"))}
}

// Known returns the current set of known tag slugs, refreshing from the
// store at most once per cacheTTL and degrading to a stale or hardcoded
// set when the store is unavailable.
func (r *Registry) Known(ctx context.Context) map[string]bool {
	r.mu.RLock()
	if r.known != nil && time.Since(r.knownAt) < cacheTTL {
		defer r.mu.RUnlock()
		return r.known
	}
	r.mu.RUnlock()

	var docs []tagDoc
	if err := r.store.Find(ctx, store.CollTags, bson.M{}, &docs); err != nil {
		r.logger.Warn("failed to load known tags, serving stale/fallback set", zap.Error(err))
		r.mu.RLock()
		defer r.mu.RUnlock()
		if r.known != nil {
			return r.known
		}
		return fallback
	}

	known := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.Slug != "" {
			known[d.Slug] = true
		}
	}

	r.mu.Lock()
	r.known = known
	r.knownAt = time.Now()
	r.mu.Unlock()

	return known
}

// IsKnown reports whether tag is in the known-tag set.
func (r *Registry) IsKnown(ctx context.Context, tag string) bool {
	return r.Known(ctx)[tag]
}
