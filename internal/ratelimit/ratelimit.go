// Package ratelimit implements the store-backed per-identity rate limiter
// shared by every public endpoint: chat, reports, history analysis.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"golang.org/x/time/rate"

	"github.com/nyuchitech/mukoko-weather/internal/store"
)

// Result is the outcome of a Check call.
type Result struct {
	Allowed   bool
	Remaining int
}

type counterDoc struct {
	Key       string    `bson:"key"`
	Count     int       `bson:"count"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

// burstLimiterTTL bounds how long an idle per-key in-process limiter is
// kept around before it's evicted, so a long-running process doesn't
// accumulate one rate.Limiter per distinct identity forever.
const burstLimiterTTL = 10 * time.Minute

type burstEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter enforces fixed-window rate limits using an atomic counter
// document per (action, identity) pair. There is no per-window key
// rotation — the store's TTL index on expiresAt reclaims expired windows,
// and the next request for that identity starts a fresh window on insert.
//
// An in-process token-bucket pre-check short-circuits obvious single-key
// bursts (a client hammering one action) without a store round trip; the
// store counter remains the authoritative limit.
type Limiter struct {
	store store.Gateway

	mu     sync.Mutex
	bursts map[string]*burstEntry
}

// New creates a Limiter backed by st.
func New(st store.Gateway) *Limiter {
	return &Limiter{store: st, bursts: make(map[string]*burstEntry)}
}

// Check atomically increments the counter for "{action}:{identity}" and
// reports whether it is still within max requests per window.
func (l *Limiter) Check(ctx context.Context, identity, action string, max int, window time.Duration) (Result, error) {
	key := action + ":" + identity

	if !l.allowBurst(key, max, window) {
		return Result{Allowed: false, Remaining: 0}, nil
	}

	now := time.Now()
	var doc counterDoc
	filter := bson.M{"key": key}
	update := bson.M{
		"$inc":         bson.M{"count": 1},
		"$setOnInsert": bson.M{"key": key, "expiresAt": now.Add(window)},
	}

	if err := l.store.FindOneAndUpdate(ctx, store.CollRateLimits, filter, update, true, &doc); err != nil {
		return Result{}, err
	}

	count := doc.Count
	if count == 0 {
		count = 1
	}
	remaining := max - count
	if remaining < 0 {
		remaining = 0
	}

	return Result{Allowed: count <= max, Remaining: remaining}, nil
}

// allowBurst reports whether key's in-process token bucket has a token
// available, lazily creating one sized to spend the whole window's
// allowance at an even rate, and evicting stale entries opportunistically.
func (l *Limiter) allowBurst(key string, max int, window time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.bursts[key]
	if !ok {
		limit := rate.Limit(float64(max) / window.Seconds())
		entry = &burstEntry{limiter: rate.NewLimiter(limit, max)}
		l.bursts[key] = entry
	}
	entry.lastSeen = now

	for k, e := range l.bursts {
		if now.Sub(e.lastSeen) > burstLimiterTTL {
			delete(l.bursts, k)
		}
	}

	return entry.limiter.Allow()
}
