// Package store provides the document-store gateway used by every domain
// package to read and write persistent state: locations, weather cache
// entries, AI summaries, suitability rules, rate limit counters, community
// reports, and history analysis results.
//
// The gateway wraps go.mongodb.org/mongo-driver/v2 behind a small interface
// so domain packages can be tested against an in-memory fake (see
// store/memstore) without a live MongoDB instance.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/config"
)

// Collection names, matching the original service's MongoDB schema.
const (
	CollDeviceProfiles   = "device_profiles"
	CollLocations        = "locations"
	CollWeatherCache     = "weather_cache"
	CollAISummaries      = "ai_summaries"
	CollActivities       = "activities"
	CollSuitabilityRules = "suitability_rules"
	CollRateLimits       = "rate_limits"
	CollTags             = "tags"
	CollAIPrompts        = "ai_prompts"
	CollAISuggestedRules = "ai_suggested_rules"
	CollWeatherReports   = "weather_reports"
	CollHistoryAnalysis  = "history_analysis"
	CollWeatherHistory   = "weather_history"
	CollSeasons          = "seasons"
	CollRegions          = "regions"
	CollCountries        = "countries"
	CollProvinces        = "provinces"
)

// Gateway is the document-store contract consumed by domain packages. It is
// implemented by *Store (real MongoDB) and by store/memstore.Fake (tests).
type Gateway interface {
	FindOne(ctx context.Context, collection string, filter bson.M, out any) error
	Find(ctx context.Context, collection string, filter bson.M, out any, opts ...*options.FindOptionsBuilder) error
	InsertOne(ctx context.Context, collection string, doc any) (string, error)
	UpdateOne(ctx context.Context, collection string, filter, update bson.M, upsert bool) error
	FindOneAndUpdate(ctx context.Context, collection string, filter, update bson.M, upsert bool, out any) error
	DeleteOne(ctx context.Context, collection string, filter bson.M) error
	Count(ctx context.Context, collection string, filter bson.M) (int64, error)
}

// ErrNotFound is returned by FindOne/FindOneAndUpdate when no document
// matches the filter and upsert was not requested.
var ErrNotFound = fmt.Errorf("store: document not found")

// Store is the MongoDB-backed Gateway implementation.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// Connect lazily dials MongoDB and verifies connectivity with Ping. The
// client is held for the lifetime of the process, matching the original
// service's warm-reuse-across-invocations design.
func Connect(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Store, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName("mukoko-weather").
		SetMaxConnIdleTime(5 * time.Minute)

	client, err := mongo.Connect(clientOpts)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	s := &Store{
		client: client,
		db:     client.Database(cfg.Database),
		logger: logger.With(zap.String("component", "store")),
	}

	logger.Info("connected to document store", zap.String("database", cfg.Database))
	return s, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) collection(name string) *mongo.Collection {
	return s.db.Collection(name)
}

// FindOne decodes the first document matching filter into out. Returns
// ErrNotFound if nothing matches.
func (s *Store) FindOne(ctx context.Context, collection string, filter bson.M, out any) error {
	err := s.collection(collection).FindOne(ctx, filter).Decode(out)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return fmt.Errorf("store: find_one %s: %w", collection, err)
	}
	return nil
}

// Find decodes every matching document into out, which must point to a
// slice.
func (s *Store) Find(ctx context.Context, collection string, filter bson.M, out any, opts ...*options.FindOptionsBuilder) error {
	cur, err := s.collection(collection).Find(ctx, filter, opts...)
	if err != nil {
		return fmt.Errorf("store: find %s: %w", collection, err)
	}
	defer cur.Close(ctx)

	if err := cur.All(ctx, out); err != nil {
		return fmt.Errorf("store: find %s decode: %w", collection, err)
	}
	return nil
}

// InsertOne inserts doc and returns the hex-encoded inserted ID.
func (s *Store) InsertOne(ctx context.Context, collection string, doc any) (string, error) {
	res, err := s.collection(collection).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("store: insert_one %s: %w", collection, err)
	}
	if oid, ok := res.InsertedID.(bson.ObjectID); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprintf("%v", res.InsertedID), nil
}

// UpdateOne applies update to the first document matching filter.
func (s *Store) UpdateOne(ctx context.Context, collection string, filter, update bson.M, upsert bool) error {
	opts := options.UpdateOne().SetUpsert(upsert)
	_, err := s.collection(collection).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("store: update_one %s: %w", collection, err)
	}
	return nil
}

// FindOneAndUpdate atomically applies update and decodes the post-update
// document into out — used by the rate limiter's atomic $inc counter.
func (s *Store) FindOneAndUpdate(ctx context.Context, collection string, filter, update bson.M, upsert bool, out any) error {
	opts := options.FindOneAndUpdate().
		SetUpsert(upsert).
		SetReturnDocument(options.After)

	err := s.collection(collection).FindOneAndUpdate(ctx, filter, update, opts).Decode(out)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return ErrNotFound
		}
		return fmt.Errorf("store: find_one_and_update %s: %w", collection, err)
	}
	return nil
}

// DeleteOne removes the first document matching filter.
func (s *Store) DeleteOne(ctx context.Context, collection string, filter bson.M) error {
	_, err := s.collection(collection).DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("store: delete_one %s: %w", collection, err)
	}
	return nil
}

// Count returns the number of documents matching filter.
func (s *Store) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	n, err := s.collection(collection).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("store: count %s: %w", collection, err)
	}
	return n, nil
}

// EnsureIndexes creates the geo, text-search, and TTL indexes the domain
// packages rely on. It is idempotent and safe to call on every boot.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	locations := s.collection(CollLocations)
	if _, err := locations.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "geo", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "name", Value: "text"}, {Key: "country", Value: "text"}}},
		{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
	}); err != nil {
		return fmt.Errorf("store: ensure location indexes: %w", err)
	}

	rateLimits := s.collection(CollRateLimits)
	if _, err := rateLimits.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}); err != nil {
		return fmt.Errorf("store: ensure rate-limit TTL index: %w", err)
	}

	weatherCache := s.collection(CollWeatherCache)
	if _, err := weatherCache.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}); err != nil {
		return fmt.Errorf("store: ensure weather-cache TTL index: %w", err)
	}

	aiSummaries := s.collection(CollAISummaries)
	if _, err := aiSummaries.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expiresAt", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}); err != nil {
		return fmt.Errorf("store: ensure ai-summary TTL index: %w", err)
	}

	historyAnalysis := s.collection(CollHistoryAnalysis)
	if _, err := historyAnalysis.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "contentHash", Value: 1}},
	}); err != nil {
		return fmt.Errorf("store: ensure history-analysis index: %w", err)
	}

	s.logger.Info("store indexes ensured")
	return nil
}
