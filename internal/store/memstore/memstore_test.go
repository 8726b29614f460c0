package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nyuchitech/mukoko-weather/internal/store"
)

type expiringDoc struct {
	Slug      string    `bson:"slug"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

func TestFake_FindOne_GtOperator(t *testing.T) {
	f := New()
	ctx := context.Background()
	now := time.Now()

	_, err := f.InsertOne(ctx, "weather_cache", expiringDoc{Slug: "harare", ExpiresAt: now.Add(time.Hour)})
	require.NoError(t, err)
	_, err = f.InsertOne(ctx, "weather_cache", expiringDoc{Slug: "bulawayo", ExpiresAt: now.Add(-time.Hour)})
	require.NoError(t, err)

	var out expiringDoc
	err = f.FindOne(ctx, "weather_cache", bson.M{"slug": "harare", "expiresAt": bson.M{"$gt": now}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "harare", out.Slug)

	err = f.FindOne(ctx, "weather_cache", bson.M{"slug": "bulawayo", "expiresAt": bson.M{"$gt": now}}, &out)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

type seasonDoc struct {
	CountryCode string `bson:"countryCode"`
	Name        string `bson:"name"`
	Months      []int  `bson:"months"`
}

func TestFake_FindOne_ArrayContainsScalar(t *testing.T) {
	f := New()
	ctx := context.Background()

	_, err := f.InsertOne(ctx, "seasons", seasonDoc{CountryCode: "ZW", Name: "Cool dry", Months: []int{6, 7, 8}})
	require.NoError(t, err)

	var out seasonDoc
	err = f.FindOne(ctx, "seasons", bson.M{"countryCode": "ZW", "months": 7}, &out)
	require.NoError(t, err)
	assert.Equal(t, "Cool dry", out.Name)

	err = f.FindOne(ctx, "seasons", bson.M{"countryCode": "ZW", "months": 1}, &out)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

type testDoc struct {
	Slug  string `bson:"slug"`
	Count int    `bson:"count"`
}

func TestFake_InsertAndFindOne(t *testing.T) {
	f := New()
	ctx := context.Background()

	_, err := f.InsertOne(ctx, "locations", testDoc{Slug: "harare", Count: 1})
	require.NoError(t, err)

	var out testDoc
	err = f.FindOne(ctx, "locations", bson.M{"slug": "harare"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "harare", out.Slug)
}

func TestFake_FindOne_NotFound(t *testing.T) {
	f := New()
	var out testDoc
	err := f.FindOne(context.Background(), "locations", bson.M{"slug": "missing"}, &out)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFake_FindOneAndUpdate_AtomicIncrement(t *testing.T) {
	f := New()
	ctx := context.Background()

	var out testDoc
	for i := 0; i < 3; i++ {
		err := f.FindOneAndUpdate(ctx, "rate_limits",
			bson.M{"slug": "chat:1.2.3.4"},
			bson.M{"$inc": bson.M{"count": 1}, "$setOnInsert": bson.M{"slug": "chat:1.2.3.4"}},
			true, &out)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, out.Count)
}

func TestFake_UpdateOne_NoUpsertNotFound(t *testing.T) {
	f := New()
	err := f.UpdateOne(context.Background(), "locations", bson.M{"slug": "nowhere"}, bson.M{"$set": bson.M{"count": 2}}, false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFake_Count(t *testing.T) {
	f := New()
	ctx := context.Background()
	_, _ = f.InsertOne(ctx, "tags", testDoc{Slug: "city"})
	_, _ = f.InsertOne(ctx, "tags", testDoc{Slug: "farming"})

	n, err := f.Count(ctx, "tags", bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestFake_DeleteOne(t *testing.T) {
	f := New()
	ctx := context.Background()
	_, _ = f.InsertOne(ctx, "tags", testDoc{Slug: "city"})

	err := f.DeleteOne(ctx, "tags", bson.M{"slug": "city"})
	require.NoError(t, err)

	n, _ := f.Count(ctx, "tags", bson.M{})
	assert.Equal(t, int64(0), n)
}
