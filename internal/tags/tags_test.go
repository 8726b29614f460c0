package tags

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/store/memstore"
)

func TestKnown_LoadsFromStore(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	_, err := st.InsertOne(ctx, store.CollTags, tagDoc{Slug: "farming"})
	require.NoError(t, err)
	_, err = st.InsertOne(ctx, store.CollTags, tagDoc{Slug: "mining"})
	require.NoError(t, err)

	r := New(st, zap.NewNop())
	known := r.Known(ctx)
	assert.True(t, known["farming"])
	assert.True(t, known["mining"])
	assert.False(t, known["bogus"])
}

func TestIsKnown_FalseForUnlisted(t *testing.T) {
	r := New(memstore.New(), zap.NewNop())
	assert.False(t, r.IsKnown(context.Background(), "farming"))
}

func TestKnown_CachesAcrossCalls(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	_, err := st.InsertOne(ctx, store.CollTags, tagDoc{Slug: "city"})
	require.NoError(t, err)

	r := New(st, zap.NewNop())
	first := r.Known(ctx)

	require.NoError(t, st.DeleteOne(ctx, store.CollTags, bson.M{"slug": "city"}))

	second := r.Known(ctx)
	assert.Equal(t, first, second)
}
