package geo

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nyuchitech/mukoko-weather/internal/store"
)

// IsInSupportedRegion reports whether (lat, lon) falls inside an active
// region's bounding box. Falls back to a hardcoded Africa/ASEAN bounding
// box when the regions collection is unavailable or empty, so the service
// never loses geo coverage to a transient store outage.
func IsInSupportedRegion(ctx context.Context, st store.Gateway, lat, lon float64) bool {
	var r regionDoc
	filter := bson.M{
		"active":       true,
		"bounds.south": bson.M{"$lte": lat + 1},
		"bounds.north": bson.M{"$gte": lat - 1},
		"bounds.west":  bson.M{"$lte": lon + 1},
		"bounds.east":  bson.M{"$gte": lon - 1},
	}
	if err := st.FindOne(ctx, store.CollRegions, filter, &r); err == nil {
		return true
	}

	if lat >= -23 && lat <= 38 && lon >= -18 && lon <= 52 {
		return true // Africa
	}
	if lat >= -11 && lat <= 28 && lon >= 92 && lon <= 142 {
		return true // ASEAN
	}
	return false
}
