package geo

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nyuchitech/mukoko-weather/internal/store"
)

// DedupRadiusKm returns the distance, in kilometers, within which a new
// location is considered a duplicate of an existing one. Zimbabwe uses a
// tighter radius since its location directory is denser.
func DedupRadiusKm(country string) float64 {
	if strings.ToUpper(country) == "ZW" {
		return dedupRadiusZWKm
	}
	return dedupRadiusDefaultKm
}

// FindDuplicate looks for an existing location within radiusKm of (lat,
// lon) using a $near geospatial query. Returns ok=false if none is found
// or the query fails.
func FindDuplicate(ctx context.Context, st store.Gateway, lat, lon, radiusKm float64) (Location, bool) {
	var loc Location
	filter := bson.M{
		"geo": bson.M{
			"$near": bson.M{
				"$geometry":    bson.M{"type": "Point", "coordinates": []float64{lon, lat}},
				"$maxDistance": radiusKm * 1000,
			},
		},
	}
	if err := st.FindOne(ctx, store.CollLocations, filter, &loc); err != nil {
		return Location{}, false
	}
	return loc, true
}

// InferTags derives a location's tags from its geocoded metadata. Every
// newly discovered location is tagged "city" by default until a human
// curator assigns more specific tags (farming, mining, tourism, ...).
func InferTags(g Geocoded) []string {
	return []string{"city"}
}
