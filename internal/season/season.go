// Package season resolves the current season for a country, preferring a
// database-maintained calendar and falling back to Zimbabwe's traditional
// four-season calendar when no record exists.
package season

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/nyuchitech/mukoko-weather/internal/store"
)

// Season describes the current season for a location's country.
type Season struct {
	Name        string `json:"name"`
	LocalName   string `json:"shona"`
	Description string `json:"description"`
}

// doc mirrors the seasons collection's document shape.
type doc struct {
	CountryCode string `bson:"countryCode"`
	Name        string `bson:"name"`
	LocalName   string `bson:"localName"`
	Description string `bson:"description"`
	Months      []int  `bson:"months"`
}

// Resolver looks up the current season, falling back to a deterministic
// calendar when no store record matches.
type Resolver struct {
	store store.Gateway
}

// New creates a season Resolver backed by st.
func New(st store.Gateway) *Resolver {
	return &Resolver{store: st}
}

// Current returns the season for the given ISO 3166-1 alpha-2 country code
// (case-insensitive), defaulting to "ZW" when country is not exactly two
// characters.
func (r *Resolver) Current(ctx context.Context, country string) Season {
	if len(country) != 2 {
		country = "ZW"
	}
	country = strings.ToUpper(country)
	month := int(time.Now().UTC().Month())

	var d doc
	filter := bson.M{"countryCode": country, "months": month}
	if err := r.store.FindOne(ctx, store.CollSeasons, filter, &d); err == nil {
		local := d.LocalName
		if local == "" {
			local = d.Name
		}
		return Season{Name: d.Name, LocalName: local, Description: d.Description}
	}

	return zimbabweFallback(month)
}

// zimbabweFallback reproduces the original service's hardcoded four-season
// calendar, used whenever the database has no matching season record.
func zimbabweFallback(month int) Season {
	switch {
	case month == 11 || month == 12 || month <= 3:
		return Season{Name: "Wet season", LocalName: "Masika", Description: "The rainy season brings heavy afternoon thunderstorms."}
	case month == 4 || month == 5:
		return Season{Name: "Post-rain", LocalName: "Munakamwe", Description: "Temperatures moderate as the rains taper off."}
	case month >= 6 && month <= 8:
		return Season{Name: "Cool dry", LocalName: "Chirimo", Description: "Clear skies and cold mornings with possible frost."}
	default:
		return Season{Name: "Hot dry", LocalName: "Zhizha", Description: "Building heat and humidity before the rains."}
	}
}
