// Package geo implements location lookup, geocoding, and slug generation:
// the location directory behind /locations, /search, /geo, and
// /locations/add.
package geo

// Point is a GeoJSON Point, matching the locations collection's geo field.
type Point struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// Location is the locations collection's document shape.
type Location struct {
	Slug         string   `bson:"slug" json:"slug"`
	Name         string   `bson:"name" json:"name"`
	Province     string   `bson:"province" json:"province"`
	ProvinceSlug string   `bson:"provinceSlug" json:"provinceSlug"`
	Country      string   `bson:"country" json:"country"`
	Lat          float64  `bson:"lat" json:"lat"`
	Lon          float64  `bson:"lon" json:"lon"`
	Elevation    float64  `bson:"elevation" json:"elevation"`
	Tags         []string `bson:"tags" json:"tags"`
	Source       string   `bson:"source" json:"source"`
	Geo          Point    `bson:"geo" json:"geo"`
}

// Geocoded is the normalized result of a reverse or forward geocode lookup,
// regardless of which upstream provider answered it.
type Geocoded struct {
	Name        string
	Country     string
	CountryName string
	Admin1      string
	Lat         float64
	Lon         float64
	Elevation   float64
	Population  int
}

// countryDoc/provinceDoc mirror the countries/provinces collections,
// upserted lazily the first time a location is created in them.
type countryDoc struct {
	Code      string `bson:"code"`
	Name      string `bson:"name"`
	Region    string `bson:"region"`
	Supported bool   `bson:"supported"`
}

type provinceDoc struct {
	Slug        string `bson:"slug"`
	Name        string `bson:"name"`
	CountryCode string `bson:"countryCode"`
}

// regionDoc mirrors the regions collection's bounding-box schema.
type regionDoc struct {
	Active bool         `bson:"active"`
	Bounds regionBounds `bson:"bounds"`
}

type regionBounds struct {
	North float64 `bson:"north"`
	South float64 `bson:"south"`
	East  float64 `bson:"east"`
	West  float64 `bson:"west"`
}

// NearestResult is the outcome of a GeoLookup call.
type NearestResult struct {
	Location   Location
	RedirectTo string
	IsNew      bool
}

const (
	dedupRadiusZWKm      = 5.0
	dedupRadiusDefaultKm = 10.0
	countryPreferenceKm  = 50.0
)
