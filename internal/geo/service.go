package geo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/internal/store"
)

const (
	maxSearchLimit  = 50
	forwardGeocodeN = 5
	ratelimitWindow = time.Hour
)

// Service implements the location directory: listing, search, geo-lookup,
// and community-submitted additions.
type Service struct {
	store    store.Gateway
	limiter  *ratelimit.Limiter
	geocoder *geocoder
	logger   *zap.Logger
}

// New creates a location Service backed by st, using breakers for the
// geocoding providers' circuit breakers and limiter for location-create
// rate limiting.
func New(st store.Gateway, breakers *breaker.Registry, limiter *ratelimit.Limiter, nominatimBase, geocodingBase, elevationBase string, logger *zap.Logger) *Service {
	return &Service{
		store:    st,
		limiter:  limiter,
		geocoder: newGeocoder(breakers, nominatimBase, geocodingBase, elevationBase),
		logger:   logger.With(zap.String("component", "geo")),
	}
}

// ListResult is the response shape for ListLocations.
type ListResult struct {
	Location  *Location
	Locations []Location
	Tags      map[string]int
	Stats     *Stats
}

// Stats summarizes the location directory for an operator dashboard.
type Stats struct {
	TotalLocations int64
	TotalProvinces int
	TotalCountries int
}

// ListLocations implements GET /locations: by exact slug, by tag, or in
// tag/stats aggregation modes, falling back to the full directory sorted
// by name.
func (s *Service) ListLocations(ctx context.Context, slug, tag, mode string) (ListResult, error) {
	if slug != "" {
		var loc Location
		if err := s.store.FindOne(ctx, store.CollLocations, bson.M{"slug": slug}, &loc); err != nil {
			return ListResult{}, fmt.Errorf("geo: location %q not found: %w", slug, err)
		}
		return ListResult{Location: &loc}, nil
	}

	switch mode {
	case "tags":
		return s.tagCounts(ctx)
	case "stats":
		return s.stats(ctx)
	}

	filter := bson.M{}
	if tag != "" {
		filter["tags"] = tag
	}
	var locs []Location
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	if err := s.store.Find(ctx, store.CollLocations, filter, &locs, opts); err != nil {
		return ListResult{}, fmt.Errorf("geo: list locations: %w", err)
	}
	return ListResult{Locations: locs}, nil
}

// tagCounts groups locations by tag in Go, since the Gateway interface does
// not expose Mongo's aggregation pipeline — acceptable here since the
// directory is small enough to scan in full.
func (s *Service) tagCounts(ctx context.Context) (ListResult, error) {
	var locs []Location
	if err := s.store.Find(ctx, store.CollLocations, bson.M{}, &locs); err != nil {
		return ListResult{}, fmt.Errorf("geo: tag counts: %w", err)
	}
	counts := map[string]int{}
	for _, l := range locs {
		for _, t := range l.Tags {
			counts[t]++
		}
	}
	return ListResult{Tags: counts}, nil
}

func (s *Service) stats(ctx context.Context) (ListResult, error) {
	var locs []Location
	if err := s.store.Find(ctx, store.CollLocations, bson.M{}, &locs); err != nil {
		return ListResult{}, fmt.Errorf("geo: stats: %w", err)
	}
	provinces := map[string]struct{}{}
	countries := map[string]struct{}{}
	for _, l := range locs {
		if l.Province != "" {
			provinces[l.Province] = struct{}{}
		}
		if l.Country != "" {
			countries[l.Country] = struct{}{}
		}
	}
	return ListResult{Stats: &Stats{
		TotalLocations: int64(len(locs)),
		TotalProvinces: len(provinces),
		TotalCountries: len(countries),
	}}, nil
}

// SearchParams controls GET /search.
type SearchParams struct {
	Query string
	Tag   string
	Lat   *float64
	Lon   *float64
	Mode  string
	Limit int
	Skip  int
}

// SearchResult is the response shape for Search.
type SearchResult struct {
	Locations []Location
	Total     int64
	Tags      map[string]int
	Source    string
}

// Search implements GET /search: tag-count aggregation, geospatial
// nearest-within-100km, or combined text+tag search with pagination.
func (s *Service) Search(ctx context.Context, p SearchParams) (SearchResult, error) {
	limit := p.Limit
	if limit <= 0 || limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	if p.Mode == "tags" {
		r, err := s.tagCounts(ctx)
		if err != nil {
			return SearchResult{}, err
		}
		return SearchResult{Tags: r.Tags}, nil
	}

	if p.Lat != nil && p.Lon != nil {
		var locs []Location
		filter := bson.M{"geo": bson.M{"$near": bson.M{
			"$geometry":    bson.M{"type": "Point", "coordinates": []float64{*p.Lon, *p.Lat}},
			"$maxDistance": countryPreferenceKm * 2 * 1000,
		}}}
		opts := options.Find().SetLimit(int64(limit))
		if err := s.store.Find(ctx, store.CollLocations, filter, &locs, opts); err != nil {
			return SearchResult{}, fmt.Errorf("geo: geo search: %w", err)
		}
		return SearchResult{Locations: locs, Total: int64(len(locs)), Source: "mongodb"}, nil
	}

	if p.Query == "" && p.Tag == "" {
		return SearchResult{}, fmt.Errorf("geo: provide q or tag")
	}

	filter := bson.M{}
	q := strings.TrimSpace(p.Query)
	if len(q) > 200 {
		q = q[:200]
	}
	if q != "" {
		filter["$text"] = bson.M{"$search": q}
	}
	if p.Tag != "" {
		filter["tags"] = p.Tag
	}

	var locs []Location
	opts := options.Find().SetLimit(int64(limit)).SetSkip(int64(p.Skip))
	if q == "" {
		opts = opts.SetSort(bson.D{{Key: "name", Value: 1}})
	}
	if err := s.store.Find(ctx, store.CollLocations, filter, &locs, opts); err != nil {
		return SearchResult{}, fmt.Errorf("geo: search: %w", err)
	}

	total := int64(len(locs))
	if p.Skip == 0 {
		if n, err := s.store.Count(ctx, store.CollLocations, filter); err == nil {
			total = n
		}
	}
	return SearchResult{Locations: locs, Total: total, Source: "mongodb"}, nil
}

// GeoLookup implements GET /geo: find the nearest known location, preferring
// one in the same country as a reverse-geocoded hint, auto-creating a new
// location when autoCreate is set and nothing nearby exists.
func (s *Service) GeoLookup(ctx context.Context, lat, lon float64, autoCreate bool) (NearestResult, error) {
	geocoded, hasGeocode := s.geocoder.ReverseGeocode(ctx, lat, lon)

	var nearby []Location
	filter := bson.M{"geo": bson.M{"$near": bson.M{
		"$geometry":    bson.M{"type": "Point", "coordinates": []float64{lon, lat}},
		"$maxDistance": countryPreferenceKm * 1000,
	}}}
	_ = s.store.Find(ctx, store.CollLocations, filter, &nearby, options.Find().SetLimit(5))

	var nearest *Location
	if len(nearby) > 0 {
		if hasGeocode && geocoded.Country != "" {
			for i := range nearby {
				if strings.EqualFold(nearby[i].Country, geocoded.Country) {
					nearest = &nearby[i]
					break
				}
			}
		}
		if nearest == nil {
			nearest = &nearby[0]
		}
	}

	if nearest == nil {
		var uncapped Location
		uncappedFilter := bson.M{"geo": bson.M{"$near": bson.M{
			"$geometry": bson.M{"type": "Point", "coordinates": []float64{lon, lat}},
		}}}
		if err := s.store.FindOne(ctx, store.CollLocations, uncappedFilter, &uncapped); err == nil {
			nearest = &uncapped
		}
	}

	if nearest != nil {
		return NearestResult{Location: *nearest, RedirectTo: "/" + nearest.Slug, IsNew: false}, nil
	}

	if !IsInSupportedRegion(ctx, s.store, lat, lon) {
		return NearestResult{}, fmt.Errorf("geo: location is outside supported regions")
	}

	if !autoCreate {
		return NearestResult{}, fmt.Errorf("geo: no nearby location found; use autoCreate to add one")
	}
	if !hasGeocode {
		return NearestResult{}, fmt.Errorf("geo: could not determine location name")
	}

	loc, isNew, err := s.createFromGeocode(ctx, geocoded, lat, lon, "geolocation")
	if err != nil {
		return NearestResult{}, err
	}
	return NearestResult{Location: loc, RedirectTo: "/" + loc.Slug, IsNew: isNew}, nil
}

// createFromGeocode deduplicates against nearby locations, then inserts a
// new one, upserting its country and province along the way. Returns
// isNew=false when an existing duplicate was reused instead.
func (s *Service) createFromGeocode(ctx context.Context, g Geocoded, lat, lon float64, source string) (Location, bool, error) {
	radius := DedupRadiusKm(g.Country)
	if dup, ok := FindDuplicate(ctx, s.store, lat, lon, radius); ok {
		return dup, false, nil
	}

	elevation := g.Elevation
	if elevation == 0 {
		elevation = s.geocoder.GetElevation(ctx, lat, lon)
	}

	slug := GenerateSlug(g.Name, g.Country)
	slug = s.resolveSlugCollision(ctx, slug)

	province := g.Admin1
	if province == "" {
		province = g.CountryName
	}
	provinceSlug := GenerateProvinceSlug(province, g.Country)

	if err := s.store.UpdateOne(ctx, store.CollCountries,
		bson.M{"code": g.Country},
		bson.M{"$setOnInsert": bson.M{"code": g.Country, "name": g.CountryName, "region": "Unknown", "supported": true}},
		true,
	); err != nil {
		s.logger.Warn("country upsert failed", zap.Error(err))
	}
	if err := s.store.UpdateOne(ctx, store.CollProvinces,
		bson.M{"slug": provinceSlug},
		bson.M{"$setOnInsert": bson.M{"slug": provinceSlug, "name": province, "countryCode": g.Country}},
		true,
	); err != nil {
		s.logger.Warn("province upsert failed", zap.Error(err))
	}

	loc := Location{
		Slug:         slug,
		Name:         g.Name,
		Province:     province,
		ProvinceSlug: provinceSlug,
		Country:      g.Country,
		Lat:          g.Lat,
		Lon:          g.Lon,
		Elevation:    elevation,
		Tags:         InferTags(g),
		Source:       source,
		Geo:          Point{Type: "Point", Coordinates: []float64{g.Lon, g.Lat}},
	}
	if _, err := s.store.InsertOne(ctx, store.CollLocations, loc); err != nil {
		return Location{}, false, fmt.Errorf("geo: insert location: %w", err)
	}
	return loc, true, nil
}

func (s *Service) resolveSlugCollision(ctx context.Context, slug string) string {
	var existing Location
	if err := s.store.FindOne(ctx, store.CollLocations, bson.M{"slug": slug}, &existing); err != nil {
		return slug
	}
	for suffix := 2; ; suffix++ {
		candidate := fmt.Sprintf("%s-%d", slug, suffix)
		if err := s.store.FindOne(ctx, store.CollLocations, bson.M{"slug": candidate}, &existing); err != nil {
			return candidate
		}
	}
}

// AddCandidate is one forward-geocoded match offered to the caller before
// they commit to adding it.
type AddCandidate struct {
	Name        string
	Country     string
	CountryName string
	Admin1      string
	Lat         float64
	Lon         float64
	Elevation   float64
}

// AddBySearchResult is the "candidates" mode response for POST
// /locations/add.
type AddBySearchResult struct {
	Candidates []AddCandidate
}

// AddBySearch resolves a free-text query to supported-region candidates
// for the caller to choose from, without creating anything yet.
func (s *Service) AddBySearch(ctx context.Context, query string) (AddBySearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return AddBySearchResult{}, fmt.Errorf("geo: empty query")
	}

	results, err := s.geocoder.ForwardGeocode(ctx, query, forwardGeocodeN)
	if err != nil {
		return AddBySearchResult{}, fmt.Errorf("geo: forward geocode: %w", err)
	}

	candidates := make([]AddCandidate, 0, len(results))
	for _, r := range results {
		if !IsInSupportedRegion(ctx, s.store, r.Lat, r.Lon) {
			continue
		}
		candidates = append(candidates, AddCandidate{
			Name: r.Name, Country: r.Country, CountryName: r.CountryName,
			Admin1: r.Admin1, Lat: r.Lat, Lon: r.Lon, Elevation: r.Elevation,
		})
	}
	return AddBySearchResult{Candidates: candidates}, nil
}

// AddByCoordsResult is the outcome of POST /locations/add in coordinate
// mode: either a new location, or a nearby duplicate that was reused.
type AddByCoordsResult struct {
	Location Location
	IsNew    bool
	Existing bool
}

// AddByCoords rate-limits per client IP, reverse-geocodes the coordinates,
// and either reuses a nearby duplicate or creates a new community-submitted
// location.
func (s *Service) AddByCoords(ctx context.Context, clientIP string, lat, lon float64) (AddByCoordsResult, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return AddByCoordsResult{}, fmt.Errorf("geo: invalid coordinates")
	}
	if !IsInSupportedRegion(ctx, s.store, lat, lon) {
		return AddByCoordsResult{}, fmt.Errorf("geo: coordinates are outside supported regions")
	}

	result, err := s.limiter.Check(ctx, clientIP, "location-create", 5, ratelimitWindow)
	if err != nil {
		return AddByCoordsResult{}, fmt.Errorf("geo: rate limit check: %w", err)
	}
	if !result.Allowed {
		return AddByCoordsResult{}, fmt.Errorf("geo: rate limit exceeded")
	}

	geocoded, ok := s.geocoder.ReverseGeocode(ctx, lat, lon)
	if !ok {
		return AddByCoordsResult{}, fmt.Errorf("geo: could not determine location name")
	}

	radius := DedupRadiusKm(geocoded.Country)
	if dup, found := FindDuplicate(ctx, s.store, lat, lon, radius); found {
		return AddByCoordsResult{Location: dup, IsNew: false, Existing: true}, nil
	}

	loc, isNew, err := s.createFromGeocode(ctx, geocoded, lat, lon, "community")
	if err != nil {
		return AddByCoordsResult{}, err
	}
	return AddByCoordsResult{Location: loc, IsNew: isNew}, nil
}
