package geo

import (
	"context"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/ratelimit"
	"github.com/nyuchitech/mukoko-weather/internal/store"
	"github.com/nyuchitech/mukoko-weather/internal/store/memstore"
)

func newTestService(st store.Gateway) *Service {
	logger := zap.NewNop()
	registry := breaker.NewRegistry(logger, nil)
	limiter := ratelimit.New(st)
	return New(st, registry, limiter, "https://nominatim.test", "https://geocoding.test", "https://elevation.test", logger)
}

func TestGenerateSlug_ZimbabweNoSuffix(t *testing.T) {
	if got := GenerateSlug("Harare", "ZW"); got != "harare" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateSlug_NonZimbabweSuffixed(t *testing.T) {
	if got := GenerateSlug("Gaborone", "BW"); got != "gaborone-bw" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateSlug_FoldsDiacritics(t *testing.T) {
	if got := GenerateSlug("São Paulo", "BR"); got != "sao-paulo-br" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateSlug_HyphenatesPunctuation(t *testing.T) {
	if got := GenerateSlug("Victoria Falls!", "ZW"); got != "victoria-falls" {
		t.Fatalf("got %q", got)
	}
}

func TestGenerateProvinceSlug_AlwaysSuffixed(t *testing.T) {
	if got := GenerateProvinceSlug("Harare Province", "ZW"); got != "harare-province-zw" {
		t.Fatalf("got %q", got)
	}
}

func TestDedupRadiusKm_ZimbabweTighter(t *testing.T) {
	if got := DedupRadiusKm("zw"); got != 5.0 {
		t.Fatalf("got %v", got)
	}
	if got := DedupRadiusKm("BW"); got != 10.0 {
		t.Fatalf("got %v", got)
	}
}

func TestIsInSupportedRegion_FallsBackToAfricaBoundingBox(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	if !IsInSupportedRegion(ctx, st, -17.83, 31.05) {
		t.Fatal("expected Harare coordinates to be in supported region")
	}
	if IsInSupportedRegion(ctx, st, 51.5, -0.1) {
		t.Fatal("expected London coordinates to be outside fallback bounding boxes")
	}
}

func TestIsInSupportedRegion_UsesStoreRegionWhenPresent(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	_, _ = st.InsertOne(ctx, store.CollRegions, regionDoc{
		Active: true,
		Bounds: regionBounds{North: 60, South: 50, East: 10, West: -10},
	})
	if !IsInSupportedRegion(ctx, st, 55, 0) {
		t.Fatal("expected coordinates inside the stored region's bounds to be supported")
	}
}

func seedGeoLocations(t *testing.T, st store.Gateway) {
	t.Helper()
	ctx := context.Background()
	locs := []Location{
		{Slug: "harare", Name: "Harare", Province: "Harare Province", Country: "ZW", Tags: []string{"city", "farming"}},
		{Slug: "bulawayo", Name: "Bulawayo", Province: "Bulawayo Province", Country: "ZW", Tags: []string{"city", "mining"}},
		{Slug: "victoria-falls", Name: "Victoria Falls", Province: "Matabeleland North", Country: "ZW", Tags: []string{"tourism"}},
	}
	for _, l := range locs {
		if _, err := st.InsertOne(ctx, store.CollLocations, l); err != nil {
			t.Fatalf("seed insert: %v", err)
		}
	}
}

func TestListLocations_BySlug(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedGeoLocations(t, st)
	svc := newTestService(st)

	result, err := svc.ListLocations(ctx, "harare", "", "")
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if result.Location == nil || result.Location.Name != "Harare" {
		t.Fatalf("got %+v", result.Location)
	}
}

func TestListLocations_UnknownSlugErrors(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := newTestService(st)

	if _, err := svc.ListLocations(ctx, "nowhere", "", ""); err == nil {
		t.Fatal("expected error for unknown slug")
	}
}

func TestListLocations_ByTag(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedGeoLocations(t, st)
	svc := newTestService(st)

	result, err := svc.ListLocations(ctx, "", "mining", "")
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if len(result.Locations) != 1 || result.Locations[0].Slug != "bulawayo" {
		t.Fatalf("got %+v", result.Locations)
	}
}

func TestListLocations_ModeTagsCounts(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedGeoLocations(t, st)
	svc := newTestService(st)

	result, err := svc.ListLocations(ctx, "", "", "tags")
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if result.Tags["city"] != 2 {
		t.Fatalf("got %+v", result.Tags)
	}
}

func TestListLocations_ModeStats(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	seedGeoLocations(t, st)
	svc := newTestService(st)

	result, err := svc.ListLocations(ctx, "", "", "stats")
	if err != nil {
		t.Fatalf("ListLocations: %v", err)
	}
	if result.Stats == nil || result.Stats.TotalLocations != 3 || result.Stats.TotalCountries != 1 {
		t.Fatalf("got %+v", result.Stats)
	}
}

func TestCreateFromGeocode_UpsertsAndInsertsWithoutElevationLookup(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := newTestService(st)

	geocoded := Geocoded{
		Name: "Chimanimani", Country: "ZW", CountryName: "Zimbabwe",
		Admin1: "Manicaland", Lat: -19.8, Lon: 32.87, Elevation: 1200,
	}
	loc, isNew, err := svc.createFromGeocode(ctx, geocoded, -19.8, 32.87, "community")
	if err != nil {
		t.Fatalf("createFromGeocode: %v", err)
	}
	if !isNew || loc.Slug != "chimanimani" || loc.Elevation != 1200 {
		t.Fatalf("got %+v isNew=%v", loc, isNew)
	}

	var country countryDoc
	if err := st.FindOne(ctx, store.CollCountries, bson.M{"code": "ZW"}, &country); err != nil {
		t.Fatalf("expected country upsert, got error: %v", err)
	}
}

func TestResolveSlugCollision_AppendsSuffix(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	_, _ = st.InsertOne(ctx, store.CollLocations, Location{Slug: "epworth"})
	svc := newTestService(st)

	if got := svc.resolveSlugCollision(ctx, "epworth"); got != "epworth-2" {
		t.Fatalf("got %q", got)
	}
}

func TestAddBySearch_EmptyQueryErrors(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	svc := newTestService(st)

	if _, err := svc.AddBySearch(ctx, "   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}
