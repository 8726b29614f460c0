// Package weather implements the multi-provider weather fetch pipeline:
// cache -> Tomorrow.io (primary) -> Open-Meteo (secondary) -> deterministic
// seasonal synthesis (terminal fallback, never fails).
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
	"github.com/nyuchitech/mukoko-weather/internal/cache"
	"github.com/nyuchitech/mukoko-weather/internal/metrics"
	"github.com/nyuchitech/mukoko-weather/internal/store"
)

const (
	cacheTTL       = 15 * time.Minute
	staleThreshold = 5.0 // °C, staleness cross-validation threshold
)

// Pipeline fetches and caches weather data across providers.
type Pipeline struct {
	store      store.Gateway
	cache      *cache.Manager
	breakers   *breaker.Registry
	metrics    *metrics.Collector
	httpClient *http.Client
	logger     *zap.Logger

	tomorrowIOKey    string
	tomorrowBaseURL  string
	openMeteoBaseURL string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTomorrowIOKey sets the Tomorrow.io API key. Without a key the
// pipeline skips directly to Open-Meteo.
func WithTomorrowIOKey(key string) Option {
	return func(p *Pipeline) { p.tomorrowIOKey = key }
}

// WithTomorrowBaseURL overrides the default Tomorrow.io endpoint.
func WithTomorrowBaseURL(base string) Option {
	return func(p *Pipeline) { p.tomorrowBaseURL = base }
}

// WithOpenMeteoBaseURL overrides the default Open-Meteo endpoint.
func WithOpenMeteoBaseURL(base string) Option {
	return func(p *Pipeline) { p.openMeteoBaseURL = base }
}

// New creates a weather Pipeline.
func New(st store.Gateway, cm *cache.Manager, breakers *breaker.Registry, m *metrics.Collector, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:            st,
		cache:            cm,
		breakers:         breakers,
		metrics:          m,
		httpClient:       &http.Client{Timeout: 15 * time.Second},
		logger:           logger.With(zap.String("component", "weather")),
		tomorrowBaseURL:  "https://api.tomorrow.io/v4/weather/forecast",
		openMeteoBaseURL: "https://api.open-meteo.com/v1",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fetch returns weather for (lat, lon), resolving the location slug via the
// nearest known location when possible for a stable cache key.
func (p *Pipeline) Fetch(ctx context.Context, lat, lon float64) (*Result, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("weather: invalid coordinates %f,%f", lat, lon)
	}

	slug := defaultSlug(lat, lon)
	elevation := 1200.0
	if nearest, ok := p.findNearestLocation(ctx, lat, lon); ok {
		if nearest.Slug != "" {
			slug = nearest.Slug
		}
		if nearest.Elevation != 0 {
			elevation = nearest.Elevation
		}
	}

	if cached, ok := p.getCached(ctx, slug); ok {
		if p.metrics != nil {
			p.metrics.RecordWeatherFetch("cache", 0)
		}
		return &Result{Data: cached.Data, Provider: cached.Provider, Slug: slug, CacheHit: true}, nil
	}

	start := time.Now()
	data, provider := p.fetchFromProviders(ctx, lat, lon, elevation)

	if p.metrics != nil {
		p.metrics.RecordWeatherFetch(provider, time.Since(start))
	}

	if provider != "fallback" {
		p.setCached(ctx, slug, lat, lon, data, provider)
		p.recordHistory(ctx, slug, data)
	}

	return &Result{Data: data, Provider: provider, Slug: slug, CacheHit: false}, nil
}

func defaultSlug(lat, lon float64) string {
	return fmt.Sprintf("%.2f_%.2f", lat, lon)
}

func (p *Pipeline) fetchFromProviders(ctx context.Context, lat, lon, elevation float64) (Data, string) {
	if p.tomorrowIOKey != "" {
		if data, err := p.fetchTomorrow(ctx, lat, lon); err == nil {
			return data, "tomorrow"
		} else {
			p.logger.Warn("tomorrow.io fetch failed, falling back", zap.Error(err))
		}
	}

	if data, err := p.fetchOpenMeteo(ctx, lat, lon); err == nil {
		return data, "open-meteo"
	} else {
		p.logger.Warn("open-meteo fetch failed, using seasonal fallback", zap.Error(err))
	}

	return synthesizeFallback(lat, lon, elevation), "fallback"
}

func (p *Pipeline) fetchTomorrow(ctx context.Context, lat, lon float64) (Data, error) {
	b := p.breakers.Get("tomorrow-io")
	return breaker.CallWithResult(ctx, b, func(ctx context.Context) (Data, error) {
		u := p.tomorrowBaseURL
		q := url.Values{}
		q.Set("location", fmt.Sprintf("%f,%f", lat, lon))
		q.Set("apikey", p.tomorrowIOKey)
		q.Set("timesteps", "1h,1d")
		q.Set("units", "metric")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+q.Encode(), nil)
		if err != nil {
			return Data{}, err
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return Data{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return Data{}, fmt.Errorf("tomorrow.io rate limited")
		}
		if resp.StatusCode != http.StatusOK {
			return Data{}, fmt.Errorf("tomorrow.io status %d", resp.StatusCode)
		}

		var raw tomorrowResponse
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return Data{}, fmt.Errorf("tomorrow.io decode: %w", err)
		}

		return normalizeTomorrow(raw), nil
	})
}

func (p *Pipeline) fetchOpenMeteo(ctx context.Context, lat, lon float64) (Data, error) {
	b := p.breakers.Get("open-meteo")
	return breaker.CallWithResult(ctx, b, func(ctx context.Context) (Data, error) {
		q := url.Values{}
		q.Set("latitude", fmt.Sprintf("%f", lat))
		q.Set("longitude", fmt.Sprintf("%f", lon))
		q.Set("current", "temperature_2m,relative_humidity_2m,apparent_temperature,precipitation,weather_code,wind_speed_10m,wind_direction_10m,wind_gusts_10m,surface_pressure,cloud_cover")
		q.Set("hourly", "temperature_2m,relative_humidity_2m,apparent_temperature,precipitation,weather_code,wind_speed_10m,wind_direction_10m,wind_gusts_10m,surface_pressure,cloud_cover,uv_index")
		q.Set("daily", "weather_code,temperature_2m_max,temperature_2m_min,apparent_temperature_max,apparent_temperature_min,sunrise,sunset,uv_index_max,precipitation_sum,precipitation_probability_max,wind_speed_10m_max,wind_gusts_10m_max,wind_direction_10m_dominant")
		q.Set("timezone", "auto")
		q.Set("forecast_days", "7")

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.openMeteoBaseURL+"/forecast?"+q.Encode(), nil)
		if err != nil {
			return Data{}, err
		}

		resp, err := p.httpClient.Do(req)
		if err != nil {
			return Data{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return Data{}, fmt.Errorf("open-meteo status %d", resp.StatusCode)
		}

		var raw openMeteoResponse
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			return Data{}, fmt.Errorf("open-meteo decode: %w", err)
		}

		return normalizeOpenMeteo(raw), nil
	})
}

// synthesizeFallback generates a deterministic seasonal estimate, keyed on
// Zimbabwe's traditional four-season calendar, adjusted for elevation.
func synthesizeFallback(lat, lon, elevation float64) Data {
	month := time.Now().UTC().Month()

	var temp float64
	var code int
	switch {
	case month == 11 || month == 12 || month <= 3:
		temp, code = 28, 61 // masika (rainy season)
	case month == 4 || month == 5:
		temp, code = 22, 2 // munakamwe (post-rain)
	case month >= 6 && month <= 8:
		temp, code = 18, 0 // chirimo (dry/cold)
	default:
		temp, code = 32, 0 // zhizha (hot/dry)
	}

	elevationAdj := math.Max(0, elevation-1000) * 0.006
	temp = math.Round((temp-elevationAdj)*10) / 10

	now := time.Now().UTC()

	hourlyTimes := make([]string, 24)
	hourlyTemp := make([]float64, 24)
	hourlyHumidity := make([]float64, 24)
	hourlyApparent := make([]float64, 24)
	hourlyPrecip := make([]float64, 24)
	hourlyCode := make([]int, 24)
	hourlyWind := make([]float64, 24)
	hourlyDir := make([]float64, 24)
	hourlyGust := make([]float64, 24)
	hourlyPressure := make([]float64, 24)
	hourlyCloud := make([]float64, 24)
	hourlyUV := make([]float64, 24)
	for i := 0; i < 24; i++ {
		hourlyTimes[i] = now.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		hourlyTemp[i] = temp
		hourlyHumidity[i] = 60
		hourlyApparent[i] = temp - 1
		hourlyPrecip[i] = 0
		hourlyCode[i] = code
		hourlyWind[i] = 8
		hourlyDir[i] = 180
		hourlyGust[i] = 15
		hourlyPressure[i] = 1013
		hourlyCloud[i] = 30
		hourlyUV[i] = 5
	}

	dailyTimes := make([]string, 7)
	dailyCode := make([]int, 7)
	dailyMax := make([]float64, 7)
	dailyMin := make([]float64, 7)
	dailyAppMax := make([]float64, 7)
	dailyAppMin := make([]float64, 7)
	dailyPrecipSum := make([]float64, 7)
	dailyPrecipProb := make([]float64, 7)
	dailyWindMax := make([]float64, 7)
	dailyGustMax := make([]float64, 7)
	dailyWindDir := make([]float64, 7)
	dailyUVMax := make([]float64, 7)
	dailySunrise := make([]string, 7)
	dailySunset := make([]string, 7)
	for i := 0; i < 7; i++ {
		dailyTimes[i] = now.AddDate(0, 0, i).Format("2006-01-02")
		dailyCode[i] = code
		dailyMax[i] = temp + 5
		dailyMin[i] = temp - 8
		dailyAppMax[i] = temp + 4
		dailyAppMin[i] = temp - 9
		dailyPrecipSum[i] = 0
		dailyPrecipProb[i] = 0
		dailyWindMax[i] = 15
		dailyGustMax[i] = 25
		dailyWindDir[i] = 180
		dailyUVMax[i] = 7
		dailySunrise[i] = "06:00"
		dailySunset[i] = "18:00"
	}

	return Data{
		Current: Current{
			Time: now.Format(time.RFC3339), Temperature2m: temp, RelativeHumidity2m: 60,
			ApparentTemperature: temp - 1, Precipitation: 0, WeatherCode: code,
			WindSpeed10m: 8, WindDirection10m: 180, WindGusts10m: 15,
			SurfacePressure: 1013, CloudCover: 30,
		},
		Hourly: Hourly{
			Time: hourlyTimes, Temperature2m: hourlyTemp, RelativeHumidity2m: hourlyHumidity,
			ApparentTemperature: hourlyApparent, Precipitation: hourlyPrecip, WeatherCode: hourlyCode,
			WindSpeed10m: hourlyWind, WindDirection10m: hourlyDir, WindGusts10m: hourlyGust,
			SurfacePressure: hourlyPressure, CloudCover: hourlyCloud, UVIndex: hourlyUV,
		},
		Daily: Daily{
			Time: dailyTimes, WeatherCode: dailyCode, Temperature2mMax: dailyMax, Temperature2mMin: dailyMin,
			ApparentTemperatureMax: dailyAppMax, ApparentTemperatureMin: dailyAppMin,
			PrecipitationSum: dailyPrecipSum, PrecipitationProbability: dailyPrecipProb,
			WindSpeed10mMax: dailyWindMax, WindGusts10mMax: dailyGustMax, WindDirection10mDominant: dailyWindDir,
			UVIndexMax: dailyUVMax, Sunrise: dailySunrise, Sunset: dailySunset,
		},
	}
}

// IsStale reports whether an observation has drifted from a reference point
// beyond the documented staleness thresholds: temperature difference
// exceeding 5.0°C, or any change in WMO weather code.
func IsStale(refTemp float64, refCode int, obsTemp float64, obsCode int) bool {
	if math.Abs(refTemp-obsTemp) > staleThreshold {
		return true
	}
	return refCode != obsCode
}

type nearestLocation struct {
	Slug      string  `bson:"slug"`
	Elevation float64 `bson:"elevation"`
}

func (p *Pipeline) findNearestLocation(ctx context.Context, lat, lon float64) (nearestLocation, bool) {
	var loc nearestLocation
	filter := bson.M{
		"geo": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{"type": "Point", "coordinates": bson.A{lon, lat}},
			},
		},
	}
	if err := p.store.FindOne(ctx, store.CollLocations, filter, &loc); err != nil {
		return nearestLocation{}, false
	}
	return loc, true
}

func (p *Pipeline) getCached(ctx context.Context, slug string) (*cacheEntry, bool) {
	if p.cache != nil {
		var entry cacheEntry
		if err := p.cache.GetJSON(ctx, "weather:"+slug, &entry); err == nil {
			if time.Now().Before(entry.ExpiresAt) {
				return &entry, true
			}
		}
	}

	var entry cacheEntry
	filter := bson.M{"locationSlug": slug, "expiresAt": bson.M{"$gt": time.Now()}}
	if err := p.store.FindOne(ctx, store.CollWeatherCache, filter, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

func (p *Pipeline) setCached(ctx context.Context, slug string, lat, lon float64, data Data, provider string) {
	now := time.Now()
	entry := cacheEntry{
		LocationSlug: slug, Data: data, Provider: provider,
		Lat: lat, Lon: lon, FetchedAt: now, ExpiresAt: now.Add(cacheTTL),
	}

	filter := bson.M{"locationSlug": slug}
	update := bson.M{"$set": bson.M{
		"data": data, "provider": provider, "lat": lat, "lon": lon,
		"fetchedAt": now, "expiresAt": entry.ExpiresAt,
	}}
	if err := p.store.UpdateOne(ctx, store.CollWeatherCache, filter, update, true); err != nil {
		p.logger.Warn("failed to persist weather cache entry", zap.Error(err))
	}

	if p.cache != nil {
		if err := p.cache.SetJSON(ctx, "weather:"+slug, entry, cacheTTL); err != nil {
			p.logger.Warn("failed to set redis weather cache entry", zap.Error(err))
		}
	}
}

func (p *Pipeline) recordHistory(ctx context.Context, slug string, data Data) {
	record := historyRecord{
		LocationSlug: slug, RecordedAt: time.Now(),
		Current: data.Current, Daily: data.Daily, Insights: data.Insights,
	}
	if _, err := p.store.InsertOne(ctx, store.CollWeatherHistory, record); err != nil {
		p.logger.Warn("failed to record weather history", zap.Error(err))
	}
}
