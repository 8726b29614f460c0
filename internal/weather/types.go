package weather

import "time"

// Current holds the present-moment observation.
type Current struct {
	Time                string  `json:"time" bson:"time"`
	Temperature2m       float64 `json:"temperature_2m" bson:"temperature_2m"`
	RelativeHumidity2m  float64 `json:"relative_humidity_2m" bson:"relative_humidity_2m"`
	ApparentTemperature float64 `json:"apparent_temperature" bson:"apparent_temperature"`
	Precipitation       float64 `json:"precipitation" bson:"precipitation"`
	WeatherCode         int     `json:"weather_code" bson:"weather_code"`
	WindSpeed10m        float64 `json:"wind_speed_10m" bson:"wind_speed_10m"`
	WindDirection10m    float64 `json:"wind_direction_10m" bson:"wind_direction_10m"`
	WindGusts10m        float64 `json:"wind_gusts_10m" bson:"wind_gusts_10m"`
	SurfacePressure     float64 `json:"surface_pressure" bson:"surface_pressure"`
	CloudCover          float64 `json:"cloud_cover" bson:"cloud_cover"`
	UVIndex             float64 `json:"uv_index,omitempty" bson:"uv_index,omitempty"`
}

// Hourly holds 24 hours of parallel time-series arrays.
type Hourly struct {
	Time                []string  `json:"time" bson:"time"`
	Temperature2m       []float64 `json:"temperature_2m" bson:"temperature_2m"`
	RelativeHumidity2m  []float64 `json:"relative_humidity_2m" bson:"relative_humidity_2m"`
	ApparentTemperature []float64 `json:"apparent_temperature" bson:"apparent_temperature"`
	Precipitation       []float64 `json:"precipitation" bson:"precipitation"`
	WeatherCode         []int     `json:"weather_code" bson:"weather_code"`
	WindSpeed10m        []float64 `json:"wind_speed_10m" bson:"wind_speed_10m"`
	WindDirection10m    []float64 `json:"wind_direction_10m" bson:"wind_direction_10m"`
	WindGusts10m        []float64 `json:"wind_gusts_10m" bson:"wind_gusts_10m"`
	SurfacePressure     []float64 `json:"surface_pressure" bson:"surface_pressure"`
	CloudCover          []float64 `json:"cloud_cover" bson:"cloud_cover"`
	UVIndex             []float64 `json:"uv_index,omitempty" bson:"uv_index,omitempty"`
}

// Daily holds 7 days of parallel time-series arrays.
type Daily struct {
	Time                      []string  `json:"time" bson:"time"`
	WeatherCode               []int     `json:"weather_code" bson:"weather_code"`
	Temperature2mMax          []float64 `json:"temperature_2m_max" bson:"temperature_2m_max"`
	Temperature2mMin          []float64 `json:"temperature_2m_min" bson:"temperature_2m_min"`
	ApparentTemperatureMax    []float64 `json:"apparent_temperature_max" bson:"apparent_temperature_max"`
	ApparentTemperatureMin    []float64 `json:"apparent_temperature_min" bson:"apparent_temperature_min"`
	PrecipitationSum          []float64 `json:"precipitation_sum" bson:"precipitation_sum"`
	PrecipitationProbability  []float64 `json:"precipitation_probability_max" bson:"precipitation_probability_max"`
	WindSpeed10mMax           []float64 `json:"wind_speed_10m_max" bson:"wind_speed_10m_max"`
	WindGusts10mMax           []float64 `json:"wind_gusts_10m_max" bson:"wind_gusts_10m_max"`
	WindDirection10mDominant  []float64 `json:"wind_direction_10m_dominant" bson:"wind_direction_10m_dominant"`
	UVIndexMax                []float64 `json:"uv_index_max" bson:"uv_index_max"`
	Sunrise                   []string  `json:"sunrise" bson:"sunrise"`
	Sunset                    []string  `json:"sunset" bson:"sunset"`
}

// Insights holds provider-specific enriched fields. Tomorrow.io data fills
// them from the first daily timestep; Open-Meteo data carries only
// WindSpeed/WindGust (and no Insights when both are zero); fallback data
// has none.
type Insights struct {
	HeatStressIndex         *float64 `json:"heatStressIndex,omitempty" bson:"heatStressIndex,omitempty"`
	ThunderstormProbability *float64 `json:"thunderstormProbability,omitempty" bson:"thunderstormProbability,omitempty"`
	UVHealthConcern         *float64 `json:"uvHealthConcern,omitempty" bson:"uvHealthConcern,omitempty"`
	Visibility              *float64 `json:"visibility,omitempty" bson:"visibility,omitempty"`
	WindSpeed               *float64 `json:"windSpeed,omitempty" bson:"windSpeed,omitempty"`
	WindGust                *float64 `json:"windGust,omitempty" bson:"windGust,omitempty"`
	DewPoint                *float64 `json:"dewPoint,omitempty" bson:"dewPoint,omitempty"`
}

// Data is the normalized weather payload returned to every caller,
// regardless of which provider produced it.
type Data struct {
	Current  Current   `json:"current" bson:"current"`
	Hourly   Hourly    `json:"hourly" bson:"hourly"`
	Daily    Daily     `json:"daily" bson:"daily"`
	Insights *Insights `json:"insights,omitempty" bson:"insights,omitempty"`
}

// Result wraps Data with provenance metadata used for response headers and
// metrics.
type Result struct {
	Data     Data
	Provider string // "tomorrow", "open-meteo", "fallback"; on a cache hit, the provider that filled the entry
	Slug     string
	CacheHit bool
}

// cacheEntry is the persisted document shape for the weather_cache
// collection.
type cacheEntry struct {
	LocationSlug string    `bson:"locationSlug"`
	Data         Data      `bson:"data"`
	Provider     string    `bson:"provider"`
	Lat          float64   `bson:"lat"`
	Lon          float64   `bson:"lon"`
	FetchedAt    time.Time `bson:"fetchedAt"`
	ExpiresAt    time.Time `bson:"expiresAt"`
}

// historyRecord is the persisted document shape for weather_history. Daily
// and Insights are carried alongside Current so later aggregation (trend
// analysis, heat-stress rollups) has the same fields the fetch pipeline saw.
type historyRecord struct {
	LocationSlug string    `bson:"locationSlug"`
	RecordedAt   time.Time `bson:"recordedAt"`
	Current      Current   `bson:"current"`
	Daily        Daily     `bson:"daily"`
	Insights     *Insights `bson:"insights,omitempty"`
}
