package weather

import "github.com/nyuchitech/mukoko-weather/internal/weathercode"

// tomorrowResponse is the subset of the Tomorrow.io timelines response this
// service consumes.
type tomorrowResponse struct {
	Timelines struct {
		Hourly []tomorrowTimestep `json:"hourly"`
		Daily  []tomorrowTimestep `json:"daily"`
	} `json:"timelines"`
}

// tomorrowTimestep holds one hourly or daily entry. Values are read via the
// accessor methods below since Tomorrow.io's field set differs between
// hourly and daily timesteps.
type tomorrowTimestep struct {
	Time string                 `json:"time"`
	Raw  map[string]interface{} `json:"values"`
}

func (t tomorrowTimestep) num(key string) float64 {
	if t.Raw == nil {
		return 0
	}
	v, ok := t.Raw[key]
	if !ok {
		return 0
	}
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return f
}

func (t tomorrowTimestep) numPtr(key string) *float64 {
	if t.Raw == nil {
		return nil
	}
	v, ok := t.Raw[key]
	if !ok {
		return nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil
	}
	return &f
}

func (t tomorrowTimestep) str(key string) string {
	if t.Raw == nil {
		return ""
	}
	v, ok := t.Raw[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (t tomorrowTimestep) intCode(key string) int {
	return int(t.num(key))
}

// normalizeTomorrow converts a raw Tomorrow.io response into the service's
// normalized Data shape, including derived insights from the first daily
// timestep.
func normalizeTomorrow(raw tomorrowResponse) Data {
	hourlyRaw := raw.Timelines.Hourly
	dailyRaw := raw.Timelines.Daily

	var current Current
	if len(hourlyRaw) > 0 {
		first := hourlyRaw[0]
		current = Current{
			Time:                first.Time,
			Temperature2m:       first.num("temperature"),
			RelativeHumidity2m:  first.num("humidity"),
			ApparentTemperature: first.num("temperatureApparent"),
			Precipitation:       first.num("precipitationIntensity"),
			WeatherCode:         weathercodeFromTomorrow(first.intCode("weatherCode")),
			WindSpeed10m:        first.num("windSpeed"),
			WindDirection10m:    first.num("windDirection"),
			WindGusts10m:        first.num("windGust"),
			SurfacePressure:     first.num("pressureSurfaceLevel"),
			CloudCover:          first.num("cloudCover"),
			UVIndex:             first.num("uvIndex"),
		}
	}

	n := len(hourlyRaw)
	if n > 24 {
		n = 24
	}
	hourly := Hourly{
		Time: make([]string, 0, n), Temperature2m: make([]float64, 0, n),
		RelativeHumidity2m: make([]float64, 0, n), ApparentTemperature: make([]float64, 0, n),
		Precipitation: make([]float64, 0, n), WeatherCode: make([]int, 0, n),
		WindSpeed10m: make([]float64, 0, n), WindDirection10m: make([]float64, 0, n),
		WindGusts10m: make([]float64, 0, n), SurfacePressure: make([]float64, 0, n),
		CloudCover: make([]float64, 0, n), UVIndex: make([]float64, 0, n),
	}
	for _, h := range hourlyRaw[:n] {
		hourly.Time = append(hourly.Time, h.Time)
		hourly.Temperature2m = append(hourly.Temperature2m, h.num("temperature"))
		hourly.RelativeHumidity2m = append(hourly.RelativeHumidity2m, h.num("humidity"))
		hourly.ApparentTemperature = append(hourly.ApparentTemperature, h.num("temperatureApparent"))
		hourly.Precipitation = append(hourly.Precipitation, h.num("precipitationIntensity"))
		hourly.WeatherCode = append(hourly.WeatherCode, weathercodeFromTomorrow(h.intCode("weatherCode")))
		hourly.WindSpeed10m = append(hourly.WindSpeed10m, h.num("windSpeed"))
		hourly.WindDirection10m = append(hourly.WindDirection10m, h.num("windDirection"))
		hourly.WindGusts10m = append(hourly.WindGusts10m, h.num("windGust"))
		hourly.SurfacePressure = append(hourly.SurfacePressure, h.num("pressureSurfaceLevel"))
		hourly.CloudCover = append(hourly.CloudCover, h.num("cloudCover"))
		hourly.UVIndex = append(hourly.UVIndex, h.num("uvIndex"))
	}

	m := len(dailyRaw)
	if m > 7 {
		m = 7
	}
	daily := Daily{
		Time: make([]string, 0, m), WeatherCode: make([]int, 0, m),
		Temperature2mMax: make([]float64, 0, m), Temperature2mMin: make([]float64, 0, m),
		ApparentTemperatureMax: make([]float64, 0, m), ApparentTemperatureMin: make([]float64, 0, m),
		PrecipitationSum: make([]float64, 0, m), PrecipitationProbability: make([]float64, 0, m),
		WindSpeed10mMax: make([]float64, 0, m), WindGusts10mMax: make([]float64, 0, m),
		WindDirection10mDominant: make([]float64, 0, m), UVIndexMax: make([]float64, 0, m),
		Sunrise: make([]string, 0, m), Sunset: make([]string, 0, m),
	}
	for _, d := range dailyRaw[:m] {
		daily.Time = append(daily.Time, d.Time)
		daily.WeatherCode = append(daily.WeatherCode, weathercodeFromTomorrow(d.intCode("weatherCodeMax")))
		daily.Temperature2mMax = append(daily.Temperature2mMax, d.num("temperatureMax"))
		daily.Temperature2mMin = append(daily.Temperature2mMin, d.num("temperatureMin"))
		daily.ApparentTemperatureMax = append(daily.ApparentTemperatureMax, d.num("temperatureApparentMax"))
		daily.ApparentTemperatureMin = append(daily.ApparentTemperatureMin, d.num("temperatureApparentMin"))
		daily.PrecipitationSum = append(daily.PrecipitationSum, d.num("precipitationIntensityMax"))
		daily.PrecipitationProbability = append(daily.PrecipitationProbability, d.num("precipitationProbabilityMax"))
		daily.WindSpeed10mMax = append(daily.WindSpeed10mMax, d.num("windSpeedMax"))
		daily.WindGusts10mMax = append(daily.WindGusts10mMax, d.num("windGustMax"))
		daily.WindDirection10mDominant = append(daily.WindDirection10mDominant, d.num("windDirectionAvg"))
		daily.UVIndexMax = append(daily.UVIndexMax, d.num("uvIndexMax"))
		daily.Sunrise = append(daily.Sunrise, d.str("sunriseTime"))
		daily.Sunset = append(daily.Sunset, d.str("sunsetTime"))
	}

	var insights *Insights
	if len(dailyRaw) > 0 {
		v0 := dailyRaw[0]
		ins := Insights{
			HeatStressIndex:         v0.numPtr("heatIndexMax"),
			ThunderstormProbability: v0.numPtr("thunderstormProbability"),
			UVHealthConcern:         v0.numPtr("uvHealthConcernMax"),
			Visibility:              v0.numPtr("visibilityAvg"),
			WindSpeed:               v0.numPtr("windSpeedMax"),
			WindGust:                v0.numPtr("windGustMax"),
			DewPoint:                v0.numPtr("dewPointAvg"),
		}
		if ins != (Insights{}) {
			insights = &ins
		}
	}

	return Data{Current: current, Hourly: hourly, Daily: daily, Insights: insights}
}

func weathercodeFromTomorrow(code int) int {
	return weathercode.FromTomorrow(code)
}

// openMeteoResponse mirrors the subset of Open-Meteo's /v1/forecast
// response this service consumes. Open-Meteo's codes are already WMO, so
// no normalization table is needed.
type openMeteoResponse struct {
	Current Current `json:"current"`
	Hourly  Hourly  `json:"hourly"`
	Daily   Daily   `json:"daily"`
}

// normalizeOpenMeteo synthesizes minimal insights (wind speed/gust) from
// the current block; Open-Meteo has no equivalent enriched fields.
func normalizeOpenMeteo(raw openMeteoResponse) Data {
	var insights *Insights
	if raw.Current.WindSpeed10m != 0 || raw.Current.WindGusts10m != 0 {
		ws := raw.Current.WindSpeed10m
		wg := raw.Current.WindGusts10m
		insights = &Insights{WindSpeed: &ws, WindGust: &wg}
	}

	return Data{Current: raw.Current, Hourly: raw.Hourly, Daily: raw.Daily, Insights: insights}
}
