package history

import (
	"fmt"
	"sort"
	"strings"
)

// weatherCodeNames maps Open-Meteo/WMO codes to short human labels for the
// "most common conditions" line.
var weatherCodeNames = map[int]string{
	0: "Clear", 1: "Mainly clear", 2: "Partly cloudy", 3: "Overcast",
	45: "Fog", 48: "Fog", 51: "Light drizzle", 53: "Moderate drizzle",
	55: "Dense drizzle", 61: "Slight rain", 63: "Moderate rain",
	65: "Heavy rain", 71: "Slight snow", 73: "Moderate snow",
	75: "Heavy snow", 80: "Slight showers", 81: "Moderate showers",
	82: "Violent showers", 95: "Thunderstorm", 96: "Thunderstorm+hail",
	99: "Thunderstorm+heavy hail",
}

// aggregateStats reduces raw history records into a compact textual summary
// (~800 tokens) so the language model sees numbers and dates instead of raw
// time series. records must be sorted ascending by RecordedAt.
func aggregateStats(records []historyRecord) string {
	if len(records) == 0 {
		return "No data available for the selected period."
	}

	var (
		tempsHigh, tempsLow   []float64
		feelsHigh, feelsLow   []float64
		precip                []float64
		humidity, wind, gusts []float64
		uv, pressure, cloud   []float64
		dates                 []string
		rainyDays             int
		weatherCodes          = map[int]int{}
		heatStress, storm     []float64
	)

	for _, r := range records {
		dates = append(dates, r.RecordedAt.Format("2006-01-02"))

		if len(r.Daily.Temperature2mMax) > 0 {
			tempsHigh = append(tempsHigh, r.Daily.Temperature2mMax[0])
		} else if r.Current.Temperature2m != 0 {
			tempsHigh = append(tempsHigh, r.Current.Temperature2m)
		}
		if len(r.Daily.Temperature2mMin) > 0 {
			tempsLow = append(tempsLow, r.Daily.Temperature2mMin[0])
		}

		if len(r.Daily.ApparentTemperatureMax) > 0 {
			feelsHigh = append(feelsHigh, r.Daily.ApparentTemperatureMax[0])
		}
		if len(r.Daily.ApparentTemperatureMin) > 0 {
			feelsLow = append(feelsLow, r.Daily.ApparentTemperatureMin[0])
		}

		if len(r.Daily.PrecipitationSum) > 0 {
			p := r.Daily.PrecipitationSum[0]
			precip = append(precip, p)
			if p > 0.1 {
				rainyDays++
			}
		}

		if r.Current.RelativeHumidity2m != 0 {
			humidity = append(humidity, r.Current.RelativeHumidity2m)
		}
		if r.Current.WindSpeed10m != 0 {
			wind = append(wind, r.Current.WindSpeed10m)
		}
		if r.Current.WindGusts10m != 0 {
			gusts = append(gusts, r.Current.WindGusts10m)
		}
		if len(r.Daily.UVIndexMax) > 0 {
			uv = append(uv, r.Daily.UVIndexMax[0])
		} else if r.Current.UVIndex != 0 {
			uv = append(uv, r.Current.UVIndex)
		}
		if r.Current.SurfacePressure != 0 {
			pressure = append(pressure, r.Current.SurfacePressure)
		}
		if r.Current.CloudCover != 0 {
			cloud = append(cloud, r.Current.CloudCover)
		}

		weatherCodes[r.Current.WeatherCode]++

		if r.Insights != nil {
			if r.Insights.HeatStressIndex != nil {
				heatStress = append(heatStress, *r.Insights.HeatStressIndex)
			}
			if r.Insights.ThunderstormProbability != nil {
				storm = append(storm, *r.Insights.ThunderstormProbability)
			}
		}
	}

	var lines []string
	dateRange := "unknown"
	if len(dates) > 0 {
		dateRange = fmt.Sprintf("%s to %s", dates[0], dates[len(dates)-1])
	}
	lines = append(lines, fmt.Sprintf("Period: %s (%d data points)", dateRange, len(records)))

	if len(tempsHigh) > 0 {
		lines = append(lines, fmt.Sprintf("Temperature: avg high %s°C (range %s), avg low %s°C (range %s)",
			fnum(avg(tempsHigh)), rng(tempsHigh), fnum(avg(tempsLow)), rng(tempsLow)))
	}
	if len(feelsHigh) > 0 {
		lines = append(lines, fmt.Sprintf("Feels like: high %s°C, low %s°C", fnum(avg(feelsHigh)), fnum(avg(feelsLow))))
	}
	if trend := trendNote(tempsHigh); trend != "" {
		lines = append(lines, trend)
	}
	if len(precip) > 0 {
		lines = append(lines, fmt.Sprintf("Precipitation: total %s mm, %d rainy days out of %d", fnum(sum(precip)), rainyDays, len(precip)))
	}
	if len(humidity) > 0 {
		lines = append(lines, fmt.Sprintf("Humidity: avg %s%% (range %s)", fnum(avg(humidity)), rng(humidity)))
	}
	if len(wind) > 0 {
		maxGust := "N/A"
		if len(gusts) > 0 {
			maxGust = fnum(maxOf(gusts))
		}
		lines = append(lines, fmt.Sprintf("Wind: avg %s km/h, max gusts %s km/h", fnum(avg(wind)), maxGust))
	}
	if len(uv) > 0 {
		lines = append(lines, fmt.Sprintf("UV index: avg %s, max %s", fnum(avg(uv)), fnum(maxOf(uv))))
	}
	if len(pressure) > 0 {
		lines = append(lines, fmt.Sprintf("Pressure: avg %s hPa (range %s)", fnum(avg(pressure)), rng(pressure)))
	}
	if len(cloud) > 0 {
		lines = append(lines, fmt.Sprintf("Cloud cover: avg %s%%", fnum(avg(cloud))))
	}

	if len(weatherCodes) > 0 {
		lines = append(lines, "Most common conditions: "+topConditions(weatherCodes))
	}

	if len(heatStress) > 0 {
		highHeat := 0
		for _, h := range heatStress {
			if h >= 28 {
				highHeat++
			}
		}
		lines = append(lines, fmt.Sprintf("Heat stress: avg %s, %d high-stress days", fnum(avg(heatStress)), highHeat))
	}
	if len(storm) > 0 {
		stormDays := 0
		for _, s := range storm {
			if s > 30 {
				stormDays++
			}
		}
		lines = append(lines, fmt.Sprintf("Thunderstorm risk: avg %s%%, %d high-risk days", fnum(avg(storm)), stormDays))
	}

	return strings.Join(lines, "\n")
}

// topConditions returns the up-to-3 most frequent weather codes as a
// comma-joined "Name (Nd)" list, ties broken by code ascending for stability.
func topConditions(codes map[int]int) string {
	type pair struct {
		code  int
		count int
	}
	pairs := make([]pair, 0, len(codes))
	for c, n := range codes {
		pairs = append(pairs, pair{c, n})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].code < pairs[j].code
	})
	if len(pairs) > 3 {
		pairs = pairs[:3]
	}

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		name, ok := weatherCodeNames[p.code]
		if !ok {
			name = fmt.Sprintf("Code %d", p.code)
		}
		parts = append(parts, fmt.Sprintf("%s (%dd)", name, p.count))
	}
	return strings.Join(parts, ", ")
}

// trendNote compares the first and last quarters of the high-temperature
// series to call out a warming/cooling trend, mirroring the original
// service's quick visual-trend heuristic.
func trendNote(tempsHigh []float64) string {
	if len(tempsHigh) < 8 {
		return ""
	}
	quarter := len(tempsHigh) / 4
	firstAvg := avg(tempsHigh[:quarter])
	lastAvg := avg(tempsHigh[len(tempsHigh)-quarter:])
	diff := round1(lastAvg - firstAvg)
	if diff <= 1 && diff >= -1 {
		return ""
	}
	direction := "cooling"
	if diff > 0 {
		direction = "warming"
	}
	plus := "+"
	if diff < 0 {
		plus = ""
	}
	return fmt.Sprintf("Temperature trend: %s (%s%.1f°C from start to end)", direction, plus, diff)
}

func avg(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	return round1(sum(vs) / float64(len(vs)))
}

func sum(vs []float64) float64 {
	var total float64
	for _, v := range vs {
		total += v
	}
	return total
}

func maxOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v > m {
			m = v
		}
	}
	return round1(m)
}

func minOf(vs []float64) float64 {
	m := vs[0]
	for _, v := range vs[1:] {
		if v < m {
			m = v
		}
	}
	return round1(m)
}

func rng(vs []float64) string {
	if len(vs) == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%s-%s", fnum(minOf(vs)), fnum(maxOf(vs)))
}

func round1(v float64) float64 {
	return float64(int(v*10+sign(v)*0.5)) / 10
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func fnum(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
