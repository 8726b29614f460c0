// Package weathercode normalizes weather codes from every upstream provider
// onto the WMO code table used throughout the service.
package weathercode

// tomorrowToWMO maps Tomorrow.io's proprietary weather codes onto the WMO
// table. Unknown codes normalize to 0 (clear sky).
var tomorrowToWMO = map[int]int{
	0: 0, 1000: 0, 1100: 1, 1101: 2, 1102: 3,
	1001: 3, 2000: 45, 2100: 48, 4000: 51,
	4001: 61, 4200: 63, 4201: 65, 5000: 71,
	5001: 73, 5100: 75, 5101: 77, 6000: 56,
	6001: 66, 6200: 67, 6201: 67, 7000: 77,
	7101: 85, 7102: 86, 8000: 95,
}

// FromTomorrow converts a Tomorrow.io weather code to WMO.
func FromTomorrow(code int) int {
	if wmo, ok := tomorrowToWMO[code]; ok {
		return wmo
	}
	return 0
}

// friendlyNames gives a short human-readable label for a subset of WMO
// codes, used by the history analyser when summarizing a date range.
var friendlyNames = map[int]string{
	0:  "clear sky",
	1:  "mainly clear",
	2:  "partly cloudy",
	3:  "overcast",
	45: "fog",
	48: "depositing rime fog",
	51: "light drizzle",
	53: "moderate drizzle",
	55: "dense drizzle",
	56: "light freezing drizzle",
	57: "dense freezing drizzle",
	61: "slight rain",
	63: "moderate rain",
	65: "heavy rain",
	66: "light freezing rain",
	67: "heavy freezing rain",
	71: "slight snow",
	73: "moderate snow",
	75: "heavy snow",
	77: "snow grains",
	80: "slight rain showers",
	81: "moderate rain showers",
	82: "violent rain showers",
	85: "slight snow showers",
	86: "heavy snow showers",
	95: "thunderstorm",
	96: "thunderstorm with slight hail",
	99: "thunderstorm with heavy hail",
}

// FriendlyName returns a human-readable label for a WMO code, or "unknown"
// if the code is not in the table.
func FriendlyName(code int) string {
	if name, ok := friendlyNames[code]; ok {
		return name
	}
	return "unknown"
}

// IsRainCode reports whether code falls in the drizzle/rain/shower range
// (WMO 51–82 inclusive).
func IsRainCode(code int) bool {
	return code >= 51 && code <= 82
}
