package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nyuchitech/mukoko-weather/internal/breaker"
)

const userAgent = "mukoko-weather/2.0 (support@mukoko.com)"

// geocoder wraps the three external HTTP geocoding providers behind their
// own circuit breakers, mirroring the resilience pattern the weather
// pipeline applies to Tomorrow.io and Open-Meteo.
type geocoder struct {
	httpClient    *http.Client
	breakers      *breaker.Registry
	nominatimBase string
	geocodingBase string
	elevationBase string
}

func newGeocoder(breakers *breaker.Registry, nominatimBase, geocodingBase, elevationBase string) *geocoder {
	return &geocoder{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		breakers:      breakers,
		nominatimBase: nominatimBase,
		geocodingBase: geocodingBase,
		elevationBase: elevationBase,
	}
}

type nominatimResponse struct {
	Lat     string `json:"lat"`
	Lon     string `json:"lon"`
	Name    string `json:"name"`
	Address struct {
		City        string `json:"city"`
		Town        string `json:"town"`
		Village     string `json:"village"`
		Suburb      string `json:"suburb"`
		County      string `json:"county"`
		State       string `json:"state"`
		Province    string `json:"province"`
		Country     string `json:"country"`
		CountryCode string `json:"country_code"`
	} `json:"address"`
}

// ReverseGeocode resolves coordinates to a place name via Nominatim.
// Returns ok=false on any upstream failure — reverse geocoding is never
// fatal to the caller, matching the original's best-effort behavior.
func (g *geocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (Geocoded, bool) {
	b := g.breakers.Get("nominatim")
	result, err := breaker.CallWithResult(ctx, b, func(ctx context.Context) (Geocoded, error) {
		u := g.nominatimBase + "/reverse?" + url.Values{
			"lat":             {strconv.FormatFloat(lat, 'f', -1, 64)},
			"lon":             {strconv.FormatFloat(lon, 'f', -1, 64)},
			"format":          {"jsonv2"},
			"zoom":            {"10"},
			"accept-language": {"en"},
		}.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return Geocoded{}, err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return Geocoded{}, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return Geocoded{}, fmt.Errorf("nominatim: status %d", resp.StatusCode)
		}

		var nr nominatimResponse
		if err := json.NewDecoder(resp.Body).Decode(&nr); err != nil {
			return Geocoded{}, err
		}

		name := firstNonEmpty(nr.Address.City, nr.Address.Town, nr.Address.Village, nr.Address.Suburb, nr.Address.County, nr.Name, "Unknown")
		country := nr.Address.CountryCode
		if country == "" {
			country = "zw"
		}
		countryName := nr.Address.Country
		if countryName == "" {
			countryName = "Zimbabwe"
		}
		admin1 := firstNonEmpty(nr.Address.State, nr.Address.Province)

		resultLat, resultLon := lat, lon
		if f, err := strconv.ParseFloat(nr.Lat, 64); err == nil {
			resultLat = f
		}
		if f, err := strconv.ParseFloat(nr.Lon, 64); err == nil {
			resultLon = f
		}

		return Geocoded{
			Name:        name,
			Country:     toUpper2(country),
			CountryName: countryName,
			Admin1:      admin1,
			Lat:         resultLat,
			Lon:         resultLon,
		}, nil
	})
	if err != nil {
		return Geocoded{}, false
	}
	return result, true
}

type geocodingResponse struct {
	Results []struct {
		Name        string  `json:"name"`
		CountryCode string  `json:"country_code"`
		Country     string  `json:"country"`
		Admin1      string  `json:"admin1"`
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		Elevation   float64 `json:"elevation"`
		Population  int     `json:"population"`
	} `json:"results"`
}

// ForwardGeocode resolves a free-text query to up to count candidate
// places via Open-Meteo's geocoding API.
func (g *geocoder) ForwardGeocode(ctx context.Context, query string, count int) ([]Geocoded, error) {
	b := g.breakers.Get("open-meteo")
	return breaker.CallWithResult(ctx, b, func(ctx context.Context) ([]Geocoded, error) {
		u := g.geocodingBase + "/search?" + url.Values{
			"name":     {query},
			"count":    {strconv.Itoa(count)},
			"language": {"en"},
		}.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("open-meteo geocoding: status %d", resp.StatusCode)
		}

		var gr geocodingResponse
		if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
			return nil, err
		}

		out := make([]Geocoded, 0, len(gr.Results))
		for _, r := range gr.Results {
			out = append(out, Geocoded{
				Name:        r.Name,
				Country:     toUpper2(r.CountryCode),
				CountryName: r.Country,
				Admin1:      r.Admin1,
				Lat:         r.Latitude,
				Lon:         r.Longitude,
				Elevation:   r.Elevation,
				Population:  r.Population,
			})
		}
		return out, nil
	})
}

type elevationResponse struct {
	Elevation []float64 `json:"elevation"`
}

// GetElevation looks up ground elevation in meters for a coordinate pair.
// Returns 0 on any failure — elevation is cosmetic, never load-bearing.
func (g *geocoder) GetElevation(ctx context.Context, lat, lon float64) float64 {
	b := g.breakers.Get("open-meteo")
	elevation, err := breaker.CallWithResult(ctx, b, func(ctx context.Context) (float64, error) {
		u := g.elevationBase + "/elevation?" + url.Values{
			"latitude":  {strconv.FormatFloat(lat, 'f', -1, 64)},
			"longitude": {strconv.FormatFloat(lon, 'f', -1, 64)},
		}.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return 0, err
		}

		resp, err := g.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return 0, fmt.Errorf("open-meteo elevation: status %d", resp.StatusCode)
		}

		var er elevationResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
			return 0, err
		}
		if len(er.Elevation) == 0 {
			return 0, nil
		}
		return er.Elevation[0], nil
	})
	if err != nil {
		return 0
	}
	return elevation
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func toUpper2(s string) string {
	if s == "" {
		return "ZW"
	}
	return strings.ToUpper(s)
}
