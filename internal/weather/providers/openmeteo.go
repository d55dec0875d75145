package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/i474232898/weather-widget/internal/weather"
)

const (
	DefaultGeocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultForecastURL  = "https://api.open-meteo.com/v1/forecast"

	// MaxSearchResults is the count requested from the geocoding API.
	MaxSearchResults = 10
)

// OpenMeteo implements weather.Geocoder and weather.Fetcher against the
// Open-Meteo geocoding and forecast APIs. It keeps no local state beyond the
// breakers.
type OpenMeteo struct {
	geocodingURL string
	forecastURL  string
	geocodeCfg   HTTPClientConfig
	forecastCfg  HTTPClientConfig
	now          func() time.Time
}

// NewOpenMeteo builds the client. Empty URLs fall back to the public endpoints.
func NewOpenMeteo(client *http.Client, geocodingURL, forecastURL string) *OpenMeteo {
	if geocodingURL == "" {
		geocodingURL = DefaultGeocodingURL
	}
	if forecastURL == "" {
		forecastURL = DefaultForecastURL
	}

	return &OpenMeteo{
		geocodingURL: geocodingURL,
		forecastURL:  forecastURL,
		geocodeCfg: HTTPClientConfig{
			Client:  client,
			Breaker: newBreaker("openmeteo-geocoding", 5, 30*time.Second),
		},
		forecastCfg: HTTPClientConfig{
			Client:  client,
			Breaker: newBreaker("openmeteo-forecast", 5, 30*time.Second),
		},
		now: time.Now,
	}
}

type geocodingPayload struct {
	Results []struct {
		Name      string   `json:"name"`
		Country   string   `json:"country"`
		Admin1    string   `json:"admin1"`
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
	} `json:"results"`
}

// SearchLocations returns up to MaxSearchResults candidates for query, in the
// order the API ranks them. A blank query returns nothing without a request.
func (p *OpenMeteo) SearchLocations(ctx context.Context, query string) ([]weather.Location, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []weather.Location{}, nil
	}

	values := url.Values{}
	values.Set("name", query)
	values.Set("count", strconv.Itoa(MaxSearchResults))
	values.Set("language", "en")
	values.Set("format", "json")

	req, err := http.NewRequest(http.MethodGet, p.geocodingURL+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrFetchFailed, err)
	}

	resp, err := doRequest(ctx, p.geocodeCfg, req)
	if err != nil {
		log.Error().Err(err).Str("query", query).Msg("geocoding request failed")
		return nil, err
	}
	defer resp.Body.Close()

	var payload geocodingPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		log.Error().Err(err).Str("query", query).Msg("geocoding response malformed")
		return nil, fmt.Errorf("%w: decode geocoding response: %v", weather.ErrFetchFailed, err)
	}

	locations := make([]weather.Location, 0, len(payload.Results))
	for _, r := range payload.Results {
		if len(locations) == MaxSearchResults {
			break
		}
		if r.Latitude == nil || r.Longitude == nil {
			return nil, fmt.Errorf("%w: geocoding result %q has no coordinates", weather.ErrFetchFailed, r.Name)
		}
		locations = append(locations, weather.Location{
			Name:      r.Name,
			Country:   r.Country,
			Region:    r.Admin1,
			Latitude:  *r.Latitude,
			Longitude: *r.Longitude,
		})
	}
	return locations, nil
}

type forecastPayload struct {
	Current *struct {
		Temperature *float64 `json:"temperature_2m"`
		WeatherCode *int     `json:"weather_code"`
	} `json:"current"`
}

// GetCurrentWeather fetches current conditions at coords. When known is nil
// the reading carries a placeholder location named after the coordinates.
func (p *OpenMeteo) GetCurrentWeather(ctx context.Context, coords weather.Coordinates, known *weather.Location) (weather.Reading, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	values.Set("longitude", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	values.Set("current", "temperature_2m,weather_code")
	values.Set("timezone", "auto")

	req, err := http.NewRequest(http.MethodGet, p.forecastURL+"?"+values.Encode(), nil)
	if err != nil {
		return weather.Reading{}, fmt.Errorf("%w: %v", weather.ErrFetchFailed, err)
	}

	resp, err := doRequest(ctx, p.forecastCfg, req)
	if err != nil {
		log.Error().Err(err).Float64("lat", coords.Latitude).Float64("lon", coords.Longitude).Msg("weather request failed")
		return weather.Reading{}, err
	}
	defer resp.Body.Close()

	var payload forecastPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, fmt.Errorf("%w: decode forecast response: %v", weather.ErrFetchFailed, err)
	}
	if payload.Current == nil {
		return weather.Reading{}, fmt.Errorf("%w: no current weather data available", weather.ErrFetchFailed)
	}
	if payload.Current.Temperature == nil || payload.Current.WeatherCode == nil {
		return weather.Reading{}, fmt.Errorf("%w: current weather is missing temperature or weather code", weather.ErrFetchFailed)
	}

	loc := weather.PlaceholderLocation(coords)
	if known != nil {
		loc = *known
	}

	return weather.Reading{
		Temperature: *payload.Current.Temperature,
		WeatherCode: *payload.Current.WeatherCode,
		Location:    loc,
		Timestamp:   p.now().UTC(),
	}, nil
}
