package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wayfarerhq/wayfarer/trip"
)

const (
	geocodingURL = "https://geocoding-api.open-meteo.com/v1/search"
	forecastURL  = "https://api.open-meteo.com/v1/forecast"
)

// WeatherCheck looks up a daily forecast via the Open-Meteo public API,
// which needs no API key.
type WeatherCheck struct {
	client *http.Client
}

// NewWeatherCheck creates the check_weather tool. A nil client gets a
// default with a 15s timeout.
func NewWeatherCheck(client *http.Client) *WeatherCheck {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WeatherCheck{client: client}
}

func (w *WeatherCheck) Spec() trip.ToolSpec {
	return trip.ToolSpec{
		Name:        "check_weather",
		Description: "Get the daily weather forecast for a location.",
		Args: map[string]string{
			"location": "string, city or place name",
		},
	}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Daily struct {
		Time          []string  `json:"time"`
		WeatherCode   []int     `json:"weather_code"`
		TempMax       []float64 `json:"temperature_2m_max"`
		TempMin       []float64 `json:"temperature_2m_min"`
		PrecipProbMax []float64 `json:"precipitation_probability_max"`
	} `json:"daily"`
}

// Execute geocodes the location and returns a human-readable forecast
// summary, one line per day.
func (w *WeatherCheck) Execute(ctx context.Context, args map[string]any) (string, error) {
	location, err := stringArg(args, "location")
	if err != nil {
		return "", err
	}

	var geo geocodeResponse
	geoQuery := url.Values{"name": {location}, "count": {"1"}}
	if err := w.getJSON(ctx, geocodingURL+"?"+geoQuery.Encode(), &geo); err != nil {
		return "", fmt.Errorf("geocode %s: %w", location, err)
	}
	if len(geo.Results) == 0 {
		return "", fmt.Errorf("unknown location: %s", location)
	}
	place := geo.Results[0]

	fcQuery := url.Values{
		"latitude":  {fmt.Sprintf("%.4f", place.Latitude)},
		"longitude": {fmt.Sprintf("%.4f", place.Longitude)},
		"daily":     {"weather_code,temperature_2m_max,temperature_2m_min,precipitation_probability_max"},
		"timezone":  {"auto"},
	}
	var fc forecastResponse
	if err := w.getJSON(ctx, forecastURL+"?"+fcQuery.Encode(), &fc); err != nil {
		return "", fmt.Errorf("forecast for %s: %w", location, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Forecast for %s, %s:\n", place.Name, place.Country)
	for i, day := range fc.Daily.Time {
		if i >= len(fc.Daily.TempMax) || i >= len(fc.Daily.TempMin) {
			break
		}
		precip := 0.0
		if i < len(fc.Daily.PrecipProbMax) {
			precip = fc.Daily.PrecipProbMax[i]
		}
		code := 0
		if i < len(fc.Daily.WeatherCode) {
			code = fc.Daily.WeatherCode[i]
		}
		fmt.Fprintf(&b, "%s: %s, high %.0f°C, low %.0f°C, %.0f%% chance of precipitation\n",
			day, describeWeatherCode(code), fc.Daily.TempMax[i], fc.Daily.TempMin[i], precip)
	}
	return b.String(), nil
}

func (w *WeatherCheck) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// describeWeatherCode maps WMO weather codes to short phrases.
func describeWeatherCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "fog"
	case code <= 57:
		return "drizzle"
	case code <= 67:
		return "rain"
	case code <= 77:
		return "snow"
	case code <= 82:
		return "rain showers"
	case code <= 86:
		return "snow showers"
	default:
		return "thunderstorm"
	}
}
