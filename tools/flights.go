package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/wayfarerhq/wayfarer/trip"
)

// Flight is one fixture flight record.
type Flight struct {
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Date        string  `json:"date"`
	Airline     string  `json:"airline"`
	FlightNo    string  `json:"flight_no"`
	Depart      string  `json:"depart"`
	Arrive      string  `json:"arrive"`
	PriceUSD    float64 `json:"price_usd"`
}

// FlightSearch serves flight availability from the fixture store.
type FlightSearch struct {
	fixtures *FixtureStore
}

// NewFlightSearch creates the search_flights tool.
func NewFlightSearch(fixtures *FixtureStore) *FlightSearch {
	return &FlightSearch{fixtures: fixtures}
}

func (f *FlightSearch) Spec() trip.ToolSpec {
	return trip.ToolSpec{
		Name:        "search_flights",
		Description: "Search available flights between two airports or cities.",
		Args: map[string]string{
			"origin":      "string, departure airport code or city",
			"destination": "string, arrival airport code or city",
			"date":        "string, YYYY-MM-DD (optional)",
			"max_price":   "number, maximum price in USD (optional)",
		},
	}
}

// Execute filters fixture flights by origin, destination, and optionally
// date and price ceiling. Results are returned cheapest first.
func (f *FlightSearch) Execute(ctx context.Context, args map[string]any) (string, error) {
	origin, err := stringArg(args, "origin")
	if err != nil {
		return "", err
	}
	destination, err := stringArg(args, "destination")
	if err != nil {
		return "", err
	}
	date := optionalString(args, "date")
	maxPrice := optionalFloat(args, "max_price")

	var all []Flight
	if err := f.fixtures.Unmarshal("flights", &all); err != nil {
		return "", fmt.Errorf("flight data unavailable: %w", err)
	}

	var matches []Flight
	for _, fl := range all {
		if !strings.EqualFold(fl.Origin, origin) || !strings.EqualFold(fl.Destination, destination) {
			continue
		}
		if date != "" && fl.Date != date {
			continue
		}
		if maxPrice > 0 && fl.PriceUSD > maxPrice {
			continue
		}
		matches = append(matches, fl)
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No flights found from %s to %s", origin, destination), nil
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].PriceUSD < matches[j].PriceUSD })

	out, err := json.Marshal(matches)
	if err != nil {
		return "", fmt.Errorf("encode flight results: %w", err)
	}
	return string(out), nil
}
