package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/wayfarerhq/wayfarer/trip"
)

// Hotel is one fixture hotel record.
type Hotel struct {
	City        string  `json:"city"`
	Name        string  `json:"name"`
	NightlyUSD  float64 `json:"nightly_usd"`
	Rating      float64 `json:"rating"`
	KidFriendly bool    `json:"kid_friendly"`
	Area        string  `json:"area,omitempty"`
}

// HotelSearch serves hotel availability from the fixture store.
type HotelSearch struct {
	fixtures *FixtureStore
}

// NewHotelSearch creates the search_hotels tool.
func NewHotelSearch(fixtures *FixtureStore) *HotelSearch {
	return &HotelSearch{fixtures: fixtures}
}

func (h *HotelSearch) Spec() trip.ToolSpec {
	return trip.ToolSpec{
		Name:        "search_hotels",
		Description: "Search hotels in a city, optionally filtered by nightly budget and kid-friendliness.",
		Args: map[string]string{
			"city":         "string, destination city",
			"max_nightly":  "number, maximum nightly rate in USD (optional)",
			"kid_friendly": "boolean, require kid-friendly properties (optional)",
		},
	}
}

// Execute filters fixture hotels, best rated first.
func (h *HotelSearch) Execute(ctx context.Context, args map[string]any) (string, error) {
	city, err := stringArg(args, "city")
	if err != nil {
		return "", err
	}
	maxNightly := optionalFloat(args, "max_nightly")
	kidOnly, _ := args["kid_friendly"].(bool)

	var all []Hotel
	if err := h.fixtures.Unmarshal("hotels", &all); err != nil {
		return "", fmt.Errorf("hotel data unavailable: %w", err)
	}

	var matches []Hotel
	for _, ht := range all {
		if !strings.EqualFold(ht.City, city) {
			continue
		}
		if maxNightly > 0 && ht.NightlyUSD > maxNightly {
			continue
		}
		if kidOnly && !ht.KidFriendly {
			continue
		}
		matches = append(matches, ht)
	}

	if len(matches) == 0 {
		return fmt.Sprintf("No hotels found in %s", city), nil
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Rating > matches[j].Rating })

	out, err := json.Marshal(matches)
	if err != nil {
		return "", fmt.Errorf("encode hotel results: %w", err)
	}
	return string(out), nil
}
