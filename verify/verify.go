// Package verify checks a synthesized itinerary against the active
// constraints and reports every violation it finds. Check is a pure
// function: no side effects, deterministic for identical inputs.
package verify

import (
	"fmt"
	"strings"
	"time"

	"github.com/wayfarerhq/wayfarer/trip"
)

const (
	// maxActivitiesPerDay is a heuristic proxy for time-of-day conflicts;
	// activities carry no explicit start/end times in this model.
	maxActivitiesPerDay = 8

	// maxLocationsPerDay is a heuristic proxy for geographic feasibility.
	maxLocationsPerDay = 5

	// weatherLookahead bounds how far out weather advisories apply.
	weatherLookahead = 10 * 24 * time.Hour
)

var adultKeywords = []string{"bar", "nightclub", "casino", "adult"}

// Check evaluates the full rule set and returns every violation found; it
// never short-circuits on the first failure. An absent itinerary, or one
// with zero days, yields a single violation and skips the remaining rules.
func Check(it *trip.Itinerary, c trip.Constraints, now time.Time) []trip.Violation {
	if it == nil || len(it.Days) == 0 {
		return []trip.Violation{"No itinerary found to validate"}
	}

	var violations []trip.Violation
	violations = append(violations, checkBudget(it, c)...)
	violations = append(violations, checkDates(it, c)...)
	violations = append(violations, checkActivityConflicts(it)...)
	violations = append(violations, checkLocationFeasibility(it)...)
	violations = append(violations, checkWeather(it, c, now)...)
	violations = append(violations, checkPreferences(it, c)...)
	return violations
}

func checkBudget(it *trip.Itinerary, c trip.Constraints) []trip.Violation {
	if c.BudgetUSD == nil || it.TotalCostUSD == nil {
		return nil
	}
	if *it.TotalCostUSD > *c.BudgetUSD {
		return []trip.Violation{fmt.Sprintf(
			"Total cost $%.2f exceeds budget of $%.2f", *it.TotalCostUSD, *c.BudgetUSD)}
	}
	return nil
}

func checkDates(it *trip.Itinerary, c trip.Constraints) []trip.Violation {
	if c.StartDate == "" || c.EndDate == "" {
		return nil
	}
	start, err := parseDate(c.StartDate)
	if err != nil {
		return nil
	}
	end, err := parseDate(c.EndDate)
	if err != nil {
		return nil
	}

	// Inclusive day span between the constraint dates.
	maxDays := int(end.Sub(start).Hours()/24) + 1
	if len(it.Days) > maxDays {
		return []trip.Violation{fmt.Sprintf(
			"Itinerary has %d days but only %d days available between %s and %s",
			len(it.Days), maxDays, c.StartDate, c.EndDate)}
	}
	return nil
}

func checkActivityConflicts(it *trip.Itinerary) []trip.Violation {
	var violations []trip.Violation
	for i, day := range it.Days {
		if len(day.Activities) > maxActivitiesPerDay {
			violations = append(violations, fmt.Sprintf(
				"Day %d has %d activities which may cause scheduling conflicts",
				i+1, len(day.Activities)))
		}
	}
	return violations
}

func checkLocationFeasibility(it *trip.Itinerary) []trip.Violation {
	var violations []trip.Violation
	for i, day := range it.Days {
		locations := make(map[string]bool)
		for _, a := range day.Activities {
			if a.Location != "" {
				locations[a.Location] = true
			}
		}
		if len(locations) > maxLocationsPerDay {
			violations = append(violations, fmt.Sprintf(
				"Day %d has activities in %d different locations which may not be feasible",
				i+1, len(locations)))
		}
	}
	return violations
}

// checkWeather flags outdoor activities on near-term trips as advisories
// requiring weather confirmation. Only applies when the trip starts within
// the lookahead window of now.
func checkWeather(it *trip.Itinerary, c trip.Constraints, now time.Time) []trip.Violation {
	if c.StartDate == "" {
		return nil
	}
	start, err := parseDate(c.StartDate)
	if err != nil {
		return nil
	}
	until := start.Sub(now)
	if until < 0 || until > weatherLookahead {
		return nil
	}

	var violations []trip.Violation
	for i, day := range it.Days {
		for _, a := range day.Activities {
			if isOutdoor(a) {
				violations = append(violations, fmt.Sprintf(
					"Day %d has outdoor activities - verify weather conditions for %s",
					i+1, c.StartDate))
				break
			}
		}
	}
	return violations
}

func isOutdoor(a trip.Activity) bool {
	return strings.Contains(strings.ToLower(a.Description), "outdoor") ||
		strings.Contains(strings.ToLower(a.Name), "park")
}

func checkPreferences(it *trip.Itinerary, c trip.Constraints) []trip.Violation {
	var violations []trip.Violation
	prefs := c.Preferences

	if prefs.KidFriendly != nil && *prefs.KidFriendly {
		for i, day := range it.Days {
			for _, a := range day.Activities {
				text := strings.ToLower(a.Name + " " + a.Description)
				if containsAny(text, adultKeywords) {
					violations = append(violations, fmt.Sprintf(
						"Day %d includes activities that may not be kid-friendly", i+1))
					break
				}
			}
		}
	}

	if prefs.Museums != nil && *prefs.Museums {
		found := false
		for _, day := range it.Days {
			for _, a := range day.Activities {
				if strings.Contains(strings.ToLower(a.Name), "museum") ||
					strings.Contains(strings.ToLower(a.Description), "museum") {
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			violations = append(violations,
				"No museums included despite user preference for museums")
		}
	}

	return violations
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// parseDate accepts YYYY-MM-DD and RFC3339 timestamps.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
