package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wayfarerhq/wayfarer/trip"
)

var now = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

func boolPtr(b bool) *bool        { return &b }
func floatPtr(f float64) *float64 { return &f }

func day(activities ...trip.Activity) trip.Day {
	return trip.Day{Activities: activities}
}

func TestCheckNoItinerary(t *testing.T) {
	c := trip.Constraints{BudgetUSD: floatPtr(100)}

	for _, it := range []*trip.Itinerary{nil, {}, {Days: []trip.Day{}}} {
		violations := Check(it, c, now)
		require.Len(t, violations, 1)
		assert.Equal(t, "No itinerary found to validate", violations[0])
	}

	// Idempotent: a second call yields the same single violation.
	first := Check(nil, c, now)
	second := Check(nil, c, now)
	assert.Equal(t, first, second)
}

func TestCheckBudget(t *testing.T) {
	it := &trip.Itinerary{
		Days:         []trip.Day{day()},
		TotalCostUSD: floatPtr(600),
	}

	violations := Check(it, trip.Constraints{BudgetUSD: floatPtr(500)}, now)

	require.Len(t, violations, 1)
	assert.Equal(t, "Total cost $600.00 exceeds budget of $500.00", violations[0])

	// Under budget: clean.
	it.TotalCostUSD = floatPtr(400)
	assert.Empty(t, Check(it, trip.Constraints{BudgetUSD: floatPtr(500)}, now))

	// No budget constraint: the rule is skipped entirely.
	it.TotalCostUSD = floatPtr(600)
	assert.Empty(t, Check(it, trip.Constraints{}, now))
}

func TestCheckDateSpan(t *testing.T) {
	it := &trip.Itinerary{Days: []trip.Day{day(), day(), day(), day()}}
	c := trip.Constraints{StartDate: "2026-10-01", EndDate: "2026-10-03"}

	violations := Check(it, c, now)

	require.Len(t, violations, 1)
	assert.Equal(t,
		"Itinerary has 4 days but only 3 days available between 2026-10-01 and 2026-10-03",
		violations[0])

	// Exactly filling the inclusive span is fine.
	it.Days = it.Days[:3]
	assert.Empty(t, Check(it, c, now))
}

func TestCheckActivityConflicts(t *testing.T) {
	overloaded := make([]trip.Activity, 9)
	for i := range overloaded {
		overloaded[i] = trip.Activity{Name: "stop", Description: "visit"}
	}
	it := &trip.Itinerary{Days: []trip.Day{
		day(),
		{Activities: overloaded},
	}}

	violations := Check(it, trip.Constraints{}, now)

	require.Len(t, violations, 1)
	assert.Equal(t, "Day 2 has 9 activities which may cause scheduling conflicts", violations[0])
}

func TestCheckLocationFeasibility(t *testing.T) {
	var acts []trip.Activity
	for _, loc := range []string{"Soho", "Chelsea", "Harlem", "Queens", "Bronx", "Brooklyn"} {
		acts = append(acts, trip.Activity{Name: "stop", Location: loc})
	}
	it := &trip.Itinerary{Days: []trip.Day{{Activities: acts}}}

	violations := Check(it, trip.Constraints{}, now)

	require.Len(t, violations, 1)
	assert.Equal(t, "Day 1 has activities in 6 different locations which may not be feasible", violations[0])

	// Duplicate locations count once.
	it.Days[0].Activities = append(it.Days[0].Activities[:5],
		trip.Activity{Name: "again", Location: "Soho"})
	assert.Empty(t, Check(it, trip.Constraints{}, now))
}

func TestCheckWeatherNearTermOutdoor(t *testing.T) {
	it := &trip.Itinerary{Days: []trip.Day{
		day(trip.Activity{Name: "Central Park picnic", Description: "relax"}),
		day(trip.Activity{Name: "Gallery", Description: "indoor art"}),
	}}

	// Trip starts 5 days out: the park day gets an advisory.
	c := trip.Constraints{StartDate: "2026-09-05"}
	violations := Check(it, c, now)
	require.Len(t, violations, 1)
	assert.Equal(t, "Day 1 has outdoor activities - verify weather conditions for 2026-09-05", violations[0])

	// Outdoor keyword in the description also triggers.
	it.Days[1].Activities[0].Description = "outdoor sculpture walk"
	assert.Len(t, Check(it, c, now), 2)

	// Trip starting beyond the lookahead window: no advisory.
	far := trip.Constraints{StartDate: "2026-12-01"}
	assert.Empty(t, Check(it, far, now))

	// No start date: rule skipped.
	assert.Empty(t, Check(it, trip.Constraints{}, now))
}

func TestCheckKidFriendly(t *testing.T) {
	it := &trip.Itinerary{Days: []trip.Day{
		day(trip.Activity{Name: "Jazz bar crawl", Description: "evening"}),
		day(trip.Activity{Name: "Aquarium", Description: "fish"}),
	}}
	c := trip.Constraints{Preferences: trip.Preferences{KidFriendly: boolPtr(true)}}

	violations := Check(it, c, now)

	require.Len(t, violations, 1)
	assert.Equal(t, "Day 1 includes activities that may not be kid-friendly", violations[0])

	// Preference unset or explicit false: no violation.
	assert.Empty(t, Check(it, trip.Constraints{}, now))
	off := trip.Constraints{Preferences: trip.Preferences{KidFriendly: boolPtr(false)}}
	assert.Empty(t, Check(it, off, now))
}

func TestCheckMuseumsPreference(t *testing.T) {
	it := &trip.Itinerary{Days: []trip.Day{
		day(trip.Activity{Name: "Harbor cruise", Description: "boat"}),
	}}
	c := trip.Constraints{Preferences: trip.Preferences{Museums: boolPtr(true)}}

	violations := Check(it, c, now)
	require.Len(t, violations, 1)
	assert.Equal(t, "No museums included despite user preference for museums", violations[0])

	// A single museum anywhere satisfies the preference.
	it.Days[0].Activities = append(it.Days[0].Activities,
		trip.Activity{Name: "City Museum", Description: "history"})
	assert.Empty(t, Check(it, c, now))
}

func TestCheckCollectsAllViolations(t *testing.T) {
	overloaded := make([]trip.Activity, 9)
	for i := range overloaded {
		overloaded[i] = trip.Activity{Name: "bar hop", Description: "drinks"}
	}
	it := &trip.Itinerary{
		Days:         []trip.Day{{Activities: overloaded}},
		TotalCostUSD: floatPtr(900),
	}
	c := trip.Constraints{
		BudgetUSD:   floatPtr(500),
		Preferences: trip.Preferences{KidFriendly: boolPtr(true), Museums: boolPtr(true)},
	}

	violations := Check(it, c, now)

	// Budget, overload, kid-friendly, and museum rules all fire; nothing
	// short-circuits.
	assert.Len(t, violations, 4)
}
