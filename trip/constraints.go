// Package trip defines the data model for a planning session: extracted
// constraints, the task graph steps and their execution records, the
// synthesized itinerary, and the durable run record.
package trip

// Preferences holds the named travel preferences extracted from a request.
// Every field is tri-state: nil means the user never expressed the
// preference, which is distinct from an explicit false.
type Preferences struct {
	FamilyFriendly *bool `json:"family_friendly,omitempty" yaml:"family_friendly,omitempty"`
	Luxury         *bool `json:"luxury,omitempty" yaml:"luxury,omitempty"`
	BudgetFriendly *bool `json:"budget_friendly,omitempty" yaml:"budget_friendly,omitempty"`
	Adventure      *bool `json:"adventure,omitempty" yaml:"adventure,omitempty"`
	Cultural       *bool `json:"cultural,omitempty" yaml:"cultural,omitempty"`
	Relaxation     *bool `json:"relaxation,omitempty" yaml:"relaxation,omitempty"`
	KidFriendly    *bool `json:"kid_friendly,omitempty" yaml:"kid_friendly,omitempty"`
	Museums        *bool `json:"museums,omitempty" yaml:"museums,omitempty"`
}

// Constraints is the semantic record of what the user asked for.
// All fields are independently optional; absent means unknown.
type Constraints struct {
	// BudgetUSD is the total trip budget, nil if never mentioned.
	BudgetUSD *float64 `json:"budget_usd,omitempty" yaml:"budget_usd,omitempty"`

	// StartDate and EndDate bound the trip, YYYY-MM-DD. Empty means unset.
	StartDate string `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty" yaml:"end_date,omitempty"`

	// Airports is the ordered list of acceptable departure airport codes.
	Airports []string `json:"airports,omitempty" yaml:"airports,omitempty"`

	Preferences Preferences `json:"preferences" yaml:"preferences"`
}

// MergeConstraints folds a freshly extracted delta onto the constraints of a
// prior plan. Semantics are last-write-wins at field granularity:
//
//   - a nil previous returns the delta unchanged (first-time planning)
//   - scalar fields overwrite only when meaningfully set in the delta
//   - preference keys merge individually; nil keys never erase
//   - list fields replace wholesale when non-empty, never concatenate
func MergeConstraints(previous *Constraints, delta Constraints) Constraints {
	if previous == nil {
		return delta
	}

	merged := *previous

	if delta.BudgetUSD != nil {
		merged.BudgetUSD = delta.BudgetUSD
	}
	if delta.StartDate != "" {
		merged.StartDate = delta.StartDate
	}
	if delta.EndDate != "" {
		merged.EndDate = delta.EndDate
	}
	if len(delta.Airports) > 0 {
		merged.Airports = delta.Airports
	}

	merged.Preferences = mergePreferences(previous.Preferences, delta.Preferences)

	return merged
}

func mergePreferences(prev, delta Preferences) Preferences {
	out := prev
	if delta.FamilyFriendly != nil {
		out.FamilyFriendly = delta.FamilyFriendly
	}
	if delta.Luxury != nil {
		out.Luxury = delta.Luxury
	}
	if delta.BudgetFriendly != nil {
		out.BudgetFriendly = delta.BudgetFriendly
	}
	if delta.Adventure != nil {
		out.Adventure = delta.Adventure
	}
	if delta.Cultural != nil {
		out.Cultural = delta.Cultural
	}
	if delta.Relaxation != nil {
		out.Relaxation = delta.Relaxation
	}
	if delta.KidFriendly != nil {
		out.KidFriendly = delta.KidFriendly
	}
	if delta.Museums != nil {
		out.Museums = delta.Museums
	}
	return out
}
