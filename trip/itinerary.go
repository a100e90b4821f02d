package trip

// Activity is a single itinerary entry. Name and Description are always
// present; everything else is optional.
type Activity struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	DurationMinutes *int     `json:"duration_minutes,omitempty"`
	CostUSD         *float64 `json:"cost_usd,omitempty"`
	Location        string   `json:"location,omitempty"`
}

// Day is one day of the itinerary.
type Day struct {
	Date         string     `json:"date,omitempty"`
	Activities   []Activity `json:"activities"`
	TotalCostUSD *float64   `json:"total_cost_usd,omitempty"`
}

// Itinerary is the synthesized trip plan. It is produced wholesale by each
// synthesis round and never partially mutated.
type Itinerary struct {
	Days         []Day    `json:"days"`
	TotalCostUSD *float64 `json:"total_cost_usd,omitempty"`
}

// Violation is a human-readable mismatch between an itinerary and the
// active constraints, classified downstream by keyword.
type Violation = string

// Citation references a source that informed the itinerary.
type Citation struct {
	Title  string `json:"title"`
	Source string `json:"source"`
	Ref    string `json:"ref"`
}
