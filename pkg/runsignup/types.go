package runsignup

// Provider-shaped response types for the race search endpoint. Only the
// fields the adapter reads are declared; the API returns much more.

// racesResponse is the top-level body of GET /rest/races.
type racesResponse struct {
	Races []raceWrapper `json:"races"`
}

// raceWrapper matches the provider's one-key nesting of each result.
type raceWrapper struct {
	Race providerRace `json:"race"`
}

// providerRace is one listing as the provider shapes it. Boolean flags
// arrive as "T"/"F" strings.
type providerRace struct {
	RaceID          int64           `json:"race_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	URL             string          `json:"url"`
	ExternalRaceURL string          `json:"external_race_url"`
	NextDate        string          `json:"next_date"` // MM/DD/YYYY
	LastDate        string          `json:"last_date"` // MM/DD/YYYY
	IsDraft         string          `json:"is_draft_race"`
	IsPrivate       string          `json:"is_private_race"`
	Address         providerAddress `json:"address"`
	Events          []providerEvent `json:"events"`
}

type providerAddress struct {
	City        string `json:"city"`
	State       string `json:"state"`
	Zipcode     string `json:"zipcode"`
	CountryCode string `json:"country_code"`
}

// providerEvent is one sub-event (a distance offered on race day).
type providerEvent struct {
	EventID      int64  `json:"event_id"`
	Name         string `json:"name"`
	StartTime    string `json:"start_time"`
	Distance     string `json:"distance"` // numeric string, may be empty
	DistanceUnit string `json:"distance_units"` // K, M, F, Y
	EventType    string `json:"event_type"`
}

func isTrue(flag string) bool {
	return flag == "T"
}
