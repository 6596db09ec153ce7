package config

// Config is the full service configuration.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
// Unknown keys are rejected so typos fail at startup instead of being
// silently ignored.
type Config struct {
	// AccountsFile points at the destination credentials file.
	AccountsFile string `json:"accounts_file"`
	// MaxAgeHours is the staleness threshold: events older than this
	// are acknowledged without publishing. 0 disables the gate.
	MaxAgeHours int `json:"max_age_hours"`
	// EventMediaPath is the root under which per-event map images live.
	EventMediaPath string `json:"event_media_path"`

	Ledger    LedgerConfig    `json:"ledger"`
	Spool     *SpoolConfig    `json:"spool,omitempty"`
	Transport TransportConfig `json:"transport,omitempty"`
	Logging   LoggingConfig   `json:"logging"`
	Geo       GeoConfig       `json:"geo"`
	Maps      MapsConfig      `json:"maps,omitempty"`
}

// LedgerConfig controls the delivery ledger store.
type LedgerConfig struct {
	// Driver: "sqlite" (default) or "memory".
	Driver string `json:"driver,omitempty"`
	// Location is the sqlite database path.
	Location string `json:"location"`
	// TableName defaults to "deliveries".
	TableName string `json:"table_name,omitempty"`
	// BusyTimeout is a Go duration string (sqlite busy handler).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SpoolConfig controls the watch-mode spool service.
type SpoolConfig struct {
	// Dir is the directory upstream drops event files into. Processed
	// files move to Dir/done or Dir/failed.
	Dir string `json:"dir"`
	// RetrySchedule is a cron expression for re-processing failed
	// events. Empty disables the sweep.
	RetrySchedule string `json:"retry_schedule,omitempty"`
}

// TransportConfig tunes outbound delivery.
type TransportConfig struct {
	// PostTimeout bounds one outbound provider call.
	PostTimeout string `json:"post_timeout,omitempty"`
	// StoreTimeout bounds one ledger operation.
	StoreTimeout string `json:"store_timeout,omitempty"`
	// RatePerSec throttles outbound posts.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// GeoConfig controls the localization collaborator.
type GeoConfig struct {
	CitiesFile string        `json:"cities_file,omitempty"`
	Timezone   string        `json:"timezone"`
	SurveyURL  string        `json:"survey_url,omitempty"`
	Country    CountryConfig `json:"country"`
}

// CountryConfig is the bounding box and messages for the national
// territory check.
type CountryConfig struct {
	MinLat  float64 `json:"min_lat"`
	MaxLat  float64 `json:"max_lat"`
	MinLon  float64 `json:"min_lon"`
	MaxLon  float64 `json:"max_lon"`
	Inside  string  `json:"inside_message"`
	Outside string  `json:"outside_message"`
}

// MapsConfig controls static-map generation. URL templates may use
// {lat} and {lon} placeholders.
type MapsConfig struct {
	URL         string `json:"url,omitempty"`
	FallbackURL string `json:"fallback_url,omitempty"`
	Timeout     string `json:"timeout,omitempty"`
}
