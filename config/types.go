package config

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port              int      `yaml:"port" validate:"gt=0,lte=65535"`
	CORSOrigins       []string `yaml:"corsOrigins"`
	ShutdownTimeoutMS int      `yaml:"shutdownTimeoutMS" validate:"gte=0"`
}

// APIConfig describes the upstream transit API
type APIConfig struct {
	BaseURL            string   `yaml:"baseURL" validate:"omitempty,url"`
	APIKey             string   `yaml:"apiKey"`
	TimeoutMS          int      `yaml:"timeoutMS" validate:"gte=0"`
	MaxRetries         int      `yaml:"maxRetries" validate:"gte=0,lte=10"`
	RetryIntervalMS    int      `yaml:"retryIntervalMS" validate:"gte=0"`
	PlannedLimit       int      `yaml:"plannedLimit" validate:"gte=0"`
	RealtimeStrategies []string `yaml:"realtimeStrategies" validate:"dive,oneof=rows-expected rows-aimed siri gtfsrt"`
}

// GTFSConfig selects an alternative planned source. When none of the fields
// is set, planned arrivals come from the upstream API.
type GTFSConfig struct {
	StaticURL   string `yaml:"staticURL" validate:"omitempty,url"`
	Path        string `yaml:"path"`
	CachePath   string `yaml:"cachePath"`
	DatabaseURL string `yaml:"databaseURL"`
}

// GTFSRTConfig contains GTFS-Realtime feed configuration
type GTFSRTConfig struct {
	TripUpdatesURL string `yaml:"tripUpdatesURL"`
}

// Feed represents a single upstream feed configuration
type Feed struct {
	Name   string       `yaml:"name" validate:"required"`
	API    APIConfig    `yaml:"api"`
	GTFS   GTFSConfig   `yaml:"gtfs"`
	GTFSRT GTFSRTConfig `yaml:"gtfsrt"`
}

// LookupConfig tunes lookup cycles and the board
type LookupConfig struct {
	WindowMinutes            int  `yaml:"windowMinutes" validate:"gte=0"`
	DisplayLimit             int  `yaml:"displayLimit" validate:"gte=0"`
	RefreshIntervalMS        int  `yaml:"refreshIntervalMS" validate:"gte=0"`
	AutoRefresh              bool `yaml:"autoRefresh"`
	IncludeUnmatchedRealtime bool `yaml:"includeUnmatchedRealtime"`
	ConsumeMatches           bool `yaml:"consumeMatches"`
}

// FavoritesConfig configures favorites persistence and cross-process sync
type FavoritesConfig struct {
	DBPath  string `yaml:"dbPath"`
	NATSURL string `yaml:"natsURL" validate:"omitempty,url"`
}

// LoggingConfig contains logger settings
type LoggingConfig struct {
	Level       string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// AppConfig is the root configuration structure
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	GTFS      GTFSConfig      `yaml:"gtfs"`
	GTFSRT    GTFSRTConfig    `yaml:"gtfsrt"`
	Lookup    LookupConfig    `yaml:"lookup"`
	Favorites FavoritesConfig `yaml:"favorites"`
	Logging   LoggingConfig   `yaml:"logging"`
	Feeds     []Feed          `yaml:"feeds"`
}
