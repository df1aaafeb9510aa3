package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvConfigPath = "STOPARRIVALS_CONFIG"
	EnvBaseURL    = "STOPARRIVALS_API_BASE_URL"
	EnvAPIKey     = "STOPARRIVALS_API_KEY"
	EnvPort       = "STOPARRIVALS_PORT"
	EnvLogLevel   = "STOPARRIVALS_LOG_LEVEL"
	EnvNATSURL    = "STOPARRIVALS_NATS_URL"
	EnvDBURL      = "STOPARRIVALS_GTFS_DATABASE_URL"
)

const (
	DefaultPort          = 16181
	DefaultFavoritesPath = "favorites.db"
)

var defaultPaths = []string{"config.yml", "./config/config.yml"}

// Load reads .env (if present), the YAML file at path and the environment,
// fills defaults and validates the result. An empty path searches
// $STOPARRIVALS_CONFIG and then the default locations; a missing default
// file is not an error so the service can run from the environment alone.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg AppConfig
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return data, nil
	}
	for _, p := range defaultPaths {
		data, err := os.ReadFile(p)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return nil, nil
}

func applyEnv(cfg *AppConfig) error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		cfg.API.APIKey = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvNATSURL); v != "" {
		cfg.Favorites.NATSURL = v
	}
	if v := os.Getenv(EnvDBURL); v != "" {
		cfg.GTFS.DatabaseURL = v
	}
	return nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Server.ShutdownTimeoutMS == 0 {
		cfg.Server.ShutdownTimeoutMS = 10000
	}
	if cfg.Lookup.WindowMinutes == 0 {
		cfg.Lookup.WindowMinutes = 60
	}
	if cfg.Lookup.DisplayLimit == 0 {
		cfg.Lookup.DisplayLimit = 12
	}
	if cfg.Lookup.RefreshIntervalMS == 0 {
		cfg.Lookup.RefreshIntervalMS = 30000
	}
	if cfg.Favorites.DBPath == "" {
		cfg.Favorites.DBPath = DefaultFavoritesPath
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	for i := range cfg.Feeds {
		if cfg.Feeds[i].API.BaseURL == "" {
			cfg.Feeds[i].API.BaseURL = cfg.API.BaseURL
		}
		if cfg.Feeds[i].API.APIKey == "" {
			cfg.Feeds[i].API.APIKey = cfg.API.APIKey
		}
	}
}

func validate(cfg *AppConfig) error {
	v := validator.New()
	for _, s := range []any{cfg.Server, cfg.API, cfg.GTFS, cfg.Lookup, cfg.Favorites, cfg.Logging} {
		if err := v.Struct(s); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	// feeds are optional; if present validate each
	seen := make(map[string]bool, len(cfg.Feeds))
	for _, f := range cfg.Feeds {
		if err := v.Struct(f); err != nil {
			return fmt.Errorf("invalid feed %q: %w", f.Name, err)
		}
		if seen[f.Name] {
			return fmt.Errorf("duplicate feed name %q", f.Name)
		}
		seen[f.Name] = true
	}
	return nil
}

// SelectFeed chooses a feed by name; fallback to first; if none, use the
// top-level api/gtfs/gtfsrt sections.
func (c *AppConfig) SelectFeed(name string) (Feed, error) {
	var f Feed
	switch {
	case name != "":
		found := false
		for _, feed := range c.Feeds {
			if feed.Name == name {
				f, found = feed, true
				break
			}
		}
		if !found {
			return Feed{}, fmt.Errorf("unknown feed %q", name)
		}
	case len(c.Feeds) > 0:
		f = c.Feeds[0]
	default:
		f = Feed{Name: "default", API: c.API, GTFS: c.GTFS, GTFSRT: c.GTFSRT}
	}
	if f.API.BaseURL == "" {
		return Feed{}, fmt.Errorf("feed %q has no api.baseURL (set it or %s)", f.Name, EnvBaseURL)
	}
	return f, nil
}

// Duration converts a millisecond setting.
func Duration(ms int) time.Duration { return time.Duration(ms) * time.Millisecond }
