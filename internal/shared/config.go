package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
//
// A Config value is passed explicitly into every constructor that needs
// one; there is no package-level configuration state.
type Config struct {
	Relay        RelayConfig        `toml:"relay"`
	Plex         PlexConfig         `toml:"plex"`
	LastFM       LastFMConfig       `toml:"lastfm"`
	ListenBrainz ListenBrainzConfig `toml:"listenbrainz"`
}

// RelayConfig contains pass-level settings.
type RelayConfig struct {
	Database      string `toml:"database"`       // sqlite path for the ledger
	LoveThreshold int    `toml:"love_threshold"` // star rating (1-10) at or above which a track is loved
	HateThreshold int    `toml:"hate_threshold"` // star rating at or below which a track is hated; 0 disables
	TwoWay        bool   `toml:"two_way"`        // also import feedback from taste services back into Plex
	LogLevel      string `toml:"log_level"`
}

// PlexConfig contains Plex server connection settings.
type PlexConfig struct {
	URL     string `toml:"url"`
	Token   string `toml:"token"`
	Library string `toml:"library"`
}

// LastFMConfig contains Last.fm API credentials.
type LastFMConfig struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
}

// ListenBrainzConfig contains ListenBrainz API credentials.
type ListenBrainzConfig struct {
	Token    string `toml:"token"`
	Username string `toml:"username"`
}

// HateEnabled reports whether a hate threshold is configured.
func (c *Config) HateEnabled() bool {
	return c.Relay.HateThreshold > 0
}

// Validate checks the settings required by every run.
func (c *Config) Validate() error {
	if c.Plex.URL == "" {
		return fmt.Errorf("%w: plex.url is required", ErrInvalidConfig)
	}
	if c.Relay.Database == "" {
		return fmt.Errorf("%w: relay.database is required", ErrInvalidConfig)
	}
	if c.Relay.LoveThreshold < 1 || c.Relay.LoveThreshold > 10 {
		return fmt.Errorf("%w: relay.love_threshold must be between 1 and 10", ErrInvalidConfig)
	}
	if c.Relay.HateThreshold < 0 || c.Relay.HateThreshold > 10 {
		return fmt.Errorf("%w: relay.hate_threshold must be between 0 and 10", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified
// path, then applies environment overrides via [ApplyEnv]. A config.env
// file next to the working directory is loaded first when present, so
// secrets can live outside the TOML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Missing config.env is fine; env vars may be set by the caller.
	_ = godotenv.Load("config.env")
	ApplyEnv(&config)

	return &config, nil
}

// ApplyEnv overrides config values from environment variables. Credentials
// are the usual candidates for env-only configuration.
func ApplyEnv(config *Config) {
	envString(&config.Plex.URL, "PLEX_URL")
	envString(&config.Plex.Token, "PLEX_TOKEN")
	envString(&config.Plex.Library, "PLEX_LIBRARY")
	envString(&config.LastFM.APIKey, "LASTFM_API_KEY")
	envString(&config.LastFM.APISecret, "LASTFM_API_SECRET")
	envString(&config.LastFM.Username, "LASTFM_USERNAME")
	envString(&config.LastFM.Password, "LASTFM_PASSWORD")
	envString(&config.ListenBrainz.Token, "LISTENBRAINZ_TOKEN")
	envString(&config.ListenBrainz.Username, "LISTENBRAINZ_USERNAME")
	envString(&config.Relay.Database, "RELAY_DATABASE")
	envInt(&config.Relay.LoveThreshold, "RELAY_LOVE_THRESHOLD")
	envInt(&config.Relay.HateThreshold, "RELAY_HATE_THRESHOLD")
	if v := os.Getenv("RELAY_TWO_WAY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Relay.TwoWay = b
		}
	}
}

func envString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func envInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
