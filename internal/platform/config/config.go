package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/codingconcepts/env"
	"github.com/joho/godotenv"
)

// Config is the service configuration, read from environment variables.
type Config struct {
	Port      string `env:"PORT" default:"8080"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`

	// ChannelIDs is a comma-separated list of the channels to track, in
	// display order. It is supplied by the playlist layer.
	ChannelIDs       string `env:"CHANNEL_IDS" required:"true"`
	InitialChannelID string `env:"INITIAL_CHANNEL_ID"`

	// EPGURLTemplate is the per-channel schedule URL, with {channel_id}
	// standing in for the channel id.
	EPGURLTemplate string `env:"EPG_URL_TEMPLATE" required:"true"`

	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" default:"5m"`
	RefreshCron     string        `env:"REFRESH_CRON"`
	FetchTimeout    time.Duration `env:"FETCH_TIMEOUT" default:"10s"`
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files; with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// Parse populates a Config from the environment and validates it.
func Parse() (*Config, error) {
	var c Config
	if err := env.Set(&c); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values the struct tags cannot express.
func (c *Config) Validate() error {
	if len(c.Channels()) == 0 {
		return errors.New("CHANNEL_IDS lists no channel ids")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive, got %s", c.RefreshInterval)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive, got %s", c.FetchTimeout)
	}
	return nil
}

// Channels returns the configured channel ids with blanks removed.
func (c *Config) Channels() []string {
	var ids []string
	for _, id := range strings.Split(c.ChannelIDs, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
