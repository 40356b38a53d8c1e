// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

// Config is the full runtime configuration, populated from SCRIVENER_*
// environment variables.
type Config struct {
	// Addr is the host:port the server listens on.
	Addr string `env:"SCRIVENER_ADDR,default=:8321"`

	// TokenSecret is the HMAC secret shared with the token issuer.
	TokenSecret string `env:"SCRIVENER_TOKEN_SECRET,required"`

	// DBPath is the SQLite database file. ":memory:" runs without persistence.
	DBPath string `env:"SCRIVENER_DB_PATH,default=scrivener.db"`

	// PageSize caps list responses; 0 disables pagination.
	PageSize int `env:"SCRIVENER_PAGE_SIZE,default=50"`

	// HeartbeatInterval is the WebSocket ping cadence.
	HeartbeatInterval time.Duration `env:"SCRIVENER_HEARTBEAT_INTERVAL,default=30s"`

	// ResourceDir, when set, is mirrored into the resource catalog and watched
	// for changes.
	ResourceDir string `env:"SCRIVENER_RESOURCE_DIR,default="`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.PageSize < 0 {
		cfg.PageSize = 0
	}
	return &cfg, nil
}
