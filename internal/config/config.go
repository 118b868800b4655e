// Package config loads the brokerdesk configuration from YAML and the
// environment.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"brokerdesk/internal/domain"
)

// DefaultPath is read when $BROKERDESK_CONFIG is unset.
const DefaultPath = "config/brokerdesk.yaml"

// Transports and brokers accepted by Validate.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"

	BrokerAlpaca    = "alpaca"
	BrokerSimulator = "simulator"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the brokerdesk server.
type Config struct {
	Server  Server  `yaml:"server"`
	Broker  string  `yaml:"broker"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Logging Logging `yaml:"logging"`
	Market  Market  `yaml:"market"`
}

// Server holds the protocol transport and listener configuration. Host and
// ports apply to the http transport only.
type Server struct {
	Transport string `yaml:"transport"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	GRPCPort  int    `yaml:"grpc_port"`
}

// Alpaca holds credentials, endpoints and call limits for the Alpaca API.
type Alpaca struct {
	APIKey          string        `yaml:"api_key"`
	APISecret       string        `yaml:"api_secret"`
	BaseURL         string        `yaml:"base_url"`
	DataURL         string        `yaml:"data_url"`
	Feed            string        `yaml:"feed"`
	Timeout         time.Duration `yaml:"timeout"`
	RateLimitPerMin int           `yaml:"rate_limit_per_min"`
	ReadAttempts    int           `yaml:"read_attempts"`
	ReadRetryDelay  time.Duration `yaml:"read_retry_delay"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Market tunes market-data and asset responses.
type Market struct {
	BarsDefaultCount int `yaml:"bars_default_count"`
	AssetsPageSize   int `yaml:"assets_page_size"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Server: Server{
			Transport: TransportStdio,
			Host:      "127.0.0.1",
			Port:      8080,
			GRPCPort:  9090,
		},
		Broker: BrokerAlpaca,
		Alpaca: Alpaca{
			BaseURL:         "https://paper-api.alpaca.markets",
			Feed:            "iex",
			Timeout:         10 * time.Second,
			RateLimitPerMin: 200,
			ReadAttempts:    1,
			ReadRetryDelay:  500 * time.Millisecond,
		},
		Logging: Logging{Level: "info", Format: "json"},
		Market:  Market{BarsDefaultCount: 10, AssetsPageSize: 50},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns $BROKERDESK_CONFIG, or DefaultPath when it is unset.
func Path() string {
	if v := os.Getenv("BROKERDESK_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path over the
// defaults and then applies environment variable overrides. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, domain.Configuration("parsing %s: %v", path, err)
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPACA_PAPER_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_PAPER_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("ALPACA_FEED"); v != "" {
		cfg.Alpaca.Feed = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("BROKERDESK_TRANSPORT"); v != "" {
		cfg.Server.Transport = v
	}
	if v := os.Getenv("BROKERDESK_BROKER"); v != "" {
		cfg.Broker = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// Validate normalizes enumerated fields and reports the first setting that
// prevents startup as a configuration error.
func (c *Config) Validate() error {
	c.Server.Transport = strings.ToLower(strings.TrimSpace(c.Server.Transport))
	c.Broker = strings.ToLower(strings.TrimSpace(c.Broker))

	switch c.Server.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return domain.Configuration("server.port %d is out of range", c.Server.Port)
		}
		if c.Server.GRPCPort < 0 || c.Server.GRPCPort > 65535 {
			return domain.Configuration("server.grpc_port %d is out of range", c.Server.GRPCPort)
		}
	default:
		return domain.Configuration("unknown server.transport %q (use stdio or http)", c.Server.Transport)
	}

	switch c.Broker {
	case BrokerSimulator:
	case BrokerAlpaca:
		if c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "" {
			return domain.Configuration("alpaca API key and secret are required (set ALPACA_API_KEY and ALPACA_API_SECRET)")
		}
	default:
		return domain.Configuration("unknown broker %q (use alpaca or simulator)", c.Broker)
	}

	if c.Alpaca.ReadAttempts < 1 {
		c.Alpaca.ReadAttempts = 1
	}
	return nil
}
