// Package config defines the gateway configuration, loaded from an optional
// YAML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "sambaza/libs/config"
)

// HTTPConfig holds listener settings.
type HTTPConfig struct {
	Port string `yaml:"port" env:"USSD_HTTP_PORT"`
}

// DatabaseConfig holds Postgres settings. An empty DSN selects the in-memory
// ledger and pending store.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"USSD_POSTGRES_DSN"`
}

// RedisConfig holds session store settings. An empty addr selects the
// in-memory session store.
type RedisConfig struct {
	Addr     string `yaml:"addr" env:"USSD_REDIS_ADDR"`
	Password string `yaml:"password" env:"USSD_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"USSD_REDIS_DB"`
}

// SessionConfig holds conversation lifecycle settings.
type SessionConfig struct {
	TTLSeconds int `yaml:"ttlSeconds" env:"USSD_SESSION_TTL"`
}

// LightningConfig selects the node backend.
type LightningConfig struct {
	Backend      string `yaml:"backend" env:"USSD_LIGHTNING_BACKEND"` // "mock" or "lnbits"
	LNBitsURL    string `yaml:"lnbitsUrl" env:"USSD_LNBITS_URL"`
	LNBitsAPIKey string `yaml:"lnbitsApiKey" env:"USSD_LNBITS_API_KEY"`
}

// MomoConfig selects the mobile money backend.
type MomoConfig struct {
	Backend        string `yaml:"backend" env:"USSD_MOMO_BACKEND"` // "mock" or "intasend"
	PublishableKey string `yaml:"publishableKey" env:"USSD_INTASEND_PUBLISHABLE_KEY"`
	SecretKey      string `yaml:"secretKey" env:"USSD_INTASEND_SECRET_KEY"`
	Test           bool   `yaml:"test" env:"USSD_INTASEND_TEST"`
}

// IntentConfig controls the natural language parser.
type IntentConfig struct {
	Enabled bool   `yaml:"enabled" env:"USSD_INTENT_ENABLED"`
	APIKey  string `yaml:"apiKey" env:"OPENAI_API_KEY"`
	Model   string `yaml:"model" env:"USSD_INTENT_MODEL"`
}

// OpsConfig guards the operations endpoints.
type OpsConfig struct {
	JWTSecret string `yaml:"jwtSecret" env:"USSD_OPS_JWT_SECRET"`
}

// Config is the full gateway configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Session   SessionConfig   `yaml:"session"`
	Lightning LightningConfig `yaml:"lightning"`
	Momo      MomoConfig      `yaml:"momo"`
	Intent    IntentConfig    `yaml:"intent"`
	Ops       OpsConfig       `yaml:"ops"`
}

// Load reads configuration via the shared helper and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP:      HTTPConfig{Port: "8080"},
		Session:   SessionConfig{TTLSeconds: 1800},
		Lightning: LightningConfig{Backend: "mock"},
		Momo:      MomoConfig{Backend: "mock", Test: true},
	}

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	switch cfg.Lightning.Backend {
	case "mock":
	case "lnbits":
		if strings.TrimSpace(cfg.Lightning.LNBitsURL) == "" || strings.TrimSpace(cfg.Lightning.LNBitsAPIKey) == "" {
			return nil, errors.New("config: lnbits backend requires url and api key")
		}
	default:
		return nil, fmt.Errorf("config: unknown lightning backend %q", cfg.Lightning.Backend)
	}

	switch cfg.Momo.Backend {
	case "mock":
	case "intasend":
		if strings.TrimSpace(cfg.Momo.SecretKey) == "" {
			return nil, errors.New("config: intasend backend requires secret key")
		}
	default:
		return nil, fmt.Errorf("config: unknown momo backend %q", cfg.Momo.Backend)
	}

	if cfg.Intent.Enabled && strings.TrimSpace(cfg.Intent.APIKey) == "" {
		return nil, errors.New("config: intent parser enabled without api key")
	}
	if strings.TrimSpace(cfg.Ops.JWTSecret) == "" {
		return nil, errors.New("config: ops jwt secret required")
	}
	return cfg, nil
}

// HTTPAddress returns :port style.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// SessionTTL returns the session lifetime as a duration.
func (c *Config) SessionTTL() time.Duration {
	if c.Session.TTLSeconds <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Session.TTLSeconds) * time.Second
}
