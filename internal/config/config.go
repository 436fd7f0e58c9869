package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DeliverySSE     = "sse"
	DeliveryWebhook = "webhook"
)

// Config defines server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Log      LogConfig      `yaml:"log"`
	Packets  PacketsConfig  `yaml:"packets"`
	Auth     AuthConfig     `yaml:"auth"`
	Admin    AdminConfig    `yaml:"admin"`
	Delivery DeliveryConfig `yaml:"delivery"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"PACKETD_SERVER_HOST"`
	Port int    `yaml:"port" env:"PACKETD_SERVER_PORT"`
}

type DBConfig struct {
	Driver string `yaml:"driver" env:"PACKETD_DB_DRIVER"`
	Path   string `yaml:"path" env:"PACKETD_DB_PATH"`
	URL    string `yaml:"url" env:"PACKETD_DB_URL"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"PACKETD_LOG_LEVEL"`
	Format string `yaml:"format" env:"PACKETD_LOG_FORMAT"`
	// Path sends logs to a size-capped file instead of stdout.
	Path string `yaml:"path" env:"PACKETD_LOG_PATH"`
}

// PacketsConfig tunes packet windowing and the sweeper.
type PacketsConfig struct {
	IdleThreshold       time.Duration `yaml:"idle_threshold" env:"PACKETD_IDLE_THRESHOLD"`
	SweepInterval       time.Duration `yaml:"sweep_interval" env:"PACKETD_SWEEP_INTERVAL"`
	EvictAfter          time.Duration `yaml:"evict_after" env:"PACKETD_EVICT_AFTER"`
	MaxConcurrentCloses int           `yaml:"max_concurrent_closes" env:"PACKETD_MAX_CONCURRENT_CLOSES"`
}

type AuthConfig struct {
	Token string `yaml:"token" env:"PACKETD_AUTH_TOKEN"`
}

type AdminConfig struct {
	IDs []int64 `yaml:"ids" env:"PACKETD_ADMIN_IDS"`
}

// DeliveryConfig selects how closing notifications reach users.
type DeliveryConfig struct {
	Mode       string        `yaml:"mode" env:"PACKETD_DELIVERY_MODE"`
	WebhookURL string        `yaml:"webhook_url" env:"PACKETD_WEBHOOK_URL"`
	Token      string        `yaml:"token" env:"PACKETD_WEBHOOK_TOKEN"`
	Timeout    time.Duration `yaml:"timeout" env:"PACKETD_WEBHOOK_TIMEOUT"`
}

// IsAdmin reports whether userID is listed in admin.ids.
func (c AdminConfig) IsAdmin(userID int64) bool {
	for _, id := range c.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		DB: DBConfig{
			Driver: DriverSQLite,
			Path:   "packetd.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Packets: PacketsConfig{
			IdleThreshold:       5 * time.Second,
			SweepInterval:       500 * time.Millisecond,
			EvictAfter:          time.Hour,
			MaxConcurrentCloses: 16,
		},
		Delivery: DeliveryConfig{
			Mode:    DeliverySSE,
			Timeout: 10 * time.Second,
		},
	}
}

// Load reads configuration from an optional YAML file and environment variables.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("PACKETD_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run with.
func (c Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}

	switch c.DB.Driver {
	case DriverSQLite:
		if c.DB.Path == "" {
			errs = append(errs, errors.New("db.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.DB.URL == "" {
			errs = append(errs, errors.New("db.url is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown db.driver %q", c.DB.Driver))
	}

	if c.Packets.IdleThreshold <= 0 {
		errs = append(errs, errors.New("packets.idle_threshold must be positive"))
	}
	if c.Packets.SweepInterval <= 0 {
		errs = append(errs, errors.New("packets.sweep_interval must be positive"))
	}
	if c.Packets.EvictAfter < 0 {
		errs = append(errs, errors.New("packets.evict_after must not be negative"))
	}
	if c.Packets.MaxConcurrentCloses <= 0 {
		errs = append(errs, errors.New("packets.max_concurrent_closes must be positive"))
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("unknown log.format %q", c.Log.Format))
	}

	switch c.Delivery.Mode {
	case DeliverySSE:
	case DeliveryWebhook:
		if c.Delivery.WebhookURL == "" {
			errs = append(errs, errors.New("delivery.webhook_url is required for webhook mode"))
		}
		if c.Delivery.Timeout <= 0 {
			errs = append(errs, errors.New("delivery.timeout must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown delivery.mode %q", c.Delivery.Mode))
	}

	return errors.Join(errs...)
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}
